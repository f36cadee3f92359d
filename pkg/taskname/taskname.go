package taskname

const (
	// Reward account tasks
	RewardExpirySweep = "reward:expiry:sweep"

	// Audit tasks
	AuditRedeliver = "reward:audit:redeliver"
)

// Queues
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)
