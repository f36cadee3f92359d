package rewardaccount

import (
	"strings"

	"rewardvault/pkg/errutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardvault",
		Subsystem: "reward_account",
		Name:      "assignments_total",
		Help:      "Assign attempts by outcome.",
	}, []string{"result"})

	credentialAccess = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardvault",
		Subsystem: "reward_account",
		Name:      "credential_access_total",
		Help:      "Credential reads by outcome.",
	}, []string{"result"})

	expiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rewardvault",
		Subsystem: "reward_account",
		Name:      "expired_total",
		Help:      "Accounts moved to EXPIRED by the sweep.",
	})
)

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(errutil.StatusOf(err)))
}
