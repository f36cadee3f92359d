package rewardaccount

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Category string

const (
	CategoryStreamingService Category = "STREAMING_SERVICE"
	CategoryGiftCard         Category = "GIFT_CARD"
	CategorySubscription     Category = "SUBSCRIPTION"
	CategoryDigitalProduct   Category = "DIGITAL_PRODUCT"
	CategoryOther            Category = "OTHER"
)

var Categories = []Category{
	CategoryStreamingService,
	CategoryGiftCard,
	CategorySubscription,
	CategoryDigitalProduct,
	CategoryOther,
}

func (c Category) Valid() bool {
	switch c {
	case CategoryStreamingService, CategoryGiftCard, CategorySubscription, CategoryDigitalProduct, CategoryOther:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusAssigned    Status = "ASSIGNED"
	StatusExpired     Status = "EXPIRED"
	StatusDeactivated Status = "DEACTIVATED"
)

var Statuses = []Status{StatusAvailable, StatusAssigned, StatusExpired, StatusDeactivated}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusAssigned, StatusExpired, StatusDeactivated:
		return true
	default:
		return false
	}
}

// RewardAccount is the stored row. AssignedToSubmissionID and AssignedAt are
// set exactly when Status is ASSIGNED and are always written together.
type RewardAccount struct {
	ID                     snowflake.ID `gorm:"column:id;primaryKey;autoIncrement:false"`
	ServiceName            string       `gorm:"column:service_name;type:varchar(255);not null;index"`
	AccountType            string       `gorm:"column:account_type;type:varchar(255);not null"`
	Category               Category     `gorm:"column:category;type:varchar(32);not null;index"`
	EncryptedCredentials   string       `gorm:"column:encrypted_credentials;type:text;not null"`
	SubscriptionDuration   *string      `gorm:"column:subscription_duration;type:varchar(255)"`
	Description            *string      `gorm:"column:description;type:text"`
	Status                 Status       `gorm:"column:status;type:varchar(16);not null;index"`
	AssignedToSubmissionID *int64       `gorm:"column:assigned_to_submission_id;uniqueIndex"`
	AssignedAt             *time.Time   `gorm:"column:assigned_at"`
	ExpiresAt              *time.Time   `gorm:"column:expires_at;index"`
	CreatedBy              string       `gorm:"column:created_by;type:varchar(255);not null;index"`
	CreatedAt              time.Time    `gorm:"column:created_at;not null;index"`
	UpdatedAt              time.Time    `gorm:"column:updated_at;not null"`
}

func (RewardAccount) TableName() string {
	return "reward_accounts"
}

// Account is the public view of a reward account. It never carries
// credentials, encrypted or not.
type Account struct {
	ID                     snowflake.ID `json:"id"`
	ServiceName            string       `json:"service_name"`
	AccountType            string       `json:"account_type"`
	Category               Category     `json:"category"`
	SubscriptionDuration   *string      `json:"subscription_duration"`
	Description            *string      `json:"description"`
	Status                 Status       `json:"status"`
	AssignedToSubmissionID *int64       `json:"assigned_to_submission_id"`
	AssignedAt             *time.Time   `json:"assigned_at"`
	ExpiresAt              *time.Time   `json:"expires_at"`
	CreatedBy              string       `json:"created_by"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// CredentialsView is only produced by GetWithCredentials.
type CredentialsView struct {
	Account
	Credentials string `json:"credentials"`
}

func (m *RewardAccount) ToAccount() *Account {
	if m == nil {
		return nil
	}
	return &Account{
		ID:                     m.ID,
		ServiceName:            m.ServiceName,
		AccountType:            m.AccountType,
		Category:               m.Category,
		SubscriptionDuration:   m.SubscriptionDuration,
		Description:            m.Description,
		Status:                 m.Status,
		AssignedToSubmissionID: m.AssignedToSubmissionID,
		AssignedAt:             m.AssignedAt,
		ExpiresAt:              m.ExpiresAt,
		CreatedBy:              m.CreatedBy,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

func toAccounts(rows []*RewardAccount) []*Account {
	out := make([]*Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToAccount())
	}
	return out
}
