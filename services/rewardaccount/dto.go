package rewardaccount

import (
	"time"

	"rewardvault/pkg/db/pagination"

	"github.com/bwmarrin/snowflake"
)

type CreateInput struct {
	ServiceName          string     `json:"service_name" validate:"required,max=255"`
	AccountType          string     `json:"account_type" validate:"required,max=255"`
	Category             Category   `json:"category" validate:"required,oneof=STREAMING_SERVICE GIFT_CARD SUBSCRIPTION DIGITAL_PRODUCT OTHER"`
	Credentials          string     `json:"credentials" validate:"required,max=4096"`
	SubscriptionDuration *string    `json:"subscription_duration" validate:"omitnil,max=255"`
	Description          *string    `json:"description" validate:"omitnil,max=2000"`
	ExpiresAt            *time.Time `json:"expires_at"`
	CreatedBy            string     `json:"created_by" validate:"required,max=255"`
}

// redacted returns a copy safe to echo back in a bulk failure report.
func (in CreateInput) redacted() CreateInput {
	in.Credentials = ""
	return in
}

type UpdateInput struct {
	ServiceName          *string    `json:"service_name" validate:"omitnil,min=1,max=255"`
	AccountType          *string    `json:"account_type" validate:"omitnil,min=1,max=255"`
	Category             *Category  `json:"category" validate:"omitnil,oneof=STREAMING_SERVICE GIFT_CARD SUBSCRIPTION DIGITAL_PRODUCT OTHER"`
	SubscriptionDuration *string    `json:"subscription_duration" validate:"omitnil,max=255"`
	Description          *string    `json:"description" validate:"omitnil,max=2000"`
	ExpiresAt            *time.Time `json:"expires_at"`
}

type AssignInput struct {
	RewardAccountID snowflake.ID `json:"reward_account_id" validate:"required"`
	SubmissionID    int64        `json:"submission_id" validate:"required,gt=0"`
	AssignedBy      string       `json:"assigned_by" validate:"required,max=255"`
	Notes           string       `json:"notes" validate:"max=1000"`
}

type BulkFailure struct {
	Index int         `json:"index"`
	Input CreateInput `json:"input"`
	Error string      `json:"error"`
	Code  string      `json:"code"`
}

type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type BulkCreateResult struct {
	Successful []*Account     `json:"successful"`
	Failed     []*BulkFailure `json:"failed"`
	Summary    BulkSummary    `json:"summary"`
}

type BulkStatusFailure struct {
	ID    snowflake.ID `json:"id"`
	Error string       `json:"error"`
	Code  string       `json:"code"`
}

type BulkStatusResult struct {
	Successful []*Account           `json:"successful"`
	Failed     []*BulkStatusFailure `json:"failed"`
	Summary    BulkSummary          `json:"summary"`
}

// ValidationResult answers whether an assign would currently pass its
// preconditions. Error and Code are set only when IsValid is false.
type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	Error         string   `json:"error,omitempty"`
	Code          string   `json:"code,omitempty"`
	RewardAccount *Account `json:"reward_account,omitempty"`
}

type AccountPage struct {
	Items    []*Account          `json:"items"`
	PageInfo pagination.PageInfo `json:"page_info"`
}
