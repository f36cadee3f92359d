package audit

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionAccessed    Action = "ACCESSED"
	ActionAssigned    Action = "ASSIGNED"
	ActionUnassigned  Action = "UNASSIGNED"
	ActionCreated     Action = "CREATED"
	ActionRotated     Action = "ROTATED"
	ActionUpdated     Action = "UPDATED"
	ActionDeactivated Action = "DEACTIVATED"
	ActionReactivated Action = "REACTIVATED"
	ActionExpired     Action = "EXPIRED"
	ActionDeleted     Action = "DELETED"
)

func (a Action) Valid() bool {
	switch a {
	case ActionAccessed, ActionAssigned, ActionUnassigned, ActionCreated, ActionRotated,
		ActionUpdated, ActionDeactivated, ActionReactivated, ActionExpired, ActionDeleted:
		return true
	default:
		return false
	}
}

// Entry is one append-only audit row. It references the account by id only,
// so entries outlive a hard-deleted account.
type Entry struct {
	ID              snowflake.ID   `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	RewardAccountID snowflake.ID   `gorm:"column:reward_account_id;not null;index:idx_audit_account_time,priority:1" json:"reward_account_id"`
	Action          Action         `gorm:"column:action;type:varchar(32);not null;index" json:"action"`
	PerformedBy     string         `gorm:"column:performed_by;type:varchar(255);not null" json:"performed_by"`
	PerformedAt     time.Time      `gorm:"column:performed_at;not null;index:idx_audit_account_time,priority:2" json:"performed_at"`
	Reason          *string        `gorm:"column:reason;type:text" json:"reason,omitempty"`
	Metadata        datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Entry) TableName() string {
	return "reward_account_audit_entries"
}

// Record is what callers hand to the trail. Metadata must never hold
// credential material.
type Record struct {
	RewardAccountID snowflake.ID
	Action          Action
	PerformedBy     string
	Reason          string
	Metadata        map[string]any
}

func (r Record) toEntry(id snowflake.ID, at time.Time) *Entry {
	e := &Entry{
		ID:              id,
		RewardAccountID: r.RewardAccountID,
		Action:          r.Action,
		PerformedBy:     r.PerformedBy,
		PerformedAt:     at,
	}
	if r.Reason != "" {
		reason := r.Reason
		e.Reason = &reason
	}
	if len(r.Metadata) > 0 {
		if b, err := json.Marshal(r.Metadata); err == nil {
			e.Metadata = datatypes.JSON(b)
		}
	}
	return e
}
