// Package submission is a read-only view of contest submissions. The table is
// owned by the submission service; this module only reads the fields reward
// assignment depends on.
package submission

import (
	"context"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Submission struct {
	ID                     int64     `gorm:"column:id;primaryKey"`
	SelectedRewardCategory *string   `gorm:"column:selected_reward_category;type:varchar(32)"`
	CreatedAt              time.Time `gorm:"column:created_at"`
}

func (Submission) TableName() string {
	return "submissions"
}

type Directory interface {
	WithTrx(tx *gorm.DB) Directory
	// Get returns gorm.ErrRecordNotFound when the submission does not exist.
	Get(ctx context.Context, id int64) (*Submission, error)
}

type gormDirectory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

func (d *gormDirectory) WithTrx(tx *gorm.DB) Directory {
	if tx == nil {
		return d
	}
	return &gormDirectory{db: tx}
}

func (d *gormDirectory) Get(ctx context.Context, id int64) (*Submission, error) {
	if d == nil || d.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var s Submission
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

var Module = fx.Module("submission",
	fx.Provide(NewDirectory),
)
