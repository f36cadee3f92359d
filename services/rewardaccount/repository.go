package rewardaccount

import (
	"context"
	"strings"
	"time"

	"rewardvault/pkg/db/pagination"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Filters struct {
	Search                 string    `form:"search" json:"search"`
	Category               *Category `form:"category" json:"category"`
	Status                 *Status   `form:"status" json:"status"`
	AssignedToSubmissionID *int64    `form:"assigned_to_submission_id" json:"assigned_to_submission_id"`
	CreatedBy              string    `form:"created_by" json:"created_by"`
}

type Sort struct {
	SortBy    string `form:"sort_by" json:"sort_by"`
	SortOrder string `form:"sort_order" json:"sort_order"`
}

// StatusCategoryCount is one row of the GROUP BY status, category aggregate.
type StatusCategoryCount struct {
	Status   Status
	Category Category
	Count    int64
}

// Repository is the reward account store. Every status change goes through
// TransitionStatus, a single conditional UPDATE.
type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	Create(ctx context.Context, m *RewardAccount) error
	GetByID(ctx context.Context, id snowflake.ID) (*RewardAccount, error)
	GetByIDForUpdate(ctx context.Context, id snowflake.ID) (*RewardAccount, error)
	FindBySubmission(ctx context.Context, submissionID int64) (*RewardAccount, error)
	List(ctx context.Context, f Filters, page pagination.Page, sort Sort) ([]*RewardAccount, int64, error)
	ListAssignable(ctx context.Context, category *Category) ([]*RewardAccount, error)
	TransitionStatus(ctx context.Context, id snowflake.ID, from []Status, to Status, fields map[string]any) (bool, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any, unlessStatus ...Status) (bool, error)
	DeleteUnlessStatus(ctx context.Context, id snowflake.ID, status Status) (bool, error)
	ExpiryCandidates(ctx context.Context, scope func(*gorm.DB) *gorm.DB, afterID snowflake.ID, limit int) ([]*RewardAccount, error)
	CountByStatusCategory(ctx context.Context) ([]StatusCategoryCount, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTrx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, m *RewardAccount) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *gormRepository) GetByID(ctx context.Context, id snowflake.ID) (*RewardAccount, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var m RewardAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByIDForUpdate row-locks the account on dialects that support it. It is
// only meaningful inside a transaction.
func (r *gormRepository) GetByIDForUpdate(ctx context.Context, id snowflake.ID) (*RewardAccount, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var m RewardAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) FindBySubmission(ctx context.Context, submissionID int64) (*RewardAccount, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var m RewardAccount
	err := r.db.WithContext(ctx).
		Where("assigned_to_submission_id = ?", submissionID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

var sortColumns = map[string]string{
	"id":           "id",
	"service_name": "service_name",
	"serviceName":  "service_name",
	"category":     "category",
	"status":       "status",
	"created_at":   "created_at",
	"createdAt":    "created_at",
	"updated_at":   "updated_at",
	"updatedAt":    "updated_at",
	"assigned_at":  "assigned_at",
	"assignedAt":   "assigned_at",
}

// sortClause resolves s against the whitelist. ok is false for unknown
// columns or directions.
func sortClause(s Sort) (clause.OrderByColumn, bool) {
	col := "created_at"
	if s.SortBy != "" {
		c, found := sortColumns[s.SortBy]
		if !found {
			return clause.OrderByColumn{}, false
		}
		col = c
	}

	desc := true
	switch strings.ToLower(s.SortOrder) {
	case "", "desc":
	case "asc":
		desc = false
	default:
		return clause.OrderByColumn{}, false
	}

	return clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc}, true
}

func (r *gormRepository) List(ctx context.Context, f Filters, page pagination.Page, s Sort) ([]*RewardAccount, int64, error) {
	if r == nil || r.db == nil {
		return nil, 0, gorm.ErrInvalidDB
	}

	order, ok := sortClause(s)
	if !ok {
		return nil, 0, gorm.ErrInvalidField
	}

	query := r.db.WithContext(ctx).Model(&RewardAccount{})

	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where(
			"LOWER(service_name) LIKE ? OR LOWER(account_type) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?",
			like, like, like,
		)
	}
	if f.Category != nil {
		query = query.Where("category = ?", *f.Category)
	}
	if f.Status != nil {
		query = query.Where("status = ?", *f.Status)
	}
	if f.AssignedToSubmissionID != nil {
		query = query.Where("assigned_to_submission_id = ?", *f.AssignedToSubmissionID)
	}
	if f.CreatedBy != "" {
		query = query.Where("created_by = ?", f.CreatedBy)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*RewardAccount
	err := query.
		Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{
			order,
			{Column: clause.Column{Name: "id"}, Desc: order.Desc},
		}}).
		Scopes(page.Scope()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// ListAssignable returns AVAILABLE accounts oldest first.
func (r *gormRepository) ListAssignable(ctx context.Context, category *Category) ([]*RewardAccount, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Where("status = ?", StatusAvailable)
	if category != nil {
		query = query.Where("category = ?", *category)
	}

	var rows []*RewardAccount
	if err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TransitionStatus moves id to status to only if it is currently in one of
// from. It reports false when no row matched.
func (r *gormRepository) TransitionStatus(ctx context.Context, id snowflake.ID, from []Status, to Status, fields map[string]any) (bool, error) {
	if r == nil || r.db == nil {
		return false, gorm.ErrInvalidDB
	}

	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := r.db.WithContext(ctx).
		Model(&RewardAccount{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateFields writes fields unless the row is in one of unlessStatus.
func (r *gormRepository) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any, unlessStatus ...Status) (bool, error) {
	if r == nil || r.db == nil {
		return false, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&RewardAccount{}).Where("id = ?", id)
	if len(unlessStatus) > 0 {
		query = query.Where("status NOT IN ?", unlessStatus)
	}

	res := query.Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) DeleteUnlessStatus(ctx context.Context, id snowflake.ID, status Status) (bool, error) {
	if r == nil || r.db == nil {
		return false, gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, status).
		Delete(&RewardAccount{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExpiryCandidates pages through AVAILABLE accounts matching scope in id
// order.
func (r *gormRepository) ExpiryCandidates(ctx context.Context, scope func(*gorm.DB) *gorm.DB, afterID snowflake.ID, limit int) ([]*RewardAccount, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).
		Where("status = ?", StatusAvailable).
		Where("id > ?", afterID)
	if scope != nil {
		query = query.Scopes(scope)
	}

	var rows []*RewardAccount
	if err := query.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) CountByStatusCategory(ctx context.Context) ([]StatusCategoryCount, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var rows []StatusCategoryCount
	err := r.db.WithContext(ctx).
		Model(&RewardAccount{}).
		Select("status, category, COUNT(*) AS count").
		Group("status, category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
