package rewardaccount

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"rewardvault/pkg/db/pagination"
	"rewardvault/pkg/errutil"
	"rewardvault/pkg/logger"
	"rewardvault/services/audit"
	"rewardvault/services/submission"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// SystemActor is recorded as performed_by for changes no admin initiated.
const SystemActor = "system"

const (
	bulkConcurrency = 8
	expiryBatchSize = 200
)

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// Service is the distribution engine. It is the only writer of reward
// account rows and holds no in-process locks: every guarded change is a
// conditional write inside a store transaction.
type Service struct {
	db          *gorm.DB
	node        *snowflake.Node
	repo        Repository
	submissions submission.Directory
	cipher      Cipher
	audit       *audit.Trail
	expiry      ExpiryPolicy
	validate    *validator.Validate
	now         func() time.Time
}

type ServiceParams struct {
	fx.In
	DB          *gorm.DB
	Node        *snowflake.Node
	Repo        Repository
	Submissions submission.Directory
	Cipher      Cipher
	Audit       *audit.Trail
	Expiry      ExpiryPolicy
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		repo:        p.Repo,
		submissions: p.Submissions,
		cipher:      p.Cipher,
		audit:       p.Audit,
		expiry:      p.Expiry,
		validate:    newValidator(),
		now:         time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) validateInput(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errutil.ValidationFailed("invalid input", err)
	}

	details := make([]errutil.Detail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, errutil.Detail{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return errutil.ValidationFailed("invalid input", nil, errutil.WithDetails(details...))
}

// fieldMessage never includes the rejected value.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must not be empty"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}

func accountNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.NotFound("reward account not found", err)
	}
	return err
}

func requireActor(by string) error {
	if strings.TrimSpace(by) == "" {
		return errutil.ValidationFailed("invalid input", nil,
			errutil.WithDetails(errutil.Detail{Field: "performed_by", Message: "is required"}),
		)
	}
	return nil
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

// change describes one guarded status transition.
type change struct {
	event  Event
	by     string
	reason string
	// fields are written in the same statement as the status.
	fields map[string]any
	// before runs under the transaction after the account is read and before
	// the conditional write. An error aborts the transaction.
	before   func(tx *gorm.DB, prev *RewardAccount) error
	metadata func(prev *RewardAccount) map[string]any
}

var eventActions = map[Event]audit.Action{
	EventAssign:     audit.ActionAssigned,
	EventUnassign:   audit.ActionUnassigned,
	EventDeactivate: audit.ActionDeactivated,
	EventReactivate: audit.ActionReactivated,
	EventExpire:     audit.ActionExpired,
}

// apply runs c against account id. The status guard lives in the UPDATE's
// WHERE clause and is also checked up front on the locked row; a write that
// matches no row is reported as a conflict naming the current state.
func (s *Service) apply(ctx context.Context, id snowflake.ID, c change) (*RewardAccount, error) {
	if err := requireActor(c.by); err != nil {
		return nil, err
	}

	var (
		out   *RewardAccount
		batch *audit.Batch
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)

		prev, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return accountNotFound(err)
		}

		// State is checked on the locked row before any hook so that a
		// caller losing the race always sees a conflict.
		if _, err := Next(prev.Status, c.event); err != nil {
			return err
		}

		if c.before != nil {
			if err := c.before(tx, prev); err != nil {
				return err
			}
		}

		fields := make(map[string]any, len(c.fields)+1)
		maps.Copy(fields, c.fields)
		fields["updated_at"] = s.now().UTC()

		ok, err := repo.TransitionStatus(ctx, id, Sources(c.event), Target(c.event), fields)
		if err != nil {
			return err
		}
		if !ok {
			cur, err := repo.GetByID(ctx, id)
			if err != nil {
				return accountNotFound(err)
			}
			return conflict(cur.Status, c.event)
		}

		out, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		rec := audit.Record{
			RewardAccountID: id,
			Action:          eventActions[c.event],
			PerformedBy:     c.by,
			Reason:          c.reason,
		}
		if c.metadata != nil {
			rec.Metadata = c.metadata(prev)
		}
		batch = s.audit.Write(ctx, tx, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.AfterCommit(ctx, batch)
	return out, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Account, error) {
	in.ServiceName = strings.TrimSpace(in.ServiceName)
	in.AccountType = strings.TrimSpace(in.AccountType)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	in.SubscriptionDuration = trimPtr(in.SubscriptionDuration)

	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	enc, err := s.cipher.Encrypt(in.Credentials)
	if err != nil {
		return nil, errutil.BadRequest("failed to encrypt credentials", err)
	}

	now := s.now().UTC()
	expiresAt := in.ExpiresAt
	if expiresAt == nil {
		expiresAt = s.expiry.ExpiresAt(now)
	} else {
		expiresAt = timePtr(expiresAt.UTC())
	}

	m := &RewardAccount{
		ID:                   s.node.Generate(),
		ServiceName:          in.ServiceName,
		AccountType:          in.AccountType,
		Category:             in.Category,
		EncryptedCredentials: enc,
		SubscriptionDuration: in.SubscriptionDuration,
		Description:          in.Description,
		Status:               StatusAvailable,
		ExpiresAt:            expiresAt,
		CreatedBy:            in.CreatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	var batch *audit.Batch
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTrx(tx).Create(ctx, m); err != nil {
			return err
		}

		batch = s.audit.Write(ctx, tx, audit.Record{
			RewardAccountID: m.ID,
			Action:          audit.ActionCreated,
			PerformedBy:     m.CreatedBy,
			Metadata: map[string]any{
				"service_name": m.ServiceName,
				"category":     m.Category,
			},
		})
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to create reward account", zap.Error(err))
		return nil, err
	}

	s.audit.AfterCommit(ctx, batch)
	return m.ToAccount(), nil
}

// BulkCreate creates every input independently. One failing input never
// aborts the others; results keep input order.
func (s *Service) BulkCreate(ctx context.Context, inputs []CreateInput) *BulkCreateResult {
	created := make([]*Account, len(inputs))
	failures := make([]*BulkFailure, len(inputs))

	var g errgroup.Group
	g.SetLimit(bulkConcurrency)

	for i, in := range inputs {
		g.Go(func() error {
			acc, err := s.Create(ctx, in)
			if err != nil {
				failures[i] = &BulkFailure{
					Index: i,
					Input: in.redacted(),
					Error: errutil.PublicMessage(err),
					Code:  string(errutil.StatusOf(err)),
				}
				return nil
			}
			created[i] = acc
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkCreateResult{
		Successful: make([]*Account, 0, len(inputs)),
		Failed:     make([]*BulkFailure, 0),
	}
	for i := range inputs {
		if created[i] != nil {
			res.Successful = append(res.Successful, created[i])
		} else {
			res.Failed = append(res.Failed, failures[i])
		}
	}
	res.Summary = BulkSummary{
		Total:      len(inputs),
		Successful: len(res.Successful),
		Failed:     len(res.Failed),
	}

	logger.FromContext(ctx).Info("bulk create finished",
		zap.Int("total", res.Summary.Total),
		zap.Int("successful", res.Summary.Successful),
		zap.Int("failed", res.Summary.Failed),
	)
	return res
}

// checkAssignable verifies the submission side of an assignment: the
// submission exists, its category selection (if any) matches acc and it does
// not already hold a different account.
func checkAssignable(ctx context.Context, repo Repository, subs submission.Directory, acc *RewardAccount, submissionID int64) error {
	sub, err := subs.Get(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errutil.NotFound("submission not found", err)
		}
		return err
	}

	if sel := sub.SelectedRewardCategory; sel != nil && *sel != "" && Category(*sel) != acc.Category {
		return errutil.BadRequest("reward category does not match the submission's selected category", nil,
			errutil.WithDetails(
				errutil.Detail{Field: "selected_reward_category", Message: *sel},
				errutil.Detail{Field: "category", Message: string(acc.Category)},
			),
		)
	}

	held, err := repo.FindBySubmission(ctx, submissionID)
	switch {
	case err == nil && held.ID != acc.ID:
		return errutil.Conflict("submission already has a reward account", nil,
			errutil.WithDetails(errutil.Detail{Field: "reward_account_id", Message: held.ID.String()}),
		)
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	return nil
}

// Assign binds an AVAILABLE account to a submission. Under concurrent calls
// for the same account exactly one succeeds; the rest get a conflict.
func (s *Service) Assign(ctx context.Context, in AssignInput) (acc *Account, err error) {
	defer func() { assignments.WithLabelValues(resultLabel(err)).Inc() }()

	in.AssignedBy = strings.TrimSpace(in.AssignedBy)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	m, err := s.apply(ctx, in.RewardAccountID, change{
		event:  EventAssign,
		by:     in.AssignedBy,
		reason: in.Notes,
		fields: map[string]any{
			"assigned_to_submission_id": in.SubmissionID,
			"assigned_at":               now,
		},
		before: func(tx *gorm.DB, prev *RewardAccount) error {
			return checkAssignable(ctx, s.repo.WithTrx(tx), s.submissions.WithTrx(tx), prev, in.SubmissionID)
		},
		metadata: func(*RewardAccount) map[string]any {
			return map[string]any{"submission_id": in.SubmissionID}
		},
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, errutil.Conflict("submission already has a reward account", err)
	}
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("reward account assigned",
		zap.String("reward_account_id", m.ID.String()),
		zap.Int64("submission_id", in.SubmissionID),
		zap.String("assigned_by", in.AssignedBy),
	)
	return m.ToAccount(), nil
}

func (s *Service) Unassign(ctx context.Context, id snowflake.ID, by, reason string) (*Account, error) {
	m, err := s.apply(ctx, id, change{
		event:  EventUnassign,
		by:     by,
		reason: strings.TrimSpace(reason),
		fields: map[string]any{
			"assigned_to_submission_id": nil,
			"assigned_at":               nil,
		},
		metadata: func(prev *RewardAccount) map[string]any {
			if prev.AssignedToSubmissionID == nil {
				return nil
			}
			return map[string]any{"submission_id": *prev.AssignedToSubmissionID}
		},
	})
	if err != nil {
		return nil, err
	}
	return m.ToAccount(), nil
}

// ValidateAssignment reports whether Assign would currently accept the pair.
// It does not write anything, and a passing result is no promise: the account
// can still be taken before the caller assigns it.
func (s *Service) ValidateAssignment(ctx context.Context, id snowflake.ID, submissionID int64) (*ValidationResult, error) {
	invalid := func(err error) (*ValidationResult, error) {
		var be errutil.BaseError
		if !errors.As(err, &be) {
			return nil, err
		}
		return &ValidationResult{Error: be.Message, Code: string(be.Code)}, nil
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return invalid(accountNotFound(err))
	}

	if _, err := Next(m.Status, EventAssign); err != nil {
		res, rerr := invalid(err)
		if res != nil {
			res.RewardAccount = m.ToAccount()
		}
		return res, rerr
	}

	if err := checkAssignable(ctx, s.repo, s.submissions, m, submissionID); err != nil {
		res, rerr := invalid(err)
		if res != nil {
			res.RewardAccount = m.ToAccount()
		}
		return res, rerr
	}

	return &ValidationResult{IsValid: true, RewardAccount: m.ToAccount()}, nil
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID, by string) (*Account, error) {
	m, err := s.apply(ctx, id, change{
		event: EventDeactivate,
		by:    by,
		metadata: func(prev *RewardAccount) map[string]any {
			return map[string]any{"previous_status": prev.Status}
		},
	})
	if err != nil {
		return nil, err
	}
	return m.ToAccount(), nil
}

// Reactivate returns a DEACTIVATED or EXPIRED account to AVAILABLE and gives
// it a fresh expiry from the policy.
func (s *Service) Reactivate(ctx context.Context, id snowflake.ID, by string) (*Account, error) {
	m, err := s.apply(ctx, id, change{
		event:  EventReactivate,
		by:     by,
		fields: map[string]any{"expires_at": s.expiry.ExpiresAt(s.now().UTC())},
		metadata: func(prev *RewardAccount) map[string]any {
			return map[string]any{"previous_status": prev.Status}
		},
	})
	if err != nil {
		return nil, err
	}
	return m.ToAccount(), nil
}

// BulkUpdateStatus deactivates (target DEACTIVATED) or reactivates (target
// AVAILABLE) each id independently.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []snowflake.ID, target Status, by string) (*BulkStatusResult, error) {
	var op func(context.Context, snowflake.ID, string) (*Account, error)
	switch target {
	case StatusDeactivated:
		op = s.Deactivate
	case StatusAvailable:
		op = s.Reactivate
	default:
		return nil, errutil.ValidationFailed("unsupported bulk status target", nil,
			errutil.WithDetails(errutil.Detail{Field: "status", Message: "must be one of DEACTIVATED AVAILABLE"}),
		)
	}

	updated := make([]*Account, len(ids))
	failures := make([]*BulkStatusFailure, len(ids))

	var g errgroup.Group
	g.SetLimit(bulkConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			acc, err := op(ctx, id, by)
			if err != nil {
				failures[i] = &BulkStatusFailure{ID: id, Error: errutil.PublicMessage(err), Code: string(errutil.StatusOf(err))}
				return nil
			}
			updated[i] = acc
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkStatusResult{
		Successful: make([]*Account, 0, len(ids)),
		Failed:     make([]*BulkStatusFailure, 0),
	}
	for i := range ids {
		if updated[i] != nil {
			res.Successful = append(res.Successful, updated[i])
		} else {
			res.Failed = append(res.Failed, failures[i])
		}
	}
	res.Summary = BulkSummary{Total: len(ids), Successful: len(res.Successful), Failed: len(res.Failed)}
	return res, nil
}

// MarkExpired moves every AVAILABLE account the expiry policy selects to
// EXPIRED. Each row goes through the same conditional write as any other
// transition, so an account assigned mid-sweep is skipped.
func (s *Service) MarkExpired(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	zapLog := logger.FromContext(ctx)

	var (
		count   int64
		afterID snowflake.ID
	)

	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		rows, err := s.repo.ExpiryCandidates(ctx, s.expiry.Scope(now), afterID, expiryBatchSize)
		if err != nil {
			return count, err
		}

		for _, a := range rows {
			afterID = a.ID

			expired, err := s.expiry.IsExpired(a, now)
			if err != nil {
				zapLog.Warn("expiry check failed", zap.String("reward_account_id", a.ID.String()), zap.Error(err))
				continue
			}
			if !expired {
				continue
			}

			_, err = s.apply(ctx, a.ID, change{
				event: EventExpire,
				by:    SystemActor,
				metadata: func(prev *RewardAccount) map[string]any {
					if prev.ExpiresAt == nil {
						return nil
					}
					return map[string]any{"expires_at": prev.ExpiresAt}
				},
			})
			switch {
			case err == nil:
				count++
				expiredTotal.Inc()
			case errutil.Is(err, errutil.StatusConflict), errutil.Is(err, errutil.StatusNotFound):
				// taken or deleted since the scan
			default:
				return count, err
			}
		}

		if len(rows) < expiryBatchSize {
			break
		}
	}

	zapLog.Info("expiry sweep finished", zap.Int64("expired", count))
	return count, nil
}

// Delete removes an account that is not ASSIGNED. Its audit entries stay.
func (s *Service) Delete(ctx context.Context, id snowflake.ID, by string) error {
	if err := requireActor(by); err != nil {
		return err
	}

	var batch *audit.Batch

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)

		prev, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return accountNotFound(err)
		}

		ok, err := repo.DeleteUnlessStatus(ctx, id, StatusAssigned)
		if err != nil {
			return err
		}
		if !ok {
			if _, err := repo.GetByID(ctx, id); err != nil {
				return accountNotFound(err)
			}
			return errutil.BadRequest("cannot delete an assigned reward account", nil,
				errutil.WithDetails(errutil.Detail{Field: "current_status", Message: string(StatusAssigned)}),
			)
		}

		batch = s.audit.Write(ctx, tx, audit.Record{
			RewardAccountID: id,
			Action:          audit.ActionDeleted,
			PerformedBy:     by,
			Metadata: map[string]any{
				"service_name": prev.ServiceName,
				"category":     prev.Category,
				"status":       prev.Status,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.AfterCommit(ctx, batch)
	return nil
}

// GetWithCredentials is the only read that returns plaintext. The ACCESSED
// entry is persisted before decryption; if it cannot be written the call
// fails and nothing is decrypted.
func (s *Service) GetWithCredentials(ctx context.Context, id snowflake.ID, accessReason, requestedBy string) (*CredentialsView, error) {
	accessReason = strings.TrimSpace(accessReason)
	requestedBy = strings.TrimSpace(requestedBy)

	var details []errutil.Detail
	if accessReason == "" {
		details = append(details, errutil.Detail{Field: "access_reason", Message: "is required"})
	}
	if requestedBy == "" {
		details = append(details, errutil.Detail{Field: "requested_by", Message: "is required"})
	}
	if len(details) > 0 {
		return nil, errutil.ValidationFailed("credential access requires a reason and a requester", nil, errutil.WithDetails(details...))
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		credentialAccess.WithLabelValues("not_found").Inc()
		return nil, accountNotFound(err)
	}

	_, err = s.audit.Append(ctx, audit.Record{
		RewardAccountID: id,
		Action:          audit.ActionAccessed,
		PerformedBy:     requestedBy,
		Reason:          accessReason,
	})
	if err != nil {
		credentialAccess.WithLabelValues("audit_failed").Inc()
		return nil, errutil.Internal("credential access could not be audited", err)
	}

	plain, err := s.cipher.Decrypt(m.EncryptedCredentials)
	if err != nil {
		credentialAccess.WithLabelValues("decrypt_failed").Inc()
		logger.FromContext(ctx).Error("stored credentials failed to decrypt",
			zap.String("reward_account_id", id.String()),
			zap.Error(err),
		)
		return nil, errutil.DecryptionFailed("stored credentials could not be decrypted", err)
	}

	credentialAccess.WithLabelValues("success").Inc()
	return &CredentialsView{Account: *m.ToAccount(), Credentials: plain}, nil
}

// RotateCredentials replaces the stored credentials with a new secret
// encrypted under the current key.
func (s *Service) RotateCredentials(ctx context.Context, id snowflake.ID, credentials, by, reason string) (*Account, error) {
	if credentials == "" {
		return nil, errutil.ValidationFailed("invalid input", nil,
			errutil.WithDetails(errutil.Detail{Field: "credentials", Message: "is required"}),
		)
	}
	if err := requireActor(by); err != nil {
		return nil, err
	}

	enc, err := s.cipher.Encrypt(credentials)
	if err != nil {
		return nil, errutil.BadRequest("failed to encrypt credentials", err)
	}

	var (
		out   *RewardAccount
		batch *audit.Batch
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)

		if _, err := repo.GetByIDForUpdate(ctx, id); err != nil {
			return accountNotFound(err)
		}

		ok, err := repo.UpdateFields(ctx, id, map[string]any{
			"encrypted_credentials": enc,
			"updated_at":            s.now().UTC(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return accountNotFound(gorm.ErrRecordNotFound)
		}

		if out, err = repo.GetByID(ctx, id); err != nil {
			return err
		}

		batch = s.audit.Write(ctx, tx, audit.Record{
			RewardAccountID: id,
			Action:          audit.ActionRotated,
			PerformedBy:     by,
			Reason:          strings.TrimSpace(reason),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.AfterCommit(ctx, batch)
	return out.ToAccount(), nil
}

// Update changes descriptive fields. The category of an ASSIGNED account is
// frozen since the assignment was checked against it.
func (s *Service) Update(ctx context.Context, id snowflake.ID, in UpdateInput, by string) (*Account, error) {
	in.ServiceName = trimPtr(in.ServiceName)
	in.AccountType = trimPtr(in.AccountType)
	in.SubscriptionDuration = trimPtr(in.SubscriptionDuration)

	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	if err := requireActor(by); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.ServiceName != nil {
		fields["service_name"] = *in.ServiceName
	}
	if in.AccountType != nil {
		fields["account_type"] = *in.AccountType
	}
	if in.Category != nil {
		fields["category"] = *in.Category
	}
	if in.SubscriptionDuration != nil {
		fields["subscription_duration"] = *in.SubscriptionDuration
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.ExpiresAt != nil {
		fields["expires_at"] = in.ExpiresAt.UTC()
	}

	if len(fields) == 0 {
		return s.GetByID(ctx, id)
	}

	changed := make([]string, 0, len(fields))
	for k := range fields {
		changed = append(changed, k)
	}
	slices.Sort(changed)
	fields["updated_at"] = s.now().UTC()

	var (
		out   *RewardAccount
		batch *audit.Batch
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)

		prev, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return accountNotFound(err)
		}

		var unless []Status
		if in.Category != nil && *in.Category != prev.Category {
			unless = append(unless, StatusAssigned)
		}

		ok, err := repo.UpdateFields(ctx, id, fields, unless...)
		if err != nil {
			return err
		}
		if !ok {
			cur, err := repo.GetByID(ctx, id)
			if err != nil {
				return accountNotFound(err)
			}
			return errutil.Conflict("cannot change the category of an assigned reward account", nil,
				errutil.WithDetails(errutil.Detail{Field: "current_status", Message: string(cur.Status)}),
			)
		}

		if out, err = repo.GetByID(ctx, id); err != nil {
			return err
		}

		batch = s.audit.Write(ctx, tx, audit.Record{
			RewardAccountID: id,
			Action:          audit.ActionUpdated,
			PerformedBy:     by,
			Metadata:        map[string]any{"fields": changed},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.AfterCommit(ctx, batch)
	return out.ToAccount(), nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*Account, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, accountNotFound(err)
	}
	return m.ToAccount(), nil
}

func (s *Service) GetAccounts(ctx context.Context, f Filters, page pagination.Page, sort Sort) (*AccountPage, error) {
	var details []errutil.Detail
	if f.Category != nil && !f.Category.Valid() {
		details = append(details, errutil.Detail{Field: "category", Message: "is invalid"})
	}
	if f.Status != nil && !f.Status.Valid() {
		details = append(details, errutil.Detail{Field: "status", Message: "is invalid"})
	}
	if _, ok := sortClause(sort); !ok {
		details = append(details, errutil.Detail{Field: "sort", Message: fmt.Sprintf("unsupported sort %q %q", sort.SortBy, sort.SortOrder)})
	}
	if len(details) > 0 {
		return nil, errutil.ValidationFailed("invalid query", nil, errutil.WithDetails(details...))
	}

	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, f, page, sort)
	if err != nil {
		return nil, err
	}

	return &AccountPage{
		Items:    toAccounts(rows),
		PageInfo: pagination.BuildPageInfo(page, total),
	}, nil
}

// GetAssignableRewards lists AVAILABLE accounts, oldest first.
func (s *Service) GetAssignableRewards(ctx context.Context, category *Category) ([]*Account, error) {
	if category != nil && !category.Valid() {
		return nil, errutil.ValidationFailed("invalid query", nil,
			errutil.WithDetails(errutil.Detail{Field: "category", Message: "is invalid"}),
		)
	}

	rows, err := s.repo.ListAssignable(ctx, category)
	if err != nil {
		return nil, err
	}
	return toAccounts(rows), nil
}

func (s *Service) AuditLog(ctx context.Context, id snowflake.ID, action audit.Action, page pagination.Page) ([]*audit.Entry, pagination.PageInfo, error) {
	if action != "" && !action.Valid() {
		return nil, pagination.PageInfo{}, errutil.ValidationFailed("invalid query", nil,
			errutil.WithDetails(errutil.Detail{Field: "action", Message: "is invalid"}),
		)
	}
	return s.audit.List(ctx, audit.ListFilter{RewardAccountID: id, Action: action}, page)
}
