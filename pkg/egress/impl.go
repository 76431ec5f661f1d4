package egress

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stagegate/stagegate/pkg/events"
	"github.com/stagegate/stagegate/pkg/lock"
	"github.com/stagegate/stagegate/pkg/logger"
	"github.com/stagegate/stagegate/pkg/sizefmt"
	"github.com/stagegate/stagegate/pkg/store"
	"github.com/stagegate/stagegate/pkg/types"
)

// serviceImpl implements the Service interface.
type serviceImpl struct {
	cfg      Config
	validate *validator.Validate
}

// NewService creates the egress store service.
func NewService(cfg Config) (Service, error) {
	if cfg.EgressStoreBucket == "" {
		return nil, errors.New("EgressStoreBucket is required")
	}
	if cfg.Records == nil {
		return nil, errors.New("Records is required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("Objects is required")
	}
	if cfg.Keys == nil {
		return nil, errors.New("Keys is required")
	}
	if cfg.Locks == nil {
		return nil, errors.New("Locks is required")
	}
	if cfg.Reconciler == nil {
		return nil, errors.New("Reconciler is required")
	}
	if cfg.Snapshots == nil {
		return nil, errors.New("Snapshots is required")
	}
	if cfg.Accounts == nil {
		return nil, errors.New("Accounts is required")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NoopPublisher{}
	}
	if cfg.Auditor == nil {
		cfg.Auditor = LogAuditor{}
	}

	return &serviceImpl{
		cfg:      cfg,
		validate: validator.New(),
	}, nil
}

func (s *serviceImpl) GetStoreInfo(ctx context.Context, workspaceID string) (*types.EgressStore, error) {
	return s.findStore(ctx, workspaceID)
}

func (s *serviceImpl) Create(ctx context.Context, rc *types.RequestContext, ws *types.Workspace) (*Descriptor, error) {
	if !s.cfg.Enabled {
		return nil, s.fail("create", NewFeatureDisabledError())
	}
	if err := s.validate.Struct(ws); err != nil {
		return nil, s.fail("create", NewValidationError(err))
	}

	kmsArn, err := s.cfg.Keys.ResolveKeyArn(ctx, s.cfg.KMSKeyAlias)
	if err != nil {
		return nil, s.fail("create", NewStorageIOError(err, "resolve key alias %s", s.cfg.KMSKeyAlias))
	}

	now := time.Now().UTC()
	rec := &types.EgressStore{
		ID:              ws.ID,
		EgressStoreName: ws.Name + "-egress-store",
		WorkspaceID:     ws.ID,
		ProjectID:       ws.ProjectID,
		StorageLocation: types.StorageLocation{
			Bucket: s.cfg.EgressStoreBucket,
			Prefix: ws.ID + "/",
		},
		Status:                      types.StatusCreated,
		IsAbleToSubmitEgressRequest: false,
		Ver:                         0,
		CreatedAt:                   now,
		CreatedBy:                   rc.Principal.UID,
		UpdatedAt:                   now,
		UpdatedBy:                   rc.Principal.UID,
	}

	err = s.cfg.Locks.WithLock(ctx, lock.RecordLockID(ws.ID), func(ctx context.Context) error {
		loc := rec.StorageLocation
		if err := s.cfg.Objects.CreatePrefix(ctx, loc.Bucket, loc.Prefix); err != nil {
			return NewStorageIOError(err, "allocate storage path %s/%s", loc.Bucket, loc.Prefix)
		}
		if err := s.cfg.Records.CreateIfAbsent(ctx, rec); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return NewAlreadyExistsError(ws.ID)
			}
			return NewStorageIOError(err, "write store record %s", ws.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("create", s.asDomainError(err, "create store record for workspace %s", ws.ID))
	}

	// Record lock is released before the policy lock is requested.
	accountID, err := s.cfg.Accounts.MemberAccountID(ctx, rc, ws.ID)
	if err != nil {
		return nil, s.fail("create", NewStorageIOError(err, "resolve member account of workspace %s", ws.ID))
	}
	if err := s.cfg.Reconciler.Grant(ctx, rec, accountID); err != nil {
		// The record stays; there is no automatic rollback. Operators must
		// reconcile manually.
		logger.Ctx(ctx).Warn().
			Str("workspace_id", ws.ID).
			Str("account_id", accountID).
			Err(err).
			Msg("access grant failed after store creation; record left in place")
		return nil, s.fail("create", &Error{
			Code:    ErrCodePolicyUpdate,
			Message: "grant access to account " + accountID,
			Err:     err,
		})
	}

	s.cfg.Auditor.RecordAsync(ctx, rc, AuditEvent{
		Action: "create-egress-store", Subject: ws.ID, Outcome: "ok",
	})
	OperationsTotal.WithLabelValues("create", "ok").Inc()
	return &Descriptor{
		ID:        rec.ID,
		Name:      rec.EgressStoreName,
		Bucket:    rec.StorageLocation.Bucket,
		Prefix:    rec.StorageLocation.Prefix,
		KMSKeyArn: kmsArn,
	}, nil
}

func (s *serviceImpl) Terminate(ctx context.Context, rc *types.RequestContext, workspaceID string) (*types.EgressStore, error) {
	if !s.cfg.Enabled {
		return nil, s.fail("terminate", NewFeatureDisabledError())
	}

	// The whole read-validate-clear-write cycle runs under the record lock
	// so a concurrent submit or create cannot interleave with it.
	var rec *types.EgressStore
	var passthrough bool
	err := s.cfg.Locks.WithLock(ctx, lock.RecordLockID(workspaceID), func(ctx context.Context) error {
		var err error
		rec, err = s.findStore(ctx, workspaceID)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		if err := s.authorize(rc, rec, "terminate"); err != nil {
			return err
		}

		if rec.Status == types.StatusProcessing {
			return NewConflictError(
				"egress store of workspace %s is being processed and cannot be terminated", workspaceID)
		}

		untouched := rec.Status == types.StatusCreated && !rec.IsAbleToSubmitEgressRequest
		if rec.Status != types.StatusProcessed && !untouched {
			// Stores with submitted or in-flight data pass through unchanged.
			logger.Ctx(ctx).Info().
				Str("workspace_id", workspaceID).
				Str("status", string(rec.Status)).
				Msg("egress store not in a terminable state; leaving unchanged")
			passthrough = true
			return nil
		}

		loc := rec.StorageLocation
		if err := s.cfg.Objects.ClearPrefix(ctx, loc.Bucket, loc.Prefix); err != nil {
			return NewStorageIOError(err, "clear storage path %s/%s", loc.Bucket, loc.Prefix)
		}

		rec.Status = types.StatusTerminated
		rec.IsAbleToSubmitEgressRequest = false
		rec.UpdatedAt = time.Now().UTC()
		rec.UpdatedBy = rc.Principal.UID
		rec.Ver++

		if err := s.cfg.Records.UpdateIfExists(ctx, rec); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NewNotFoundError(workspaceID)
			}
			return NewStorageIOError(err, "update store record %s", workspaceID)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("terminate", s.asDomainError(err, "terminate store of workspace %s", workspaceID))
	}
	if rec == nil {
		s.cfg.Auditor.RecordAsync(ctx, rc, AuditEvent{
			Action: "terminate-egress-store", Subject: workspaceID,
			Outcome: "no-op", Detail: "no egress store exists",
		})
		OperationsTotal.WithLabelValues("terminate", "ok").Inc()
		return nil, nil
	}
	if passthrough {
		OperationsTotal.WithLabelValues("terminate", "ok").Inc()
		return rec, nil
	}

	accountID, err := s.cfg.Accounts.MemberAccountID(ctx, rc, workspaceID)
	if err != nil {
		return nil, s.fail("terminate", NewStorageIOError(err, "resolve member account of workspace %s", workspaceID))
	}
	if err := s.cfg.Reconciler.Revoke(ctx, rec, accountID); err != nil {
		logger.Ctx(ctx).Warn().
			Str("workspace_id", workspaceID).
			Str("account_id", accountID).
			Err(err).
			Msg("access revoke failed after termination; grants left in place")
		return nil, s.fail("terminate", &Error{
			Code:    ErrCodePolicyUpdate,
			Message: "revoke access of account " + accountID,
			Err:     err,
		})
	}

	s.cfg.Auditor.RecordAsync(ctx, rc, AuditEvent{
		Action: "terminate-egress-store", Subject: workspaceID, Outcome: "ok",
	})
	OperationsTotal.WithLabelValues("terminate", "ok").Inc()
	return rec, nil
}

func (s *serviceImpl) Submit(ctx context.Context, rc *types.RequestContext, workspaceID string) (*events.EgressNotification, error) {
	if !s.cfg.Enabled {
		return nil, s.fail("submit", NewFeatureDisabledError())
	}

	// Eligibility check, manifest capture, and record mutation run as one
	// critical section: two concurrent submits must serialize so only the
	// first sees an eligible store.
	var rec *types.EgressStore
	err := s.cfg.Locks.WithLock(ctx, lock.RecordLockID(workspaceID), func(ctx context.Context) error {
		var err error
		rec, err = s.findStore(ctx, workspaceID)
		if err != nil {
			return err
		}
		if rec == nil {
			return NewNotFoundError(workspaceID)
		}
		if err := s.authorize(rc, rec, "submit"); err != nil {
			return err
		}
		if !rec.IsAbleToSubmitEgressRequest {
			return NewInvalidStateError(
				"egress store of workspace %s is not eligible for a new export request", workspaceID)
		}

		location, err := s.cfg.Snapshots.Build(ctx, rec)
		if err != nil {
			SnapshotFailuresTotal.Inc()
			return &Error{
				Code:    ErrCodeSnapshot,
				Message: "capture object manifest of workspace " + workspaceID,
				Err:     err,
			}
		}

		// Idempotent: a store already PENDING stays PENDING.
		rec.Status = types.StatusPending
		rec.ObjectManifestLocation = location
		rec.IsAbleToSubmitEgressRequest = false
		rec.UpdatedAt = time.Now().UTC()
		rec.UpdatedBy = rc.Principal.UID
		rec.Ver++

		if err := s.cfg.Records.UpdateIfExists(ctx, rec); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NewNotFoundError(workspaceID)
			}
			return NewStorageIOError(err, "update store record %s", workspaceID)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("submit", s.asDomainError(err, "submit egress request for workspace %s", workspaceID))
	}

	n := notificationFrom(rec)
	if err := s.cfg.Publisher.Publish(ctx, n); err != nil {
		// The record mutation stands; the caller sees the publish failure.
		logger.Ctx(ctx).Warn().
			Str("workspace_id", workspaceID).
			Err(err).
			Msg("notification publish failed after submission; record left PENDING")
		return nil, s.fail("submit", &Error{
			Code:    ErrCodePublish,
			Message: "publish egress notification for workspace " + workspaceID,
			Err:     err,
		})
	}

	s.cfg.Auditor.RecordAsync(ctx, rc, AuditEvent{
		Action: "submit-egress-request", Subject: workspaceID, Outcome: "ok",
	})
	OperationsTotal.WithLabelValues("submit", "ok").Inc()
	return n, nil
}

func (s *serviceImpl) EnableSubmission(ctx context.Context, rec *types.EgressStore) (*types.EgressStore, error) {
	// Re-read under the record lock so the flag flip composes with any
	// concurrent mutation instead of overwriting it with the caller's copy.
	var updated *types.EgressStore
	err := s.cfg.Locks.WithLock(ctx, lock.RecordLockID(rec.ID), func(ctx context.Context) error {
		current, err := s.findStore(ctx, rec.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return NewNotFoundError(rec.ID)
		}
		current.IsAbleToSubmitEgressRequest = true
		current.UpdatedAt = time.Now().UTC()
		current.Ver++

		if err := s.cfg.Records.UpdateIfExists(ctx, current); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NewNotFoundError(rec.ID)
			}
			return NewStorageIOError(err, "update store record %s", rec.ID)
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, s.fail("enable-submission", s.asDomainError(err, "update store record %s", rec.ID))
	}
	OperationsTotal.WithLabelValues("enable-submission", "ok").Inc()
	return updated, nil
}

func (s *serviceImpl) ListObjects(ctx context.Context, rc *types.RequestContext, workspaceID string) (*ListObjectsResult, error) {
	rec, err := s.findStore(ctx, workspaceID)
	if err != nil {
		return nil, s.fail("list-objects", err)
	}
	if rec == nil {
		return nil, s.fail("list-objects", NewNotFoundError(workspaceID))
	}
	if err := s.authorize(rc, rec, "view"); err != nil {
		return nil, s.fail("list-objects", err)
	}

	loc := rec.StorageLocation
	infos, err := s.cfg.Objects.ListAll(ctx, loc.Bucket, loc.Prefix)
	if err != nil {
		return nil, s.fail("list-objects", NewStorageIOError(err, "list objects of workspace %s", workspaceID))
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastModified.Before(infos[j].LastModified)
	})

	result := &ListObjectsResult{
		Objects:                     make([]ObjectView, 0, maxListedObjects),
		IsAbleToSubmitEgressRequest: rec.IsAbleToSubmitEgressRequest,
	}
	for _, info := range infos {
		if info.Key == loc.Prefix {
			continue
		}
		if len(result.Objects) == maxListedObjects {
			break
		}
		result.Objects = append(result.Objects, ObjectView{
			Key:          strings.TrimPrefix(info.Key, loc.Prefix),
			Size:         sizefmt.HumanSize(info.Size),
			LastModified: info.LastModified,
		})
	}

	OperationsTotal.WithLabelValues("list-objects", "ok").Inc()
	return result, nil
}

// findStore returns the workspace's record, nil when absent, or an invariant
// error when the record store holds more than one record for the key.
func (s *serviceImpl) findStore(ctx context.Context, workspaceID string) (*types.EgressStore, error) {
	recs, err := s.cfg.Records.Find(ctx, workspaceID)
	if err != nil {
		return nil, NewStorageIOError(err, "look up store record %s", workspaceID)
	}
	switch len(recs) {
	case 0:
		return nil, nil
	case 1:
		return recs[0], nil
	default:
		return nil, NewInvariantError("found %d egress store records for workspace %s, expected at most one",
			len(recs), workspaceID)
	}
}

// authorize allows admins and the store's creator.
func (s *serviceImpl) authorize(rc *types.RequestContext, rec *types.EgressStore, action string) error {
	if rc.IsAdmin || rc.Principal.UID == rec.CreatedBy {
		return nil
	}
	return NewForbiddenError(action, rec.WorkspaceID)
}

// asDomainError passes through errors already carrying a domain code and
// wraps everything else (lock acquisition failures included) as storage IO.
func (s *serviceImpl) asDomainError(err error, format string, args ...any) error {
	if CodeOf(err) != ErrCodeNone {
		return err
	}
	return NewStorageIOError(err, format, args...)
}

func (s *serviceImpl) fail(op string, err error) error {
	OperationsTotal.WithLabelValues(op, CodeOf(err).String()).Inc()
	return err
}

func notificationFrom(rec *types.EgressStore) *events.EgressNotification {
	return &events.EgressNotification{
		EgressStoreID:          rec.ID,
		EgressStoreName:        rec.EgressStoreName,
		WorkspaceID:            rec.WorkspaceID,
		ProjectID:              rec.ProjectID,
		Status:                 string(rec.Status),
		Ver:                    rec.Ver,
		ObjectManifestLocation: rec.ObjectManifestLocation,
		CreatedAt:              rec.CreatedAt.Format(time.RFC3339),
		CreatedBy:              rec.CreatedBy,
		UpdatedAt:              rec.UpdatedAt.Format(time.RFC3339),
		UpdatedBy:              rec.UpdatedBy,
	}
}
