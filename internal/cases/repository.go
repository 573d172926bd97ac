package cases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"caseflow/casework-backend/internal/statemachine"
)

// Repository is the data access contract for cases and their audit trail.
type Repository interface {
	CreateCase(ctx context.Context, kase *Case) error
	GetCase(ctx context.Context, id uuid.UUID) (*Case, error)
	ListTransitions(ctx context.Context, caseID uuid.UUID) ([]CaseTransition, error)

	// StoreFor returns the transition store bound to one case. The store's
	// Atomically locks that case's row, so concurrent triggers against the
	// same case serialize while different cases proceed independently.
	StoreFor(kase *Case) statemachine.TransitionStore
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateCase(ctx context.Context, kase *Case) error {
	return r.db.WithContext(ctx).Create(kase).Error
}

func (r *gormRepository) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	var kase Case
	if err := r.db.WithContext(ctx).First(&kase, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &kase, nil
}

func (r *gormRepository) ListTransitions(ctx context.Context, caseID uuid.UUID) ([]CaseTransition, error) {
	var transitions []CaseTransition
	err := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("sort_key ASC").
		Find(&transitions).Error
	return transitions, err
}

func (r *gormRepository) StoreFor(kase *Case) statemachine.TransitionStore {
	return &transitionStore{db: r.db, kase: kase}
}

// transitionStore applies audit-trail writes for one case. Inside
// Atomically the db handle is the enclosing transaction.
type transitionStore struct {
	db   *gorm.DB
	kase *Case
}

func (s *transitionStore) Atomically(ctx context.Context, fn func(ctx context.Context, tx statemachine.TransitionStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row lock is the per-case serialization point. The cached state
		// is re-read under the lock so destinations are computed against
		// the state a concurrent writer may just have committed.
		var locked Case
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", s.kase.ID).Error; err != nil {
			return fmt.Errorf("lock case %s: %w", s.kase.ID, err)
		}
		s.kase.CurrentState = locked.CurrentState
		s.kase.Workflow = locked.Workflow
		return fn(ctx, &transitionStore{db: tx, kase: s.kase})
	})
}

func (s *transitionStore) NextSortKey(ctx context.Context) (int64, error) {
	var maxKey int64
	err := s.db.WithContext(ctx).
		Model(&CaseTransition{}).
		Where("case_id = ?", s.kase.ID).
		Select("COALESCE(MAX(sort_key), 0)").
		Scan(&maxKey).Error
	if err != nil {
		return 0, err
	}
	return maxKey + 10, nil
}

func (s *transitionStore) UnsetMostRecent(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Model(&CaseTransition{}).
		Where("case_id = ? AND most_recent", s.kase.ID).
		Update("most_recent", false).Error
}

func (s *transitionStore) CreateTransition(ctx context.Context, rec *statemachine.TransitionRecord) error {
	row := CaseTransition{
		CaseID:       s.kase.ID,
		Event:        rec.Event,
		ToState:      rec.ToState,
		ToWorkflow:   rec.ToWorkflow,
		SortKey:      rec.SortKey,
		MostRecent:   rec.MostRecent,
		ActingUserID: rec.ActingUserID,
		ActingTeamID: rec.ActingTeamID,
		TargetUserID: rec.TargetUserID,
		TargetTeamID: rec.TargetTeamID,
	}
	if len(rec.Metadata) > 0 {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal transition metadata: %w", err)
		}
		row.Metadata = raw
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *transitionStore) UpdateEntityState(ctx context.Context, toState, toWorkflow string) error {
	err := s.db.WithContext(ctx).
		Model(&Case{}).
		Where("id = ?", s.kase.ID).
		Updates(map[string]any{
			"current_state": toState,
			"workflow":      toWorkflow,
		}).Error
	if err != nil {
		return err
	}
	s.kase.CurrentState = toState
	s.kase.Workflow = toWorkflow
	return nil
}
