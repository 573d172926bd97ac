// Package integrity sweeps the audit trail for invariant violations: every
// case with history must have exactly one most-recent transition, and the
// case's cached state must agree with that record. The sweep is read-only;
// violations are logged for operators, never repaired automatically.
package integrity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Violation describes one audit-trail inconsistency.
type Violation struct {
	CaseID  uuid.UUID `db:"case_id"`
	Problem string
}

type recentCountRow struct {
	CaseID      uuid.UUID `db:"case_id"`
	RecentCount int       `db:"recent_count"`
}

type mismatchRow struct {
	CaseID       uuid.UUID `db:"case_id"`
	CurrentState string    `db:"current_state"`
	Workflow     string    `db:"workflow"`
	ToState      string    `db:"to_state"`
	ToWorkflow   string    `db:"to_workflow"`
}

// Checker runs the consistency sweep.
type Checker struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChecker(db *sqlx.DB, logger *zap.Logger) *Checker {
	return &Checker{db: db, logger: logger}
}

// Run executes one sweep and returns the violations found.
func (c *Checker) Run(ctx context.Context) ([]Violation, error) {
	var violations []Violation

	var counts []recentCountRow
	err := c.db.SelectContext(ctx, &counts, `
		SELECT case_id, COUNT(*) FILTER (WHERE most_recent) AS recent_count
		FROM case_transitions
		GROUP BY case_id
		HAVING COUNT(*) FILTER (WHERE most_recent) <> 1`)
	if err != nil {
		return nil, err
	}
	for _, row := range counts {
		v := Violation{CaseID: row.CaseID, Problem: "most_recent flag count is not 1"}
		violations = append(violations, v)
		c.logger.Warn("audit trail violation",
			zap.String("case_id", row.CaseID.String()),
			zap.Int("most_recent_count", row.RecentCount),
			zap.String("problem", v.Problem))
	}

	var mismatches []mismatchRow
	err = c.db.SelectContext(ctx, &mismatches, `
		SELECT c.id AS case_id, c.current_state, c.workflow, t.to_state, t.to_workflow
		FROM cases c
		JOIN case_transitions t ON t.case_id = c.id AND t.most_recent
		WHERE c.current_state <> t.to_state OR c.workflow <> t.to_workflow`)
	if err != nil {
		return nil, err
	}
	for _, row := range mismatches {
		v := Violation{CaseID: row.CaseID, Problem: "cached state diverges from latest transition"}
		violations = append(violations, v)
		c.logger.Warn("audit trail violation",
			zap.String("case_id", row.CaseID.String()),
			zap.String("cached_state", row.CurrentState),
			zap.String("recorded_state", row.ToState),
			zap.String("cached_workflow", row.Workflow),
			zap.String("recorded_workflow", row.ToWorkflow),
			zap.String("problem", v.Problem))
	}

	c.logger.Info("integrity sweep finished", zap.Int("violations", len(violations)))
	return violations, nil
}
