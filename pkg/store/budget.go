package store

import (
	"context"
	"database/sql"
	"fmt"

	"mutaforge/pkg/model"
)

// BudgetRepo persists the single process-wide model.BudgetCounter row
// (spec.md §4.5 global stop conditions).
type BudgetRepo struct {
	db *sql.DB
}

// Get loads the budget counter, creating the zero-valued row on first use.
func (r *BudgetRepo) Get(ctx context.Context) (model.BudgetCounter, error) {
	var b model.BudgetCounter
	err := r.db.QueryRowContext(ctx, `
		SELECT llm_calls_used, rounds_used, last_improvement_rnd FROM budget_counters WHERE id=1`).
		Scan(&b.LLMCallsUsed, &b.RoundsUsed, &b.LastImprovementRnd)
	if err == sql.ErrNoRows {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO budget_counters (id) VALUES (1)`); err != nil {
			return model.BudgetCounter{}, fmt.Errorf("init budget counter: %w", err)
		}
		return model.BudgetCounter{}, nil
	}
	if err != nil {
		return model.BudgetCounter{}, fmt.Errorf("get budget counter: %w", err)
	}
	return b, nil
}

// Save overwrites the budget counter, the planner's single writer calling
// this once per round.
func (r *BudgetRepo) Save(ctx context.Context, b model.BudgetCounter) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_counters (id, llm_calls_used, rounds_used, last_improvement_rnd)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			llm_calls_used = EXCLUDED.llm_calls_used,
			rounds_used = EXCLUDED.rounds_used,
			last_improvement_rnd = EXCLUDED.last_improvement_rnd`,
		b.LLMCallsUsed, b.RoundsUsed, b.LastImprovementRnd)
	if err != nil {
		return fmt.Errorf("save budget counter: %w", err)
	}
	return nil
}
