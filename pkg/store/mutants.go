package store

import (
	"context"
	"database/sql"
	"fmt"

	"mutaforge/pkg/model"
)

// MutantRepo persists model.Mutant rows.
type MutantRepo struct {
	db *sql.DB
}

// Insert creates a new mutant row and returns its assigned ID.
func (r *MutantRepo) Insert(ctx context.Context, m model.Mutant) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO mutants (class_fqn, method_name, param_types, file_path, line_start, line_end,
			original, mutated, tag, status, created_at, rounds)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id`,
		m.Target.ClassFQN, m.Target.MethodName, paramTypesKey(m.Target.ParamTypes),
		m.Patch.FilePath, m.Patch.LineStart, m.Patch.LineEnd, m.Patch.Original, m.Patch.Mutated,
		string(m.Tag), string(m.Status), m.CreatedAt, m.Rounds).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert mutant for %s: %w", m.Target.String(), err)
	}
	return id, nil
}

// UpdateStatus records a mutant's post-evaluation status and increments its
// attempt counter, the Mutation Evaluator's sole write path into this table.
func (r *MutantRepo) UpdateStatus(ctx context.Context, id int64, status model.MutantStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mutants SET status=$1, rounds = rounds + 1 WHERE id=$2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update mutant %d status: %w", id, err)
	}
	return nil
}

// ListForTarget returns every mutant generated so far for a target.
func (r *MutantRepo) ListForTarget(ctx context.Context, id model.TargetID) ([]model.Mutant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, file_path, line_start, line_end, original, mutated, tag, status, created_at, rounds
		FROM mutants WHERE class_fqn=$1 AND method_name=$2 AND param_types=$3
		ORDER BY id`,
		id.ClassFQN, id.MethodName, paramTypesKey(id.ParamTypes))
	if err != nil {
		return nil, fmt.Errorf("list mutants for %s: %w", id.String(), err)
	}
	defer rows.Close()

	var out []model.Mutant
	for rows.Next() {
		m := model.Mutant{Target: id}
		var tag, status string
		if err := rows.Scan(&m.ID, &m.Patch.FilePath, &m.Patch.LineStart, &m.Patch.LineEnd,
			&m.Patch.Original, &m.Patch.Mutated, &tag, &status, &m.CreatedAt, &m.Rounds); err != nil {
			return nil, fmt.Errorf("scan mutant: %w", err)
		}
		m.Tag = model.SemanticTag(tag)
		m.Status = model.MutantStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountByStatus tallies mutants for a target by status, the basis for the
// mutation-score numerator/denominator (spec.md §4.4 step 3).
func (r *MutantRepo) CountByStatus(ctx context.Context, id model.TargetID) (map[model.MutantStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, count(*) FROM mutants
		WHERE class_fqn=$1 AND method_name=$2 AND param_types=$3
		GROUP BY status`,
		id.ClassFQN, id.MethodName, paramTypesKey(id.ParamTypes))
	if err != nil {
		return nil, fmt.Errorf("count mutants for %s: %w", id.String(), err)
	}
	defer rows.Close()

	out := map[model.MutantStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan mutant count: %w", err)
		}
		out[model.MutantStatus(status)] = n
	}
	return out, rows.Err()
}
