package store

import (
	"context"
	"database/sql"
	"fmt"

	"mutaforge/pkg/model"
)

// TestCaseRepo persists model.TestCase rows.
type TestCaseRepo struct {
	db *sql.DB
}

// Upsert inserts or replaces a test case, the planner's write-back path
// for generated or refined tests (spec.md §4.5).
func (r *TestCaseRepo) Upsert(ctx context.Context, tc model.TestCase) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO test_cases (class_fqn, method_name, param_types, test_class_name, test_method_name,
			source_text, creation_round, origin, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (class_fqn, method_name, param_types, test_class_name, test_method_name) DO UPDATE SET
			source_text = EXCLUDED.source_text,
			creation_round = EXCLUDED.creation_round,
			origin = EXCLUDED.origin,
			status = EXCLUDED.status`,
		tc.ID.Target.ClassFQN, tc.ID.Target.MethodName, paramTypesKey(tc.ID.Target.ParamTypes),
		tc.ID.TestClassName, tc.ID.TestMethodName,
		tc.SourceText, tc.CreationRound, string(tc.Origin), string(tc.Status))
	if err != nil {
		return fmt.Errorf("upsert test case %s.%s: %w", tc.ID.TestClassName, tc.ID.TestMethodName, err)
	}
	return nil
}

// ListForTarget returns every test case written against a target so far.
func (r *TestCaseRepo) ListForTarget(ctx context.Context, id model.TargetID) ([]model.TestCase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT test_class_name, test_method_name, source_text, creation_round, origin, status
		FROM test_cases WHERE class_fqn=$1 AND method_name=$2 AND param_types=$3
		ORDER BY creation_round, test_method_name`,
		id.ClassFQN, id.MethodName, paramTypesKey(id.ParamTypes))
	if err != nil {
		return nil, fmt.Errorf("list test cases for %s: %w", id.String(), err)
	}
	defer rows.Close()

	var out []model.TestCase
	for rows.Next() {
		tc := model.TestCase{ID: model.TestCaseID{Target: id}}
		var origin, status string
		if err := rows.Scan(&tc.ID.TestClassName, &tc.ID.TestMethodName, &tc.SourceText, &tc.CreationRound, &origin, &status); err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		tc.Origin = model.TestOrigin(origin)
		tc.Status = model.TestStatus(status)
		out = append(out, tc)
	}
	return out, rows.Err()
}
