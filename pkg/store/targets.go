package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mutaforge/pkg/model"
)

// TargetRepo persists model.Target rows keyed by their TargetID.
type TargetRepo struct {
	db *sql.DB
}

func paramTypesKey(p []string) string { return strings.Join(p, ",") }

func splitParamTypes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Upsert inserts or replaces a Target, the preprocessing and scanning
// pipelines' single write path into this table.
func (r *TargetRepo) Upsert(ctx context.Context, t model.Target) error {
	facts, err := json.Marshal(t.Facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO targets (class_fqn, method_name, param_types, source_file, line_start, line_end,
			signature, javadoc, source_text, collaborators, facts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (class_fqn, method_name, param_types) DO UPDATE SET
			source_file = EXCLUDED.source_file,
			line_start = EXCLUDED.line_start,
			line_end = EXCLUDED.line_end,
			signature = EXCLUDED.signature,
			javadoc = EXCLUDED.javadoc,
			source_text = EXCLUDED.source_text,
			collaborators = EXCLUDED.collaborators,
			facts = EXCLUDED.facts`,
		t.ID.ClassFQN, t.ID.MethodName, paramTypesKey(t.ID.ParamTypes),
		t.SourceFile, t.LineStart, t.LineEnd,
		t.Signature, t.Javadoc, t.SourceText, strings.Join(t.Collaborators, ","), facts)
	if err != nil {
		return fmt.Errorf("upsert target %s: %w", t.ID.String(), err)
	}
	return nil
}

// Get loads a single Target by ID.
func (r *TargetRepo) Get(ctx context.Context, id model.TargetID) (model.Target, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT source_file, line_start, line_end, signature, javadoc, source_text, collaborators, facts
		FROM targets WHERE class_fqn=$1 AND method_name=$2 AND param_types=$3`,
		id.ClassFQN, id.MethodName, paramTypesKey(id.ParamTypes))

	var collaborators string
	var facts []byte
	t := model.Target{ID: id}
	if err := row.Scan(&t.SourceFile, &t.LineStart, &t.LineEnd, &t.Signature, &t.Javadoc, &t.SourceText, &collaborators, &facts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Target{}, fmt.Errorf("target %s: %w", id.String(), sql.ErrNoRows)
		}
		return model.Target{}, fmt.Errorf("get target %s: %w", id.String(), err)
	}
	t.Collaborators = splitParamTypes(collaborators)
	if err := json.Unmarshal(facts, &t.Facts); err != nil {
		return model.Target{}, fmt.Errorf("unmarshal facts for %s: %w", id.String(), err)
	}
	return t, nil
}

// List returns every known target, ordered by source file and line for
// deterministic scan output.
func (r *TargetRepo) List(ctx context.Context) ([]model.Target, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT class_fqn, method_name, param_types, source_file, line_start, line_end,
			signature, javadoc, source_text, collaborators, facts
		FROM targets ORDER BY source_file, line_start`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []model.Target
	for rows.Next() {
		var t model.Target
		var paramTypes, collaborators string
		var facts []byte
		if err := rows.Scan(&t.ID.ClassFQN, &t.ID.MethodName, &paramTypes, &t.SourceFile, &t.LineStart, &t.LineEnd,
			&t.Signature, &t.Javadoc, &t.SourceText, &collaborators, &facts); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		t.ID.ParamTypes = splitParamTypes(paramTypes)
		t.Collaborators = splitParamTypes(collaborators)
		if err := json.Unmarshal(facts, &t.Facts); err != nil {
			return nil, fmt.Errorf("unmarshal facts for %s: %w", t.ID.String(), err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
