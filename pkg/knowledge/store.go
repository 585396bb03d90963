package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mutaforge/pkg/errkind"
)

// store is the embedded SQLite-backed chunk table, one database file per
// run under the workspace sandbox's .mutaforge/ directory, grounded on the
// teacher's LocalStore (pkg/database schema-init pattern, applied to
// SQLite rather than Postgres). sqlite-vec's ANN virtual table requires a
// cgo-linked SQLite build to auto-load; over the pure-Go modernc.org/sqlite
// driver used here, retrieval instead scores every row in Go, the same
// brute-force cosine path the teacher falls back to when its own vec
// extension is unavailable.
type store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	namespace         TEXT NOT NULL,
	kind              TEXT NOT NULL,
	target_class      TEXT NOT NULL DEFAULT '',
	content           TEXT NOT NULL,
	tags              TEXT NOT NULL DEFAULT '',
	embedding         BLOB,
	embedding_missing INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_namespace ON chunks(namespace);
`

func openStore(path string) (*store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errkind.Wrap(errkind.SandboxIO, "open knowledge database", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer; mirrors the teacher's LocalStore pool sizing
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errkind.Wrap(errkind.SandboxIO, "set knowledge database journal mode", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errkind.Wrap(errkind.SandboxIO, "initialize knowledge database schema", err)
	}
	return &store{db: db}, nil
}

func (s *store) close() error { return s.db.Close() }

func (s *store) insert(ctx context.Context, c Chunk) (int64, error) {
	blob, err := encodeEmbedding(c.Embedding)
	if err != nil {
		return 0, errkind.Wrap(errkind.InternalInvariant, "encode chunk embedding", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (namespace, kind, target_class, content, tags, embedding, embedding_missing, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Namespace, string(c.Kind), c.TargetClass, c.Content, strings.Join(c.Tags, ","), blob, boolToInt(c.EmbeddingMissing), c.CreatedAt,
	)
	if err != nil {
		return 0, errkind.Wrap(errkind.SandboxIO, "insert chunk", err)
	}
	return res.LastInsertId()
}

// candidates returns every chunk in the namespace matching the kind/tag
// filters, for the caller to score. Every returned chunk carries its decoded
// embedding.
func (s *store) candidates(ctx context.Context, namespace string, f Filters) ([]Chunk, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT id, namespace, kind, target_class, content, tags, embedding, embedding_missing, created_at
		FROM chunks WHERE namespace = ?`)
	args := []any{namespace}
	if f.Kind != "" {
		q.WriteString(" AND kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.TargetClass != "" {
		q.WriteString(" AND target_class = ?")
		args = append(args, f.TargetClass)
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, errkind.Wrap(errkind.SandboxIO, "query chunks", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var kind, tags string
		var blob []byte
		var missing int
		if err := rows.Scan(&c.ID, &c.Namespace, &kind, &c.TargetClass, &c.Content, &tags, &blob, &missing, &c.CreatedAt); err != nil {
			return nil, errkind.Wrap(errkind.SandboxIO, "scan chunk row", err)
		}
		c.Kind = Kind(kind)
		if tags != "" {
			c.Tags = strings.Split(tags, ",")
		}
		c.EmbeddingMissing = missing != 0
		c.Embedding, err = decodeEmbedding(blob)
		if err != nil {
			return nil, errkind.Wrap(errkind.InternalInvariant, "decode chunk embedding", err)
		}
		if f.Tag != "" && !containsTag(c.Tags, f.Tag) {
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *store) markEmbeddingMissing(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chunks SET embedding_missing = 1, embedding = NULL WHERE id = ?`, id)
	if err != nil {
		return errkind.Wrap(errkind.SandboxIO, "mark chunk embedding_missing", err)
	}
	return nil
}

func (s *store) clearNamespace(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE namespace = ?`, namespace)
	if err != nil {
		return errkind.Wrap(errkind.SandboxIO, "clear namespace", err)
	}
	return nil
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeEmbedding(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[4*i] = byte(bits)
		buf[4*i+1] = byte(bits >> 8)
		buf[4*i+2] = byte(bits >> 16)
		buf[4*i+3] = byte(bits >> 24)
	}
	return buf, nil
}

func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(buf))
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		bits := uint32(buf[4*i]) | uint32(buf[4*i+1])<<8 | uint32(buf[4*i+2])<<16 | uint32(buf[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// now is overridable so tests can control recency tie-breaking without
// sleeping between inserts.
var now = func() int64 { return time.Now().UnixNano() }
