// Package sqlite is a single-file vector store for local runs and tests.
// Similarity search is a full scan.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

// Store implements vector.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required for the local vector store")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			vector_size INTEGER NOT NULL,
			distance TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS points (
			collection TEXT NOT NULL REFERENCES collections(name),
			id TEXT NOT NULL,
			vector TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init vector schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Name() string { return "sqlite" }

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) CreateCollection(ctx context.Context, c vector.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name, vector_size, distance) VALUES (?, ?, ?)`,
		c.Name, c.VectorSize, string(c.Distance))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", vector.ErrCollectionExists, c.Name)
	}
	return nil
}

func (s *Store) CollectionInfo(ctx context.Context, name string) (vector.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectionInfo(ctx, s.db, name)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) collectionInfo(ctx context.Context, q queryer, name string) (vector.Collection, error) {
	c := vector.Collection{Name: name}
	var distance string
	err := q.QueryRowContext(ctx,
		`SELECT vector_size, distance FROM collections WHERE name = ?`, name).Scan(&c.VectorSize, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
	}
	if err != nil {
		return c, err
	}
	c.Distance = vector.Distance(distance)
	return c, nil
}

// Upsert writes all points in one transaction.
func (s *Store) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	info, err := s.collectionInfo(ctx, tx, collection)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO points (collection, id, vector, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if len(p.Vector) != info.VectorSize {
			_ = tx.Rollback()
			return fmt.Errorf("point %s has %d dimensions, collection %s expects %d", p.ID, len(p.Vector), collection, info.VectorSize)
		}
		vec, err := json.Marshal(p.Vector)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, collection, p.ID, string(vec), string(payload)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Search(ctx context.Context, collection string, query []float32, topK int) ([]vector.SearchResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("vector query is empty")
	}
	if topK <= 0 {
		topK = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.collectionInfo(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, vector, payload FROM points WHERE collection = ?`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []vector.SearchResult
	for rows.Next() {
		var id, vecJSON, payloadJSON string
		if err := rows.Scan(&id, &vecJSON, &payloadJSON); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			continue
		}
		var payload map[string]string
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			continue
		}
		content, meta := vector.SplitPayload(payload)
		hits = append(hits, vector.SearchResult{
			ID:       id,
			Score:    float32(vector.Score(info.Distance, query, vec)),
			Content:  content,
			Metadata: meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of points stored in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM points WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

// Collections returns the names of all collections.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ vector.Store = (*Store)(nil)
