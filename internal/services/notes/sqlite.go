package notes

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps notes in a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection serializes writers and keeps ids sequential.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.init(ctx); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) init(ctx context.Context) error {
	stmts := []string{
		"PRAGMA busy_timeout = 5000;",
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			content TEXT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return nil
}

// List returns all notes ordered by id.
func (s *SQLiteStore) List(ctx context.Context) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, content FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []*Note

	for rows.Next() {
		var (
			id int64
			n  Note
		)

		if err := rows.Scan(&id, &n.Title, &n.Content); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}

		n.ID = strconv.FormatInt(id, 10)
		out = append(out, &n)
	}

	return out, rows.Err()
}

// Get returns the note with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Note, error) {
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}

	n := Note{ID: id}

	err = s.db.QueryRowContext(ctx, `SELECT title, content FROM notes WHERE id = ?`, key).
		Scan(&n.Title, &n.Content)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get note %s: %w", id, err)
	}

	return &n, nil
}

// Create inserts a note.
func (s *SQLiteStore) Create(ctx context.Context, title, content string) (*Note, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO notes(title, content) VALUES (?, ?)`, title, content)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}

	return &Note{ID: strconv.FormatInt(id, 10), Title: title, Content: content}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}
