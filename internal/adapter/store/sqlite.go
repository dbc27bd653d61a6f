package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"arxiv-scholar/internal/domain"
)

// SQLitePaperStore implements domain.PaperStore using SQLite.
type SQLitePaperStore struct {
	db *sql.DB
}

// NewSQLitePaperStore opens (or creates) a SQLite database at dbPath
// and runs the schema migration.
func NewSQLitePaperStore(dbPath string) (*SQLitePaperStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open paper db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate paper db: %w", err)
	}
	return &SQLitePaperStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS papers (
			id         TEXT PRIMARY KEY,
			topic_slug TEXT NOT NULL,
			title      TEXT NOT NULL,
			authors    TEXT NOT NULL DEFAULT '[]',
			summary    TEXT NOT NULL DEFAULT '',
			pdf_url    TEXT NOT NULL DEFAULT '',
			published  TEXT NOT NULL DEFAULT '',
			saved_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_papers_topic ON papers(topic_slug);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLitePaperStore) Close() error {
	return s.db.Close()
}

// SavePapers upserts papers under the topic's slug. A paper found again for
// a different topic moves to the new topic, matching last-search-wins.
func (s *SQLitePaperStore) SavePapers(topic string, papers []domain.Paper) error {
	if len(papers) == 0 {
		return nil
	}

	slug := domain.TopicSlug(topic)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO papers (id, topic_slug, title, authors, summary, pdf_url, published, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic_slug = excluded.topic_slug,
			title      = excluded.title,
			authors    = excluded.authors,
			summary    = excluded.summary,
			pdf_url    = excluded.pdf_url,
			published  = excluded.published,
			saved_at   = excluded.saved_at
	`)
	if err != nil {
		return fmt.Errorf("prepare save: %w", err)
	}
	defer stmt.Close()

	for _, p := range papers {
		authorsJSON, err := json.Marshal(p.Authors)
		if err != nil {
			return fmt.Errorf("marshal authors: %w", err)
		}
		if _, err := stmt.Exec(p.ID, slug, p.Title, string(authorsJSON), p.Summary, p.PDFURL, p.Published, now); err != nil {
			return fmt.Errorf("save paper %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// GetPaper looks up a single paper by its arXiv ID.
func (s *SQLitePaperStore) GetPaper(id string) (*domain.Paper, error) {
	row := s.db.QueryRow(
		"SELECT id, topic_slug, title, authors, summary, pdf_url, published FROM papers WHERE id = ?", id,
	)
	p, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPaperNotFound
	}
	return p, err
}

// ListTopics returns all topic slugs with at least one saved paper.
func (s *SQLitePaperStore) ListTopics() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT topic_slug FROM papers ORDER BY topic_slug")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		topics = append(topics, slug)
	}
	return topics, rows.Err()
}

// PapersByTopic returns the papers saved under a topic slug, newest first.
func (s *SQLitePaperStore) PapersByTopic(slug string) ([]domain.Paper, error) {
	rows, err := s.db.Query(
		"SELECT id, topic_slug, title, authors, summary, pdf_url, published FROM papers WHERE topic_slug = ? ORDER BY published DESC, id",
		slug,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []domain.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(row scanner) (*domain.Paper, error) {
	var p domain.Paper
	var slug, authorsStr string
	if err := row.Scan(&p.ID, &slug, &p.Title, &authorsStr, &p.Summary, &p.PDFURL, &p.Published); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authorsStr), &p.Authors); err != nil {
		return nil, fmt.Errorf("unmarshal authors: %w", err)
	}
	p.Topic = slug
	return &p, nil
}

var _ domain.PaperStore = (*SQLitePaperStore)(nil)
