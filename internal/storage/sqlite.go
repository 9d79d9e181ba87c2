// Package storage persists finished audit reports. It only ever sees the
// final AuditReport value; page records and evaluator internals stay inside
// the engine.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"siteauditor/internal/model"
)

// StoredAudit is one persisted audit row.
type StoredAudit struct {
	AuditID      string
	URL          string
	OverallScore int
	Grade        string
	Confidence   int
	PagesCrawled int
	CreatedAt    time.Time
}

// Storage handles all database operations.
type Storage struct {
	db *sql.DB
}

// NewStorage opens/creates the DB and initializes the schema.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist.
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audits (
		audit_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		overall_score INTEGER NOT NULL,
		grade TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		onpage_score INTEGER,
		performance_score INTEGER,
		coverage_score INTEGER,
		pages_crawled INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		audit_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		page_url TEXT,
		FOREIGN KEY (audit_id) REFERENCES audits(audit_id)
	);

	CREATE INDEX IF NOT EXISTS idx_audits_url ON audits(url);
	CREATE INDEX IF NOT EXISTS idx_findings_audit ON findings(audit_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveReport stores a finished audit report and all of its findings in one
// transaction.
func (s *Storage) SaveReport(auditID string, rep *model.AuditReport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO audits (audit_id, url, overall_score, grade, confidence,
			onpage_score, performance_score, coverage_score, pages_crawled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, auditID, rep.URL, rep.OverallScore, rep.Grade, rep.Confidence,
		rep.Breakdown[model.CategoryOnPage],
		rep.Breakdown[model.CategoryPerformance],
		rep.Breakdown[model.CategoryCoverage],
		rep.PagesCrawled)
	if err != nil {
		return fmt.Errorf("failed to insert audit: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO findings (audit_id, metric, severity, message, page_url)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare findings insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range rep.Findings {
		if _, err := stmt.Exec(auditID, f.Metric, f.Severity.String(), f.Message, f.URL); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	return tx.Commit()
}

// GetAudit retrieves a stored audit by ID, returns nil if not found.
func (s *Storage) GetAudit(auditID string) (*StoredAudit, error) {
	var a StoredAudit
	err := s.db.QueryRow(`
		SELECT audit_id, url, overall_score, grade, confidence, pages_crawled, created_at
		FROM audits
		WHERE audit_id = ?
	`, auditID).Scan(&a.AuditID, &a.URL, &a.OverallScore, &a.Grade, &a.Confidence, &a.PagesCrawled, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}

	return &a, nil
}

// ListRecent returns the most recent stored audits, newest first.
func (s *Storage) ListRecent(limit int) ([]StoredAudit, error) {
	rows, err := s.db.Query(`
		SELECT audit_id, url, overall_score, grade, confidence, pages_crawled, created_at
		FROM audits
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer rows.Close()

	var audits []StoredAudit
	for rows.Next() {
		var a StoredAudit
		if err := rows.Scan(&a.AuditID, &a.URL, &a.OverallScore, &a.Grade, &a.Confidence, &a.PagesCrawled, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		audits = append(audits, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audits: %w", err)
	}

	return audits, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}
