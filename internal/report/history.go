package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/speedwagon-io/checkout/internal/lib/logger/sl"
)

// ErrNoReports marks an empty history.
var ErrNoReports = errors.New("no reports recorded")

// History persists run reports locally so results survive restarts and
// publisher outages.
type History struct {
	log *slog.Logger
	db  *sql.DB
}

func NewHistory(log *slog.Logger, dbPath string) (*History, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	h := &History{
		log: log,
		db:  db,
	}

	if err := h.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return h, nil
}

func (h *History) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			plant TEXT NOT NULL,
			severity TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			report_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			published INTEGER DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_reports_published ON reports(published);
		CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	`
	_, err := h.db.Exec(query)
	return err
}

func (h *History) Save(ctx context.Context, rep *Report) error {
	reportJSON, err := rep.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO reports (id, plant, severity, timestamp, report_json, created_at, published)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`

	_, err = h.db.ExecContext(ctx, query,
		rep.ID,
		rep.Plant,
		rep.Result.Severity.String(),
		rep.Timestamp.Format(time.RFC3339),
		string(reportJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	h.log.Debug("report stored in history", slog.String("id", rep.ID))
	return nil
}

// Latest returns the most recently recorded report.
func (h *History) Latest(ctx context.Context) (*Report, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx,
		"SELECT report_json FROM reports ORDER BY rowid DESC LIMIT 1",
	).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoReports
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest report: %w", err)
	}
	return FromJSON([]byte(reportJSON))
}

// GetUnpublished returns reports that have not yet reached the publisher,
// oldest first.
func (h *History) GetUnpublished(ctx context.Context, limit int) ([]*Report, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT report_json FROM reports WHERE published = 0 ORDER BY rowid ASC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			h.log.Error("failed to scan row", sl.Err(err))
			continue
		}
		rep, err := FromJSON([]byte(reportJSON))
		if err != nil {
			h.log.Error("failed to unmarshal report", sl.Err(err))
			continue
		}
		reports = append(reports, rep)
	}

	return reports, rows.Err()
}

func (h *History) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE reports SET published = 1 WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to mark report %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	h.log.Debug("marked reports as published", slog.Int("count", len(ids)))
	return nil
}

func (h *History) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)

	res, err := h.db.ExecContext(ctx, "DELETE FROM reports WHERE created_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old reports: %w", err)
	}

	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		h.log.Info("cleaned up old reports", slog.Int64("deleted", deleted))
	}

	return nil
}

func (h *History) Count(ctx context.Context) (int64, error) {
	var count int64
	err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports WHERE published = 0").Scan(&count)
	return count, err
}

func (h *History) Close() error {
	return h.db.Close()
}
