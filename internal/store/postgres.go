package store

import (
	"context"
	"database/sql"
	"fmt"

	"bijbelzoek/api/internal/export"
)

// DefaultHistoryLimit and MaxHistoryLimit bound ListExports.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// ExportLog records export attempts in the export_log table.
type ExportLog struct {
	db *sql.DB
}

func NewExportLog(db *sql.DB) *ExportLog {
	return &ExportLog{db: db}
}

func (s *ExportLog) DB() *sql.DB {
	return s.db
}

func (s *ExportLog) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ExportLog) RecordExport(ctx context.Context, rec export.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO export_log (id, format, filename, theme, bytes, duration_ms, status, error, archive_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, string(rec.Format), rec.Filename, rec.Theme, rec.Bytes, rec.DurationMS, rec.Status, rec.Error, rec.ArchiveKey, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert export log %s: %w", rec.ID, err)
	}
	return nil
}

// ListExports returns the most recent attempts, newest first.
func (s *ExportLog) ListExports(ctx context.Context, limit int) ([]export.Record, error) {
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, format, filename, theme, bytes, duration_ms, status, error, archive_key, created_at
		FROM export_log
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list export log: %w", err)
	}
	defer rows.Close()

	out := make([]export.Record, 0, limit)
	for rows.Next() {
		var rec export.Record
		var format string
		if err := rows.Scan(&rec.ID, &format, &rec.Filename, &rec.Theme, &rec.Bytes, &rec.DurationMS, &rec.Status, &rec.Error, &rec.ArchiveKey, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export log: %w", err)
		}
		rec.Format = export.Format(format)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export log: %w", err)
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
