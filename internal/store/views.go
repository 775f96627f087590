package store

import (
	"context"
	"database/sql"
	"fmt"

	"resumehub/pkg/types"
)

// RecordView appends a single view event for a resume.
func (m *Manager) RecordView(ctx context.Context, view *types.ViewRecord) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO resume_views
			(id, resume_id, ip_address, user_agent, url, referrer, device, browser, os, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			view.ID, view.ResumeID, view.IPAddress, view.UserAgent,
			view.URL, view.Referrer, view.Device, view.Browser, view.OS,
			view.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert view record: %w", err)
		}
		return nil
	})
}

// ListViews returns all view events for a resume, newest first.
func (m *Manager) ListViews(ctx context.Context, resumeID string) ([]*types.ViewRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, resume_id, ip_address, user_agent, url, referrer, device, browser, os, created_at
		FROM resume_views WHERE resume_id = ? ORDER BY created_at DESC`, resumeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query view records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var views []*types.ViewRecord
	for rows.Next() {
		var v types.ViewRecord
		if err := rows.Scan(
			&v.ID, &v.ResumeID, &v.IPAddress, &v.UserAgent,
			&v.URL, &v.Referrer, &v.Device, &v.Browser, &v.OS,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan view row: %w", err)
		}
		views = append(views, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating view rows: %w", err)
	}
	return views, nil
}

// SummarizeViews aggregates totals plus device, browser and OS breakdowns.
// Unique views count distinct client IP addresses.
func (m *Manager) SummarizeViews(ctx context.Context, resumeID string) (*types.ViewSummary, error) {
	summary := &types.ViewSummary{
		ResumeID: resumeID,
		Devices:  make(map[string]int),
		Browsers: make(map[string]int),
		OSes:     make(map[string]int),
	}

	row := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT ip_address)
		FROM resume_views WHERE resume_id = ?`, resumeID)
	if err := row.Scan(&summary.TotalViews, &summary.UniqueViews); err != nil {
		return nil, fmt.Errorf("failed to scan view totals: %w", err)
	}

	for _, agg := range []struct {
		column string
		target map[string]int
	}{
		{"device", summary.Devices},
		{"browser", summary.Browsers},
		{"os", summary.OSes},
	} {
		if err := m.countByColumn(ctx, resumeID, agg.column, agg.target); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func (m *Manager) countByColumn(ctx context.Context, resumeID, column string, target map[string]int) error {
	// column is one of a fixed set above, never caller input.
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*) FROM resume_views
		WHERE resume_id = ? GROUP BY %s`, column, column), resumeID)
	if err != nil {
		return fmt.Errorf("failed to aggregate by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s aggregate: %w", column, err)
		}
		target[key] = count
	}
	return rows.Err()
}
