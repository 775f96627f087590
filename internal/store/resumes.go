package store

import (
	"context"
	"database/sql"
	"fmt"

	"resumehub/pkg/interfaces"
	"resumehub/pkg/types"
)

const resumeColumns = "id, unique_id, user_id, name, content, created_at, updated_at"

// CreateResume persists a new resume together with its public share
// identifier.
func (m *Manager) CreateResume(ctx context.Context, resume *types.Resume) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO resumes (`+resumeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			resume.ID, resume.UniqueID, resume.UserID, resume.Name,
			resume.Content, resume.CreatedAt, resume.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert resume: %w", err)
		}
		return nil
	})
}

// GetResume resolves either the internal ID or the public uniqueId, the same
// dual lookup the share links rely on.
func (m *Manager) GetResume(ctx context.Context, idOrUniqueID string) (*types.Resume, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+resumeColumns+` FROM resumes
		WHERE id = ? OR unique_id = ?`, idOrUniqueID, idOrUniqueID)
	return scanResume(row)
}

// ListResumesByUser returns an account's resumes, most recently updated
// first.
func (m *Manager) ListResumesByUser(ctx context.Context, userID string) ([]*types.Resume, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+resumeColumns+` FROM resumes
		WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resumes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var resumes []*types.Resume
	for rows.Next() {
		var resume types.Resume
		if err := rows.Scan(
			&resume.ID, &resume.UniqueID, &resume.UserID, &resume.Name,
			&resume.Content, &resume.CreatedAt, &resume.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan resume row: %w", err)
		}
		resumes = append(resumes, &resume)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resume rows: %w", err)
	}
	return resumes, nil
}

// UpdateResume replaces name, content and updated_at of an existing resume.
func (m *Manager) UpdateResume(ctx context.Context, resume *types.Resume) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE resumes SET name = ?, content = ?, updated_at = ?
			WHERE id = ?`,
			resume.Name, resume.Content, resume.UpdatedAt, resume.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update resume: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return interfaces.ErrResumeNotFound
		}
		return nil
	})
}

// DeleteResume removes a resume and its tracking records atomically.
func (m *Manager) DeleteResume(ctx context.Context, id string) error {
	return m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM resume_views WHERE resume_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete resume views: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM resumes WHERE id = ? OR unique_id = ?", id, id)
		if err != nil {
			return fmt.Errorf("failed to delete resume: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return interfaces.ErrResumeNotFound
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit resume deletion: %w", err)
		}
		return nil
	})
}

func scanResume(row *sql.Row) (*types.Resume, error) {
	var resume types.Resume
	err := row.Scan(
		&resume.ID, &resume.UniqueID, &resume.UserID, &resume.Name,
		&resume.Content, &resume.CreatedAt, &resume.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrResumeNotFound
		}
		return nil, fmt.Errorf("failed to scan resume: %w", err)
	}
	return &resume, nil
}
