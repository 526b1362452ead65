package storage

import (
	"context"
	"database/sql"
)

// Release is one deploy run of a version label to an environment.
type Release struct {
	ID           string
	Application  string
	Environment  string
	VersionLabel string
	Phase        string
	Error        string
	Digest       string
	StartedAt    string
	FinishedAt   sql.NullString
}

// InsertRelease records the start of a deploy run.
func InsertRelease(ctx context.Context, db *sql.DB, r Release) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO releases (id, application, environment, version_label, phase)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Application, r.Environment, r.VersionLabel, r.Phase)
	return err
}

// UpdateReleasePhase moves a run to phase, recording the artifact digest
// once it is known.
func UpdateReleasePhase(ctx context.Context, db *sql.DB, id, phase, digest string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE releases SET phase = ?, digest = CASE WHEN ? = '' THEN digest ELSE ? END
		WHERE id = ?
	`, phase, digest, digest, id)
	return err
}

// FinishRelease stamps the final phase and error message of a run.
func FinishRelease(ctx context.Context, db *sql.DB, id, phase, errMsg string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE releases SET phase = ?, error = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, phase, errMsg, id)
	return err
}

// GetRelease returns the run with id, or nil if none.
func GetRelease(ctx context.Context, db *sql.DB, id string) (*Release, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, application, environment, version_label, phase, error, digest, started_at, finished_at
		FROM releases WHERE id = ?
	`, id)

	r, err := scanRelease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListReleases returns the latest runs for an environment, newest first.
func ListReleases(ctx context.Context, db *sql.DB, application, environment string, limit int) ([]Release, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, application, environment, version_label, phase, error, digest, started_at, finished_at
		FROM releases WHERE application = ? AND environment = ?
		ORDER BY id DESC LIMIT ?
	`, application, environment, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Release
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRelease(s scanner) (*Release, error) {
	var r Release
	if err := s.Scan(&r.ID, &r.Application, &r.Environment, &r.VersionLabel, &r.Phase,
		&r.Error, &r.Digest, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
