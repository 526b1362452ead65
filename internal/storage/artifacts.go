package storage

import (
	"context"
	"database/sql"
)

// Artifact is an uploaded bundle, keyed by content digest.
type Artifact struct {
	Digest    string
	Bucket    string
	Key       string
	SizeBytes int64
	ETag      string
	CreatedAt string
}

func InsertArtifact(ctx context.Context, db *sql.DB, a Artifact) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO artifacts (digest, bucket, s3_key, size_bytes, etag)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET
			bucket=excluded.bucket,
			s3_key=excluded.s3_key,
			size_bytes=excluded.size_bytes,
			etag=excluded.etag
		`, a.Digest, a.Bucket, a.Key, a.SizeBytes, a.ETag)
	return err
}

// GetArtifactByDigest returns the artifact with digest, or nil if none.
func GetArtifactByDigest(ctx context.Context, db *sql.DB, digest string) (*Artifact, error) {
	row := db.QueryRowContext(ctx,
		`SELECT digest, bucket, s3_key, size_bytes, etag, created_at FROM artifacts WHERE digest = ?`, digest,
	)

	var a Artifact
	if err := row.Scan(&a.Digest, &a.Bucket, &a.Key, &a.SizeBytes, &a.ETag, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
