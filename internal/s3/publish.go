package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
)

// Publisher uploads artifacts and records what was stored.
type Publisher struct {
	Client *S3Client
	Log    logrus.FieldLogger
}

func NewPublisher(client *S3Client, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{Client: client, Log: log}
}

// ComputeFileDigest returns the hex SHA256 of the file at path.
func ComputeFileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Publish streams the file at localPath to loc. The file is hashed in a
// separate pass so the SDK still gets a seekable body.
func (p *Publisher) Publish(ctx context.Context, localPath string, loc deploy.Locator) (deploy.UploadReceipt, error) {
	fail := func(err error) (deploy.UploadReceipt, error) {
		p.Log.Errorf("Failed to publish %s: %v", localPath, err)
		return deploy.UploadReceipt{}, &deploy.PublishError{Path: localPath, Locator: loc, Err: err}
	}

	digest, err := ComputeFileDigest(localPath)
	if err != nil {
		return fail(err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fail(err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fail(err)
	}

	p.Log.Debugf("Uploading %s (%d bytes, sha256 %s)", localPath, stat.Size(), digest)
	etag, versionID, err := p.Client.PutObject(ctx, loc.Bucket, loc.Key, file, stat.Size())
	if err != nil {
		return fail(err)
	}

	return deploy.UploadReceipt{
		Bucket:    loc.Bucket,
		Key:       loc.Key,
		ETag:      etag,
		VersionID: versionID,
		Digest:    digest,
		Size:      stat.Size(),
	}, nil
}

// PublishBytes uploads in-memory content to loc.
func (p *Publisher) PublishBytes(ctx context.Context, body []byte, loc deploy.Locator) (deploy.UploadReceipt, error) {
	sum := sha256.Sum256(body)
	etag, versionID, err := p.Client.PutObject(ctx, loc.Bucket, loc.Key, bytes.NewReader(body), int64(len(body)))
	if err != nil {
		p.Log.Errorf("Failed to publish s3://%s/%s: %v", loc.Bucket, loc.Key, err)
		return deploy.UploadReceipt{}, &deploy.PublishError{Path: "<memory>", Locator: loc, Err: err}
	}
	return deploy.UploadReceipt{
		Bucket:    loc.Bucket,
		Key:       loc.Key,
		ETag:      etag,
		VersionID: versionID,
		Digest:    fmt.Sprintf("%x", sum),
		Size:      int64(len(body)),
	}, nil
}
