package deploy

import (
	"context"
	"os"
	"sync"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
)

// fakeHost records calls and replays scripted status sequences. Each
// non-terminal status advances the fake clock past the poll interval.
type fakeHost struct {
	mu    sync.Mutex
	calls []string

	clock    *fakeclock.FakeClock
	interval time.Duration

	existing     []VersionRecord
	versionSeq   []VersionStatus
	envSeq       []EnvironmentStatus
	versionPolls int
	envPolls     int

	createdSettings []OptionSetting
	createdBundle   Locator
	failOn          map[string]error
}

func (h *fakeHost) record(op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, op)
	return h.failOn[op]
}

func (h *fakeHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *fakeHost) advance() {
	if h.clock != nil {
		go h.clock.WaitForWatcherAndIncrement(h.interval)
	}
}

func (h *fakeHost) DescribeApplicationVersions(ctx context.Context, application string, labels ...string) ([]VersionRecord, error) {
	if len(labels) == 0 {
		if err := h.record("DescribeApplicationVersions"); err != nil {
			return nil, err
		}
		return h.existing, nil
	}

	if err := h.record("DescribeApplicationVersion"); err != nil {
		return nil, err
	}
	status := h.versionSeq[h.versionPolls]
	h.versionPolls++
	if status != VersionProcessed && status != VersionFailed {
		h.advance()
	}
	return []VersionRecord{{ApplicationName: application, VersionLabel: labels[0], Status: status}}, nil
}

func (h *fakeHost) CreateApplication(ctx context.Context, application string) error {
	return h.record("CreateApplication")
}

func (h *fakeHost) CreateApplicationVersion(ctx context.Context, application, label string, bundle Locator, process bool) error {
	h.createdBundle = bundle
	return h.record("CreateApplicationVersion")
}

func (h *fakeHost) CreateEnvironment(ctx context.Context, target Target, label string, settings []OptionSetting) error {
	h.createdSettings = settings
	return h.record("CreateEnvironment")
}

func (h *fakeHost) UpdateEnvironment(ctx context.Context, application, environment, label string) error {
	return h.record("UpdateEnvironment")
}

func (h *fakeHost) DescribeEnvironments(ctx context.Context, environments ...string) ([]EnvironmentRecord, error) {
	if err := h.record("DescribeEnvironments"); err != nil {
		return nil, err
	}
	status := h.envSeq[h.envPolls]
	h.envPolls++
	if status != EnvironmentReady && status != EnvironmentTerminated && status != EnvironmentTerminating {
		h.advance()
	}
	return []EnvironmentRecord{{EnvironmentName: environments[0], Status: status}}, nil
}

type fakePublisher struct {
	published []Locator
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, localPath string, loc Locator) (UploadReceipt, error) {
	if p.err != nil {
		return UploadReceipt{}, &PublishError{Path: localPath, Locator: loc, Err: p.err}
	}
	if _, err := os.Stat(localPath); err != nil {
		return UploadReceipt{}, &PublishError{Path: localPath, Locator: loc, Err: err}
	}
	p.published = append(p.published, loc)
	return UploadReceipt{Bucket: loc.Bucket, Key: loc.Key, ETag: `"etag"`}, nil
}

func (p *fakePublisher) PublishBytes(ctx context.Context, body []byte, loc Locator) (UploadReceipt, error) {
	if p.err != nil {
		return UploadReceipt{}, p.err
	}
	p.published = append(p.published, loc)
	return UploadReceipt{Bucket: loc.Bucket, Key: loc.Key, Size: int64(len(body))}, nil
}
