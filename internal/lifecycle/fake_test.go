package lifecycle

import (
	"context"
	"sync"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
)

type versionCall struct {
	Application, Label string
	Bundle             deploy.Locator
	Process            bool
}

// fakeHost only serves the calls configure makes.
type fakeHost struct {
	deploy.Host

	versions []versionCall
	err      error
}

func (h *fakeHost) CreateApplicationVersion(ctx context.Context, application, label string, bundle deploy.Locator, process bool) error {
	h.versions = append(h.versions, versionCall{application, label, bundle, process})
	return h.err
}

type fakePublisher struct {
	mu     sync.Mutex
	locs   []deploy.Locator
	bodies map[string]string
	failOn map[string]error
}

func (p *fakePublisher) Publish(ctx context.Context, localPath string, loc deploy.Locator) (deploy.UploadReceipt, error) {
	return deploy.UploadReceipt{Bucket: loc.Bucket, Key: loc.Key}, nil
}

func (p *fakePublisher) PublishBytes(ctx context.Context, body []byte, loc deploy.Locator) (deploy.UploadReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locs = append(p.locs, loc)
	if p.bodies == nil {
		p.bodies = make(map[string]string)
	}
	p.bodies[loc.Key] = string(body)
	if err := p.failOn[loc.Key]; err != nil {
		return deploy.UploadReceipt{}, err
	}
	return deploy.UploadReceipt{Bucket: loc.Bucket, Key: loc.Key, Size: int64(len(body))}, nil
}

type fakeBundler struct {
	calls   int
	src     string
	include []string
	exclude []string
	out     string
	err     error
}

func (b *fakeBundler) Bundle(ctx context.Context, sourceDir string, include, exclude []string, outputPath string) error {
	b.calls++
	b.src, b.include, b.exclude, b.out = sourceDir, include, exclude, outputPath
	return b.err
}

type fakeRunner struct {
	got *deploy.DeployContext
	err error
}

func (r *fakeRunner) Run(ctx context.Context, dc deploy.DeployContext) (deploy.DeployContext, error) {
	r.got = &dc
	if r.err != nil {
		return dc.WithPhase(deploy.PhaseFailed), r.err
	}
	return dc.WithPhase(deploy.PhaseDone), nil
}
