package machine

import (
	"context"
	"database/sql"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
	"github.com/manuelinfosec/ebdeploy/internal/storage"
)

// AppContext holds shared dependencies for FSM state functions and
// collects the outcome of each run.
type AppContext struct {
	DB         *sql.DB
	Reconciler *deploy.Reconciler
	Log        logrus.FieldLogger

	mu      sync.Mutex
	results map[string]result
}

type result struct {
	dc  deploy.DeployContext
	err error
}

func NewAppContext(db *sql.DB, r *deploy.Reconciler, log logrus.FieldLogger) *AppContext {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AppContext{DB: db, Reconciler: r, Log: log, results: make(map[string]result)}
}

// begin records a new release row for the run.
func (a *AppContext) begin(ctx context.Context, id string, dc deploy.DeployContext) error {
	return storage.InsertRelease(ctx, a.DB, storage.Release{
		ID:           id,
		Application:  dc.Target.ApplicationName,
		Environment:  dc.Target.EnvironmentName,
		VersionLabel: dc.Label,
		Phase:        string(deploy.PhaseStart),
	})
}

// advance persists the phase reached by a transition. Ledger failures are
// logged and never fail the deploy.
func (a *AppContext) advance(ctx context.Context, id string, dc deploy.DeployContext) {
	digest := ""
	if dc.Phase == deploy.PhaseArtifactUploaded && dc.Receipt != nil {
		digest = dc.Receipt.Digest
		if err := storage.InsertArtifact(ctx, a.DB, storage.Artifact{
			Digest:    dc.Receipt.Digest,
			Bucket:    dc.Receipt.Bucket,
			Key:       dc.Receipt.Key,
			SizeBytes: dc.Receipt.Size,
			ETag:      dc.Receipt.ETag,
		}); err != nil {
			a.Log.Warnf("Failed to record artifact %s: %v", dc.Receipt.Key, err)
		}
	}
	if err := storage.UpdateReleasePhase(ctx, a.DB, id, string(dc.Phase), digest); err != nil {
		a.Log.Warnf("Failed to record phase %s of release %s: %v", dc.Phase, id, err)
	}
}

// finish stores the final outcome of the run.
func (a *AppContext) finish(ctx context.Context, id string, dc deploy.DeployContext, err error) {
	msg := ""
	if err != nil {
		dc = dc.WithPhase(deploy.PhaseFailed)
		msg = err.Error()
	}
	// the run context may already be cancelled; the ledger write must land
	if ferr := storage.FinishRelease(context.WithoutCancel(ctx), a.DB, id, string(dc.Phase), msg); ferr != nil {
		a.Log.Warnf("Failed to finish release %s: %v", id, ferr)
	}

	a.mu.Lock()
	a.results[id] = result{dc: dc, err: err}
	a.mu.Unlock()
}

// result returns and forgets the outcome of run id.
func (a *AppContext) result(id string) (result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.results[id]
	delete(a.results, id)
	return r, ok
}
