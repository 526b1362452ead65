package machine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/superfly/fsm"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
)

const action = "deploy"

// Runner executes reconciler runs as a persisted state machine.
type Runner struct {
	Manager *fsm.Manager
	App     *AppContext

	start func(ctx context.Context, id string, req *fsm.Request[FSMRequest, FSMResponse]) (ulid.ULID, error)
}

// NewRunner opens the FSM store at dbPath and registers the deploy states.
func NewRunner(ctx context.Context, dbPath string, app *AppContext, log *logrus.Logger) (*Runner, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create fsm dir: %w", err)
	}

	manager, err := fsm.New(
		fsm.Config{
			Logger: log,
			DBPath: dbPath,
			Queues: map[string]int{"default": 1},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start fsm manager: %w", err)
	}

	r := app.Reconciler
	startFn, _, err := fsm.Register[FSMRequest, FSMResponse](manager, action).
		Start("upload", WithApp(app, Step(r.Upload))).
		To("ensure_application", WithApp(app, Step(r.EnsureApplication))).
		To("create_version", WithApp(app, Step(r.CreateVersion))).
		To("wait_version", WithApp(app, Step(r.WaitVersion))).
		To("ensure_environment", WithApp(app, Step(r.EnsureEnvironment))).
		To("wait_environment", WithApp(app, FinalStep(r.WaitEnvironment))).
		End("done").
		Build(ctx)
	if err != nil {
		manager.Shutdown(time.Second)
		return nil, fmt.Errorf("failed to build deploy fsm: %w", err)
	}

	return &Runner{
		Manager: manager,
		App:     app,
		start: func(ctx context.Context, id string, req *fsm.Request[FSMRequest, FSMResponse]) (ulid.ULID, error) {
			return startFn(ctx, id, req)
		},
	}, nil
}

// Run starts a deploy run for dc and blocks until it completes.
func (r *Runner) Run(ctx context.Context, dc deploy.DeployContext) (deploy.DeployContext, error) {
	id := ulid.Make().String()
	if err := r.App.begin(ctx, id, dc); err != nil {
		return dc, fmt.Errorf("failed to record release: %w", err)
	}

	log := r.App.Log.WithField("release", id)
	log.Infof("Starting deploy of %s to %s", dc.Label, dc.Target.EnvironmentName)

	req := fsm.NewRequest(
		&FSMRequest{ReleaseID: id, Deploy: dc},
		&FSMResponse{},
	)

	version, err := r.start(ctx, id, req)
	if err != nil {
		r.App.finish(ctx, id, dc, err)
		return dc.WithPhase(deploy.PhaseFailed), fmt.Errorf("failed to start deploy run: %w", err)
	}

	waitErr := r.Manager.Wait(ctx, version)

	if res, ok := r.App.result(id); ok {
		return res.dc, res.err
	}
	if waitErr != nil {
		log.Errorf("Deploy run failed: %v", waitErr)
		return dc.WithPhase(deploy.PhaseFailed), waitErr
	}
	return dc, fmt.Errorf("deploy run %s ended without reaching a final state", id)
}

// Close stops the FSM manager.
func (r *Runner) Close() {
	r.Manager.Shutdown(10 * time.Second)
}
