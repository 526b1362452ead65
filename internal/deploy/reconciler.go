package deploy

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/manuelinfosec/ebdeploy/internal/metrics"
	"github.com/manuelinfosec/ebdeploy/internal/poll"
)

// Reconciler uploads a bundle and drives the application version and
// environment to the desired label.
type Reconciler struct {
	Host      Host
	Publisher Publisher
	Poller    *poll.Poller
	Log       logrus.FieldLogger
	Metrics   *metrics.Metrics
}

// StepFunc advances a deploy by one state.
type StepFunc func(ctx context.Context, dc DeployContext) (DeployContext, error)

// Step is a named reconciler transition.
type Step struct {
	Name string
	Run  StepFunc
}

// Steps returns the transitions in execution order.
func (r *Reconciler) Steps() []Step {
	return []Step{
		{Name: "upload", Run: r.Upload},
		{Name: "ensure_application", Run: r.EnsureApplication},
		{Name: "create_version", Run: r.CreateVersion},
		{Name: "wait_version", Run: r.WaitVersion},
		{Name: "ensure_environment", Run: r.EnsureEnvironment},
		{Name: "wait_environment", Run: r.WaitEnvironment},
	}
}

// Run executes every step in order and stops at the first error.
func (r *Reconciler) Run(ctx context.Context, dc DeployContext) (DeployContext, error) {
	dc = dc.WithPhase(PhaseStart)
	for _, step := range r.Steps() {
		next, err := step.Run(ctx, dc)
		if err != nil {
			return dc.WithPhase(PhaseFailed), err
		}
		dc = next
	}
	return r.Finish(dc), nil
}

// Finish marks a run whose environment is ready as done.
func (r *Reconciler) Finish(dc DeployContext) DeployContext {
	r.log().Info("Application Deployed Successfully")
	return dc.WithPhase(PhaseDone)
}

func (r *Reconciler) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func (r *Reconciler) poller() *poll.Poller {
	if r.Poller == nil {
		return poll.New(nil, poll.DefaultInterval, poll.DefaultTimeout)
	}
	return r.Poller
}

func (r *Reconciler) remote(op string, err error) error {
	r.Metrics.RemoteCall(op, err)
	if err == nil {
		return nil
	}
	r.log().Errorf("%s failed: %v", op, err)
	return &RemoteCallError{Op: op, Err: err}
}

// Upload publishes the local bundle to its locator.
func (r *Reconciler) Upload(ctx context.Context, dc DeployContext) (DeployContext, error) {
	loc := dc.Locator()
	r.log().Infof("Uploading Application Bundle to s3://%s/%s...", loc.Bucket, loc.Key)

	receipt, err := r.Publisher.Publish(ctx, dc.ArtifactPath, loc)
	r.Metrics.RemoteCall("PutObject", err)
	if err != nil {
		r.log().Errorf("Failed to upload application bundle: %v", err)
		return dc, err
	}

	r.log().WithFields(logrus.Fields{
		"etag":   receipt.ETag,
		"digest": receipt.Digest,
		"size":   receipt.Size,
	}).Info("Application Bundle Uploaded to S3 Successfully")

	return dc.WithReceipt(receipt).WithPhase(PhaseArtifactUploaded), nil
}

// EnsureApplication records whether the application already exists. The
// answer is computed once and reused by every later branch.
func (r *Reconciler) EnsureApplication(ctx context.Context, dc DeployContext) (DeployContext, error) {
	app := dc.Target.ApplicationName
	r.log().Info("Checking Application Environment...")

	records, err := r.Host.DescribeApplicationVersions(ctx, app)
	if err := r.remote("DescribeApplicationVersions", err); err != nil {
		return dc, err
	}

	state := ApplicationAbsent
	if len(records) > 0 {
		state = ApplicationPresent
	}
	r.log().Infof("Application %s is %s (%d versions)", app, state, len(records))

	return dc.WithApplication(state).WithPhase(PhaseApplicationEnsured), nil
}

// CreateVersion creates the application if it is absent, then registers
// the uploaded bundle as a new version and asks the host to process it.
func (r *Reconciler) CreateVersion(ctx context.Context, dc DeployContext) (DeployContext, error) {
	app := dc.Target.ApplicationName

	if dc.Application == ApplicationAbsent {
		r.log().Info("Creating New Application...")
		err := r.Host.CreateApplication(ctx, app)
		if err := r.remote("CreateApplication", err); err != nil {
			return dc, err
		}
	}

	r.log().Infof("Creating New Application Version %s...", dc.Label)
	err := r.Host.CreateApplicationVersion(ctx, app, dc.Label, dc.Locator(), true)
	if err := r.remote("CreateApplicationVersion", err); err != nil {
		return dc, err
	}

	return dc.WithPhase(PhaseVersionCreated), nil
}

// WaitVersion polls the version until it is processed or failed.
func (r *Reconciler) WaitVersion(ctx context.Context, dc DeployContext) (DeployContext, error) {
	r.log().Info("Waiting for application version...")

	err := r.poller().Until(ctx, func(ctx context.Context) (poll.Outcome, error) {
		r.Metrics.PollCheck("version")
		records, err := r.Host.DescribeApplicationVersions(ctx, dc.Target.ApplicationName, dc.Label)
		if err := r.remote("DescribeApplicationVersions", err); err != nil {
			return poll.NotReady, err
		}
		outcome := EvaluateVersion(records)
		if len(records) > 0 {
			r.log().Debugf("Application version %s status: %s", dc.Label, records[0].Status)
		}
		return outcome, nil
	})
	if err != nil {
		r.log().Errorf("Waiting for application version %s: %v", dc.Label, err)
		return dc, err
	}

	r.log().Info("New Application Version Created Successfully")
	return dc.WithPhase(PhaseVersionProcessed), nil
}

// EnsureEnvironment creates the environment on a first deploy or points the
// existing one at the new label. Option settings only apply on creation.
func (r *Reconciler) EnsureEnvironment(ctx context.Context, dc DeployContext) (DeployContext, error) {
	t := dc.Target

	switch dc.Application {
	case ApplicationAbsent:
		settings := dc.OptionSettings
		if settings == nil {
			settings = DefaultOptionSettings()
		}
		r.log().Infof("Creating Environment %s...", t.EnvironmentName)
		err := r.Host.CreateEnvironment(ctx, t, dc.Label, settings)
		if err := r.remote("CreateEnvironment", err); err != nil {
			return dc, err
		}
	case ApplicationPresent:
		r.log().Infof("Updating Application Environment %s...", t.EnvironmentName)
		err := r.Host.UpdateEnvironment(ctx, t.ApplicationName, t.EnvironmentName, dc.Label)
		if err := r.remote("UpdateEnvironment", err); err != nil {
			return dc, err
		}
	default:
		return dc, fmt.Errorf("application state of %s was never determined", t.ApplicationName)
	}

	return dc.WithPhase(PhaseEnvironmentEnsured), nil
}

// WaitEnvironment polls the environment until it is ready.
func (r *Reconciler) WaitEnvironment(ctx context.Context, dc DeployContext) (DeployContext, error) {
	env := dc.Target.EnvironmentName
	r.log().Info("Waiting for environment...")

	err := r.poller().Until(ctx, func(ctx context.Context) (poll.Outcome, error) {
		r.Metrics.PollCheck("environment")
		records, err := r.Host.DescribeEnvironments(ctx, env)
		if err := r.remote("DescribeEnvironments", err); err != nil {
			return poll.NotReady, err
		}
		if len(records) > 0 {
			r.log().Debugf("Environment %s status: %s health: %s", env, records[0].Status, records[0].Health)
		}
		return EvaluateEnvironment(records), nil
	})
	if err != nil {
		r.log().Errorf("Waiting for environment %s: %v", env, err)
		return dc, err
	}

	r.log().Info("Application Environment Updated Successfully")
	return dc.WithPhase(PhaseEnvironmentReady), nil
}
