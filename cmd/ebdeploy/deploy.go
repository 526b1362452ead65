package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/manuelinfosec/ebdeploy/internal/beanstalk"
	"github.com/manuelinfosec/ebdeploy/internal/bundle"
	"github.com/manuelinfosec/ebdeploy/internal/config"
	"github.com/manuelinfosec/ebdeploy/internal/deploy"
	"github.com/manuelinfosec/ebdeploy/internal/lifecycle"
	"github.com/manuelinfosec/ebdeploy/internal/machine"
	"github.com/manuelinfosec/ebdeploy/internal/metrics"
	"github.com/manuelinfosec/ebdeploy/internal/poll"
	"github.com/manuelinfosec/ebdeploy/internal/s3"
	"github.com/manuelinfosec/ebdeploy/internal/storage"
)

const (
	ledgerFile = "ebdeploy.db"
	fsmDir     = "fsm"
)

var _ lifecycle.Runner = (*machine.Runner)(nil)

func newDeployCmd() *cobra.Command {
	var (
		opts        config.Options
		metricsFile string
		lockTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Bundle the service and deploy it to its environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose = verbose
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDeploy(ctx, newLogger(), opts, metricsFile, lockTimeout)
		},
	}

	cmd.Flags().StringVarP(&opts.Region, "region", "r", "", "AWS region (default: provider region, then us-east-1)")
	cmd.Flags().StringVarP(&opts.Stage, "stage", "s", "", "Deployment stage (default: provider stage, then dev)")
	cmd.Flags().StringVar(&opts.Env, "env", "", "AWS profile written to the Elastic Beanstalk CLI config")
	cmd.Flags().StringVar(&opts.Key, "key", "", "EC2 key pair name written to the Elastic Beanstalk CLI config")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write deploy metrics to this file in Prometheus text format")
	cmd.Flags().DurationVar(&lockTimeout, "lock-timeout", 0, "How long to wait for another deploy to the same environment")

	return cmd
}

func runDeploy(ctx context.Context, log *logrus.Logger, opts config.Options, metricsFile string, lockTimeout time.Duration) error {
	path, err := filepath.Abs(configFile)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)

	file, err := config.Load(path)
	if err != nil {
		return err
	}
	opts = file.Resolve(opts)
	svc := file.Custom.ElasticBeanstalk
	if err := svc.Validate(); err != nil {
		return err
	}

	m := metrics.New()
	if metricsFile != "" {
		defer func() {
			if err := m.WriteTextfile(metricsFile); err != nil {
				log.Warnf("Failed to write metrics to %s: %v", metricsFile, err)
			}
		}()
	}

	s3Client, err := s3.NewS3Client(ctx, opts.Region)
	if err != nil {
		return err
	}
	host, err := beanstalk.NewClient(ctx, opts.Region, log)
	if err != nil {
		return err
	}
	log.Debugf("AWS clients initialized for %s", opts.Region)

	stateDir := filepath.Join(dir, lifecycle.StateDir)
	if err := os.MkdirAll(filepath.Join(stateDir, fsmDir), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	db, err := storage.InitDB(filepath.Join(stateDir, ledgerFile))
	if err != nil {
		return err
	}
	defer db.Close()

	lockKey := storage.EnvironmentLockKey(svc.ApplicationName, svc.EnvironmentName)
	owner := ulid.Make().String()
	if err := storage.AcquireLock(ctx, db, lockKey, owner, lockTimeout); err != nil {
		return fmt.Errorf("%w (if that deploy is no longer running, clear it with 'ebdeploy unlock')", err)
	}
	defer storage.ReleaseLock(context.WithoutCancel(ctx), db, lockKey, owner)

	publisher := s3.NewPublisher(s3Client, log)
	reconciler := &deploy.Reconciler{
		Host:      host,
		Publisher: publisher,
		Poller:    poll.New(clock.NewClock(), svc.Polling.Interval, svc.Polling.Timeout),
		Log:       log,
		Metrics:   m,
	}

	runner, err := machine.NewRunner(ctx, filepath.Join(stateDir, fsmDir), machine.NewAppContext(db, reconciler, log), log)
	if err != nil {
		return err
	}
	defer runner.Close()

	hooks := lifecycle.NewHooks()
	if err := hooks.Register("log-context", logContext(log)); err != nil {
		return err
	}

	d := &lifecycle.Deployer{
		Dir:       dir,
		Service:   svc,
		Options:   opts,
		Host:      host,
		Publisher: publisher,
		Bundler:   bundle.New(log),
		Runner:    runner,
		Hooks:     hooks,
		Clock:     clock.NewClock(),
		Log:       log,
		Metrics:   m,
	}

	dc, err := d.Run(ctx)
	if err != nil {
		return err
	}
	log.Infof("%s is live on %s", dc.Label, dc.Target.EnvironmentName)
	return nil
}

// logContext dumps the prepared deploy context at info level.
func logContext(log logrus.FieldLogger) lifecycle.Hook {
	return func(ctx context.Context, dc deploy.DeployContext) error {
		log.WithFields(logrus.Fields{
			"application": dc.Target.ApplicationName,
			"environment": dc.Target.EnvironmentName,
			"region":      dc.Target.Region,
			"stage":       dc.Stage,
			"bucket":      dc.Bucket,
			"version":     dc.Version,
		}).Info("Deploy context")
		return nil
	}
}
