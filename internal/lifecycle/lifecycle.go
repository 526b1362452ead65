// Package lifecycle runs a deploy through its four stages: validate,
// configure, build and deploy. Each stage takes the DeployContext produced
// by the previous one and returns an updated copy.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.cloudfoundry.org/clock"
	"github.com/sirupsen/logrus"

	"github.com/manuelinfosec/ebdeploy/internal/config"
	"github.com/manuelinfosec/ebdeploy/internal/deploy"
	"github.com/manuelinfosec/ebdeploy/internal/metrics"
	"github.com/manuelinfosec/ebdeploy/internal/templater"
)

const (
	// StateDir holds everything a deploy writes next to the service file.
	StateDir       = ".serverless"
	ArtifactDir    = ".serverless/artifacts"
	EBConfigOutput = ".elasticbeanstalk/config.yml"
)

// localDirs are written by deploys and never shipped in a bundle.
var localDirs = []string{StateDir, filepath.Dir(EBConfigOutput)}

// Runner drives the reconciler for a built context.
type Runner interface {
	Run(ctx context.Context, dc deploy.DeployContext) (deploy.DeployContext, error)
}

type Bundler interface {
	Bundle(ctx context.Context, sourceDir string, include, exclude []string, outputPath string) error
}

// Deployer holds the collaborators of one deploy.
type Deployer struct {
	// Dir is the service directory.
	Dir     string
	Service *config.Service
	Options config.Options

	Host      deploy.Host
	Publisher deploy.Publisher
	Bundler   Bundler
	Runner    Runner
	Hooks     *Hooks

	Clock   clock.Clock
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
}

// Run executes every stage in order and stops at the first error.
func (d *Deployer) Run(ctx context.Context) (deploy.DeployContext, error) {
	start := d.clock().Now()

	dc, err := d.run(ctx)
	d.Metrics.DeployFinished(d.clock().Since(start), err)
	if err != nil {
		d.log().Errorf("Deploy failed: %v", err)
	}
	return dc, err
}

func (d *Deployer) run(ctx context.Context) (deploy.DeployContext, error) {
	dc, err := d.Validate()
	if err != nil {
		return dc, err
	}
	if dc, err = d.Configure(ctx, dc); err != nil {
		return dc, err
	}
	if dc, err = d.Build(ctx, dc); err != nil {
		return dc, err
	}
	return d.Deploy(ctx, dc)
}

// Validate checks the service configuration and turns it into the initial
// context. The version is left as declared; build resolves it.
func (d *Deployer) Validate() (deploy.DeployContext, error) {
	if d.Service == nil {
		return deploy.DeployContext{}, &deploy.ConfigurationError{Field: "custom.elastic-beanstalk", Reason: "missing"}
	}
	if err := d.Service.Validate(); err != nil {
		return deploy.DeployContext{}, err
	}
	if _, err := d.Hooks.resolve(d.Service.Hooks); err != nil {
		return deploy.DeployContext{}, err
	}

	s := d.Service
	dc := deploy.DeployContext{
		Target: deploy.Target{
			ApplicationName:   s.ApplicationName,
			EnvironmentName:   s.EnvironmentName,
			SolutionStackName: s.SolutionStackName,
			Region:            d.Options.Region,
		},
		Stage:          d.Options.Stage,
		Env:            d.Options.Env,
		Key:            d.Options.Key,
		Version:        s.Version,
		Bucket:         s.Bucket,
		File:           s.FileOverride(),
		OptionSettings: s.OptionSettings,
	}
	if dc.Key == "" {
		dc.Key = s.Key
	}

	d.log().WithFields(logrus.Fields{
		"stage":  dc.Stage,
		"region": dc.Target.Region,
	}).Debug("Service configuration validated")
	return dc, nil
}

// Configure writes the Elastic Beanstalk CLI config, prepares the docker
// run descriptor when docker is configured, then runs the configured hooks.
func (d *Deployer) Configure(ctx context.Context, dc deploy.DeployContext) (deploy.DeployContext, error) {
	d.log().Info("Configuring ElasticBeanstalk Deployment...")

	vars := map[string]string{
		"APPLICATION_ENVIRONMENT": dc.Target.EnvironmentName,
		"APPLICATION_NAME":        dc.Target.ApplicationName,
		"ENV":                     dc.Env,
		"KEY":                     dc.Key,
		"PLATFORM":                d.Service.Platform,
		"REGION":                  dc.Target.Region,
	}
	out := filepath.Join(d.Dir, EBConfigOutput)
	if err := templater.RenderFS(templater.FS, templater.EBConfigTemplate, out, vars); err != nil {
		d.log().Warnf("Failed to write ElasticBeanstalk config: %v", err)
	}

	if d.Service.Docker != nil {
		if err := d.configureDocker(ctx, dc); err != nil {
			return dc, err
		}
	}

	hooks, err := d.Hooks.resolve(d.Service.Hooks)
	if err != nil {
		return dc, err
	}
	for _, h := range hooks {
		d.log().Infof("Executing hook %s", h.name)
		if err := h.fn(ctx, dc); err != nil {
			return dc, fmt.Errorf("hook %s: %w", h.name, err)
		}
	}

	return dc, nil
}

// Build resolves the version once and bundles the build folder into the
// artifact directory.
func (d *Deployer) Build(ctx context.Context, dc deploy.DeployContext) (deploy.DeployContext, error) {
	d.log().Info("Building Application Bundle...")

	dc = dc.WithVersion(deploy.ResolveVersion(d.Clock, dc.Version))
	name := deploy.BundleFileName(dc.Label)
	d.log().Infof("Creating %s", name)

	src := filepath.Join(d.Dir, d.Service.Build.Folder)
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return dc, &deploy.ConfigurationError{Field: "build.folder", Reason: fmt.Sprintf("%s is not a directory", src)}
	}

	out := filepath.Join(d.Dir, ArtifactDir, name)
	if err := d.Bundler.Bundle(ctx, src, d.Service.Build.Include, d.excludes(src), out); err != nil {
		d.log().Errorf("Failed to bundle %s: %v", src, err)
		return dc, fmt.Errorf("failed to build bundle: %w", err)
	}

	return dc.WithArtifact(out), nil
}

// excludes returns the local state directories that fall under src, relative
// to it.
func (d *Deployer) excludes(src string) []string {
	var out []string
	for _, dir := range localDirs {
		rel, err := filepath.Rel(src, filepath.Join(d.Dir, dir))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

// Deploy hands the built context to the runner.
func (d *Deployer) Deploy(ctx context.Context, dc deploy.DeployContext) (deploy.DeployContext, error) {
	d.log().Infof("Deploying %s to %s...", dc.Label, dc.Target.EnvironmentName)
	return d.Runner.Run(ctx, dc)
}

func (d *Deployer) clock() clock.Clock {
	if d.Clock == nil {
		return clock.NewClock()
	}
	return d.Clock
}

func (d *Deployer) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}
