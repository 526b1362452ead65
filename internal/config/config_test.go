package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
	"github.com/manuelinfosec/ebdeploy/internal/poll"
)

const serviceFile = `
service: demo
provider:
  name: aws
  region: eu-west-1
custom:
  elastic-beanstalk:
    applicationName: demo
    environmentName: demo-dev
    solutionStackName: 64bit Amazon Linux 2023 v4.3.0 running Docker
    bucket: demo-deploys
    version: "42"
    file:
      prefix: builds
      name: out.zip
    build:
      folder: /app
      include:
        - dist
        - package.json
    optionSettings:
      - namespace: aws:elasticbeanstalk:environment
        name: EnvironmentType
        value: SingleInstance
    polling:
      interval: 10s
`

func TestLoad(t *testing.T) {
	dir := fs.NewDir(t, "config", fs.WithFile(DefaultFile, serviceFile))
	defer dir.Remove()

	f, err := Load(dir.Join(DefaultFile))
	assert.NilError(t, err)

	s := f.Custom.ElasticBeanstalk
	assert.Check(t, is.Equal(s.ApplicationName, "demo"))
	assert.Check(t, is.Equal(s.Version, "42"))
	assert.Check(t, is.DeepEqual(s.Build.Include, []string{"dist", "package.json"}))
	assert.Check(t, is.DeepEqual(s.FileOverride(), &deploy.FileOverride{Prefix: "builds", Name: "out.zip"}))
	assert.Check(t, is.DeepEqual(s.OptionSettings, []deploy.OptionSetting{
		{Namespace: "aws:elasticbeanstalk:environment", Name: "EnvironmentType", Value: "SingleInstance"},
	}))
	assert.Check(t, is.Equal(s.Polling.Interval, 10*time.Second))
	assert.Check(t, is.Equal(s.Polling.Timeout, poll.DefaultTimeout))
	assert.NilError(t, s.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	var cfgErr *deploy.ConfigurationError
	assert.Assert(t, errors.As(err, &cfgErr))
	assert.Check(t, is.ErrorContains(err, "service directory"))
}

func TestParseRequiresSection(t *testing.T) {
	_, err := Parse([]byte("service: demo\n"))
	assert.Check(t, is.ErrorContains(err, "custom.elastic-beanstalk"))
}

func TestDefaults(t *testing.T) {
	f, err := Parse([]byte("custom:\n  elastic-beanstalk:\n    applicationName: a\n"))
	assert.NilError(t, err)
	s := f.Custom.ElasticBeanstalk
	assert.Check(t, is.Equal(s.Version, deploy.LatestVersion))
	assert.Check(t, is.Equal(s.Polling.Interval, poll.DefaultInterval))
	assert.Check(t, s.FileOverride() == nil)
}

func TestResolveOptions(t *testing.T) {
	f := &File{Provider: Provider{Region: "eu-west-1"}}

	opts := f.Resolve(Options{})
	assert.Check(t, is.Equal(opts.Stage, DefaultStage))
	assert.Check(t, is.Equal(opts.Region, "eu-west-1"))

	opts = f.Resolve(Options{Stage: "prod", Region: "us-west-2"})
	assert.Check(t, is.Equal(opts.Stage, "prod"))
	assert.Check(t, is.Equal(opts.Region, "us-west-2"))

	opts = (&File{}).Resolve(Options{})
	assert.Check(t, is.Equal(opts.Region, DefaultRegion))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		service Service
		field   string
	}{
		{name: "no application", service: Service{EnvironmentName: "e", Bucket: "b", SolutionStackName: "s"}, field: "applicationName"},
		{name: "no environment", service: Service{ApplicationName: "a", Bucket: "b", SolutionStackName: "s"}, field: "environmentName"},
		{name: "no bucket", service: Service{ApplicationName: "a", EnvironmentName: "e", SolutionStackName: "s"}, field: "bucket"},
		{name: "no solution stack", service: Service{ApplicationName: "a", EnvironmentName: "e", Bucket: "b"}, field: "solutionStackName"},
		{name: "docker without image", service: Service{ApplicationName: "a", EnvironmentName: "e", Bucket: "b", SolutionStackName: "s",
			Docker: &Docker{Version: "1"}}, field: "docker"},
		{name: "docker auth incomplete", service: Service{ApplicationName: "a", EnvironmentName: "e", Bucket: "b", SolutionStackName: "s",
			Docker: &Docker{Image: "i", Version: "1", Auth: &DockerAuth{ConfigFile: "auth.json"}}}, field: "docker.auth"},
		{name: "option without name", service: Service{ApplicationName: "a", EnvironmentName: "e", Bucket: "b", SolutionStackName: "s",
			OptionSettings: []deploy.OptionSetting{{Namespace: "ns"}}}, field: "optionSettings[0]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.service.Validate()
			var cfgErr *deploy.ConfigurationError
			assert.Assert(t, errors.As(err, &cfgErr))
			assert.Check(t, is.Equal(cfgErr.Field, tc.field))
		})
	}
}
