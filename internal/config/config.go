// Package config loads the service file describing what to deploy.
//
// The file follows the serverless layout: provider defaults at the top level
// and the deploy settings under custom.elastic-beanstalk.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
	"github.com/manuelinfosec/ebdeploy/internal/poll"
)

const (
	DefaultFile   = "serverless.yml"
	DefaultStage  = "dev"
	DefaultRegion = "us-east-1"
)

type File struct {
	Service  string   `yaml:"service"`
	Provider Provider `yaml:"provider"`
	Custom   Custom   `yaml:"custom"`
}

type Provider struct {
	Name   string `yaml:"name"`
	Stage  string `yaml:"stage"`
	Region string `yaml:"region"`
}

type Custom struct {
	ElasticBeanstalk *Service `yaml:"elastic-beanstalk"`
}

// Service is the deploy configuration of one application environment.
type Service struct {
	ApplicationName   string `yaml:"applicationName"`
	EnvironmentName   string `yaml:"environmentName"`
	SolutionStackName string `yaml:"solutionStackName"`
	Platform          string `yaml:"platform"`
	Key               string `yaml:"key"`
	Bucket            string `yaml:"bucket"`
	Version           string `yaml:"version"`

	File           *FileOverride          `yaml:"file"`
	Build          Build                  `yaml:"build"`
	Docker         *Docker                `yaml:"docker"`
	OptionSettings []deploy.OptionSetting `yaml:"optionSettings"`
	Hooks          []string               `yaml:"hooks"`
	Polling        Polling                `yaml:"polling"`
}

type FileOverride struct {
	Prefix string `yaml:"prefix"`
	Name   string `yaml:"name"`
}

type Build struct {
	// Folder is the source root relative to the service directory.
	Folder  string   `yaml:"folder"`
	Include []string `yaml:"include"`
}

type Docker struct {
	Image   string      `yaml:"image"`
	Version string      `yaml:"version"`
	Auth    *DockerAuth `yaml:"auth"`
}

type DockerAuth struct {
	ConfigBucketName string `yaml:"configBucketName"`
	ConfigFile       string `yaml:"configFile"`
}

type Polling struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Options are the command line overrides.
type Options struct {
	Region  string
	Stage   string
	Env     string
	Key     string
	Verbose bool
}

// Load reads and parses the service file at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &deploy.ConfigurationError{Reason: "This command can only be run inside a service directory (" + path + " not found)"}
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes a service file and applies defaults.
func Parse(b []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, &deploy.ConfigurationError{Reason: fmt.Sprintf("invalid service file: %v", err)}
	}
	if f.Custom.ElasticBeanstalk == nil {
		return nil, &deploy.ConfigurationError{Field: "custom.elastic-beanstalk", Reason: "missing"}
	}
	f.Custom.ElasticBeanstalk.setDefaults()
	return &f, nil
}

// Resolve fills unset options from the provider block, then the defaults.
func (f *File) Resolve(opts Options) Options {
	if opts.Stage == "" {
		opts.Stage = f.Provider.Stage
	}
	if opts.Stage == "" {
		opts.Stage = DefaultStage
	}
	if opts.Region == "" {
		opts.Region = f.Provider.Region
	}
	if opts.Region == "" {
		opts.Region = DefaultRegion
	}
	return opts
}

func (s *Service) setDefaults() {
	if s.Version == "" {
		s.Version = deploy.LatestVersion
	}
	if s.Polling.Interval <= 0 {
		s.Polling.Interval = poll.DefaultInterval
	}
	if s.Polling.Timeout <= 0 {
		s.Polling.Timeout = poll.DefaultTimeout
	}
}

// Validate checks the fields every deploy needs.
func (s *Service) Validate() error {
	required := []struct{ field, value string }{
		{"applicationName", s.ApplicationName},
		{"environmentName", s.EnvironmentName},
		{"bucket", s.Bucket},
		// a first deploy creates the environment only after the application
		// and version exist
		{"solutionStackName", s.SolutionStackName},
	}
	for _, r := range required {
		if r.value == "" {
			return &deploy.ConfigurationError{Field: r.field, Reason: "is required"}
		}
	}
	if s.Docker != nil {
		if s.Docker.Image == "" || s.Docker.Version == "" {
			return &deploy.ConfigurationError{Field: "docker", Reason: "image and version are required"}
		}
		if a := s.Docker.Auth; a != nil && (a.ConfigBucketName == "" || a.ConfigFile == "") {
			return &deploy.ConfigurationError{Field: "docker.auth", Reason: "configBucketName and configFile are required"}
		}
	}
	for i, o := range s.OptionSettings {
		if o.Namespace == "" || o.Name == "" {
			return &deploy.ConfigurationError{Field: fmt.Sprintf("optionSettings[%d]", i), Reason: "namespace and name are required"}
		}
	}
	return nil
}

// FileOverride converts the configured key override, if any.
func (s *Service) FileOverride() *deploy.FileOverride {
	if s.File == nil {
		return nil
	}
	return &deploy.FileOverride{Prefix: s.File.Prefix, Name: s.File.Name}
}
