package deploy

import (
	"context"
	"time"
)

// Target identifies the remote resources being reconciled.
type Target struct {
	ApplicationName   string `json:"application_name"`
	EnvironmentName   string `json:"environment_name"`
	SolutionStackName string `json:"solution_stack_name"`
	Region            string `json:"region"`
}

// OptionSetting is a configuration option applied when an environment is
// created. Updates never touch them.
type OptionSetting struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
	Value     string `json:"value" yaml:"value"`
}

// DefaultOptionSettings binds the default Elastic Beanstalk instance profile.
func DefaultOptionSettings() []OptionSetting {
	return []OptionSetting{
		{
			Namespace: "aws:autoscaling:launchconfiguration",
			Name:      "IamInstanceProfile",
			Value:     "aws-elasticbeanstalk-ec2-role",
		},
	}
}

// ApplicationState is whether the application already has version records.
type ApplicationState int

const (
	ApplicationUnknown ApplicationState = iota
	ApplicationAbsent
	ApplicationPresent
)

func (s ApplicationState) String() string {
	switch s {
	case ApplicationAbsent:
		return "absent"
	case ApplicationPresent:
		return "present"
	default:
		return "unknown"
	}
}

// VersionStatus is the processing state of an application version.
type VersionStatus string

const (
	VersionPending    VersionStatus = "Pending"
	VersionProcessing VersionStatus = "Processing"
	VersionProcessed  VersionStatus = "Processed"
	VersionFailed     VersionStatus = "Failed"
)

// EnvironmentStatus is the status string reported by the host.
type EnvironmentStatus string

const (
	EnvironmentLaunching   EnvironmentStatus = "Launching"
	EnvironmentUpdating    EnvironmentStatus = "Updating"
	EnvironmentReady       EnvironmentStatus = "Ready"
	EnvironmentTerminating EnvironmentStatus = "Terminating"
	EnvironmentTerminated  EnvironmentStatus = "Terminated"
)

// VersionRecord describes an application version on the host.
type VersionRecord struct {
	ApplicationName string
	VersionLabel    string
	Status          VersionStatus
	SourceBundle    *Locator
	CreatedAt       time.Time
}

// EnvironmentRecord describes an environment on the host.
type EnvironmentRecord struct {
	EnvironmentName string
	ApplicationName string
	VersionLabel    string
	Status          EnvironmentStatus
	Health          string
	CNAME           string
}

// UploadReceipt is returned by a successful publish.
type UploadReceipt struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	ETag      string `json:"etag"`
	VersionID string `json:"version_id,omitempty"`
	Digest    string `json:"digest,omitempty"`
	Size      int64  `json:"size"`
}

// Publisher uploads local files to the object store.
type Publisher interface {
	Publish(ctx context.Context, localPath string, loc Locator) (UploadReceipt, error)
	PublishBytes(ctx context.Context, body []byte, loc Locator) (UploadReceipt, error)
}

// Host is the application hosting management API.
type Host interface {
	// DescribeApplicationVersions lists versions of application, optionally
	// restricted to labels.
	DescribeApplicationVersions(ctx context.Context, application string, labels ...string) ([]VersionRecord, error)
	CreateApplication(ctx context.Context, application string) error
	CreateApplicationVersion(ctx context.Context, application, label string, bundle Locator, process bool) error
	CreateEnvironment(ctx context.Context, target Target, label string, settings []OptionSetting) error
	UpdateEnvironment(ctx context.Context, application, environment, label string) error
	DescribeEnvironments(ctx context.Context, environments ...string) ([]EnvironmentRecord, error)
}
