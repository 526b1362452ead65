package deploy

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionProcessingFailed is returned when the host reports the new
	// application version as failed.
	ErrVersionProcessingFailed = errors.New("Creating Application Version Failed")

	// ErrEnvironmentTerminated is returned when the environment reaches a
	// terminating state while waiting for it to become ready.
	ErrEnvironmentTerminated = errors.New("Application Environment Terminated")
)

// ConfigurationError reports missing or invalid caller configuration. It is
// raised before any remote call is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// PublishError reports a failed artifact upload.
type PublishError struct {
	Path    string
	Locator Locator
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s to s3://%s/%s: %v", e.Path, e.Locator.Bucket, e.Locator.Key, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// RemoteCallError wraps a rejected application host call.
type RemoteCallError struct {
	Op  string
	Err error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }
