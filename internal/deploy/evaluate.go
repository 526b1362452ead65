package deploy

import "github.com/manuelinfosec/ebdeploy/internal/poll"

// EvaluateVersion maps an application version snapshot to a poll outcome.
func EvaluateVersion(records []VersionRecord) poll.Outcome {
	if len(records) == 0 {
		return poll.NotReady
	}
	switch records[0].Status {
	case VersionProcessed:
		return poll.Ready
	case VersionFailed:
		return poll.Failed(ErrVersionProcessingFailed)
	default:
		return poll.NotReady
	}
}

// EvaluateEnvironment maps an environment snapshot to a poll outcome. A
// terminating environment will never become ready and fails the wait.
func EvaluateEnvironment(records []EnvironmentRecord) poll.Outcome {
	if len(records) == 0 {
		return poll.NotReady
	}
	switch records[0].Status {
	case EnvironmentReady:
		return poll.Ready
	case EnvironmentTerminating, EnvironmentTerminated:
		return poll.Failed(ErrEnvironmentTerminated)
	default:
		return poll.NotReady
	}
}
