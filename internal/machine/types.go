package machine

import "github.com/manuelinfosec/ebdeploy/internal/deploy"

// FSMRequest holds the inputs of one deploy run.
type FSMRequest struct {
	ReleaseID string               `json:"release_id"`
	Deploy    deploy.DeployContext `json:"deploy"`
}

// FSMResponse carries the context as advanced by the previous transition.
type FSMResponse struct {
	Deploy deploy.DeployContext `json:"deploy"`
}
