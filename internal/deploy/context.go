package deploy

// Phase is a reconciler state.
type Phase string

const (
	PhaseStart              Phase = "start"
	PhaseArtifactUploaded   Phase = "artifact_uploaded"
	PhaseApplicationEnsured Phase = "application_ensured"
	PhaseVersionCreated     Phase = "version_created"
	PhaseVersionProcessed   Phase = "version_processed"
	PhaseEnvironmentEnsured Phase = "environment_ensured"
	PhaseEnvironmentReady   Phase = "environment_ready"
	PhaseDone               Phase = "done"
	PhaseFailed             Phase = "failed"
)

// DeployContext carries one deploy run through the lifecycle. It is a value:
// every stage returns an updated copy and never mutates the one it was given.
type DeployContext struct {
	Target  Target `json:"target"`
	Stage   string `json:"stage"`
	Env     string `json:"env,omitempty"`
	Key     string `json:"key,omitempty"`
	Version string `json:"version"`
	Label   string `json:"label"`
	Bucket  string `json:"bucket"`

	File           *FileOverride   `json:"file,omitempty"`
	ArtifactPath   string          `json:"artifact_path,omitempty"`
	OptionSettings []OptionSetting `json:"option_settings,omitempty"`

	Phase       Phase            `json:"phase"`
	Application ApplicationState `json:"application"`
	Receipt     *UploadReceipt   `json:"receipt,omitempty"`
}

// Locator is where the bundle of this run is stored.
func (c DeployContext) Locator() Locator {
	return ResolveLocator(c.Bucket, c.Label, c.File)
}

func (c DeployContext) WithPhase(p Phase) DeployContext {
	c.Phase = p
	return c
}

// WithVersion sets the resolved version and derives the label from it.
func (c DeployContext) WithVersion(version string) DeployContext {
	c.Version = version
	c.Label = Label(c.Target.ApplicationName, version)
	return c
}

func (c DeployContext) WithArtifact(path string) DeployContext {
	c.ArtifactPath = path
	return c
}

func (c DeployContext) WithReceipt(r UploadReceipt) DeployContext {
	c.Receipt = &r
	return c
}

func (c DeployContext) WithApplication(s ApplicationState) DeployContext {
	c.Application = s
	return c
}
