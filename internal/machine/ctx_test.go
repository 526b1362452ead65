package machine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
	"github.com/manuelinfosec/ebdeploy/internal/storage"
)

func newTestApp(t *testing.T) *AppContext {
	t.Helper()
	db, err := storage.InitDB(filepath.Join(t.TempDir(), "ebdeploy.db"))
	assert.NilError(t, err)
	t.Cleanup(func() { db.Close() })

	log, _ := test.NewNullLogger()
	return NewAppContext(db, &deploy.Reconciler{Log: log}, log)
}

func testContext() deploy.DeployContext {
	return deploy.DeployContext{
		Target: deploy.Target{ApplicationName: "demo", EnvironmentName: "demo-dev"},
		Bucket: "demo-deploys",
	}.WithVersion("42")
}

func TestLedgerRecordsSuccessfulRun(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)
	dc := testContext()

	assert.NilError(t, app.begin(ctx, "01A", dc))

	uploaded := dc.WithReceipt(deploy.UploadReceipt{
		Bucket: "demo-deploys", Key: "bundle-demo-42.zip", ETag: `"e"`, Digest: "abc", Size: 3,
	}).WithPhase(deploy.PhaseArtifactUploaded)
	app.advance(ctx, "01A", uploaded)
	app.advance(ctx, "01A", uploaded.WithPhase(deploy.PhaseVersionCreated))
	app.finish(ctx, "01A", uploaded.WithPhase(deploy.PhaseDone), nil)

	r, err := storage.GetRelease(ctx, app.DB, "01A")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(r.VersionLabel, "demo-42"))
	assert.Check(t, is.Equal(r.Phase, "done"))
	assert.Check(t, is.Equal(r.Digest, "abc"))
	assert.Check(t, r.FinishedAt.Valid)

	a, err := storage.GetArtifactByDigest(ctx, app.DB, "abc")
	assert.NilError(t, err)
	assert.Assert(t, a != nil)
	assert.Check(t, is.Equal(a.Key, "bundle-demo-42.zip"))

	res, ok := app.result("01A")
	assert.Assert(t, ok)
	assert.NilError(t, res.err)
	assert.Check(t, is.Equal(res.dc.Phase, deploy.PhaseDone))

	_, ok = app.result("01A")
	assert.Check(t, !ok)
}

func TestLedgerRecordsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	app := newTestApp(t)
	dc := testContext()

	assert.NilError(t, app.begin(ctx, "01B", dc))
	// the failure is recorded even when the run was cancelled
	cancel()
	app.finish(ctx, "01B", dc.WithPhase(deploy.PhaseVersionCreated), deploy.ErrVersionProcessingFailed)

	r, err := storage.GetRelease(context.Background(), app.DB, "01B")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(r.Phase, "failed"))
	assert.Check(t, is.Equal(r.Error, "Creating Application Version Failed"))

	res, ok := app.result("01B")
	assert.Assert(t, ok)
	assert.Check(t, errors.Is(res.err, deploy.ErrVersionProcessingFailed))
	assert.Check(t, is.Equal(res.dc.Phase, deploy.PhaseFailed))
}
