package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestRemoteCallCounts(t *testing.T) {
	m := New()
	m.RemoteCall("CreateApplication", nil)
	m.RemoteCall("CreateApplication", nil)
	m.RemoteCall("CreateApplication", errors.New("denied"))

	assert.Check(t, is.Equal(testutil.ToFloat64(m.remoteCalls.WithLabelValues("CreateApplication", "ok")), 2.0))
	assert.Check(t, is.Equal(testutil.ToFloat64(m.remoteCalls.WithLabelValues("CreateApplication", "error")), 1.0))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RemoteCall("x", nil)
	m.PollCheck("version")
	m.DeployFinished(time.Second, nil)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.PollCheck("environment")
	m.DeployFinished(42*time.Second, nil)

	path := filepath.Join(t.TempDir(), "ebdeploy.prom")
	assert.NilError(t, m.WriteTextfile(path))

	out, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Check(t, is.Contains(string(out), `ebdeploy_poll_checks_total{wait="environment"} 1`))
	assert.Check(t, is.Contains(string(out), "ebdeploy_deploy_duration_seconds_count"))
}
