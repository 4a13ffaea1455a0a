package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordRun(t *testing.T) {
	t.Parallel()

	m := New()
	m.SourceCollected("iabilet", 12)
	m.SourceFailed("control")
	m.SourceDropped("iabilet", 2)
	m.SourceDropped("tnb", 0)
	m.DedupMerges(3, 1, 2)
	m.Arbitration(1, 1, 0, 0)
	m.ObserveStage("DEDUPING", 20*time.Millisecond)
	m.RunCompleted(time.Unix(1_760_000_000, 0), 40, 5, 2)

	assert.InDelta(t, 12, testutil.ToFloat64(m.sourceEvents.WithLabelValues("iabilet")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.sourceFailures.WithLabelValues("control")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.sourceDropped.WithLabelValues("iabilet")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.sourceDropped))
	assert.InDelta(t, 3, testutil.ToFloat64(m.dedupMerges.WithLabelValues("exact")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ambiguousPairs), 1e-9)
	assert.InDelta(t, 5, testutil.ToFloat64(m.runEvents.WithLabelValues("new")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.SourceCollected("x", 1)
	m.SourceDropped("x", 1)
	m.DedupMerges(1, 1, 1)
	m.ObserveStage("COLLECTING", time.Second)
	m.RunCompleted(time.Now(), 1, 1, 1)
	require.NoError(t, m.WriteTextfile("ignored"))
	assert.NotNil(t, m.Handler())
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.RunCompleted(time.Unix(1_760_000_000, 0), 10, 3, 1)

	path := filepath.Join(t.TempDir(), "gigradar.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `gigradar_run_events{kind="new"} 3`))
}
