package pool

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guileen/nodepool/logger"
	"github.com/guileen/nodepool/metrics"
)

type recordingCollector struct {
	mu           sync.Mutex
	idle, active int
	outcomes     map[string]int
	discarded    int
	openFailures int
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{outcomes: make(map[string]int)}
}

func (c *recordingCollector) SetConnections(node string, idle, active int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idle, c.active = idle, active
}

func (c *recordingCollector) IncAcquire(node, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[outcome]++
}

func (c *recordingCollector) ObserveAcquireWait(string, time.Duration) {}

func (c *recordingCollector) IncDiscarded(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded++
}

func (c *recordingCollector) IncOpenFailure(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openFailures++
}

func TestCollectorReceivesPoolEvents(t *testing.T) {
	rec := newRecordingCollector()
	opener := newMockOpener(0)
	p := newTestPool(t, nodeConfig(1, 1, 1, 10*time.Millisecond, 50*time.Millisecond), opener, WithCollector(rec))
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	_, err = p.Acquire(ctx)
	require.Error(t, err)

	p.ReportStats(ctx)
	rec.mu.Lock()
	assert.Equal(t, 0, rec.idle)
	assert.Equal(t, 1, rec.active)
	assert.Equal(t, 1, rec.outcomes[metrics.OutcomeIdle])
	assert.Equal(t, 1, rec.outcomes[metrics.OutcomeTimeout])
	rec.mu.Unlock()

	c.raw.(*mockConn).breaks()
	opener.setFailAll(true)
	require.NoError(t, c.Close())

	p.ReportStats(ctx)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.discarded)
	assert.Equal(t, 1, rec.openFailures)
	assert.Equal(t, 0, rec.idle)
	assert.Equal(t, 0, rec.active)
}

func TestReportStatsLogsAtInfoWithSession(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})
	p := newTestPool(t, nodeConfig(1, 2, 3, 10*time.Millisecond, time.Second), newMockOpener(0), WithLogger(log))

	p.ReportStats(WithSessionID(context.Background(), "sess-1"))

	var found map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		if entry["msg"] == "pool stats" {
			found = entry
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "INFO", found["level"])
	assert.Equal(t, float64(2), found["idle"])
	assert.Equal(t, float64(0), found["active"])
	assert.Equal(t, "sess-1", found["session_id"])
}
