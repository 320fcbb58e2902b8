package indicator

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hoardd/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pulseLog struct {
	mu   sync.Mutex
	offs []int64
	err  error
}

func (p *pulseLog) pulse(path string, off int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offs = append(p.offs, off)
	return p.err
}

func (p *pulseLog) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.offs)
}

var drive = model.BlockDevice{Name: "sda", Path: "/dev/sda", Size: 1474560}

func TestReadPulseBlinksUntilStopped(t *testing.T) {
	pl := &pulseLog{}
	r := NewReadPulse(20*time.Millisecond, 20*time.Millisecond, 500, nil)
	r.Pulse = pl.pulse

	r.SignalComplete(drive)
	require.Eventually(t, func() bool { return pl.count() >= 3 }, 2*time.Second, 5*time.Millisecond)

	r.Stop()
	n := pl.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, pl.count(), "pulses after Stop")

	// offsets walk forward a sector at a time
	pl.mu.Lock()
	assert.Equal(t, int64(0), pl.offs[0])
	assert.Equal(t, int64(sectorSize), pl.offs[1])
	pl.mu.Unlock()
}

func TestReadPulseStopsOnReadError(t *testing.T) {
	var buf bytes.Buffer
	pl := &pulseLog{err: errors.New("no medium")}
	r := NewReadPulse(time.Second, time.Second, 100, log.New(&buf, "", 0))
	r.Pulse = pl.pulse

	r.SignalComplete(drive)
	require.Eventually(t, func() bool { return pl.count() == 1 }, time.Second, 5*time.Millisecond)
	r.Stop()
	assert.Equal(t, 1, pl.count())
	assert.Contains(t, buf.String(), "stop blinking")
}

func TestReadPulseFailedDoesNotBlink(t *testing.T) {
	pl := &pulseLog{}
	r := NewReadPulse(10*time.Millisecond, 10*time.Millisecond, 1000, nil)
	r.Pulse = pl.pulse

	r.SignalFailed(drive)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, pl.count())
	r.Stop()
}

func TestReadPulseFailedStopsEarlierBlink(t *testing.T) {
	pl := &pulseLog{}
	r := NewReadPulse(10*time.Millisecond, 10*time.Millisecond, 1000, nil)
	r.Pulse = pl.pulse

	r.SignalComplete(drive)
	require.Eventually(t, func() bool { return pl.count() > 0 }, time.Second, time.Millisecond)
	r.SignalFailed(drive)
	n := pl.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, pl.count())
}

func TestStopIdempotent(t *testing.T) {
	r := NewReadPulse(time.Second, time.Second, 1, nil)
	r.Stop()
	r.Stop()
}

func TestPulseReadsFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "dev")
	require.NoError(t, os.WriteFile(p, make([]byte, 4*sectorSize), 0o644))
	assert.NoError(t, pulse(p, sectorSize))
	assert.Error(t, pulse(filepath.Join(t.TempDir(), "missing"), 0))
}

func TestNew(t *testing.T) {
	ind, err := New("log", time.Second, time.Second, 1, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)
	assert.IsType(t, LogOnly{}, ind)

	ind, err = New("", time.Second, time.Second, 1, nil)
	require.NoError(t, err)
	assert.IsType(t, &ReadPulse{}, ind)

	_, err = New("gpio", time.Second, time.Second, 1, nil)
	assert.Error(t, err)
}
