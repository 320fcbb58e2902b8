package indicator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"hoardd/internal/model"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// Indicator tells an operator without a screen how the last job went.
type Indicator interface {
	// SignalComplete starts the "done, safe to swap" pattern.
	SignalComplete(dev model.BlockDevice)
	// SignalFailed leaves the indicator without the done pattern.
	SignalFailed(dev model.BlockDevice)
	// Stop ends any pattern and returns once it has stopped.
	Stop()
}

const sectorSize = 512

// ReadPulse blinks the drive's own access light: a few paced, uncached
// sector reads during the on phase, nothing during the off phase. Data
// transfer flickers fast; this blinks slow.
type ReadPulse struct {
	On        time.Duration
	Off       time.Duration
	PulseRate float64 // reads per second during the on phase
	Logger    *log.Logger

	// Pulse reads one sector at off; swapped out in tests.
	Pulse func(path string, off int64) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReadPulse(on, off time.Duration, pulseRate float64, logger *log.Logger) *ReadPulse {
	return &ReadPulse{On: on, Off: off, PulseRate: pulseRate, Logger: logger, Pulse: pulse}
}

func (r *ReadPulse) SignalComplete(dev model.BlockDevice) {
	r.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	r.mu.Lock()
	r.cancel, r.done = cancel, done
	r.mu.Unlock()

	go r.blink(ctx, dev, done)
}

func (r *ReadPulse) SignalFailed(dev model.BlockDevice) {
	r.Stop()
	r.logf("indicator: %s: no done pattern, job failed", dev.Name)
}

func (r *ReadPulse) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *ReadPulse) blink(ctx context.Context, dev model.BlockDevice, done chan struct{}) {
	defer close(done)

	// cycle over the first sectors so each read misses the cache
	span := int64(64 * sectorSize)
	if dev.Size > 0 && dev.Size < span {
		span = dev.Size
	}
	lim := rate.NewLimiter(rate.Limit(r.PulseRate), 1)
	var off int64

	for {
		until := time.Now().Add(r.On)
		for time.Now().Before(until) {
			if err := lim.Wait(ctx); err != nil {
				return
			}
			if err := r.Pulse(dev.Path, off); err != nil {
				r.logf("indicator: %s: stop blinking: %v", dev.Path, err)
				return
			}
			off = (off + sectorSize) % span
		}

		t := time.NewTimer(r.Off)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (r *ReadPulse) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

func pulse(path string, off int64) error {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer unix.Close(fd)

	_ = unix.Fadvise(fd, off, sectorSize, unix.FADV_DONTNEED)
	buf := make([]byte, sectorSize)
	if _, err := unix.Pread(fd, buf, off); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

// LogOnly stands in where there is no light to blink.
type LogOnly struct {
	Logger *log.Logger
}

func (l LogOnly) SignalComplete(dev model.BlockDevice) {
	l.Logger.Printf("indicator: %s: done, safe to swap", dev.Name)
}

func (l LogOnly) SignalFailed(dev model.BlockDevice) {
	l.Logger.Printf("indicator: %s: job failed", dev.Name)
}

func (LogOnly) Stop() {}

// New returns the indicator selected by name: "readpulse" or "log".
func New(kind string, on, off time.Duration, pulseRate float64, logger *log.Logger) (Indicator, error) {
	switch kind {
	case "", "readpulse":
		return NewReadPulse(on, off, pulseRate, logger), nil
	case "log":
		return LogOnly{Logger: logger}, nil
	}
	return nil, fmt.Errorf("unknown indicator %q", kind)
}
