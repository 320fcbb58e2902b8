package blockdev

import (
	"context"
	"log"
	"os/exec"
	"time"

	"hoardd/internal/model"

	"golang.org/x/time/rate"
)

// Lister enumerates the block devices attached right now. A failed query is
// an empty inventory, never an error: the caller polls again next tick.
type Lister interface {
	List(ctx context.Context) []model.BlockDevice
}

// Runner runs a read-only system command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

var lsblkArgs = []string{
	"--json",
	"--bytes",
	"--output", "NAME,PATH,SIZE,RM,TYPE,TRAN,SERIAL,MOUNTPOINT",
}

// Lsblk lists devices by shelling out to lsblk(8).
type Lsblk struct {
	Run    Runner
	Logger *log.Logger

	warn rate.Sometimes
}

func NewLsblk(logger *log.Logger) *Lsblk {
	return &Lsblk{
		Run:    ExecRunner,
		Logger: logger,
		warn:   rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

func (l *Lsblk) List(ctx context.Context) []model.BlockDevice {
	out, err := l.Run(ctx, "lsblk", lsblkArgs...)
	if err != nil {
		l.warnf("inventory: lsblk failed: %v", err)
		return nil
	}

	devs, dropped, err := Parse(out)
	if err != nil {
		l.warnf("inventory: parse lsblk output: %v", err)
		return nil
	}
	if dropped > 0 {
		l.warnf("inventory: dropped %d malformed lsblk rows", dropped)
	}
	return devs
}

func (l *Lsblk) warnf(format string, args ...any) {
	if l.Logger == nil {
		return
	}
	l.warn.Do(func() {
		l.Logger.Printf(format, args...)
	})
}
