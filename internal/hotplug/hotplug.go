// Package hotplug turns kernel device notifications into early poll ticks.
// Nothing here decides state; the poll loop still compares ticks.
package hotplug

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Nudger collects wake-ups from every available source into one channel.
// Bursts collapse into a single pending nudge.
type Nudger struct {
	c      chan struct{}
	logger *log.Logger
}

func NewNudger(logger *log.Logger) *Nudger {
	return &Nudger{c: make(chan struct{}, 1), logger: logger}
}

func (n *Nudger) C() <-chan struct{} { return n.c }

func (n *Nudger) nudge() {
	select {
	case n.c <- struct{}{}:
	default:
	}
}

// RunUdev nudges on USB block events until ctx ends. A missing udevadm is
// logged and tolerated.
func (n *Nudger) RunUdev(ctx context.Context) error {
	err := MonitorUdev(ctx, func(ev Event) {
		n.logger.Printf("hotplug: udev %s %s", ev.Action, ev.DevName)
		n.nudge()
	})
	if err != nil && ctx.Err() == nil {
		n.logger.Printf("hotplug: udev monitor stopped: %v", err)
	}
	return nil
}

// RunDevWatch nudges when block device nodes appear in or vanish from dir.
func (n *Nudger) RunDevWatch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		n.logger.Printf("hotplug: fsnotify: %v", err)
		return nil
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		n.logger.Printf("hotplug: watch %s: %v", dir, err)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove) == 0 || !isBlockNode(ev.Name) {
				continue
			}
			n.nudge()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			n.logger.Printf("hotplug: watch error: %v", err)
		}
	}
}

// isBlockNode matches SCSI disk nodes (sda, sdb1) and legacy floppies (fd0).
func isBlockNode(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "fd")
}
