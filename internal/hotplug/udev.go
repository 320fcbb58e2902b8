package hotplug

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
)

type Event struct {
	Action  string            // add/remove/change
	DevName string            // /dev/sda
	DevType string            // disk/partition
	Props   map[string]string // key=value from udev
}

// MonitorUdev follows udevadm monitor and calls onEvent for USB block
// add/remove/change events. It returns when ctx ends or udevadm exits.
func MonitorUdev(ctx context.Context, onEvent func(Event)) error {
	cmd := exec.CommandContext(ctx,
		"udevadm",
		"monitor",
		"--udev",
		"--subsystem-match=block",
		"--property",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	scanErr := scanUdev(ctx, stdout, onEvent)
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if scanErr != nil {
		return scanErr
	}
	return waitErr
}

// scanUdev parses blank-line separated KEY=value blocks.
func scanUdev(ctx context.Context, r io.Reader, onEvent func(Event)) error {
	sc := bufio.NewScanner(r)
	props := map[string]string{}

	flush := func() {
		defer func() { props = map[string]string{} }()
		if len(props) == 0 {
			return
		}
		if props["ID_BUS"] != "usb" {
			return
		}
		action := props["ACTION"]
		if action != "add" && action != "remove" && action != "change" {
			return
		}
		onEvent(Event{
			Action:  action,
			DevName: props["DEVNAME"],
			DevType: props["DEVTYPE"],
			Props:   props,
		})
	}

	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok {
			props[k] = v
		}
	}

	// scanner ended; try one last flush
	flush()
	return sc.Err()
}
