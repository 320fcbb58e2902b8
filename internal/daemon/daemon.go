// Package daemon is the poll loop. Each tick lists devices, assigns roles,
// probes the floppy and compares the result with the previous tick's State
// to find insertion and removal edges.
package daemon

import (
	"context"
	"errors"
	"log"
	"time"

	"hoardd/internal/archive"
	"hoardd/internal/blockdev"
	"hoardd/internal/classify"
	"hoardd/internal/indicator"
	"hoardd/internal/media"
	"hoardd/internal/model"
)

// JobRunner runs one copy job to completion.
type JobRunner interface {
	StartJob(ctx context.Context, src, dst model.BlockDevice) *model.CopyJob
}

// State is everything carried from one tick to the next.
type State struct {
	Phase model.Phase
	Roles model.RoleAssignment
	Media model.MediaState
	Job   *model.CopyJob

	// MediaID identifies the disk in the drive; a change while the job's
	// disk is in counts as removal plus insertion.
	MediaID string

	// RejectedDestination is the key of the destination the last job
	// could not write to. A different destination retries the same disk.
	RejectedDestination string
}

func Initial() State {
	return State{Phase: model.PhaseIdle, Media: model.NoDevice}
}

type Daemon struct {
	Lister     blockdev.Lister
	Detector   media.Detector
	Jobs       JobRunner
	Indicator  indicator.Indicator
	Thresholds classify.Thresholds
	Interval   time.Duration
	Logger     *log.Logger

	// Wake triggers an early tick; may be nil.
	Wake <-chan struct{}
}

// Run ticks until ctx ends. Ticks never overlap: a copy blocks the loop.
func (d *Daemon) Run(ctx context.Context) error {
	d.Logger.Printf("daemon: polling every %s", d.Interval)
	defer d.Indicator.Stop()

	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	st := d.Tick(ctx, Initial())
	for {
		select {
		case <-ctx.Done():
			d.Logger.Printf("daemon: stopping")
			return nil
		case <-ticker.C:
		case <-d.Wake:
		}
		st = d.Tick(ctx, st)
	}
}

// Tick observes the system once and returns the next state.
func (d *Daemon) Tick(ctx context.Context, st State) State {
	devices := d.Lister.List(ctx)
	roles := classify.Classify(devices, st.Roles, d.Thresholds)
	m := d.detect(ctx, st, roles.Source)
	state := m.State

	d.logRoles(st.Roles, roles)
	if state != st.Media {
		d.Logger.Printf("daemon: source media %s -> %s", st.Media, state)
	}

	next := st
	next.Roles = roles
	next.Media = state
	next.MediaID = m.ID

	switch st.Phase {
	case model.PhaseIdle:
		if state != model.DiskPresent {
			return next
		}
		if roles.Destination == nil {
			if st.Media != model.DiskPresent {
				d.Logger.Printf("daemon: disk inserted, waiting for a destination")
			}
			return next
		}
		return d.runJob(ctx, next)

	default:
		if state != model.DiskPresent {
			d.Indicator.Stop()
			d.Logger.Printf("daemon: disk removed, ready for the next one")
			next.Phase = model.PhaseIdle
			next.Job = nil
			next.RejectedDestination = ""
			return next
		}
		if st.MediaID != "" && m.ID != st.MediaID {
			d.Indicator.Stop()
			d.Logger.Printf("daemon: disk swapped (%s -> %s)", st.MediaID, m.ID)
			next.Phase = model.PhaseIdle
			next.Job = nil
			next.RejectedDestination = ""
			if roles.Destination == nil {
				d.Logger.Printf("daemon: disk inserted, waiting for a destination")
				return next
			}
			return d.runJob(ctx, next)
		}
		if st.RejectedDestination != "" && roles.Destination != nil &&
			blockdev.Key(*roles.Destination) != st.RejectedDestination {
			d.Logger.Printf("daemon: new destination %s, retrying disk", roles.Destination.Name)
			return d.runJob(ctx, next)
		}
	}
	return next
}

// detect stays off the media while a failed disk sits in the drive, so the
// only light the operator sees is the done pattern.
func (d *Daemon) detect(ctx context.Context, st State, dev *model.BlockDevice) model.Media {
	failed := st.Phase == model.PhaseDoneSignaling && st.Job != nil && st.Job.Status != model.JobSucceeded
	if q, ok := d.Detector.(media.QuietDetector); ok && failed {
		return q.DetectQuiet(ctx, dev)
	}
	return d.Detector.Detect(ctx, dev)
}

func (d *Daemon) runJob(ctx context.Context, next State) State {
	src, dst := *next.Roles.Source, *next.Roles.Destination

	next.Phase = model.PhaseCopying
	job := d.Jobs.StartJob(ctx, src, dst)
	next.Job = job
	next.RejectedDestination = ""

	if job.Status == model.JobSucceeded {
		d.Indicator.SignalComplete(src)
	} else {
		d.Indicator.SignalFailed(src)
		if errors.Is(job.Err, archive.ErrDestination) {
			next.RejectedDestination = blockdev.Key(dst)
		}
	}
	// a disk pulled mid-copy shows up as next tick's removal edge
	next.Phase = model.PhaseDoneSignaling
	return next
}

func (d *Daemon) logRoles(prev, cur model.RoleAssignment) {
	if key(prev.Source) != key(cur.Source) {
		d.Logger.Printf("daemon: source %s -> %s", name(prev.Source), name(cur.Source))
	}
	if key(prev.Destination) != key(cur.Destination) {
		d.Logger.Printf("daemon: destination %s -> %s", name(prev.Destination), name(cur.Destination))
	}
}

func key(d *model.BlockDevice) string {
	if d == nil {
		return ""
	}
	return blockdev.Key(*d)
}

func name(d *model.BlockDevice) string {
	if d == nil {
		return "none"
	}
	return d.Name
}
