// Package classify assigns the source and destination roles to removable
// block devices.
package classify

import (
	"hoardd/internal/blockdev"
	"hoardd/internal/model"
)

type Thresholds struct {
	// FloppyCeiling is the largest reported size still treated as a floppy
	// drive. An empty drive usually reports zero.
	FloppyCeiling int64
	// DestinationMin is the smallest size accepted as a destination.
	DestinationMin int64
}

func (t Thresholds) isSource(d model.BlockDevice) bool {
	// inclusive so a drive reporting exactly the ceiling still counts
	return d.Removable && d.Size <= t.FloppyCeiling
}

func (t Thresholds) isDestination(d model.BlockDevice) bool {
	return d.Removable && d.Size >= t.DestinationMin && d.Size > t.FloppyCeiling
}

// Classify maps one inventory onto roles. A role is filled only when exactly
// one device qualifies for it, unless the device that held the role on the
// previous tick still qualifies, in which case it keeps the role.
func Classify(devices []model.BlockDevice, prev model.RoleAssignment, t Thresholds) model.RoleAssignment {
	var sources, dests []model.BlockDevice
	for _, d := range devices {
		switch {
		case t.isSource(d):
			sources = append(sources, d)
		case t.isDestination(d):
			dests = append(dests, d)
		}
	}

	return model.RoleAssignment{
		Source:      pick(sources, prev.Source),
		Destination: pick(dests, prev.Destination),
	}
}

func pick(candidates []model.BlockDevice, prev *model.BlockDevice) *model.BlockDevice {
	if prev != nil {
		key := blockdev.Key(*prev)
		for _, c := range candidates {
			if blockdev.Key(c) == key {
				return &c
			}
		}
	}
	if len(candidates) != 1 {
		return nil
	}
	c := candidates[0]
	return &c
}
