package model

import "time"

// This package models the devices, roles and copy jobs the daemon tracks

type MediaState string

const (
	NoDevice    MediaState = "NO_DEVICE"
	Empty       MediaState = "EMPTY"
	DiskPresent MediaState = "DISK_PRESENT"
)

// Media is one probe of the source drive. ID tells two disks apart and is
// empty unless State is DiskPresent.
type Media struct {
	State MediaState
	ID    string
}

type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// Phase is the poll loop's position in the insert/copy/signal cycle.
type Phase string

const (
	PhaseIdle          Phase = "IDLE"
	PhaseCopying       Phase = "COPYING"
	PhaseDoneSignaling Phase = "DONE_SIGNALING"
)

// BlockDevice is one disk row of the system inventory. It is rebuilt on
// every tick and never mutated.
type BlockDevice struct {
	Name       string // sda
	Path       string // /dev/sda
	Size       int64  // bytes
	Removable  bool
	Transport  string // usb, sata, mmc...
	Serial     string
	Mountpoint string // set if the system already mounted the whole disk
	Partitions []Partition
}

type Partition struct {
	Name       string
	Path       string
	Size       int64
	Mountpoint string
}

// MountTarget picks the node to mount: the first partition when the disk is
// partitioned, otherwise the disk itself. The second value is where the
// system already has that node mounted, if anywhere.
func (d BlockDevice) MountTarget() (node, mountpoint string) {
	if len(d.Partitions) > 0 {
		p := d.Partitions[0]
		return p.Path, p.Mountpoint
	}
	return d.Path, d.Mountpoint
}

// RoleAssignment is the classifier output for one tick. Either side may be nil.
type RoleAssignment struct {
	Source      *BlockDevice
	Destination *BlockDevice
}

type CopyJob struct {
	RunID string // journal key, unique across destinations
	ID    string // archive folder name, unique on its destination
	Path  string // absolute path of the archive folder

	Source      string
	Destination string

	Status      JobStatus
	BytesCopied int64
	FilesCopied int64
	Errors      int64
	Err         error

	StartedAt  time.Time
	FinishedAt time.Time
}

// FileRecord is the journal entry for one source file.
type FileRecord struct {
	RelPath string
	Size    int64
	SHA256  string
	CRC32C  uint32
	Error   string
}
