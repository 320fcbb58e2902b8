package media

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"

	"hoardd/internal/model"

	"golang.org/x/sys/unix"
)

// Detector reports whether readable media sits in the source drive and, when
// it does, which disk it is.
type Detector interface {
	Detect(ctx context.Context, dev *model.BlockDevice) model.Media
}

// QuietDetector probes through the page cache so an idle drive stays dark.
// Opening the node still makes the kernel check for a media change, which
// drops the cached head of a swapped disk.
type QuietDetector interface {
	Detector
	DetectQuiet(ctx context.Context, dev *model.BlockDevice) model.Media
}

// probeSize covers the boot sector and the ext superblock at offset 1024.
const probeSize = 2048

// Prober reads the head of the device directly. Device size alone can't tell
// an empty drive from a loaded one on every drive model.
type Prober struct {
	Logger *log.Logger

	// ReadHead fills buf from offset 0 of the device, bypassing the cache;
	// swapped out in tests. ReadHeadCached falls back to ReadHead when nil.
	ReadHead       func(path string, buf []byte) error
	ReadHeadCached func(path string, buf []byte) error
}

func NewProber(logger *log.Logger) *Prober {
	return &Prober{Logger: logger, ReadHead: readHead, ReadHeadCached: readHeadCached}
}

func (p *Prober) Detect(ctx context.Context, dev *model.BlockDevice) model.Media {
	return p.probe(dev, p.ReadHead)
}

func (p *Prober) DetectQuiet(ctx context.Context, dev *model.BlockDevice) model.Media {
	read := p.ReadHeadCached
	if read == nil {
		read = p.ReadHead
	}
	return p.probe(dev, read)
}

func (p *Prober) probe(dev *model.BlockDevice, read func(string, []byte) error) model.Media {
	if dev == nil {
		return model.Media{State: model.NoDevice}
	}
	if _, err := os.Stat(dev.Path); err != nil {
		return model.Media{State: model.NoDevice}
	}
	if dev.Size == 0 {
		return model.Media{State: model.Empty}
	}

	buf := make([]byte, probeSize)
	if err := read(dev.Path, buf); err != nil {
		if !errors.Is(err, unix.ENOMEDIUM) && p.Logger != nil {
			p.Logger.Printf("media: probe %s: %v", dev.Path, err)
		}
		return model.Media{State: model.Empty}
	}
	if !HasFilesystem(buf) {
		return model.Media{State: model.Empty}
	}
	return model.Media{State: model.DiskPresent, ID: Fingerprint(buf)}
}

// HasFilesystem looks for a boot sector signature, a FAT BIOS parameter block
// or an ext2/3/4 superblock in the first bytes of a device.
func HasFilesystem(head []byte) bool {
	if len(head) < 512 {
		return false
	}
	if head[510] == 0x55 && head[511] == 0xAA {
		return true
	}
	// DOS 1.x style floppies: jump opcode plus a plausible sector size
	if head[0] == 0xEB || head[0] == 0xE9 {
		switch binary.LittleEndian.Uint16(head[11:13]) {
		case 512, 1024, 2048, 4096:
			return true
		}
	}
	if len(head) >= 1024+58 && binary.LittleEndian.Uint16(head[1024+56:1024+58]) == 0xEF53 {
		return true
	}
	return false
}

// Fingerprint names the disk behind head: the FAT volume serial or ext UUID
// when the format carries one, otherwise a digest of the boot sector.
func Fingerprint(head []byte) string {
	if len(head) >= 1024+120 && binary.LittleEndian.Uint16(head[1024+56:1024+58]) == 0xEF53 {
		u := head[1024+104 : 1024+120]
		return fmt.Sprintf("ext:%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
	}
	if len(head) >= 512 {
		// FAT32 keeps sectors-per-FAT at 22 zero and moves the extended BPB
		off := 38
		if binary.LittleEndian.Uint16(head[22:24]) == 0 {
			off = 66
		}
		if head[off] == 0x29 {
			serial := binary.LittleEndian.Uint32(head[off+1 : off+5])
			return fmt.Sprintf("fat:%04X-%04X", serial>>16, serial&0xFFFF)
		}
	}
	n := min(len(head), 512)
	sum := sha256.Sum256(head[:n])
	return "boot:" + hex.EncodeToString(sum[:8])
}

func readHead(path string, buf []byte) error {
	return pread(path, buf, true)
}

func readHeadCached(path string, buf []byte) error {
	return pread(path, buf, false)
}

func pread(path string, buf []byte, uncached bool) error {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer unix.Close(fd)

	// drop cached pages so a swapped disk is read from the media
	if uncached {
		_ = unix.Fadvise(fd, 0, int64(len(buf)), unix.FADV_DONTNEED)
	}

	n, err := unix.Pread(fd, buf, 0)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if n < 512 {
		return fmt.Errorf("short read: %d bytes", n)
	}
	return nil
}
