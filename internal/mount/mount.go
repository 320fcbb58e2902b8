package mount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Mounter exposes block devices as directories. MountRO never asks for write
// access. A failed mount leaves nothing mounted at the target.
type Mounter interface {
	MountRO(ctx context.Context, devNode, mountPoint string) error
	MountRW(ctx context.Context, devNode, mountPoint string) error
	Unmount(mountPoint string) error
}

const (
	roFlags = unix.MS_RDONLY | unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC
	rwFlags = unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC
)

// Syscall mounts with mount(2), trying each filesystem type in turn.
type Syscall struct {
	FSTypes []string
}

func (s Syscall) MountRO(ctx context.Context, devNode, mountPoint string) error {
	return s.mount(devNode, mountPoint, roFlags)
}

func (s Syscall) MountRW(ctx context.Context, devNode, mountPoint string) error {
	return s.mount(devNode, mountPoint, rwFlags)
}

func (s Syscall) mount(devNode, mountPoint string, flags uintptr) error {
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return err
	}
	// start clean; our mount point may hold a leftover from a crash
	_ = unix.Unmount(mountPoint, 0)

	var errs []error
	for _, fstype := range s.FSTypes {
		err := unix.Mount(devNode, mountPoint, fstype, flags, "")
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", fstype, err))
	}
	if len(errs) == 0 {
		return fmt.Errorf("mount %s: no filesystem types configured", devNode)
	}
	return fmt.Errorf("mount %s on %s: %w", devNode, mountPoint, errors.Join(errs...))
}

// Unmount detaches lazily when the filesystem is busy or its device is gone,
// which is what a yanked disk looks like.
func (Syscall) Unmount(mountPoint string) error {
	err := unix.Unmount(mountPoint, 0)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOENT):
		// not mounted
		return nil
	}
	if derr := unix.Unmount(mountPoint, unix.MNT_DETACH); derr != nil {
		return fmt.Errorf("umount %s: %w", mountPoint, errors.Join(err, derr))
	}
	return nil
}

// Exec shells out to mount(8)/umount(8), which detect the filesystem type
// themselves.
type Exec struct{}

func (Exec) MountRO(ctx context.Context, devNode, mountPoint string) error {
	return execMount(ctx, "ro,nosuid,nodev,noexec", devNode, mountPoint)
}

func (Exec) MountRW(ctx context.Context, devNode, mountPoint string) error {
	return execMount(ctx, "rw,nosuid,nodev,noexec", devNode, mountPoint)
}

func execMount(ctx context.Context, opts, devNode, mountPoint string) error {
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return err
	}
	_ = exec.Command("umount", mountPoint).Run()
	out, err := exec.CommandContext(ctx, "mount", "-o", opts, devNode, mountPoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount %s: %w: %s", devNode, err, out)
	}
	return nil
}

func (Exec) Unmount(mountPoint string) error {
	if err := exec.Command("umount", mountPoint).Run(); err == nil {
		return nil
	}
	out, err := exec.Command("umount", "-l", mountPoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("umount %s: %w: %s", mountPoint, err, out)
	}
	return nil
}

// New returns the mounter selected by name: "syscall" or "exec".
func New(kind string, fsTypes []string) (Mounter, error) {
	switch kind {
	case "", "syscall":
		return Syscall{FSTypes: fsTypes}, nil
	case "exec":
		return Exec{}, nil
	}
	return nil, fmt.Errorf("unknown mounter %q", kind)
}
