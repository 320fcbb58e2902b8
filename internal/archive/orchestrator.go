// Package archive runs copy jobs: expose the floppy read-only, allocate a
// fresh folder on the destination and copy the whole tree into it.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"hoardd/internal/copyutil"
	"hoardd/internal/media"
	"hoardd/internal/model"
	"hoardd/internal/mount"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

var (
	ErrMount        = errors.New("source mount failed")
	ErrDestination  = errors.New("destination unusable")
	ErrPartialCopy  = errors.New("some files could not be read")
	ErrMediaRemoved = errors.New("media removed during copy")
)

// Journal records jobs as they run. Journal failures are logged, never fatal.
type Journal interface {
	JobStarted(job *model.CopyJob) error
	FileCopied(runID string, rec model.FileRecord) error
	JobFinished(job *model.CopyJob) error
}

type Config struct {
	SourceMountPoint      string
	DestinationMountPoint string
	ArchiveDir            string // relative to the destination root
	FolderPrefix          string
	// PresenceInterval spaces out media re-checks while copying.
	PresenceInterval time.Duration
}

type Orchestrator struct {
	cfg      Config
	mounter  mount.Mounter
	presence media.Detector
	journal  Journal
	logger   *log.Logger

	// OpenFS exposes a mounted directory; os.DirFS outside tests.
	OpenFS func(dir string) fs.FS
	Now    func() time.Time
}

func New(cfg Config, mounter mount.Mounter, presence media.Detector, journal Journal, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		mounter:  mounter,
		presence: presence,
		journal:  journal,
		logger:   logger,
		OpenFS:   os.DirFS,
		Now:      time.Now,
	}
}

// StartJob copies the media in src to a new archive folder on dst and
// returns the finished job. It never returns a RUNNING job.
func (o *Orchestrator) StartJob(ctx context.Context, src, dst model.BlockDevice) *model.CopyJob {
	job := &model.CopyJob{
		RunID:       newRunID(),
		Source:      src.Name,
		Destination: dst.Name,
		Status:      model.JobRunning,
		StartedAt:   o.Now(),
	}
	o.logger.Printf("job %s: start source=%s destination=%s", job.RunID, src.Path, dst.Path)
	if o.journal != nil {
		if err := o.journal.JobStarted(job); err != nil {
			o.logger.Printf("job %s: journal: %v", job.RunID, err)
		}
	}

	srcNode, _ := src.MountTarget()
	if err := o.mounter.MountRO(ctx, srcNode, o.cfg.SourceMountPoint); err != nil {
		return o.finish(job, fmt.Errorf("%w: %v", ErrMount, err))
	}
	defer func() {
		if err := o.mounter.Unmount(o.cfg.SourceMountPoint); err != nil {
			o.logger.Printf("job %s: release source: %v", job.RunID, err)
		}
	}()

	dstRoot, release, err := o.exposeDestination(ctx, dst)
	if err != nil {
		return o.finish(job, fmt.Errorf("%w: %v", ErrDestination, err))
	}
	defer release()

	name, path, err := Allocate(filepath.Join(dstRoot, o.cfg.ArchiveDir), o.cfg.FolderPrefix)
	if err != nil {
		return o.finish(job, fmt.Errorf("%w: allocate folder: %v", ErrDestination, err))
	}
	job.ID, job.Path = name, path
	o.logger.Printf("job %s: archiving into %s", job.RunID, path)

	st, err := copyutil.CopyTree(ctx, o.OpenFS(o.cfg.SourceMountPoint), path, copyutil.TreeOptions{
		Before: o.presenceCheck(ctx, src),
		OnFile: func(r copyutil.FileResult) { o.record(job, r) },
		Logger: o.logger,
	})
	job.FilesCopied, job.BytesCopied, job.Errors = st.Files, st.Bytes, st.Errors
	syncDir(path)

	switch {
	case errors.Is(err, ErrMediaRemoved):
		return o.finish(job, err)
	case copyutil.IsDestination(err):
		return o.finish(job, fmt.Errorf("%w: %v", ErrDestination, err))
	case err != nil:
		return o.finish(job, err)
	case st.Errors > 0:
		return o.finish(job, fmt.Errorf("%w: %d errors", ErrPartialCopy, st.Errors))
	}
	return o.finish(job, nil)
}

// exposeDestination reuses a mount the system already made, otherwise mounts
// the stick read-write at our own mount point until the job ends.
func (o *Orchestrator) exposeDestination(ctx context.Context, dst model.BlockDevice) (string, func(), error) {
	node, existing := dst.MountTarget()
	if existing != "" {
		return existing, func() {}, nil
	}
	if err := o.mounter.MountRW(ctx, node, o.cfg.DestinationMountPoint); err != nil {
		return "", nil, err
	}
	return o.cfg.DestinationMountPoint, func() {
		if err := o.mounter.Unmount(o.cfg.DestinationMountPoint); err != nil {
			o.logger.Printf("destination: unmount %s: %v", o.cfg.DestinationMountPoint, err)
		}
	}, nil
}

func (o *Orchestrator) presenceCheck(ctx context.Context, src model.BlockDevice) func(string) error {
	if o.presence == nil {
		return nil
	}
	var (
		last time.Time
		id   string
	)
	return func(string) error {
		now := o.Now()
		if !last.IsZero() && now.Sub(last) < o.cfg.PresenceInterval {
			return nil
		}
		last = now
		m := o.presence.Detect(ctx, &src)
		if m.State != model.DiskPresent {
			return ErrMediaRemoved
		}
		// a different disk under the same mount is a removal too
		if id == "" {
			id = m.ID
		} else if m.ID != id {
			return ErrMediaRemoved
		}
		return nil
	}
}

func (o *Orchestrator) record(job *model.CopyJob, r copyutil.FileResult) {
	rec := model.FileRecord{
		RelPath: r.RelPath,
		Size:    r.Digest.Size,
		SHA256:  r.Digest.SHA256,
		CRC32C:  r.Digest.CRC32C,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if o.journal == nil {
		return
	}
	if err := o.journal.FileCopied(job.RunID, rec); err != nil {
		o.logger.Printf("job %s: journal %s: %v", job.RunID, r.RelPath, err)
	}
}

func (o *Orchestrator) finish(job *model.CopyJob, err error) *model.CopyJob {
	job.FinishedAt = o.Now()
	job.Err = err
	if err != nil {
		job.Status = model.JobFailed
		o.logger.Printf("job %s: FAILED files=%d bytes=%s errors=%d: %v",
			job.RunID, job.FilesCopied, humanize.Bytes(uint64(job.BytesCopied)), job.Errors, err)
	} else {
		job.Status = model.JobSucceeded
		o.logger.Printf("job %s: SUCCEEDED folder=%s files=%d bytes=%s dur=%s",
			job.RunID, job.ID, job.FilesCopied, humanize.Bytes(uint64(job.BytesCopied)),
			job.FinishedAt.Sub(job.StartedAt).Round(time.Millisecond))
	}

	if o.journal != nil {
		if jerr := o.journal.JobFinished(job); jerr != nil {
			o.logger.Printf("job %s: journal: %v", job.RunID, jerr)
		}
	}
	return job
}

// syncDir flushes the folder's own entries; the files were synced as written.
func syncDir(path string) {
	d, err := os.Open(path)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
