package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hoardd/internal/archive"
	"hoardd/internal/blockdev"
	"hoardd/internal/classify"
	"hoardd/internal/daemon"
	"hoardd/internal/hotplug"
	"hoardd/internal/indicator"
	"hoardd/internal/media"
	"hoardd/internal/mount"
	"hoardd/internal/store"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mounter, err := mount.New(cfg.Archive.Mounter, cfg.Archive.FSTypes)
	if err != nil {
		return err
	}
	ind, err := indicator.New(cfg.Indicator.Kind, cfg.Indicator.On, cfg.Indicator.Off, cfg.Indicator.PulseRate, logger)
	if err != nil {
		return err
	}

	var journal archive.Journal
	if cfg.JournalPath != "" {
		db, err := store.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer db.Close()
		journal = db
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prober := media.NewProber(logger)
	orch := archive.New(archive.Config{
		SourceMountPoint:      cfg.Archive.SourceMountPoint,
		DestinationMountPoint: cfg.Archive.DestinationMountPoint,
		ArchiveDir:            cfg.Archive.Dir,
		FolderPrefix:          cfg.Archive.FolderPrefix,
		PresenceInterval:      cfg.Archive.PresenceInterval,
	}, mounter, prober, journal, logger)

	d := &daemon.Daemon{
		Lister:    blockdev.NewLsblk(logger),
		Detector:  prober,
		Jobs:      orch,
		Indicator: ind,
		Thresholds: classify.Thresholds{
			FloppyCeiling:  int64(cfg.Roles.FloppyCeiling),
			DestinationMin: int64(cfg.Roles.DestinationMin),
		},
		Interval: cfg.PollInterval,
		Logger:   logger,
	}

	logger.Printf("hoardd starting (config=%s journal=%q floppy<=%s destination>=%s)",
		configPath, cfg.JournalPath, cfg.Roles.FloppyCeiling, cfg.Roles.DestinationMin)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Hotplug {
		n := hotplug.NewNudger(logger)
		d.Wake = n.C()
		g.Go(func() error { return n.RunUdev(ctx) })
		g.Go(func() error { return n.RunDevWatch(ctx, "/dev") })
	}
	g.Go(func() error { return d.Run(ctx) })

	return g.Wait()
}
