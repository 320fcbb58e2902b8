package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"hoardd/internal/hash"
	"hoardd/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func openJournal(cmd *cobra.Command) (*store.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.JournalPath == "" {
		return nil, errors.New("journal disabled in config")
	}
	return store.Open(cfg.JournalPath)
}

func jobsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent copy jobs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			jobs, err := db.RecentJobs(limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tFOLDER\tSTATUS\tFILES\tBYTES\tERRORS\tSTARTED\tTOOK\tLAST ERROR")
			for _, j := range jobs {
				took := "-"
				if !j.FinishedAt.IsZero() {
					took = j.FinishedAt.Sub(j.StartedAt).Round(time.Second).String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\t%s\t%s\t%s\n",
					j.RunID, j.Folder, j.Status, j.Files, humanize.Bytes(uint64(j.Bytes)), j.Errors,
					humanize.Time(j.StartedAt), took, j.LastError)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of jobs to show")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <run-id> <archive-folder>",
		Short: "Re-hash an archive folder against the journal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			files, err := db.JobFiles(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no files journaled for run %s", args[0])
			}

			bad := 0
			for _, f := range files {
				if f.Error != "" {
					fmt.Printf("SKIP   %s (never copied: %s)\n", f.RelPath, f.Error)
					continue
				}
				got, err := hash.Compute(filepath.Join(args[1], filepath.FromSlash(f.RelPath)))
				switch {
				case err != nil:
					bad++
					fmt.Printf("MISSING %s: %v\n", f.RelPath, err)
				case got.SHA256 != f.SHA256 || got.Size != f.Size:
					bad++
					fmt.Printf("CHANGED %s\n", f.RelPath)
				default:
					fmt.Printf("OK     %s\n", f.RelPath)
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d files failed verification", bad, len(files))
			}
			return nil
		},
	}
}
