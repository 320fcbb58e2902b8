package main

import (
	"fmt"
	"log"
	"os"

	"hoardd/internal/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hoardd",
		Short: "Archive every floppy inserted into a USB drive onto a USB stick",
		Long: "hoardd watches USB block devices, tells the floppy drive from the flash stick, " +
			"and copies each newly inserted disk into its own folder on the stick. " +
			"The drive light blinks slowly when a disk is done.",
		SilenceUsage: true,
		RunE:         runDaemon,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "hoardd.yaml", "path to config file (defaults are used if missing)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log source file and line")
	rootCmd.Flags().Duration("poll", 0, "poll interval (overrides config)")

	rootCmd.AddCommand(devicesCmd(), jobsCmd(), verifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	flags := log.LstdFlags | log.Lmicroseconds
	if debug {
		flags |= log.Lshortfile
	}
	return log.New(os.Stdout, "", flags)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f := cmd.Flags().Lookup("poll"); f != nil && f.Changed {
		d, err := cmd.Flags().GetDuration("poll")
		if err != nil {
			return nil, err
		}
		cfg.PollInterval = d
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
