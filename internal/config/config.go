package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the daemon's static settings table. Every field has a default;
// a YAML file may override any of them.
type Config struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	JournalPath  string        `yaml:"journal_path"` // empty disables the journal
	Hotplug      bool          `yaml:"hotplug"`

	Roles     RolesConfig     `yaml:"roles"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Indicator IndicatorConfig `yaml:"indicator"`
}

// RolesConfig holds the capacity thresholds the classifier applies.
type RolesConfig struct {
	FloppyCeiling  ByteSize `yaml:"floppy_ceiling"`
	DestinationMin ByteSize `yaml:"destination_min"`
}

// ArchiveConfig defines where and how disks are copied.
type ArchiveConfig struct {
	SourceMountPoint      string        `yaml:"source_mount_point"`
	DestinationMountPoint string        `yaml:"destination_mount_point"`
	Dir                   string        `yaml:"dir"`
	FolderPrefix          string        `yaml:"folder_prefix"`
	Mounter               string        `yaml:"mounter"` // "syscall" or "exec"
	FSTypes               []string      `yaml:"fs_types"`
	PresenceInterval      time.Duration `yaml:"presence_interval"`
}

// IndicatorConfig defines the completion blink.
type IndicatorConfig struct {
	Kind      string        `yaml:"kind"` // "readpulse" or "log"
	On        time.Duration `yaml:"on"`
	Off       time.Duration `yaml:"off"`
	PulseRate float64       `yaml:"pulse_rate"`
}

// ByteSize reads either a plain integer or a human size such as "1.44MB".
type ByteSize int64

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	n, err := humanize.ParseBytes(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: size %q: %w", node.Line, node.Value, err)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) MarshalYAML() (any, error) {
	return humanize.Bytes(uint64(b)), nil
}

func (b ByteSize) String() string { return humanize.Bytes(uint64(b)) }

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		PollInterval: 2 * time.Second,
		JournalPath:  "hoardd.db",
		Hotplug:      true,
		Roles: RolesConfig{
			FloppyCeiling:  10 * 1000 * 1000,
			DestinationMin: 100 * 1024 * 1024,
		},
		Archive: ArchiveConfig{
			SourceMountPoint:      "/mnt/floppy",
			DestinationMountPoint: "/mnt/usb_stick",
			Dir:                   "floppy_backups",
			FolderPrefix:          "BKP_",
			Mounter:               "syscall",
			FSTypes:               []string{"vfat", "msdos", "exfat", "ext4", "ext3", "ext2", "ntfs3", "hfsplus"},
			PresenceInterval:      time.Second,
		},
		Indicator: IndicatorConfig{
			Kind:      "readpulse",
			On:        time.Second,
			Off:       time.Second,
			PulseRate: 8,
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.Roles.FloppyCeiling >= c.Roles.DestinationMin {
		errs = append(errs, fmt.Errorf("floppy_ceiling (%s) must be below destination_min (%s)",
			c.Roles.FloppyCeiling, c.Roles.DestinationMin))
	}
	if c.Archive.SourceMountPoint == "" || c.Archive.DestinationMountPoint == "" {
		errs = append(errs, errors.New("mount points must be set"))
	}
	if c.Archive.SourceMountPoint == c.Archive.DestinationMountPoint {
		errs = append(errs, errors.New("source and destination mount points must differ"))
	}
	if c.Archive.FolderPrefix == "" {
		errs = append(errs, errors.New("folder_prefix must be set"))
	}
	if c.Indicator.On <= 0 || c.Indicator.Off <= 0 || c.Indicator.PulseRate <= 0 {
		errs = append(errs, errors.New("indicator on, off and pulse_rate must be positive"))
	}
	return errors.Join(errs...)
}
