package blockdev

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"hoardd/internal/model"

	"github.com/dustin/go-humanize"
)

// raw lsblk --json row. Depending on the util-linux version SIZE is a number
// or a string and RM is a bool, a number or a "0"/"1" string.
type rawDevice struct {
	Name       string          `json:"name"`
	Path       string          `json:"path"`
	Size       json.RawMessage `json:"size"`
	RM         json.RawMessage `json:"rm"`
	Type       string          `json:"type"`
	Tran       *string         `json:"tran"`
	Serial     *string         `json:"serial"`
	Mountpoint *string         `json:"mountpoint"`
	Children   []rawDevice     `json:"children"`
}

type rawTree struct {
	BlockDevices []rawDevice `json:"blockdevices"`
}

// Parse decodes lsblk JSON into disks. Rows with no name or an unreadable
// size/removable field are dropped and counted; the rest still parse.
func Parse(data []byte) (devs []model.BlockDevice, dropped int, err error) {
	var tree rawTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, 0, fmt.Errorf("decode lsblk json: %w", err)
	}

	for _, r := range tree.BlockDevices {
		if r.Type != "disk" {
			continue
		}
		dev, ok := toDevice(r)
		if !ok {
			dropped++
			continue
		}
		for _, c := range r.Children {
			if c.Type != "part" {
				continue
			}
			p, ok := toPartition(c)
			if !ok {
				dropped++
				continue
			}
			dev.Partitions = append(dev.Partitions, p)
		}
		devs = append(devs, dev)
	}
	return devs, dropped, nil
}

func toDevice(r rawDevice) (model.BlockDevice, bool) {
	if r.Name == "" {
		return model.BlockDevice{}, false
	}
	size, err := parseSize(r.Size)
	if err != nil {
		return model.BlockDevice{}, false
	}
	rm, err := parseFlag(r.RM)
	if err != nil {
		return model.BlockDevice{}, false
	}
	return model.BlockDevice{
		Name:       r.Name,
		Path:       devPath(r),
		Size:       size,
		Removable:  rm,
		Transport:  deref(r.Tran),
		Serial:     strings.TrimSpace(deref(r.Serial)),
		Mountpoint: deref(r.Mountpoint),
	}, true
}

func toPartition(r rawDevice) (model.Partition, bool) {
	if r.Name == "" {
		return model.Partition{}, false
	}
	size, err := parseSize(r.Size)
	if err != nil {
		return model.Partition{}, false
	}
	return model.Partition{
		Name:       r.Name,
		Path:       devPath(r),
		Size:       size,
		Mountpoint: deref(r.Mountpoint),
	}, true
}

func devPath(r rawDevice) string {
	if r.Path != "" {
		return r.Path
	}
	return "/dev/" + r.Name
}

func parseSize(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing size")
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("size %s: %w", raw, err)
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	// lsblk without --bytes support prints "1.4M"
	b, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", s, err)
	}
	return int64(b), nil
}

func parseFlag(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "true", "1", `"1"`:
		return true, nil
	case "false", "0", `"0"`:
		return false, nil
	}
	return false, fmt.Errorf("removable flag %s", raw)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
