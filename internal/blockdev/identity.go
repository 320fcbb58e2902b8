package blockdev

import (
	"strings"

	"hoardd/internal/model"
)

// Key identifies a device across ticks: its kernel name, qualified by the
// serial when the device reports one. A different stick that re-enumerates
// under the same name gets a different key.
func Key(d model.BlockDevice) string {
	if d.Serial == "" {
		return d.Name
	}
	return d.Name + "@" + sanitize(d.Serial)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
