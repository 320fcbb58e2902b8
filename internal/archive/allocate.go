package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

const (
	maxAllocAttempts = 100
	defaultWidth     = 5
)

// Allocate creates a new, empty archive folder under base named
// <prefix><n>, with n one past the highest number already there. Names are
// zero padded to the widest number already on the stick (5 digits on a
// fresh one) so sorting by name follows creation order.
func Allocate(base, prefix string) (name, path string, err error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", "", err
	}
	next, width, err := nextSequence(base, prefix)
	if err != nil {
		return "", "", err
	}

	for i := 0; i < maxAllocAttempts; i++ {
		name = fmt.Sprintf("%s%0*d", prefix, width, next+i)
		path = filepath.Join(base, name)
		err := os.Mkdir(path, 0o755)
		if err == nil {
			return name, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", err
		}
	}
	return "", "", fmt.Errorf("no free folder name under %s after %d attempts", base, maxAllocAttempts)
}

// nextSequence scans every entry, files included, so a stray file can't
// shadow a folder name. It also returns the digit width to keep using.
func nextSequence(base, prefix string) (next, width int, err error) {
	re := regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `(\d+)$`)
	entries, err := os.ReadDir(base)
	if err != nil {
		return 0, 0, err
	}
	highest := 0
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		highest = max(highest, n)
		width = max(width, len(m[1]))
	}
	if width == 0 {
		width = defaultWidth
	}
	return highest + 1, width, nil
}
