package copyutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"hoardd/internal/hash"
)

// SourceError is a failure reading the source media. The copy of that one
// file is lost; the rest of the tree can still be copied.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }
func (e *SourceError) Unwrap() error { return e.Err }

// DestError is a failure writing the destination. Nothing further can be
// copied there.
type DestError struct {
	Path string
	Err  error
}

func (e *DestError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *DestError) Unwrap() error { return e.Err }

type sourceReader struct {
	r    io.Reader
	name string
}

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = &SourceError{Path: s.name, Err: err}
	}
	return n, err
}

type destWriter struct {
	w    io.Writer
	name string
}

func (d destWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	if err != nil {
		err = &DestError{Path: d.name, Err: err}
	}
	return n, err
}

// CopyFile copies name from src to dst through a hidden temp file, fsync and
// rename, so dst either holds the whole file or does not exist.
func CopyFile(src fs.FS, name, dst string) (hash.Result, error) {
	in, err := src.Open(name)
	if err != nil {
		return hash.Result{}, &SourceError{Path: name, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return hash.Result{}, &SourceError{Path: name, Err: err}
	}

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".partial")
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return hash.Result{}, &DestError{Path: dst, Err: err}
	}

	digest := hash.New()
	_, copyErr := io.Copy(
		destWriter{w: io.MultiWriter(out, digest), name: dst},
		sourceReader{r: in, name: name},
	)
	syncErr := out.Sync()
	closeErr := out.Close()

	if err := firstErr(copyErr, destErr(dst, syncErr), destErr(dst, closeErr)); err != nil {
		_ = os.Remove(tmp)
		return hash.Result{}, err
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return hash.Result{}, &DestError{Path: dst, Err: fmt.Errorf("rename tmp->final: %w", err)}
	}

	// best effort, like cp -p
	if mt := info.ModTime(); !mt.IsZero() {
		_ = os.Chtimes(dst, time.Now(), mt)
	}
	return digest.Result(), nil
}

func destErr(path string, err error) error {
	if err == nil {
		return nil
	}
	return &DestError{Path: path, Err: err}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// IsDestination reports whether err came from writing the destination.
func IsDestination(err error) bool {
	var de *DestError
	return errors.As(err, &de)
}
