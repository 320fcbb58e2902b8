package copyutil

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"hoardd/internal/hash"
)

type FileResult struct {
	RelPath string
	Digest  hash.Result
	Err     error
}

type Stats struct {
	Files  int64
	Dirs   int64
	Bytes  int64
	Errors int64
}

type TreeOptions struct {
	// Before runs ahead of every entry; an error aborts the walk.
	Before func(rel string) error
	// OnFile sees every regular file, copied or not.
	OnFile func(FileResult)
	Logger *log.Logger
}

// CopyTree copies every directory and regular file of src under dstRoot,
// keeping relative paths. Unreadable source entries are counted in
// Stats.Errors and skipped. A destination failure, a Before error or a
// cancelled ctx stops the walk and is returned.
func CopyTree(ctx context.Context, src fs.FS, dstRoot string, opts TreeOptions) (Stats, error) {
	var st Stats

	report := func(r FileResult) {
		if opts.OnFile != nil {
			opts.OnFile(r)
		}
	}
	logf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger.Printf(format, args...)
		}
	}

	err := fs.WalkDir(src, ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			if rel == "." {
				return &SourceError{Path: rel, Err: err}
			}
			// unreadable directory or entry: note it and move on
			st.Errors++
			logf("copy: %s: %v", rel, err)
			if d == nil || !d.IsDir() {
				report(FileResult{RelPath: rel, Err: &SourceError{Path: rel, Err: err}})
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.Before != nil {
			if err := opts.Before(rel); err != nil {
				return err
			}
		}

		dst := filepath.Join(dstRoot, filepath.FromSlash(rel))
		switch {
		case d.IsDir():
			if rel == "." {
				return nil
			}
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return &DestError{Path: dst, Err: err}
			}
			st.Dirs++
			return nil
		case !d.Type().IsRegular():
			logf("copy: skipping %s (%s)", rel, d.Type())
			return nil
		}

		sum, err := CopyFile(src, rel, dst)
		if err != nil {
			if IsDestination(err) {
				return err
			}
			st.Errors++
			logf("copy: %v", err)
			report(FileResult{RelPath: rel, Err: err})
			return nil
		}
		st.Files++
		st.Bytes += sum.Size
		report(FileResult{RelPath: rel, Digest: sum})
		return nil
	})

	var se *SourceError
	if err != nil && errors.As(err, &se) && se.Path == "." {
		st.Errors++
	}
	return st, err
}
