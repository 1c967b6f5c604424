package workspace

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/rustnav/internal/discover"
	"github.com/phobologic/rustnav/internal/fileid"
)

// WalkOptions controls LoadWorkspace.
type WalkOptions struct {
	Exclude          []string
	RespectGitignore bool
	// Workers bounds concurrent file reads; 0 means GOMAXPROCS.
	Workers int
}

// WalkReport summarizes a workspace walk.
type WalkReport struct {
	Discovered int
	Loaded     int
	Failed     int
}

// LoadWorkspace discovers every source file under roots and loads each one
// that is not already in the database. Sources are read concurrently, but
// records are created and analyzed one file at a time. Unreadable roots,
// directories and files are logged and skipped; only cancellation of ctx
// stops the walk.
func (db *Database) LoadWorkspace(ctx context.Context, roots []string, opts WalkOptions) (WalkReport, error) {
	var report WalkReport
	for _, root := range roots {
		paths, err := discover.Files(root, discover.Options{
			Exclude:          opts.Exclude,
			RespectGitignore: opts.RespectGitignore,
			OnSymlink: func(path string) {
				db.logError(ctx, fmt.Sprintf("symlinks aren't supported right now, skipping %s", path))
			},
			OnError: func(path string, err error) {
				db.logError(ctx, fmt.Sprintf("cannot read %s: %v", path, err))
			},
		})
		if err != nil {
			db.logError(ctx, fmt.Sprintf("cannot walk workspace root %s: %v", root, err))
			continue
		}
		report.Discovered += len(paths)

		sources, err := prefetch(ctx, paths, opts.Workers)
		if err != nil {
			return report, err
		}

		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			id, err := fileid.FromPath(path)
			if err != nil {
				report.Failed++
				db.logError(ctx, err.Error())
				continue
			}
			loaded, err := db.loadWithSource(ctx, id, sources[i])
			if err != nil {
				report.Failed++
				db.logError(ctx, err.Error())
				continue
			}
			if loaded {
				report.Loaded++
			}
		}
	}

	db.logger.Info("workspace loaded",
		zap.Int("discovered", report.Discovered),
		zap.Int("loaded", report.Loaded),
		zap.Int("failed", report.Failed))
	return report, nil
}

// prefetched is the result of reading one file ahead of analysis.
type prefetched struct {
	src []byte
	err error
}

func prefetch(ctx context.Context, paths []string, workers int) ([]prefetched, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]prefetched, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(path)
			results[i] = prefetched{src: src, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// loadWithSource behaves like LoadIfAbsent but takes the contents of id
// from a prefetched read. Files pulled in by module resolution are still
// read from disk.
func (db *Database) loadWithSource(ctx context.Context, id fileid.ID, pre prefetched) (bool, error) {
	if _, ok := db.files[id]; ok {
		return false, nil
	}
	if pre.err != nil {
		return false, fmt.Errorf("reading %s: %w", id.Path(), pre.err)
	}
	read := db.readFile
	db.readFile = func(path string) ([]byte, error) {
		if path == id.Path() {
			return pre.src, nil
		}
		return read(path)
	}
	defer func() { db.readFile = read }()
	return db.LoadIfAbsent(ctx, id)
}
