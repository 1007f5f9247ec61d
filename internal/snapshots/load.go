package snapshots

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/buildgate/internal/fsutil"
)

// LoadPair reads the package sizes of the builds without and with a patch.
// Both build directories and their sizes files must exist; the two files are
// parsed concurrently.
func LoadPair(ctx context.Context, beforeDir, afterDir string) (*Snapshot, *Snapshot, error) {
	if !fsutil.IsDir(beforeDir) || !fsutil.IsDir(afterDir) {
		return nil, nil, fmt.Errorf("could not find build output directory %q or %q", beforeDir, afterDir)
	}

	beforePath := SizesPath(beforeDir)
	afterPath := SizesPath(afterDir)
	if !fsutil.IsFile(beforePath) {
		return nil, nil, fmt.Errorf("could not find before sizes file: %q", beforePath)
	}
	if !fsutil.IsFile(afterPath) {
		return nil, nil, fmt.Errorf("could not find after sizes file: %q", afterPath)
	}

	var before, after *Snapshot
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := groupCtx.Err(); err != nil {
			return err
		}
		s, err := ReadFile(beforePath)
		if err != nil {
			return fmt.Errorf("before: %w", err)
		}
		before = s
		return nil
	})
	group.Go(func() error {
		if err := groupCtx.Err(); err != nil {
			return err
		}
		s, err := ReadFile(afterPath)
		if err != nil {
			return fmt.Errorf("after: %w", err)
		}
		after = s
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	return before, after, nil
}
