// Package watcher re-runs an action whenever one of a set of files changes.
//
// Parent directories are watched rather than the files themselves, so files
// that are replaced by rename (as build steps usually do) keep triggering.
// Bursts of events are coalesced into a single run after a short quiet
// period.
//
// Example usage:
//
//	w, err := watcher.New([]string{beforePath, afterPath}, func() error {
//		return recompute()
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := w.RunUntilSignal(); err != nil {
//		log.Fatal(err)
//	}
package watcher
