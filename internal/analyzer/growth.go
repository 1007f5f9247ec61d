// Package analyzer compares package size snapshots of two builds and decides
// whether the change passes the binary size check.
package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blackwell-systems/buildgate/internal/snapshots"
)

const (
	// MaxDeltaBytes is the largest compressed growth tolerated for a single
	// package. Growth at or above it fails the check.
	MaxDeltaBytes = 12 * 1024

	// TrybotDocURL documents the size check for people whose change failed it.
	TrybotDocURL = "https://chromium.googlesource.com/chromium/src/+/main/docs/speed/binary_size/fuchsia_binary_size_trybot.md"

	failureHeader = "Size check failed! The following package(s) are affected:\n"
)

// ErrPackageMismatch is returned when the two snapshots do not track the same
// set of packages.
var ErrPackageMismatch = errors.New("package files cannot be compared with different packages")

// ComputePackageDiffs computes the growth of every package between the
// before and after snapshots. Packages are visited in the before snapshot's
// order; that order decides the order of lines in the summary.
func ComputePackageDiffs(before, after *snapshots.Snapshot) (*GrowthReport, error) {
	if !before.SameNames(after) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrPackageMismatch, before.Names(), after.Names())
	}

	names := before.Names()
	report := &GrowthReport{
		Compressed:       make(map[string]int64, len(names)),
		Uncompressed:     make(map[string]int64, len(names)),
		StatusCode:       StatusPass,
		ArchiveFilenames: []string{},
		Links:            []string{},
		Packages:         names,
	}

	var summary strings.Builder
	for _, name := range names {
		b, _ := before.Get(name)
		a, _ := after.Get(name)

		compressed := a.Compressed - b.Compressed
		report.Compressed[name] = compressed
		report.Uncompressed[name] = a.Uncompressed - b.Uncompressed

		if !exceedsThreshold(compressed) {
			continue
		}
		if report.StatusCode == StatusPass {
			summary.WriteString(failureHeader)
		}
		report.StatusCode = StatusFail
		fmt.Fprintf(&summary, "- %s grew by %d bytes\n", name, compressed)
	}

	summary.WriteString("\nSee the following document for more information about this trybot:\n")
	summary.WriteString(TrybotDocURL)
	report.Summary = strings.ReplaceAll(summary.String(), "\n", "<br>")

	return report, nil
}

func exceedsThreshold(compressedDelta int64) bool {
	return compressedDelta >= MaxDeltaBytes
}
