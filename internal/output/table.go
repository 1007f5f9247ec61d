// Package output renders size check results and history for the terminal.
//
// Tables use plain box-drawing rules and ANSI color only when stdout is a
// TTY and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/buildgate/internal/analyzer"
	"github.com/blackwell-systems/buildgate/internal/store"
)

const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderGrowthTable renders per-package growth in comparison order.
func RenderGrowthTable(report *analyzer.GrowthReport) string {
	if len(report.Packages) == 0 {
		return "No packages compared.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %-22s %-22s %s\n",
		"Package", "Compressed", "Uncompressed", "Status"))
	sb.WriteString(strings.Repeat("─", 78))
	sb.WriteString("\n")

	for _, name := range report.Packages {
		compressed := report.Compressed[name]
		status := colorize(colorGreen, "✓ ok")
		if compressed >= analyzer.MaxDeltaBytes {
			status = colorize(colorRed, "✗ over limit")
		}

		sb.WriteString(fmt.Sprintf("%-24s %-22s %-22s %s\n",
			truncate(name, 24),
			formatDelta(compressed),
			formatDelta(report.Uncompressed[name]),
			status))
	}

	sb.WriteString("\n")
	sb.WriteString(RenderVerdict(report))
	sb.WriteString("\n")

	return sb.String()
}

// RenderVerdict renders a one-line pass/fail summary.
// Format: "FAIL: 2 of 14 packages grew by 12 KiB or more"
func RenderVerdict(report *analyzer.GrowthReport) string {
	failing := len(report.FailingPackages())
	limit := humanize.IBytes(analyzer.MaxDeltaBytes)
	if failing == 0 {
		return fmt.Sprintf("%s: no package grew by %s or more (%d checked)",
			colorize(colorGreen, "PASS"), limit, len(report.Packages))
	}
	return fmt.Sprintf("%s: %d of %d packages grew by %s or more",
		colorize(colorRed, "FAIL"), failing, len(report.Packages), limit)
}

// RenderRunTable renders recorded runs, in the order given.
func RenderRunTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-6s %-16s %-8s %s\n",
		"ID", "Recorded", "Status", "After build"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, run := range runs {
		status := colorize(colorGreen, "pass")
		if run.StatusCode != analyzer.StatusPass {
			status = colorize(colorRed, "fail")
		}
		// Pad before colorizing so escape codes do not break alignment.
		status += strings.Repeat(" ", 8-len("pass"))

		sb.WriteString(fmt.Sprintf("%-6d %-16s %s %s\n",
			run.ID,
			formatRelativeTime(run.CreatedAt),
			status,
			truncateLeft(run.AfterDir, 40)))
	}

	return sb.String()
}

// RenderRunPackagesTable renders the per-package growth of one run.
func RenderRunPackagesTable(pkgs []*store.RunPackage) string {
	if len(pkgs) == 0 {
		return "No packages recorded for this run.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %-22s %s\n", "Package", "Compressed", "Uncompressed"))
	sb.WriteString(strings.Repeat("─", 68))
	sb.WriteString("\n")

	for _, pkg := range pkgs {
		sb.WriteString(fmt.Sprintf("%-24s %-22s %s\n",
			truncate(pkg.Package, 24),
			formatDelta(pkg.CompressedDelta),
			formatDelta(pkg.UncompressedDelta)))
	}

	return sb.String()
}

// formatDelta renders a signed byte delta as "+12288 (12 KiB)".
func formatDelta(delta int64) string {
	switch {
	case delta == 0:
		return "0"
	case delta > 0:
		return fmt.Sprintf("+%d (%s)", delta, humanize.IBytes(uint64(delta)))
	default:
		return fmt.Sprintf("%d (-%s)", delta, humanize.IBytes(uint64(-delta)))
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// truncateLeft keeps the tail of long paths, where the build name lives.
func truncateLeft(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[len(s)-maxLen:]
	}
	return "..." + s[len(s)-maxLen+3:]
}
