package analyzer

// Status codes reported to the trybot.
const (
	StatusPass = 0
	StatusFail = 1
)

// GrowthReport is the trybot result for one before/after comparison.
type GrowthReport struct {
	// Compressed and Uncompressed hold the per-package growth in bytes
	// (after minus before); negative values are shrinkage.
	Compressed   map[string]int64 `json:"compressed"`
	Uncompressed map[string]int64 `json:"uncompressed"`
	StatusCode   int              `json:"status_code"`
	Summary      string           `json:"summary"`

	// Reserved by the trybot result format; always empty.
	ArchiveFilenames []string `json:"archive_filenames"`
	Links            []string `json:"links"`

	// Packages lists package names in the order they were compared.
	Packages []string `json:"-"`
}

// Failed reports whether any package grew past the threshold.
func (r *GrowthReport) Failed() bool {
	return r.StatusCode == StatusFail
}

// FailingPackages returns the packages whose compressed growth reached the
// threshold, in comparison order.
func (r *GrowthReport) FailingPackages() []string {
	var failing []string
	for _, name := range r.Packages {
		if exceedsThreshold(r.Compressed[name]) {
			failing = append(failing, name)
		}
	}
	return failing
}
