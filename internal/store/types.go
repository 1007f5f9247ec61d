package store

import "time"

// Run is one recorded size check.
type Run struct {
	ID         int64
	CreatedAt  time.Time
	BeforeDir  string
	AfterDir   string
	StatusCode int
	Summary    string
}

// RunPackage is the growth of one package within a run.
type RunPackage struct {
	RunID             int64
	Package           string
	CompressedDelta   int64
	UncompressedDelta int64
}

// RunRecord is the input to InsertRun: the run row plus its packages in
// comparison order.
type RunRecord struct {
	CreatedAt  time.Time
	BeforeDir  string
	AfterDir   string
	StatusCode int
	Summary    string
	Packages   []RunPackage
}
