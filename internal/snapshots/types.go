package snapshots

// PackageSizes holds the on-disk sizes of one package, in bytes.
type PackageSizes struct {
	Compressed   int64 `json:"compressed"`
	Uncompressed int64 `json:"uncompressed"`
}

// Snapshot maps package names to their sizes at one point in a build.
// Iteration order is insertion order, which for files read with ReadFile is
// the key order of the JSON document.
type Snapshot struct {
	names []string
	sizes map[string]PackageSizes
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{sizes: make(map[string]PackageSizes)}
}

// Set records sizes for a package. Re-setting an existing package keeps its
// original position.
func (s *Snapshot) Set(name string, sizes PackageSizes) {
	if s.sizes == nil {
		s.sizes = make(map[string]PackageSizes)
	}
	if _, exists := s.sizes[name]; !exists {
		s.names = append(s.names, name)
	}
	s.sizes[name] = sizes
}

// Get returns the sizes recorded for a package.
func (s *Snapshot) Get(name string) (PackageSizes, bool) {
	sizes, ok := s.sizes[name]
	return sizes, ok
}

// Names returns package names in insertion order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Len returns the number of packages in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.names)
}

// SameNames reports whether both snapshots track exactly the same packages.
func (s *Snapshot) SameNames(other *Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, name := range s.names {
		if _, ok := other.sizes[name]; !ok {
			return false
		}
	}
	return true
}
