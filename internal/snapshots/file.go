package snapshots

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blackwell-systems/buildgate/internal/fsutil"
)

const (
	// SizesDirName is the directory under a build output that holds size data.
	SizesDirName = "sizes"

	// PackagesSizesFile is the name of the package sizes JSON file.
	PackagesSizesFile = "package_sizes.json"
)

// SizesPath returns the location of the package sizes file in a build
// output directory.
func SizesPath(buildDir string) string {
	return filepath.Join(buildDir, SizesDirName, PackagesSizesFile)
}

// rawSizes distinguishes missing fields from zero values.
type rawSizes struct {
	Compressed   *int64 `json:"compressed"`
	Uncompressed *int64 `json:"uncompressed"`
}

// ReadFile reads a package sizes JSON file.
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sizes file: %w", err)
	}
	defer f.Close()

	snapshot, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sizes file %s: %w", path, err)
	}
	return snapshot, nil
}

// Decode parses a package sizes document of the form
//
//	{"<package>": {"compressed": N, "uncompressed": N}, ...}
//
// keeping the key order of the document.
func Decode(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected a JSON object of package sizes")
	}

	snapshot := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read package name: %w", err)
		}
		name := tok.(string) // object keys are always strings

		var raw rawSizes
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid sizes for package %s: %w", name, err)
		}
		if raw.Compressed == nil || raw.Uncompressed == nil {
			return nil, fmt.Errorf("package %s must have both compressed and uncompressed sizes", name)
		}
		if _, exists := snapshot.Get(name); exists {
			return nil, fmt.Errorf("duplicate package %s", name)
		}

		snapshot.Set(name, PackageSizes{
			Compressed:   *raw.Compressed,
			Uncompressed: *raw.Uncompressed,
		})
	}

	// Consume the closing brace, then require end of input.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read document end: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after package sizes object")
	}

	return snapshot, nil
}

// MarshalJSON encodes the snapshot as a JSON object in insertion order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.sizes[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a package sizes document, preserving key order.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// WriteFile writes the snapshot to path as indented JSON.
func WriteFile(path string, s *Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal package sizes: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create sizes directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write sizes file: %w", err)
	}
	return nil
}
