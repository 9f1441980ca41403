package buildspec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a build request from path, applies defaults, resolves relative
// paths against the file's directory, and validates the result.
func Load(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open build spec %s: %w", path, err)
	}
	defer f.Close()

	spec, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load build spec %s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve build spec directory: %w", err)
	}
	spec.Normalize(base)

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("build spec %s: %w", path, err)
	}
	return spec, nil
}

// Decode parses a build request document. Unknown fields are rejected so
// typos fail loudly instead of silently configuring nothing.
func Decode(r io.Reader) (*Spec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("build spec is empty")
		}
		return nil, fmt.Errorf("failed to parse build spec: %w", err)
	}
	return &spec, nil
}
