// Package config holds the bundler's closed set of tunables (§3) and
// the file loading that feeds them, mirroring how the teacher
// loads its resource documents with sigs.k8s.io/yaml.
package config

import (
	"os"

	"sigs.k8s.io/yaml"
)

// Tunables is the closed set of knobs the optimizer consults. Zero
// values are never valid configuration — use Default() or Load().
type Tunables struct {
	// MinBundles: an asset must appear in strictly more bundles than
	// this to become a shared-bundle candidate in pass 4.
	MinBundles int `json:"minBundles"`
	// MinBundleSize is the minimum total byte size a shared bundle
	// extracted in pass 4 may have.
	MinBundleSize int64 `json:"minBundleSize"`
	// MaxParallelRequests bounds how many bundles a single bundle-group
	// may hold at any post-optimizer state.
	MaxParallelRequests int `json:"maxParallelRequests"`
}

// Default returns the tunables named explicitly in §3.
func Default() Tunables {
	return Tunables{
		MinBundles:          1,
		MinBundleSize:       30_000,
		MaxParallelRequests: 5,
	}
}

// Load reads tunables from a YAML document at path, applying Default()
// as a base so a partial document only overrides what it names.
func Load(path string) (Tunables, error) {
	t := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tunables{}, err
	}
	return t, nil
}
