// Package cache stores converted documents so re-running a conversion with
// unchanged input and settings is instant.
//
// Three backends implement [Cache]:
//   - FileCache: one file per entry under the XDG cache directory
//   - RedisCache: a shared redis instance, with retries on network errors
//   - NullCache: caching disabled
//
// Keys come from a [Keyer]. The default keyer hashes every option that
// changes the output, so a different column count or threshold never reuses
// an old entry.
//
// Values are opaque bytes. [Marshal] and [Unmarshal] provide the
// deterministic CBOR encoding used for documents.
package cache

import (
	"context"
	"time"
)

// TTLDocument is how long a converted document stays cached.
const TTLDocument = 30 * 24 * time.Hour

// Cache is a byte store with expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the backend.
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// SourceKey fingerprints an input file or directory.
	SourceKey(path string, size int64, modTime time.Time) string
	// DocumentKey identifies the document converted from a source with the
	// given options.
	DocumentKey(sourceHash string, opts DocumentKeyOpts) string
}

// DocumentKeyOpts lists every option that changes a converted document.
type DocumentKeyOpts struct {
	Columns     int     `json:"columns"`
	TargetFPS   float64 `json:"target_fps"`
	SourceFPS   float64 `json:"source_fps,omitempty"`
	Threshold   int     `json:"threshold"`
	Levels      int     `json:"levels"`
	Style       string  `json:"style"`
	Mode        string  `json:"mode"`
	Ramp        string  `json:"ramp,omitempty"`
	Gamma       float64 `json:"gamma,omitempty"`
	FontAspect  float64 `json:"font_aspect"`
	Sharpen     bool    `json:"sharpen,omitempty"`
	MergeGlyphs bool    `json:"merge_glyphs,omitempty"`
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// SourceKey implements Keyer.
func (DefaultKeyer) SourceKey(path string, size int64, modTime time.Time) string {
	return hashKey("source", path, size, modTime.UTC().UnixNano())
}

// DocumentKey implements Keyer.
func (DefaultKeyer) DocumentKey(sourceHash string, opts DocumentKeyOpts) string {
	return hashKey("document", sourceHash, opts)
}
