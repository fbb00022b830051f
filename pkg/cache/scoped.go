package cache

import "time"

// ScopedKeyer prefixes every key of an inner Keyer. A shared redis instance
// uses it to keep framepen's entries in their own namespace.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "framepen:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer selects
// the DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SourceKey implements Keyer.
func (k *ScopedKeyer) SourceKey(path string, size int64, modTime time.Time) string {
	return k.prefix + k.inner.SourceKey(path, size, modTime)
}

// DocumentKey implements Keyer.
func (k *ScopedKeyer) DocumentKey(sourceHash string, opts DocumentKeyOpts) string {
	return k.prefix + k.inner.DocumentKey(sourceHash, opts)
}
