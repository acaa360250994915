package domain

import "strings"

// placeholderTokens are the reserved markers a brief may carry in an image
// path field to signal that the asset has not been generated yet.
var placeholderTokens = []string{
	"placeholder",
	"pending",
	"pending-generation",
}

// NeedsGeneration reports whether a stored image path still requires
// generation. It is the single source of truth for asset completeness:
// upload validation, pipeline entry, and the completion audit all go
// through this predicate.
func NeedsGeneration(path string) bool {
	normalized := strings.ToLower(strings.TrimSpace(path))
	if normalized == "" {
		return true
	}
	for _, token := range placeholderTokens {
		if strings.Contains(normalized, token) {
			return true
		}
	}
	return false
}

// AssetRef wraps a stored image path so callers interrogate asset state
// through one typed surface instead of comparing sentinel strings.
type AssetRef struct {
	Path string
}

// NeedsGeneration reports whether the reference still points at a sentinel.
func (r AssetRef) NeedsGeneration() bool {
	return NeedsGeneration(r.Path)
}

// IsReal reports whether the reference resolves to a stored object.
func (r AssetRef) IsReal() bool {
	return !r.NeedsGeneration()
}
