// Package filtering narrows discovered candidates by title.
//
// A listing usually carries far more than an operator wants mirrored. The
// filter holds include and exclude glob patterns matched against candidate
// titles, with exclude taking precedence over include.
//
// # Title Filtering
//
// Patterns use glob syntax with '*' matching any run of characters
// (including '/'), '?' matching one character and '[...]' character classes.
// Matching ignores case. Examples:
//
//   - "*1080p*" matches every 1080p release
//   - "show a - *" matches every episode of Show A
//   - "*batch*" used as an exclude drops batch releases
//
// # Rules
//
//  1. A title matching any exclude pattern is dropped
//  2. With include patterns set, a title must match at least one of them
//  3. Without include patterns, every title not excluded is kept
//
// # Usage
//
//	filtered := filtering.NewFilteredDiscoverer(lister,
//		filtering.NewDefaultFilterService(), cfg.Listing.Filter)
//	items, err := filtered.ListLatest(ctx, 5)
package filtering
