// Package slug derives stable, URL-safe identifiers from display names.
// Company and industry codes are minted here once, at creation time.
package slug

import (
	gosimple "github.com/gosimple/slug"
)

// Code converts a display name into a lowercase, hyphen-separated
// identifier. The derivation is deterministic; two names that collapse
// to the same code are only caught by the store's duplicate-key error.
// Empty or whitespace-only names yield an empty code and are not
// guarded here.
func Code(name string) string {
	return gosimple.Make(name)
}
