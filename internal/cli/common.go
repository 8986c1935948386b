package cli

import "github.com/example/imagerank/internal/ports/primary"

// coreErrorTag extracts the stable tag from err if it is a
// *primary.CoreError, or "" otherwise.
func coreErrorTag(err error) string {
	if ce, ok := err.(*primary.CoreError); ok {
		return ce.Tag
	}
	return ""
}
