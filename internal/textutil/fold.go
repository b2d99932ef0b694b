package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldKey returns a caseless comparison key for name.
func FoldKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
