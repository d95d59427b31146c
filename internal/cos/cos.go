// Package cos is windowrouter's small grab-bag of helpers, the way
// aistore's cmn/cos package holds the ones too small to warrant their
// own package.
package cos

import (
	"errors"
	"io"
)

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// IsEOF reports whether err signals an orderly peer close.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
