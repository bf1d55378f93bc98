package types

import (
	"unicode"
	"unicode/utf8"
)

// PrefixStart returns the offset at which the identifier ending at offset
// begins. If the character before offset is not part of an identifier,
// offset is returned.
func PrefixStart(contents string, offset int) int {
	if offset > len(contents) {
		offset = len(contents)
	}
	pos := offset
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(contents[:pos])
		if !isIdentRune(r) {
			break
		}
		pos -= size
	}
	return pos
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\''
}
