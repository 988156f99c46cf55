package chunker

import "unicode/utf8"

// Length is the character count used for every size limit in this module.
// Reports are mostly CJK, so bytes would overcount by roughly 3x.
func Length(text string) int {
	return utf8.RuneCountInString(text)
}
