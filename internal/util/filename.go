package util

/*
fastread — fast tool in Go for counting domains and URIs in large access logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFilenameLength keeps report names well below common filesystem limits
// once the field suffix and extensions are appended.
const maxFilenameLength = 100

// SanitizeFilename turns an input name into a safe report file prefix.
// Path separators, shell-hostile characters, whitespace and control characters
// become underscores; leading dots are dropped so the report is never hidden.
func SanitizeFilename(input string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, input)
	replaced = strings.TrimLeft(replaced, ".")
	if len(replaced) <= maxFilenameLength {
		return replaced
	}
	n := maxFilenameLength
	for n > 0 && !utf8.RuneStart(replaced[n]) {
		n--
	}
	return replaced[:n]
}
