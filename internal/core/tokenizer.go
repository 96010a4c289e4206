package core

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

// Line grammar bytes.
const (
	tabByte      = '\t'
	newlineByte  = '\n'
	spaceByte    = ' '
	questionByte = '?'
)

// Field layout: fields 0-2 are skipped, field 3 carries the tokens.
const (
	leadingTabs   = 3
	domainSpace   = 1 // The domain ends at the first space of field 3.
	uriStartSpace = 5 // The uri starts right after the fifth space.
	uriEndSpace   = 6 // ...and ends at the sixth space or at '?'.
)

// LineCounts reports what a Tokenize call consumed.
type LineCounts struct {
	Lines   int64 // Lines scanned, including skipped ones.
	Skipped int64 // Malformed lines skipped in lenient mode.
}

// Tokenizer extracts the domain and uri tokens of every line in a buffer.
// It holds no per-call state and is safe to share between workers.
type Tokenizer struct {
	// SkipMalformed skips lines that break the grammar instead of failing.
	SkipMalformed bool
}

// lineTokens holds the inclusive token bounds found on one line.
type lineTokens struct {
	domainStart, domainEnd int
	uriStart, uriEnd       int
	hasDomain, hasURI      bool
}

// Tokenize scans buf, which must hold zero or more complete newline-terminated
// lines, and counts each line's domain in domains and uri in uris.
//
// Tokens are recorded only after their whole line has been validated, so a
// malformed line never contributes a count. In strict mode the first malformed
// line aborts the scan with a *MalformedLineError.
func (t *Tokenizer) Tokenize(buf *Buffer, domains, uris *CountTable) (LineCounts, error) {
	var res LineCounts
	data := buf.Bytes()
	pos := 0
	for pos < len(data) {
		lineStart := pos
		tok, next, reason := scanLine(data, pos)
		res.Lines++
		pos = next
		if reason != "" {
			if t.SkipMalformed {
				res.Skipped++
				continue
			}
			return res, &MalformedLineError{Offset: buf.Origin() + int64(lineStart), Reason: reason}
		}
		if tok.hasDomain {
			buf.SetView(tok.domainStart, tok.domainEnd)
			domains.Increment(buf)
		}
		if tok.hasURI {
			buf.SetView(tok.uriStart, tok.uriEnd)
			uris.Increment(buf)
		}
	}
	return res, nil
}

// scanLine makes one forward pass over the line starting at i. It returns the
// token bounds, the index just past the line's newline and, for a line that
// breaks the grammar, a non-empty reason.
//
// Index convention: c := data[i]; i++ - so when a delimiter is read at data[i-1],
// the token's last byte is data[i-2].
func scanLine(data []byte, i int) (tok lineTokens, next int, reason string) {
	n := len(data)

	// Fields 0-2.
	for tabs := 0; tabs < leadingTabs; {
		if i >= n {
			return tok, n, "line not newline-terminated"
		}
		c := data[i]
		i++
		switch c {
		case tabByte:
			tabs++
		case newlineByte:
			return tok, i, "fewer than 4 tab-separated fields"
		}
	}

	// Field 3.
	domainStart := i
	uriStart := 0
	spaces := 0
field:
	for {
		if i >= n {
			return tok, n, "line not newline-terminated"
		}
		c := data[i]
		i++
		switch c {
		case tabByte:
			break field
		case newlineByte:
			return tok, i, "field 3 ended before the uri token"
		case spaceByte:
			spaces++
			switch spaces {
			case domainSpace:
				tok.domainStart, tok.domainEnd, tok.hasDomain = domainStart, i-2, true
			case uriStartSpace:
				uriStart = i
			case uriEndSpace:
				tok.uriStart, tok.uriEnd, tok.hasURI = uriStart, i-2, true
				break field
			}
		case questionByte:
			if spaces == uriStartSpace {
				tok.uriStart, tok.uriEnd, tok.hasURI = uriStart, i-2, true
				break field
			}
		}
	}

	// Rest of the line.
	for {
		if i >= n {
			return tok, n, "line not newline-terminated"
		}
		c := data[i]
		i++
		if c == newlineByte {
			return tok, i, ""
		}
	}
}
