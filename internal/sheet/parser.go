package sheet

import "strings"

// Options controls parsing behavior.
type Options struct {
	// Delimiter forces a field separator. Zero means auto-detect between
	// comma and semicolon from the first physical line.
	Delimiter rune

	// SkipEmptyLines drops records whose cells are all blank.
	SkipEmptyLines bool
}

// Parse tokenizes decoded text into a Sheet. The first record becomes the
// header row and every later record a data row. Rows are preserved at their
// source width even when it differs from the header count.
//
// Quoting follows the common spreadsheet dialect: a double quote opens a
// quoted region, "" inside it is a literal quote, and both \n and \r\n end a
// record. A field left unterminated at end of input is still emitted. The
// standard library csv reader is not used here because it drops blank lines
// and treats quoting errors as fatal; this parser keeps both as data.
func Parse(text string, opts Options) Sheet {
	delim := opts.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(text)
	}

	records := scan(text, byte(delim), opts.SkipEmptyLines)
	if len(records) == 0 {
		return Sheet{Headers: []string{}, Rows: [][]string{}}
	}

	rows := records[1:]
	if len(rows) == 0 {
		rows = [][]string{}
	}
	return Sheet{Headers: records[0], Rows: rows}
}

// DetectDelimiter counts commas and semicolons outside quoted regions in the
// first physical line and picks the more frequent one. Comma wins ties and
// empty input.
func DetectDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(line, "\r")

	var commas, semis int
	inQuotes := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				commas++
			}
		case ';':
			if !inQuotes {
				semis++
			}
		}
	}

	if semis > commas {
		return ';'
	}
	return ','
}

// scan walks the input byte by byte. Delimiters and quotes are ASCII, so
// multi-byte UTF-8 sequences pass through untouched.
func scan(text string, delim byte, skipEmpty bool) [][]string {
	var (
		records  [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)

	endRecord := func() {
		row = append(row, field.String())
		field.Reset()
		if !skipEmpty || !IsEmptyRow(row) {
			records = append(records, row)
		}
		row = nil
	}

	for i := 0; i < len(text); {
		c := text[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i += 2
					continue
				}
				inQuotes = false
				i++
				continue
			}
			field.WriteByte(c)
			i++
			continue
		}

		switch c {
		case '"':
			inQuotes = true
			i++
		case delim:
			row = append(row, field.String())
			field.Reset()
			i++
		case '\n':
			endRecord()
			i++
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				endRecord()
				i += 2
			} else {
				// A bare carriage return is cell data, not a
				// record boundary.
				field.WriteByte(c)
				i++
			}
		default:
			field.WriteByte(c)
			i++
		}
	}

	// Emit the trailing record when input does not end with a newline,
	// including an unterminated quoted field.
	if field.Len() > 0 || row != nil {
		endRecord()
	}

	return records
}
