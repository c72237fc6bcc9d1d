// Package textenc decodes uploaded spreadsheet bytes into clean UTF-8 text.
//
// Files exported from Windows tools commonly arrive as UTF-16 with a byte
// order mark, or as UTF-8 with a leading BOM. The decoder inspects the first
// bytes, picks the matching decoder, and always returns usable text:
//
//   - FF FE        -> UTF-16 little-endian
//   - FE FF        -> UTF-16 big-endian
//   - EF BB BF     -> UTF-8 with BOM (BOM stripped)
//   - anything else -> UTF-8
//
// Invalid byte sequences are replaced with U+FFFD rather than rejected, so
// decoding never fails.
package textenc

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding identifies the byte encoding detected at the head of a file.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF8BOM Encoding = "utf-8-bom"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingUTF16BE Encoding = "utf-16be"
)

// bom is the byte order mark as it appears in decoded UTF-8 text.
const bom = "﻿"

// DetectEncoding inspects the first bytes of data and reports the encoding
// Decode will use. It never reads past the third byte.
func DetectEncoding(data []byte) Encoding {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return EncodingUTF16LE
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return EncodingUTF16BE
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return EncodingUTF8BOM
	default:
		return EncodingUTF8
	}
}

// Decode converts raw file bytes to UTF-8 text. The BOM, when present, is
// consumed and never appears in the result. Malformed input produces U+FFFD
// replacement characters instead of an error, so a best-effort string is
// always returned.
func Decode(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var text string
	switch DetectEncoding(data) {
	case EncodingUTF16LE:
		text = decodeUTF16(data, unicode.LittleEndian)
	case EncodingUTF16BE:
		text = decodeUTF16(data, unicode.BigEndian)
	case EncodingUTF8BOM:
		text = sanitizeUTF8(data[3:])
	default:
		text = sanitizeUTF8(data)
	}

	// A decoder may pass the BOM through as a rune; drop it so headers
	// starting in column one match cleanly.
	return strings.TrimPrefix(text, bom)
}

// decodeUTF16 runs the x/text UTF-16 decoder for the given byte order. The
// BOM detected by the caller is consumed by the decoder. An odd trailing byte
// becomes a replacement character.
func decodeUTF16(data []byte, endianness unicode.Endianness) string {
	dec := unicode.UTF16(endianness, unicode.ExpectBOM).NewDecoder()
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		// ExpectBOM only errors when the BOM is absent, which detection
		// rules out. Fall back to treating the bytes as UTF-8 anyway.
		return sanitizeUTF8(data)
	}
	return string(out)
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the Unicode replacement
// character. Valid input is returned without copying.
func sanitizeUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.Write(data[:size])
			data = data[size:]
		}
	}

	return buf.String()
}
