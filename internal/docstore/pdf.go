// internal/docstore/pdf.go
package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// extractPDFText pulls the text-show strings out of a PDF's content
// streams. Layout is discarded; the fact parser only needs the raw lines.
func extractPDFText(path string) (string, error) {
	tmp, err := os.MkdirTemp("", "formpilot-pdf-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	if err := api.ExtractContentFile(path, tmp, nil, nil); err != nil {
		return "", fmt.Errorf("content extraction failed: %w", err)
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(tmp, entry.Name()))
		if err != nil {
			return "", err
		}
		out.WriteString(parseContentText(string(raw)))
	}
	return out.String(), nil
}

// parseContentText scans a decoded content stream for Tj/TJ text-show
// operators and concatenates their string operands. The TD/Td/T* operators
// that move the text cursor to a new line emit a newline so "Key: Value"
// lines survive extraction.
func parseContentText(stream string) string {
	var out strings.Builder
	var pending []string

	flush := func(op string) {
		if isNumeric(op) {
			// Kerning value inside a TJ array; the strings around it still
			// belong to the same show operation.
			return
		}
		switch op {
		case "Tj", "TJ", "'", "\"":
			for _, s := range pending {
				out.WriteString(s)
			}
		case "Td", "TD", "T*":
			out.WriteString("\n")
		}
		pending = pending[:0]
	}

	i := 0
	var token strings.Builder
	for i < len(stream) {
		c := stream[i]
		switch {
		case c == '(':
			if token.Len() > 0 {
				token.Reset()
			}
			s, next := readPDFString(stream, i)
			pending = append(pending, s)
			i = next
		case c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == ']' || c == '[':
			if token.Len() > 0 {
				flush(token.String())
				token.Reset()
			}
			i++
		default:
			token.WriteByte(c)
			i++
		}
	}
	if token.Len() > 0 {
		flush(token.String())
	}
	return out.String()
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' || c == '.' {
			continue
		}
		if (c == '-' || c == '+') && i == 0 {
			continue
		}
		return false
	}
	return true
}

// readPDFString reads a parenthesized PDF string starting at the opening
// paren, handling escapes and balanced nested parens. It returns the
// decoded string and the index just past the closing paren.
func readPDFString(stream string, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(stream) {
		c := stream[i]
		switch c {
		case '\\':
			if i+1 < len(stream) {
				switch esc := stream[i+1]; esc {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case 'r', 'f', 'b':
					// Ignored control escapes.
				default:
					b.WriteByte(esc)
				}
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}
