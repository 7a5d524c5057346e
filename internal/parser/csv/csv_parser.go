// Package csv reads and writes the delimited text files the report pipeline
// consumes and produces. Reading materialises the whole file in memory; the
// datasets handled here are expected to fit.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"h1b/internal/parser"
	"h1b/pkg/records"
)

// ErrNoData is returned when the input has no header or no data rows.
var ErrNoData = errors.New("no data available")

// DefaultComma is the field delimiter of the H-1B disclosure exports.
const DefaultComma = ';'

// Options configures the parser. The zero value reads semicolon-delimited
// input without trimming.
type Options struct {
	// Comma specifies the field delimiter. When zero, DefaultComma is used.
	Comma rune

	// TrimSpace trims leading/trailing white space from each field value.
	TrimSpace bool

	// HeaderMap maps normalised header names to canonical keys. Lookups happen
	// after normalisation, so keys must be lower case.
	HeaderMap map[string]string
}

// Parser parses delimited input according to Options. It is safe to reuse
// across inputs but not for concurrent use.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

var _ parser.Parser = (*Parser)(nil)

// Parse reads the header line and every data row from r. A leading UTF-8 BOM is
// dropped. Rows shorter than the header leave the trailing columns missing;
// fields past the header width are ignored. Parse returns ErrNoData when r
// holds no header or only a header.
func (p *Parser) Parse(r io.Reader) ([]string, []records.Record, error) {
	r = transform.NewReader(r, xunicode.BOMOverride(xunicode.UTF8.NewDecoder()))

	cr := csv.NewReader(r)
	cr.Comma = p.comma()
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("read csv header: %w", ErrNoData)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	headers := NormalizeHeaders(h, p.opt.HeaderMap)

	var out []records.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv row %d: %w", len(out)+1, err)
		}

		rec := make(records.Record, len(headers))
		for i, val := range row {
			if i >= len(headers) {
				break
			}
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[headers[i]] = val
		}
		out = append(out, rec)
	}

	if len(out) == 0 {
		return headers, nil, ErrNoData
	}
	return headers, out, nil
}

func (p *Parser) comma() rune {
	if p.opt.Comma != 0 {
		return p.opt.Comma
	}
	return DefaultComma
}

// headerFold cleans a raw header cell: NFC composition, NBSP and other
// space separators become ASCII spaces, control characters are removed.
var headerFold = transform.Chain(
	norm.NFC,
	runes.Map(func(r rune) rune {
		if unicode.Is(unicode.Zs, r) {
			return ' '
		}
		return r
	}),
	runes.Remove(runes.In(unicode.Cc)),
)

// NormalizeHeaders produces the lookup keys for a raw header row: folded,
// trimmed and lower-cased, then mapped through headerMap when it has an entry.
// Inner spaces are preserved because some historical exports name columns
// "case status" and the alias tables match that literally.
func NormalizeHeaders(h []string, headerMap map[string]string) []string {
	lower := cases.Lower(language.Und)
	res := make([]string, len(h))
	for i, col := range h {
		c, _, err := transform.String(headerFold, col)
		if err != nil {
			c = col
		}
		c = lower.String(strings.TrimSpace(c))
		if m, ok := headerMap[c]; ok {
			c = m
		}
		res[i] = c
	}
	return res
}
