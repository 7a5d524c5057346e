package parser

import (
	"io"

	"h1b/pkg/records"
)

// Parser turns a delimited byte stream into the header list and the records
// keyed by those headers.
type Parser interface {
	Parse(r io.Reader) ([]string, []records.Record, error)
}
