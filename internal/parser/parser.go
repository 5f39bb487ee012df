// Package parser defines the contract between raw input streams and tables.
package parser

import (
	"io"

	"povclean/internal/table"
)

// Parser decodes r into a table and reports how many rows it had to skip.
type Parser interface {
	Parse(r io.Reader) (*table.Table, int, error)
}
