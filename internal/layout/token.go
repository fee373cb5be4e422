/**
 * Layout reconstruction for tabular Tesseract output
 *
 * Rebuilds lines and words from the engine's per-token bounding boxes:
 * - Token parsing from 12-column TSV records
 * - Line clustering by vertical proximity
 * - Word assembly by horizontal proximity
 */

package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Column layout of Tesseract's TSV output
const (
	colLevel = iota
	colPage
	colBlock
	colParagraph
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConfidence
	colText

	recordFields = 12
)

// headerText is the text column value of the TSV header row
const headerText = "text"

// Rejection reasons returned by ParseRecord
var (
	ErrFieldCount        = errors.New("record does not have 12 fields")
	ErrEmptyText         = errors.New("record text is empty")
	ErrHeaderRow         = errors.New("record is the header row")
	ErrNonPositiveOrigin = errors.New("record left/top is not positive")
)

// Token is one recognized text fragment with its bounding box
type Token struct {
	Text string
	X    int
	Y    int
	W    int
	H    int
}

// RecordError reports a numeric column that could not be parsed
type RecordError struct {
	Column string
	Value  string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("invalid %s value %q: %v", e.Column, e.Value, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// ParseRecord converts one TSV record into a Token or returns the reason it was rejected
func ParseRecord(record string) (Token, error) {
	fields := strings.Split(record, "\t")
	if len(fields) != recordFields {
		return Token{}, ErrFieldCount
	}

	text := fields[colText]
	if strings.TrimSpace(text) == "" {
		return Token{}, ErrEmptyText
	}
	if text == headerText {
		return Token{}, ErrHeaderRow
	}

	var tok Token
	tok.Text = text

	numeric := []struct {
		name string
		col  int
		dst  *int
	}{
		{"left", colLeft, &tok.X},
		{"top", colTop, &tok.Y},
		{"width", colWidth, &tok.W},
		{"height", colHeight, &tok.H},
	}
	for _, n := range numeric {
		v, err := strconv.Atoi(fields[n.col])
		if err != nil {
			return Token{}, &RecordError{Column: n.name, Value: fields[n.col], Err: err}
		}
		*n.dst = v
	}

	if tok.X <= 0 || tok.Y <= 0 {
		return Token{}, ErrNonPositiveOrigin
	}

	return tok, nil
}
