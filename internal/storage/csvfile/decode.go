package csvfile

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
)

type fieldState int

const (
	fieldStart fieldState = iota
	unquoted
	quoted
	afterQuote
)

// decoder reads RFC 4180 records.
// Bytes between quotes are kept as written, CR-LF pairs included; outside
// quotes both LF and CR-LF end a record. Blank lines are skipped.
type decoder struct {
	r         *bufio.Reader
	line      int
	startLine int
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{r: bufio.NewReader(r), line: 1}
}

// read returns the next non-blank record, or io.EOF
func (d *decoder) read() ([]string, error) {
	for {
		record, err := d.record()
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}
}

// record decodes one line. A blank line yields a nil record and no error.
func (d *decoder) record() ([]string, error) {
	d.startLine = d.line

	var (
		record []string
		field  strings.Builder
		state  = fieldStart
		column = 0
		read   = false
	)

	fail := func(err error) error {
		return &csv.ParseError{StartLine: d.startLine, Line: d.line, Column: column, Err: err}
	}
	endField := func() {
		record = append(record, field.String())
		field.Reset()
		state = fieldStart
	}

	for {
		c, err := d.r.ReadByte()
		if err == io.EOF {
			if !read {
				return nil, io.EOF
			}
			if state == quoted {
				return nil, fail(csv.ErrQuote)
			}
			endField()
			return record, nil
		}
		if err != nil {
			return nil, err
		}
		read = true
		column++

		if state == quoted {
			switch c {
			case '"':
				if next, err := d.r.Peek(1); err == nil && next[0] == '"' {
					d.r.ReadByte()
					column++
					field.WriteByte('"')
				} else {
					state = afterQuote
				}
			case '\n':
				d.line++
				column = 0
				field.WriteByte(c)
			default:
				field.WriteByte(c)
			}
			continue
		}

		if c == '\r' {
			if next, err := d.r.Peek(1); err == nil && next[0] == '\n' {
				d.r.ReadByte()
				c = '\n'
			}
		}

		switch c {
		case ',':
			endField()
		case '\n':
			d.line++
			if state == fieldStart && len(record) == 0 {
				return nil, nil
			}
			endField()
			return record, nil
		case '"':
			if state != fieldStart {
				if state == afterQuote {
					return nil, fail(csv.ErrQuote)
				}
				return nil, fail(csv.ErrBareQuote)
			}
			state = quoted
		default:
			if state == afterQuote {
				return nil, fail(csv.ErrQuote)
			}
			field.WriteByte(c)
			state = unquoted
		}
	}
}
