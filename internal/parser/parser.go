// Package parser reads wire text back into value trees and native Go values.
package parser

import (
	"bytes"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mcncl/goserial/internal/errors" // Custom errors package
	"github.com/mcncl/goserial/internal/value"
	"github.com/mcncl/goserial/internal/wire"
)

// MaxDepth bounds container nesting.
const MaxDepth = 10000

// Parser reads values from in-memory wire text using ordered alternatives:
// String, Number, Boolean, Null, Object, Array. Each failed alternative
// rewinds the cursor before the next one is tried.
//
// After every Parse the caller must check Failed before using the result.
// A failed parse returns a null Value and nothing of what was read so far.
type Parser struct {
	r     *wire.Reader
	depth int
}

// NewParser creates a Parser positioned at the start of data.
func NewParser(data []byte) *Parser {
	return &Parser{r: wire.NewReader(data)}
}

// Reader returns the underlying cursor.
func (p *Parser) Reader() *wire.Reader {
	return p.r
}

// Failed reports whether the last Parse failed.
func (p *Parser) Failed() bool {
	return p.r.Failed()
}

// Err describes the failure that got furthest into the input.
func (p *Parser) Err() error {
	return p.r.Err()
}

// Offset returns the current byte offset.
func (p *Parser) Offset() int {
	return p.r.Offset()
}

// Parse reads one value starting at the cursor, consuming only that prefix
// of the input.
func (p *Parser) Parse() value.Value {
	var v value.Value
	if p.r.Failed() {
		return v
	}
	p.parseValue(&v)
	return v
}

type alternative uint8

const (
	altString alternative = iota
	altNumber
	altBoolean
	altNull
	altObject
	altArray
)

func (a alternative) String() string {
	switch a {
	case altString:
		return "string"
	case altNumber:
		return "number"
	case altBoolean:
		return "boolean"
	case altNull:
		return "null"
	case altObject:
		return "object"
	case altArray:
		return "array"
	default:
		return "unknown"
	}
}

// alternatives is the fixed priority order.
var alternatives = [...]alternative{altString, altNumber, altBoolean, altNull, altObject, altArray}

// parseValue fills dst with the first alternative that succeeds. On failure
// dst is left null.
func (p *Parser) parseValue(dst *value.Value) bool {
	start := p.r.Mark()
	for _, alt := range alternatives {
		if p.try(alt, dst) && !p.r.Failed() {
			return true
		}
		p.r.Reset(start)
	}
	*dst = value.Value{}
	p.r.SkipSpace()
	p.r.Fail("value", "expected a value")
	return false
}

func (p *Parser) try(alt alternative, dst *value.Value) bool {
	switch alt {
	case altString:
		return p.parseString(dst)
	case altNumber:
		return p.parseNumber(dst)
	case altBoolean:
		return p.parseBoolean(dst)
	case altNull:
		return p.parseNull(dst)
	case altObject:
		return p.parseObject(dst)
	case altArray:
		return p.parseArray(dst)
	default:
		return false
	}
}

func (p *Parser) parseString(dst *value.Value) bool {
	s, ok := p.r.ReadString()
	if ok {
		*dst = value.String(s)
	}
	return ok
}

func (p *Parser) parseNumber(dst *value.Value) bool {
	f, ok := p.r.ReadNumber()
	if ok {
		*dst = value.Number(f)
	}
	return ok
}

func (p *Parser) parseBoolean(dst *value.Value) bool {
	mark := p.r.Mark()
	if p.r.Expect("true") {
		*dst = value.Bool(true)
		return true
	}
	p.r.Reset(mark)
	if p.r.Expect("false") {
		*dst = value.Bool(false)
		return true
	}
	return false
}

func (p *Parser) parseNull(dst *value.Value) bool {
	if p.r.Expect("null") {
		*dst = value.NullValue()
		return true
	}
	return false
}

func (p *Parser) parseObject(dst *value.Value) bool {
	*dst = value.Object()
	return p.elements('{', '}', "object", func() bool {
		key, ok := p.r.ReadString()
		if !ok || !p.r.Expect(":") {
			return false
		}
		return p.parseValue(dst.PutSlot(key))
	})
}

func (p *Parser) parseArray(dst *value.Value) bool {
	*dst = value.Array()
	return p.elements('[', ']', "array", func() bool {
		return p.parseValue(dst.AppendSlot())
	})
}

// elements reads open, zero or more comma separated elements, and close.
// each reads one element and reports success.
func (p *Parser) elements(open, close byte, production string, each func() bool) bool {
	if !p.r.Expect(string(open)) {
		return false
	}
	if p.depth >= MaxDepth {
		p.r.Fail(production, "nesting deeper than %d", MaxDepth)
		return false
	}
	p.depth++
	defer func() { p.depth-- }()

	if c, ok := p.r.Peek(); ok && c == close {
		return p.r.Expect(string(close))
	}
	for {
		if !each() {
			return false
		}
		c, ok := p.r.Peek()
		switch {
		case ok && c == ',':
			p.r.Expect(",")
		case ok && c == close:
			return p.r.Expect(string(close))
		default:
			p.r.Fail(production, "expected ',' or '%c'", close)
			return false
		}
	}
}

type settings struct {
	allowTrailing bool
}

// Option adjusts whole-input parsing.
type Option func(*settings)

// AllowTrailing accepts input that continues after the root value.
func AllowTrailing(allow bool) Option {
	return func(s *settings) {
		s.allowTrailing = allow
	}
}

func newSettings(opts []Option) settings {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// syntaxError converts the parser failure into an application error.
func syntaxError(err error) error {
	var se *wire.SyntaxError
	if stderrors.As(err, &se) {
		return errors.NewParsingError(
			fmt.Sprintf("JSON syntax error at offset %d", se.Offset),
			fmt.Errorf("%w: %w", errors.ErrInvalidJSON, se),
		)
	}
	return errors.NewParsingError("failed to parse input", fmt.Errorf("%w: %w", errors.ErrInvalidJSON, err))
}

func trailingError(offset int) error {
	return errors.NewParsingError(
		fmt.Sprintf("unexpected data at offset %d after the root value", offset),
		errors.ErrTrailingData,
	)
}

// ParseBytes parses data, which must hold exactly one value unless
// AllowTrailing is set.
func ParseBytes(data []byte, opts ...Option) (value.Value, error) {
	s := newSettings(opts)
	if len(bytes.TrimSpace(data)) == 0 {
		return value.Value{}, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}

	p := NewParser(data)
	v := p.Parse()
	if p.Failed() {
		return value.Value{}, syntaxError(p.Err())
	}
	if !s.allowTrailing && !p.r.AtEOF() {
		return value.Value{}, trailingError(p.Offset())
	}
	return v, nil
}

// Parse reads all of reader and parses it.
func Parse(reader io.Reader, opts ...Option) (value.Value, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return value.Value{}, errors.NewInputError("failed to read input", err)
	}
	return ParseBytes(data, opts...)
}

// ParseString parses JSON from a string
func ParseString(jsonString string, opts ...Option) (value.Value, error) {
	if strings.TrimSpace(jsonString) == "" {
		return value.Value{}, errors.NewInputError("input string is empty", errors.ErrEmptyInput)
	}
	return ParseBytes([]byte(jsonString), opts...)
}

// ParseFile parses JSON from a file path
func ParseFile(filePath string, opts ...Option) (value.Value, error) {
	if strings.TrimSpace(filePath) == "" {
		return value.Value{}, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return value.Value{}, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return value.Value{}, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("closing input file", "path", filePath, "error", err)
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		return value.Value{}, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		return value.Value{}, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}

	return Parse(file, opts...)
}
