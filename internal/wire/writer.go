// Package wire provides the token-level reader and writer for the textual
// wire format. The formatter, the parser and override functions all speak
// through these two types.
package wire

import (
	"bufio"
	"io"
	"math"
	"strconv"
)

// Writer buffers output for an io.Writer and keeps the first write error.
// Once an error occurred every further write is dropped; Err and Flush
// return that error exactly as the sink reported it.
type Writer struct {
	buf     *bufio.Writer
	err     error
	scratch []byte
}

// NewWriter returns a Writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{buf: bufio.NewWriter(w)}
}

// Err returns the first error reported by the sink.
func (w *Writer) Err() error {
	return w.err
}

// Flush pushes buffered output to the sink.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.buf.Flush()
	return w.err
}

// WriteString writes s verbatim.
func (w *Writer) WriteString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.buf.WriteString(s)
}

// WriteRawByte writes a single byte verbatim.
func (w *Writer) WriteRawByte(c byte) {
	if w.err != nil {
		return
	}
	w.err = w.buf.WriteByte(c)
}

// WriteQuoted writes s as a double-quoted string literal.
func (w *Writer) WriteQuoted(s string) {
	if w.err != nil {
		return
	}
	w.scratch = AppendQuote(w.scratch[:0], s)
	_, w.err = w.buf.Write(w.scratch)
}

// WriteNumber writes f in canonical decimal form: no exponent and the
// shortest digit string that reads back to the same float64. NaN and the
// infinities have no decimal form and are written as null.
func (w *Writer) WriteNumber(f float64) {
	w.WriteFloat(f, 64)
}

// WriteFloat is WriteNumber for a value of the given bit size, so a float32
// is written with the shortest digits that read back to the same float32.
func (w *Writer) WriteFloat(f float64, bitSize int) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		w.WriteNull()
		return
	}
	w.scratch = strconv.AppendFloat(w.scratch[:0], f, 'f', -1, bitSize)
	if w.err == nil {
		_, w.err = w.buf.Write(w.scratch)
	}
}

// WriteInt writes a signed integer.
func (w *Writer) WriteInt(i int64) {
	w.scratch = strconv.AppendInt(w.scratch[:0], i, 10)
	if w.err == nil {
		_, w.err = w.buf.Write(w.scratch)
	}
}

// WriteUint writes an unsigned integer.
func (w *Writer) WriteUint(u uint64) {
	w.scratch = strconv.AppendUint(w.scratch[:0], u, 10)
	if w.err == nil {
		_, w.err = w.buf.Write(w.scratch)
	}
}

// WriteBool writes the literal true or false.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteString("true")
	} else {
		w.WriteString("false")
	}
}

// WriteNull writes the literal null.
func (w *Writer) WriteNull() {
	w.WriteString("null")
}
