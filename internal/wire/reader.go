package wire

import (
	"fmt"
	"strconv"
)

// SyntaxError describes where reading wire text failed.
type SyntaxError struct {
	Offset     int    // byte offset of the failure
	Production string // production being attempted, e.g. "object"
	Msg        string
}

func (e *SyntaxError) Error() string {
	if e.Production == "" {
		return fmt.Sprintf("%s at offset %d", e.Msg, e.Offset)
	}
	return fmt.Sprintf("%s: %s at offset %d", e.Production, e.Msg, e.Offset)
}

// Reader is a cursor over in-memory wire text with an explicit failure flag.
//
// Scanners consume input (including leading whitespace) only on success. A
// failed scanner leaves the cursor where it was and raises the failure flag;
// from then on every scanner is a no-op reporting false until Reset or Clear
// lowers the flag again. Callers must check Failed after each attempt before
// trusting what they read.
type Reader struct {
	data   []byte
	pos    int
	failed bool
	worst  *SyntaxError
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current byte offset.
func (r *Reader) Offset() int {
	return r.pos
}

// Failed reports whether the failure flag is raised.
func (r *Reader) Failed() bool {
	return r.failed
}

// Err returns the failure that got furthest into the input, or nil if no
// scanner ever failed. Among failures at the same offset the latest wins.
func (r *Reader) Err() error {
	if r.worst == nil {
		return nil
	}
	return r.worst
}

// Mark returns the current position for a later Reset.
func (r *Reader) Mark() int {
	return r.pos
}

// Reset rewinds to mark and clears the failure flag. The recorded error is
// kept for diagnostics.
func (r *Reader) Reset(mark int) {
	r.pos = mark
	r.failed = false
}

// Clear lowers the failure flag without moving the cursor.
func (r *Reader) Clear() {
	r.failed = false
}

// Fail raises the failure flag and records a SyntaxError at the current
// offset. Override parse functions call it to reject their input.
func (r *Reader) Fail(production, format string, args ...any) {
	r.failAt(r.pos, production, fmt.Sprintf(format, args...))
}

func (r *Reader) failAt(offset int, production, msg string) {
	r.failed = true
	if r.worst == nil || offset >= r.worst.Offset {
		r.worst = &SyntaxError{Offset: offset, Production: production, Msg: msg}
	}
}

// SkipSpace advances past insignificant whitespace.
func (r *Reader) SkipSpace() {
	if r.failed {
		return
	}
	for r.pos < len(r.data) {
		switch r.data[r.pos] {
		case ' ', '\t', '\n', '\r':
			r.pos++
		default:
			return
		}
	}
}

// Peek skips whitespace and returns the next byte without consuming it.
func (r *Reader) Peek() (byte, bool) {
	r.SkipSpace()
	if r.failed || r.pos >= len(r.data) {
		return 0, false
	}
	return r.data[r.pos], true
}

// AtEOF skips whitespace and reports whether the input is exhausted.
func (r *Reader) AtEOF() bool {
	r.SkipSpace()
	return r.pos >= len(r.data)
}

// Expect skips whitespace and consumes lit if the input continues with it.
func (r *Reader) Expect(lit string) bool {
	mark := r.pos
	r.SkipSpace()
	if r.failed {
		return false
	}
	if len(r.data)-r.pos < len(lit) || string(r.data[r.pos:r.pos+len(lit)]) != lit {
		r.failAt(r.pos, "", fmt.Sprintf("expected %q", lit))
		r.pos = mark
		return false
	}
	r.pos += len(lit)
	return true
}

// ReadString skips whitespace and reads a quoted string literal, resolving
// escape sequences.
func (r *Reader) ReadString() (string, bool) {
	mark := r.pos
	r.SkipSpace()
	if r.failed {
		return "", false
	}
	if r.pos >= len(r.data) || r.data[r.pos] != '"' {
		r.failAt(r.pos, "string", "expected opening quote")
		r.pos = mark
		return "", false
	}
	s, n, err := unquote(r.data[r.pos:])
	if err != nil {
		r.failAt(r.pos+n, "string", err.Error())
		r.pos = mark
		return "", false
	}
	r.pos += n
	return s, true
}

// ReadNumberLiteral skips whitespace and reads the text of a number:
// an optional minus sign, digits, an optional fraction and an optional
// exponent.
func (r *Reader) ReadNumberLiteral() (string, bool) {
	mark := r.pos
	r.SkipSpace()
	if r.failed {
		return "", false
	}
	start := r.pos
	fail := func(offset int, msg string) (string, bool) {
		r.failAt(offset, "number", msg)
		r.pos = mark
		return "", false
	}
	i := start
	if i < len(r.data) && r.data[i] == '-' {
		i++
	}
	digits := countDigits(r.data[i:])
	if digits == 0 {
		return fail(start, "expected digit")
	}
	i += digits
	if i < len(r.data) && r.data[i] == '.' {
		frac := countDigits(r.data[i+1:])
		if frac == 0 {
			return fail(i+1, "expected digit after decimal point")
		}
		i += 1 + frac
	}
	if i < len(r.data) && (r.data[i] == 'e' || r.data[i] == 'E') {
		j := i + 1
		if j < len(r.data) && (r.data[j] == '+' || r.data[j] == '-') {
			j++
		}
		exp := countDigits(r.data[j:])
		if exp == 0 {
			return fail(j, "expected digit in exponent")
		}
		i = j + exp
	}
	r.pos = i
	return string(r.data[start:i]), true
}

// ReadNumber reads a number literal and converts it to float64.
func (r *Reader) ReadNumber() (float64, bool) {
	mark := r.pos
	lit, ok := r.ReadNumberLiteral()
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		r.failAt(r.pos-len(lit), "number", fmt.Sprintf("%q is out of range", lit))
		r.pos = mark
		return 0, false
	}
	return f, true
}

func countDigits(b []byte) int {
	n := 0
	for n < len(b) && b[n] >= '0' && b[n] <= '9' {
		n++
	}
	return n
}
