package parser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExhausted is matched by *ExhaustedError.
	ErrExhausted = errors.New("all parse strategies failed")

	// ErrNoJSON is returned by a strategy that finds nothing to decode.
	ErrNoJSON = errors.New("no JSON value found")

	// ErrShapeMismatch is recorded when a strategy decodes a value that does
	// not have the expected shape.
	ErrShapeMismatch = errors.New("decoded value does not match expected shape")
)

// excerptLen is how many characters of each end of the input are kept in an
// ExhaustedError.
const excerptLen = 120

// Attempt records the failure of one strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// ExhaustedError is returned when no strategy produced a conforming value.
// It carries only a short excerpt of the input so it is safe to log.
type ExhaustedError struct {
	Attempts []Attempt
	Length   int
	Head     string
	Tail     string
}

func newExhaustedError(text string, attempts []Attempt) *ExhaustedError {
	e := &ExhaustedError{Attempts: attempts, Length: len(text)}
	runes := []rune(text)
	if len(runes) <= 2*excerptLen {
		e.Head = string(runes)
		return e
	}
	e.Head = string(runes[:excerptLen])
	e.Tail = string(runes[len(runes)-excerptLen:])
	return e
}

// Error implements error.
func (e *ExhaustedError) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.Strategy)
	}
	return fmt.Sprintf("%s (tried %s, input length %d)", ErrExhausted, strings.Join(names, ", "), e.Length)
}

// Is reports whether target is ErrExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Excerpt returns the head and tail of the input joined by an ellipsis.
func (e *ExhaustedError) Excerpt() string {
	if e.Tail == "" {
		return e.Head
	}
	return e.Head + " ... " + e.Tail
}
