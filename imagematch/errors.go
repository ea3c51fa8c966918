package imagematch

import (
	"errors"
)

// Kind classifies why an image assertion failed.
type Kind int

const (
	KindMissingBaseline Kind = iota + 1
	KindToolNotFound
	KindToolOutputUnparseable
	KindImagesDiffer
	KindDangerousLinkFound
)

var (
	ErrMissingBaseline       = errors.New("expected screenshot missing")
	ErrToolNotFound          = errors.New("comparison command not found")
	ErrToolOutputUnparseable = errors.New("comparison output could not be parsed")
	ErrImagesDiffer          = errors.New("screenshots differ")
	ErrDangerousLinkFound    = errors.New("dangerous links found")

	ErrEmptyScreenshot = errors.New("screenshot buffer is empty")
)

var kindErrors = map[Kind]error{
	KindMissingBaseline:       ErrMissingBaseline,
	KindToolNotFound:          ErrToolNotFound,
	KindToolOutputUnparseable: ErrToolOutputUnparseable,
	KindImagesDiffer:          ErrImagesDiffer,
	KindDangerousLinkFound:    ErrDangerousLinkFound,
}

func (k Kind) String() string {
	if err, ok := kindErrors[k]; ok {
		return err.Error()
	}
	return "unknown"
}

// AssertionError is returned for every failed image assertion.
// Error() is the short message; Detail carries the full multi-line diagnostic for test logs.
type AssertionError struct {
	Kind       Kind
	Message    string
	Detail     string
	Diagnostic Diagnostic
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Unwrap lets callers match on kind with errors.Is, e.g. errors.Is(err, ErrImagesDiffer).
func (e *AssertionError) Unwrap() error {
	return kindErrors[e.Kind]
}

// KindOf returns the kind of an *AssertionError anywhere in err's chain, or 0.
func KindOf(err error) Kind {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
