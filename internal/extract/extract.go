package extract

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrToolNotFound = errors.New("pdftotext not found, install poppler-utils")
	ErrUnsupported  = errors.New("unsupported file type")
	ErrEmptyPath    = errors.New("file path is required")
)

type Result struct {
	Text      string
	PageCount int
}

type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

// Error is returned by every extractor. Permanent errors are not worth
// retrying since the input itself is unusable.
type Error struct {
	Op        string
	Path      string
	Err       error
	Permanent bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsPermanent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Permanent
	}
	return false
}

func permanent(op, path string, err error) error {
	return &Error{Op: op, Path: path, Err: err, Permanent: true}
}

func transient(op, path string, err error) error {
	return &Error{Op: op, Path: path, Err: err}
}
