package render

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentOpen means the file is missing or is not a readable PDF.
	ErrDocumentOpen = errors.New("document open failed")
	// ErrPageIndex means the requested page does not exist in the document.
	ErrPageIndex = errors.New("page index out of range")
)

// Error carries the document and page a render failure refers to.
type Error struct {
	Kind error
	Path string
	Page int
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render %s page %d: %v: %v", e.Path, e.Page, e.Kind, e.Err)
	}
	return fmt.Sprintf("render %s page %d: %v", e.Path, e.Page, e.Kind)
}

// Is matches the error kind so callers can use errors.Is(err, ErrPageIndex).
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
