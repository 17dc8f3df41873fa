// Provide error wrapper knowing where it is created.
//
// Usage:
//
//	wrapped := xerrors.Wrap(err)
//
// returns a new error object wrapping `err`.
//
// `wrapped` knows the filename, line, and function name where it was created.
// Reading the message, each `<-` separates one wrapping site, so chained
// wraps give a "stack" of the places you marked.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

type ErrWithCaller struct {
	file     string
	line     int
	funcname string
	note     string
	err      error
}

func (e *ErrWithCaller) File() string {
	return e.file
}

func (e *ErrWithCaller) Line() int {
	return e.line
}

func (e *ErrWithCaller) Error() string {
	if e.note == "" {
		return fmt.Sprintf(`@ %s "%s" l%d <- %s`, e.funcname, e.file, e.line, e.err.Error())
	}
	return fmt.Sprintf(`@ %s "%s" l%d (%s) <- %s`, e.funcname, e.file, e.line, e.note, e.err.Error())
}

func (e *ErrWithCaller) Unwrap() error {
	return e.err
}

func New(text string) error {
	return wrap("", errors.New(text), 1)
}

func Errorf(format string, args ...any) error {
	return wrap("", fmt.Errorf(format, args...), 1)
}

func Wrap(err error) error {
	return wrap("", err, 1)
}

// WithNote wraps err with an extra free-text note.
func WithNote(err error, note string) error {
	return wrap(note, err, 1)
}

func wrap(note string, err error, depth int) error {
	pc, file, line, ok := runtime.Caller(depth + 1)
	funcname := "(unknown)"
	if ok {
		if f := runtime.FuncForPC(pc); f != nil {
			funcname = f.Name()
		}
	} else {
		file = "(unknown)"
		line = -1
	}

	return &ErrWithCaller{
		file:     file,
		line:     line,
		funcname: funcname,
		note:     note,
		err:      err,
	}
}
