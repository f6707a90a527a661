package korerr

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/cottand/kor/frontend/ir"
)

// enableDebugErrorPrinting makes errors include their stacktrace when printed
const enableDebugErrorPrinting bool = true
const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	TypeMismatch
	CaptureMismatch
	WrongArity
	UndefinedVariable
	NotAFunction
	NotABlock
	MissingOperations
	DuplicateOperations
	NonExhaustiveMatch
	CaptureEscape
	MissingRecursiveAnnotation
	AutoBoxNonVariable
	CaptureNotSubsumed
	AssignToImmutable
)

type KorError interface {
	Error() string
	Code() ErrCode
	ir.Positioner

	withStack([]byte) KorError
	getStack() []byte
}

func FormatWithCode(e KorError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			lines := strings.Split(stack, "\n")
			if len(lines) > 6 {
				stack = strings.TrimSpace(lines[6])
			}
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

func New[E KorError](err E) KorError {
	return err.withStack(debug.Stack())
}

// Errors accumulates reported user errors for one checker run.
type Errors struct {
	errs []KorError
}

func (r *Errors) With(err ...KorError) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Merge(other *Errors) *Errors {
	if r == nil {
		return other
	}
	if other == nil || len(other.errs) == 0 {
		return r
	}
	return r.With(other.errs...)
}

func (r *Errors) Errors() []KorError {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}
