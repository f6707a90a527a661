package korerr

import (
	"fmt"
	"strings"

	"github.com/cottand/kor/frontend/ir"
)

type NewTypeMismatch struct {
	ir.Positioner
	First  string
	Second string
	Reason string
	stack  []byte
}

func (e NewTypeMismatch) Error() string {
	msg := fmt.Sprintf("type mismatch: expected type '%s', but found a different type '%s'", e.First, e.Second)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
func (e NewTypeMismatch) Code() ErrCode    { return TypeMismatch }
func (e NewTypeMismatch) getStack() []byte { return e.stack }
func (e NewTypeMismatch) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewCaptureMismatch struct {
	ir.Positioner
	First  string
	Second string
	stack  []byte
}

func (e NewCaptureMismatch) Error() string {
	return fmt.Sprintf("capture mismatch: expected captures %s, but found %s", e.First, e.Second)
}
func (e NewCaptureMismatch) Code() ErrCode    { return CaptureMismatch }
func (e NewCaptureMismatch) getStack() []byte { return e.stack }
func (e NewCaptureMismatch) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewCaptureNotSubsumed struct {
	ir.Positioner
	Inferred  string
	Annotated string
	stack     []byte
}

func (e NewCaptureNotSubsumed) Error() string {
	return fmt.Sprintf("inferred captures %s are not covered by annotated captures %s", e.Inferred, e.Annotated)
}
func (e NewCaptureNotSubsumed) Code() ErrCode    { return CaptureNotSubsumed }
func (e NewCaptureNotSubsumed) getStack() []byte { return e.stack }
func (e NewCaptureNotSubsumed) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewWrongArity struct {
	ir.Positioner
	What     string // "value arguments", "block arguments", "type arguments", ...
	Expected int
	Got      int
	stack    []byte
}

func (e NewWrongArity) Error() string {
	return fmt.Sprintf("wrong number of %s: expected %d, got %d", e.What, e.Expected, e.Got)
}
func (e NewWrongArity) Code() ErrCode    { return WrongArity }
func (e NewWrongArity) getStack() []byte { return e.stack }
func (e NewWrongArity) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewUndefinedVariable struct {
	ir.Positioner
	Name  string
	stack []byte
}

func (e NewUndefinedVariable) Error() string {
	return fmt.Sprintf("variable '%s' is not defined", e.Name)
}
func (e NewUndefinedVariable) Code() ErrCode    { return UndefinedVariable }
func (e NewUndefinedVariable) getStack() []byte { return e.stack }
func (e NewUndefinedVariable) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewNotAFunction struct {
	ir.Positioner
	Found string
	stack []byte
}

func (e NewNotAFunction) Error() string {
	return fmt.Sprintf("expected a function but got '%s'", e.Found)
}
func (e NewNotAFunction) Code() ErrCode    { return NotAFunction }
func (e NewNotAFunction) getStack() []byte { return e.stack }
func (e NewNotAFunction) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewNotABlock struct {
	ir.Positioner
	Found string
	stack []byte
}

func (e NewNotABlock) Error() string {
	return fmt.Sprintf("expected a block but got '%s'", e.Found)
}
func (e NewNotABlock) Code() ErrCode    { return NotABlock }
func (e NewNotABlock) getStack() []byte { return e.stack }
func (e NewNotABlock) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewMissingOperations struct {
	ir.Positioner
	Interface string
	Ops       []string
	stack     []byte
}

func (e NewMissingOperations) Error() string {
	return fmt.Sprintf("Missing definitions for operations: %s of interface %s",
		strings.Join(e.Ops, ", "), e.Interface)
}
func (e NewMissingOperations) Code() ErrCode    { return MissingOperations }
func (e NewMissingOperations) getStack() []byte { return e.stack }
func (e NewMissingOperations) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewDuplicateOperations struct {
	ir.Positioner
	Ops   []string
	stack []byte
}

func (e NewDuplicateOperations) Error() string {
	return fmt.Sprintf("Duplicate definitions of operations: %s", strings.Join(e.Ops, ", "))
}
func (e NewDuplicateOperations) Code() ErrCode    { return DuplicateOperations }
func (e NewDuplicateOperations) getStack() []byte { return e.stack }
func (e NewDuplicateOperations) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewNonExhaustiveMatch struct {
	ir.Positioner
	Missing []string
	stack   []byte
}

func (e NewNonExhaustiveMatch) Error() string {
	return fmt.Sprintf("non-exhaustive match: missing cases %s", strings.Join(e.Missing, ", "))
}
func (e NewNonExhaustiveMatch) Code() ErrCode    { return NonExhaustiveMatch }
func (e NewNonExhaustiveMatch) getStack() []byte { return e.stack }
func (e NewNonExhaustiveMatch) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewCaptureEscape struct {
	ir.Positioner
	Capabilities []string
	Scope        string
	stack        []byte
}

func (e NewCaptureEscape) Error() string {
	return fmt.Sprintf("capability %s bound by %s escapes through the result type",
		strings.Join(e.Capabilities, ", "), e.Scope)
}
func (e NewCaptureEscape) Code() ErrCode    { return CaptureEscape }
func (e NewCaptureEscape) getStack() []byte { return e.stack }
func (e NewCaptureEscape) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewMissingRecursiveAnnotation struct {
	ir.Positioner
	Name  string
	stack []byte
}

func (e NewMissingRecursiveAnnotation) Error() string {
	return "(mutually) recursive functions need to have an annotated return type"
}
func (e NewMissingRecursiveAnnotation) Code() ErrCode    { return MissingRecursiveAnnotation }
func (e NewMissingRecursiveAnnotation) getStack() []byte { return e.stack }
func (e NewMissingRecursiveAnnotation) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewAssignToImmutable struct {
	ir.Positioner
	Name  string
	stack []byte
}

func (e NewAssignToImmutable) Error() string {
	return fmt.Sprintf("cannot assign to '%s': it is not a mutable binding", e.Name)
}
func (e NewAssignToImmutable) Code() ErrCode    { return AssignToImmutable }
func (e NewAssignToImmutable) getStack() []byte { return e.stack }
func (e NewAssignToImmutable) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}

type NewAutoBoxNonVariable struct {
	ir.Positioner
	stack []byte
}

func (e NewAutoBoxNonVariable) Error() string {
	return "automatic boxing is only supported for variables"
}
func (e NewAutoBoxNonVariable) Code() ErrCode    { return AutoBoxNonVariable }
func (e NewAutoBoxNonVariable) getStack() []byte { return e.stack }
func (e NewAutoBoxNonVariable) withStack(stack []byte) KorError {
	e.stack = stack
	return e
}
