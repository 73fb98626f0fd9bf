package amx

import "fmt"

// Code is a stable numeric run time error code reported by the machine.
type Code int32

// Stable error codes - do not change values.
const (
	CodeNone         Code = 0  // no error
	CodeExit         Code = 1  // forced exit
	CodeAssert       Code = 2  // assertion failed
	CodeBounds       Code = 3  // array index out of bounds
	CodeStack        Code = 4  // stack error
	CodeMemAccess    Code = 5  // invalid memory access
	CodeInvalidInstr Code = 6  // invalid instruction
	CodeStackLow     Code = 7  // stack underflow
	CodeHeapLow      Code = 8  // heap underflow
	CodeCallback     Code = 9  // no callback or invalid callback
	CodeNative       Code = 10 // native function failed
	CodeDivide       Code = 11 // divide by zero
	CodeSleep        Code = 12 // sleep, halted temporarily
	CodeInvalidState Code = 13 // invalid state for this access
)

var codeDescriptions = map[Code]string{
	CodeNone:         "(none)",
	CodeExit:         "forced exit",
	CodeAssert:       "assertion failed",
	CodeBounds:       "array index out of bounds",
	CodeStack:        "stack error",
	CodeMemAccess:    "invalid memory access",
	CodeInvalidInstr: "invalid instruction",
	CodeStackLow:     "stack underflow",
	CodeHeapLow:      "heap underflow",
	CodeCallback:     "no callback, or invalid callback",
	CodeNative:       "native function failed",
	CodeDivide:       "divide by zero",
	CodeSleep:        "sleep, halted temporarily",
	CodeInvalidState: "invalid state for this access",
}

// Description returns the human description for the code.
// Unknown codes render as "error <n>".
func (c Code) Description() string {
	if d, ok := codeDescriptions[c]; ok {
		return d
	}
	return fmt.Sprintf("error %d", int32(c))
}

// Error is a run time error raised while executing machine code.
type Error struct {
	Code Code
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("run time error %d: %q", int32(e.Code), e.Code.Description())
}

// ErrorCode extracts the run time error code from err.
// Returns CodeNone for nil and for errors that did not originate in the machine.
func ErrorCode(err error) Code {
	if err == nil {
		return CodeNone
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeNone
}

// errorBuilder constructs machine errors.
type errorBuilder struct{}

func (errorBuilder) raise(code Code) *Error {
	return &Error{Code: code}
}

func (eb errorBuilder) memAccess() *Error    { return eb.raise(CodeMemAccess) }
func (eb errorBuilder) stackError() *Error   { return eb.raise(CodeStack) }
func (eb errorBuilder) stackLow() *Error     { return eb.raise(CodeStackLow) }
func (eb errorBuilder) invalidInstr() *Error { return eb.raise(CodeInvalidInstr) }
func (eb errorBuilder) callback() *Error     { return eb.raise(CodeCallback) }
func (eb errorBuilder) native() *Error       { return eb.raise(CodeNative) }
func (eb errorBuilder) divide() *Error       { return eb.raise(CodeDivide) }
func (eb errorBuilder) index() *Error        { return eb.raise(CodeInvalidState) }
