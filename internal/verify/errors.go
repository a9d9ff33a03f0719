// Package verify implements the Verifier: a single read-only walk of
// a Function's layout that checks the SSA invariants.
package verify

import (
	"fmt"

	"github.com/joelreymont/hoist-sub004/internal/ir"
)

// Kind enumerates the verification error taxonomy.
type Kind uint8

const (
	DanglingUse Kind = iota
	TypeMismatch
	UnterminatedBlock
	BadTerminator
	ArityMismatch
	UndefinedValue
	DuplicateDefinition
	BadReturn
)

var kindNames = [...]string{
	"dangling_use", "type_mismatch", "unterminated_block", "bad_terminator",
	"arity_mismatch", "undefined_value", "duplicate_definition", "bad_return",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown_verify_error"
}

// Error is the typed error the Verifier returns: a Kind plus the
// offending site, named by whichever entity ids are relevant.
type Error struct {
	Kind    Kind
	Message string
	Block   ir.Block
	Inst    ir.Inst
	Value   ir.Value
}

func (e *Error) Error() string {
	return fmt.Sprintf("verify: %s: %s (block=%d inst=%d value=%d)", e.Kind, e.Message, e.Block, e.Inst, e.Value)
}

func errf(kind Kind, block ir.Block, inst ir.Inst, value ir.Value, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Block: block, Inst: inst, Value: value}
}
