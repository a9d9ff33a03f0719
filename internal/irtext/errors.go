package irtext

import "github.com/pkg/errors"

// Parsing failure kinds, named verbatim in 
var (
	ErrInvalidType   = errors.New("invalid_type")
	ErrInvalidOpcode = errors.New("invalid_opcode")
	ErrUnexpectedEof = errors.New("unexpected_eof")
	ErrArityMismatch = errors.New("arity_mismatch")
)
