package ir

// Function owns a Signature, a DFG and a Layout. Signature
// ownership transfers to the Function at construction; there is
// nothing further to tear down explicitly (Go's GC reclaims the
// arenas once the Function is unreachable — destruction is bottom-up,
// meaning callers stop holding it after its dependents).
type Function struct {
	Name      string
	Signature Signature

	DFG    *DFG
	Layout *Layout
}

// NewFunction constructs an empty Function with the given name and
// signature, an empty DFG and an empty Layout.
func NewFunction(name string, sig Signature) *Function {
	return &Function{
		Name:      name,
		Signature: sig,
		DFG:       NewDFG(),
		Layout:    NewLayout(),
	}
}
