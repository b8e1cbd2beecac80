package mem

// Fault is a simulated architectural fault returned by translation or
// instruction execution (spec.md §7: "Simulated fault... propagated to the
// CPU which re-enters its fault handler path; not an implementation
// error"). The core never constructs Faults itself — it only propagates
// whatever the Translator or the instruction decoder (both external
// collaborators per spec.md §1) returns.
type Fault interface {
	error
	IsFault() bool
}

// NoFault is the zero value meaning "translation/execution succeeded".
var NoFault Fault = nil

// GenericFault wraps a textual fault description when the CPU's
// instruction stream doesn't need a richer fault taxonomy than "something
// went wrong, re-enter the fault handler".
type GenericFault struct {
	Reason string
}

// Error satisfies the error interface.
func (f *GenericFault) Error() string { return f.Reason }

// IsFault always reports true for a non-nil GenericFault.
func (f *GenericFault) IsFault() bool { return f != nil }
