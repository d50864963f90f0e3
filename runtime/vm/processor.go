// Package vm exposes the virtual machine collaborator that process programs
// receive on every step. The kernel treats it as an opaque capability: it
// has addressable variable slots and supports side-effecting print
// operations.
package vm

// Processor is the capability passed into Process.Step.
type Processor interface {
	// Var returns the value of a variable slot.
	Var(slot int) uint32
	// SetVar writes a variable slot.
	SetVar(slot int, value uint32)
	// Load copies a variable slot into the working register.
	Load(slot int) error
	// Store copies the working register into a variable slot.
	Store(slot int) error
	// PrintNumber prints the working register as a decimal number.
	PrintNumber() error
	// PrintString prints the string packed from the loaded slot onward.
	PrintString() error
	// Print emits text verbatim followed by a newline.
	Print(text string) error
}
