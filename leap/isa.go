package leap

import "github.com/chazu/leap/vm"

// Reserved global names that introduce a marker.
const (
	LabelKeyword = "label"
	GotoKeyword  = "goto"
)

// MarkerLength is the number of instructions in a marker.
const MarkerLength = 3

// ISA names the parts of the host instruction set the rewriter depends on.
type ISA struct {
	NameLoad     vm.Opcode // loads a global by name; starts a marker
	Nop          vm.Opcode
	JumpForward  vm.Opcode // relative to the next instruction
	JumpAbsolute vm.Opcode

	// Width is the encoded size of a jump instruction in bytes. Forward
	// displacements are measured from the end of the jump.
	Width int

	// MaxArg is the largest encodable argument.
	MaxArg int
}

// DefaultISA returns the opcodes of the wordcode VM.
func DefaultISA() ISA {
	return ISA{
		NameLoad:     vm.OpLoadGlobal,
		Nop:          vm.OpNOP,
		JumpForward:  vm.OpJumpForward,
		JumpAbsolute: vm.OpJumpAbsolute,
		Width:        vm.InstructionWidth,
		MaxArg:       vm.MaxArg,
	}
}
