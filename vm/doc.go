// Package vm implements the wordcode virtual machine that leap rewrites.
//
// This package contains:
//   - The instruction set (two bytes per instruction: opcode, argument)
//   - Code objects and functions
//   - Instruction decoding, disassembly and structural verification
//   - A stack-based interpreter with a few builtins
//   - CBOR-encoded code images
package vm
