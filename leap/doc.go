// Package leap rewrites compiled wordcode so that label and goto
// pseudo-statements become real jumps.
//
// A function marks a jump target with the attribute statement `label .name`
// and jumps to it with `goto .name`. Both compile to the same three
// instructions, a global load of the keyword, an attribute load of the name
// and a discard:
//
//	LOAD_GLOBAL  label
//	LOAD_ATTR    name
//	POP_TOP
//
// The compiler scans the decoded stream for these triples, builds a symbol
// table of labels, resolves every goto against it and then rewrites the
// stream. A goto's first instruction becomes JUMP_FORWARD (relative) when
// its label comes later in the stream and JUMP_ABSOLUTE otherwise; every
// other marker instruction becomes NOP. Jumps land on the first instruction
// after the label that is not itself part of a marker.
//
// All checks run before any instruction is modified, so a failed
// compilation leaves the input untouched. Instruction count and offsets
// never change, and a stream without markers is returned as is.
package leap
