// internal/lobby/code.go
package lobby

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// CodeAlphabet omits the easily confused 0/O and 1/I/L.
	CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	CodeLength   = 6
)

// CodeGenerator produces short human-shareable lobby codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// NanoidCodes draws codes from a cryptographically random source.
type NanoidCodes struct{}

func (NanoidCodes) Generate() (string, error) {
	return gonanoid.Generate(CodeAlphabet, CodeLength)
}
