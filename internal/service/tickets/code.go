package tickets

import (
	"crypto/rand"
)

const (
	// CodeAlphabet leaves out I, O, 0 and 1, which read alike on paper.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 8
)

// RandomCode draws CodeLength symbols from CodeAlphabet. The alphabet has 32
// symbols, so reducing a random byte modulo 32 is unbiased.
func RandomCode() string {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		panic("tickets: crypto/rand failed: " + err.Error())
	}

	for i := range b {
		b[i] = CodeAlphabet[int(b[i])%len(CodeAlphabet)]
	}

	return string(b)
}
