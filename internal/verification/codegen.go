package verification

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// CodeSpace is the number of distinct codes: 000000 through 999999.
const CodeSpace = 1_000_000

var codeSpace = big.NewInt(CodeSpace)

// Generator draws codes uniformly from [0, CodeSpace).
type Generator struct {
	rand io.Reader
}

// NewGenerator reads from crypto/rand.
func NewGenerator() *Generator { return &Generator{rand: rand.Reader} }

func (g *Generator) Generate() (int, error) {
	n, err := rand.Int(g.rand, codeSpace)
	if err != nil {
		return 0, fmt.Errorf("generate code: %w", err)
	}
	return int(n.Int64()), nil
}

// Format renders a code as six digits, keeping leading zeros.
func Format(code int) string {
	return fmt.Sprintf("%06d", code)
}
