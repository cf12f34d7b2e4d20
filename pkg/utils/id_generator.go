package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// AccountNumberGenerator produces human-readable account numbers: 16 random
// digits grouped in fours, e.g. 1234-5678-9012-3456. Uniqueness is enforced
// by the account store, not here.
type AccountNumberGenerator struct{}

func NewAccountNumberGenerator() *AccountNumberGenerator {
	return &AccountNumberGenerator{}
}

func (g *AccountNumberGenerator) Generate() (string, error) {
	groups := make([]string, 4)
	for i := range groups {
		n, err := rand.Int(rand.Reader, big.NewInt(10000))
		if err != nil {
			return "", fmt.Errorf("failed to generate account number: %w", err)
		}
		groups[i] = fmt.Sprintf("%04d", n.Int64())
	}
	return strings.Join(groups, "-"), nil
}
