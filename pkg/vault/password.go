package vault

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	lettersAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitsAlphabet  = "0123456789"
	specialAlphabet = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// PasswordPolicy controls GeneratePassword. The zero value is not
// meaningful; start from DefaultPasswordPolicy and adjust.
type PasswordPolicy struct {
	Length       int
	Numbers      bool   // allow digits
	Special      bool   // allow special characters
	SpecialSet   string // overrides the special alphabet when non-empty
	ForceNumber  bool   // require at least one digit
	ForceSpecial bool   // require at least one special character
	MaxAttempts  int
}

// DefaultPasswordPolicy matches the vault's password rules: twelve
// characters with at least one digit and one special character.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		Length:       12,
		Numbers:      true,
		Special:      true,
		ForceNumber:  true,
		ForceSpecial: true,
		MaxAttempts:  1000,
	}
}

// GeneratePassword draws a random password satisfying the policy.
// Candidates are resampled until one passes: the first character must
// not be a digit, and forced character classes must be present.
func GeneratePassword(p PasswordPolicy) (string, error) {
	if p.Length < 1 {
		return "", fmt.Errorf("password length must be at least 1")
	}
	if (p.ForceNumber && !p.Numbers) || (p.ForceSpecial && !p.Special) {
		return "", fmt.Errorf("cannot force character types that are not allowed")
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	special := specialAlphabet
	if p.SpecialSet != "" {
		special = p.SpecialSet
	}
	alphabet := lettersAlphabet
	if p.Numbers {
		alphabet += digitsAlphabet
	}
	if p.Special {
		alphabet += special
	}

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		pwd, err := randomString(alphabet, p.Length)
		if err != nil {
			return "", err
		}
		if strings.ContainsRune(digitsAlphabet, rune(pwd[0])) {
			continue
		}
		if p.Numbers && p.ForceNumber && !strings.ContainsAny(pwd, digitsAlphabet) {
			continue
		}
		if p.Special && p.ForceSpecial && !strings.ContainsAny(pwd, special) {
			continue
		}
		return pwd, nil
	}
	return "", fmt.Errorf("unable to generate a valid password after %d attempts", p.MaxAttempts)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}
