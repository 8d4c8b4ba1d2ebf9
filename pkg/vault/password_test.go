package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePasswordDefaults(t *testing.T) {
	for range 50 {
		pwd, err := GeneratePassword(DefaultPasswordPolicy())
		require.NoError(t, err)
		assert.Len(t, pwd, 12)
		assert.NotContains(t, digitsAlphabet, string(pwd[0]), "first character must not be a digit")
		assert.True(t, strings.ContainsAny(pwd, digitsAlphabet), "expected a digit in %q", pwd)
		assert.True(t, strings.ContainsAny(pwd, specialAlphabet), "expected a special character in %q", pwd)
	}
}

func TestGeneratePasswordLettersOnly(t *testing.T) {
	p := DefaultPasswordPolicy()
	p.Numbers = false
	p.Special = false
	p.ForceNumber = false
	p.ForceSpecial = false
	p.Length = 30

	pwd, err := GeneratePassword(p)
	require.NoError(t, err)
	assert.Len(t, pwd, 30)
	assert.False(t, strings.ContainsAny(pwd, digitsAlphabet))
	assert.False(t, strings.ContainsAny(pwd, specialAlphabet))
}

func TestGeneratePasswordSpecialSetOverride(t *testing.T) {
	p := DefaultPasswordPolicy()
	p.SpecialSet = "#"
	p.Length = 16

	pwd, err := GeneratePassword(p)
	require.NoError(t, err)
	assert.Contains(t, pwd, "#")
	for _, r := range pwd {
		assert.True(t, strings.ContainsRune(lettersAlphabet+digitsAlphabet+"#", r),
			"unexpected character %q in %q", r, pwd)
	}
}

func TestGeneratePasswordInvalidPolicies(t *testing.T) {
	tests := []struct {
		name   string
		adjust func(*PasswordPolicy)
		errMsg string
	}{
		{
			name:   "zero length",
			adjust: func(p *PasswordPolicy) { p.Length = 0 },
			errMsg: "length must be at least 1",
		},
		{
			name:   "force digits while disallowed",
			adjust: func(p *PasswordPolicy) { p.Numbers = false },
			errMsg: "cannot force character types",
		},
		{
			name:   "force specials while disallowed",
			adjust: func(p *PasswordPolicy) { p.Special = false },
			errMsg: "cannot force character types",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPasswordPolicy()
			tt.adjust(&p)
			_, err := GeneratePassword(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
