package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckUsername(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		valid bool
	}{
		{"letters and digits", "vald1", true},
		{"dots and underscores", "v.ald_1", true},
		{"min length", "abc", true},
		{"max length", "abcdefgh", true},
		{"too short", "ab", false},
		{"too long", "abcdefghi", false},
		{"dash", "ab-cd", false},
		{"space", "ab cd", false},
		{"unicode", "jösé", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := CheckUsername(tt.in)
			assert.Equal(t, tt.valid, msgs == nil, "messages: %v", msgs)
			assert.Equal(t, tt.valid, IsValidUsername(tt.in))
		})
	}
}

func TestCheckEmail(t *testing.T) {
	assert.Nil(t, CheckEmail("a@b.com"))
	assert.NotNil(t, CheckEmail(""))
	assert.NotNil(t, CheckEmail("not-an-email"))
	assert.NotNil(t, CheckEmail("a@"))
}

func TestCheckPassword(t *testing.T) {
	assert.Nil(t, CheckPassword("Str0ngPw!", "vald1", "a@b.com"))

	assert.Contains(t, CheckPassword("short1!", "", ""), "This password is too short. It must contain at least 8 characters.")
	assert.Contains(t, CheckPassword("1234567890", "", ""), "This password is entirely numeric.")
	assert.Contains(t, CheckPassword("Password", "", ""), "This password is too common.")
	assert.Contains(t, CheckPassword("vald1234", "vald1", ""), "The password is too similar to the username.")
	assert.Contains(t, CheckPassword("Dragon123", "", ""), "This password is too common.")
	assert.Contains(t, CheckPassword("johnsmith!", "", "johnsmith@example.com"), "The password is too similar to the email address.")
	assert.Contains(t, CheckPassword(string(make([]byte, 73)), "", ""), "This password is too long. It must contain at most 72 bytes.")
	assert.Equal(t, []string{"This field is required."}, CheckPassword("", "", ""))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.com "))
	assert.Equal(t, "vald1", NormalizeUsername("VALD1"))
}

func TestCheckPassword_Similarity(t *testing.T) {
	tests := []struct {
		name     string
		password string
		username string
		email    string
		rejected bool
	}{
		{"short username inside a passphrase", "Channel-Blue-42", "ann", "", false},
		{"short username as a substring", "custom-phrase-99", "tom", "", false},
		{"username with digits appended", "alice2024", "alice", "", true},
		{"upper-cased username", "ALICE123", "alice", "", true},
		{"email word part", "lopez123", "", "maria.lopez@example.com", true},
		{"email domain word", "examplecom", "", "x@example.com", true},
		{"unrelated to email", "battery-staple-7", "", "alice@example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := CheckPassword(tt.password, tt.username, tt.email)
			assert.Equal(t, tt.rejected, len(msgs) > 0, "messages: %v", msgs)
		})
	}
}

func TestQuickRatio(t *testing.T) {
	assert.InDelta(t, 1.0, quickRatio([]rune("abc"), []rune("cba")), 1e-9)
	assert.InDelta(t, 0.0, quickRatio([]rune("abc"), []rune("xyz")), 1e-9)
	assert.InDelta(t, 0.5, quickRatio([]rune("ab"), []rune("bc")), 1e-9)
}

func TestCommonPasswordsEmbedded(t *testing.T) {
	assert.Greater(t, len(commonPasswords), 500)
	for _, pw := range []string{"password", "qwerty123", "iloveyou", "trustno1"} {
		assert.Contains(t, commonPasswords, pw)
	}
}
