package user

import (
	_ "embed"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	UsernameMinLen   = 3
	UsernameMaxLen   = 8
	PasswordMinLen   = 8
	PasswordMaxBytes = 72 // bcrypt ignores anything longer
	EmailMaxLen      = 254
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)
	validate        = validator.New()
)

//go:embed common_passwords.txt
var commonPasswordList string

// commonPasswords holds the lower-cased deny-list, one password per line.
var commonPasswords = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(commonPasswordList, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			set[strings.ToLower(line)] = struct{}{}
		}
	}
	return set
}()

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IsValidUsername reports whether s satisfies the username charset and length rules.
func IsValidUsername(s string) bool {
	return len(s) >= UsernameMinLen && len(s) <= UsernameMaxLen && usernamePattern.MatchString(s)
}

// CheckEmail returns client-facing messages for a malformed email, or nil.
func CheckEmail(email string) []string {
	if email == "" {
		return []string{"This field is required."}
	}
	if err := validate.Var(email, "email"); err != nil || len(email) > EmailMaxLen {
		return []string{"Enter a valid email address."}
	}
	return nil
}

// CheckUsername returns client-facing messages for a malformed username, or nil.
func CheckUsername(username string) []string {
	if username == "" {
		return []string{"This field is required."}
	}
	var msgs []string
	if !usernamePattern.MatchString(username) {
		msgs = append(msgs, "Only letters, numbers, underscores, and dots are allowed.")
	}
	if len(username) < UsernameMinLen || len(username) > UsernameMaxLen {
		msgs = append(msgs, "Username must be between 3 to 8 characters long.")
	}
	return msgs
}

// CheckPassword applies the password policy. username and email feed the
// similarity rule and may be empty.
func CheckPassword(password, username, email string) []string {
	if password == "" {
		return []string{"This field is required."}
	}
	var msgs []string
	if len([]rune(password)) < PasswordMinLen {
		msgs = append(msgs, "This password is too short. It must contain at least 8 characters.")
	}
	if len(password) > PasswordMaxBytes {
		msgs = append(msgs, "This password is too long. It must contain at most 72 bytes.")
	}
	lower := strings.ToLower(password)
	if _, ok := commonPasswords[strings.TrimSpace(lower)]; ok {
		msgs = append(msgs, "This password is too common.")
	}
	if isNumeric(password) {
		msgs = append(msgs, "This password is entirely numeric.")
	}
	if similar(lower, strings.ToLower(username)) {
		msgs = append(msgs, "The password is too similar to the username.")
	} else if similar(lower, strings.ToLower(email)) {
		msgs = append(msgs, "The password is too similar to the email address.")
	}
	return msgs
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// maxSimilarity is the quick ratio at or above which a password counts as a
// copy of a user attribute.
const maxSimilarity = 0.7

var nonWord = regexp.MustCompile(`\W+`)

// similar compares password with attr as a whole and with each of its word
// parts. Parts far shorter than the password are skipped.
func similar(password, attr string) bool {
	if attr == "" {
		return false
	}
	pw := []rune(password)
	for _, part := range append(nonWord.Split(attr, -1), attr) {
		p := []rune(part)
		if len(p) == 0 || tooShortToCompare(len(pw), len(p)) {
			continue
		}
		if quickRatio(pw, p) >= maxSimilarity {
			return true
		}
	}
	return false
}

func tooShortToCompare(pwLen, attrLen int) bool {
	return pwLen >= 10*attrLen && float64(attrLen) < maxSimilarity/2*float64(pwLen)
}

// quickRatio is 2*M/T where M counts the characters the two strings share,
// with multiplicity, and T is their combined length.
func quickRatio(a, b []rune) float64 {
	avail := make(map[rune]int, len(b))
	for _, r := range b {
		avail[r]++
	}
	matches := 0
	for _, r := range a {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(len(a)+len(b))
}
