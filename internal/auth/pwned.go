package auth

import "champ/core"

// commonPasswords stands in for the breached-password lookup the original
// node performs against a remote service; checking a local denylist keeps
// user and wallet creation usable without a network dependency.
var commonPasswords = map[string]struct{}{
	"password":  {},
	"123456":    {},
	"12345678":  {},
	"123456789": {},
	"qwerty":    {},
	"111111":    {},
	"letmein":   {},
	"admin":     {},
	"welcome":   {},
	"monkey":    {},
	"iloveyou":  {},
	"password1": {},
	"abc123":    {},
	"football":  {},
	"1234567":   {},
}

const minPasswordLength = 8

// CheckPasswordPolicy returns core.ErrPwned if password is too short or
// appears on the known-breached denylist.
func CheckPasswordPolicy(password string) error {
	if len(password) < minPasswordLength {
		return core.ErrPwned
	}
	if _, found := commonPasswords[password]; found {
		return core.ErrPwned
	}
	return nil
}
