package services

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLen = 8
	symbols        = "!@#$%&*"
	upperLetters   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerLetters   = "abcdefghijklmnopqrstuvwxyz"
	digits         = "0123456789"
)

// GenerateSecurePassword returns a password of length n (at least
// MinPasswordLen) with at least one uppercase, one lowercase, one digit and
// one symbol. Do not log the returned string.
func GenerateSecurePassword(n int) (string, error) {
	if n < MinPasswordLen {
		n = MinPasswordLen
	}
	pick := func(s string) (byte, error) {
		i, err := rand.Int(rand.Reader, big.NewInt(int64(len(s))))
		if err != nil {
			return 0, err
		}
		return s[i.Int64()], nil
	}

	result := make([]byte, n)
	all := upperLetters + lowerLetters + digits + symbols
	for i := range result {
		set := all
		switch i {
		case 0:
			set = upperLetters
		case 1:
			set = lowerLetters
		case 2:
			set = digits
		case 3:
			set = symbols
		}
		b, err := pick(set)
		if err != nil {
			return "", err
		}
		result[i] = b
	}

	// Fisher-Yates with crypto/rand so the required classes are not always first
	for i := n - 1; i >= 1; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("shuffle: %w", err)
		}
		k := int(j.Int64())
		result[i], result[k] = result[k], result[i]
	}
	return string(result), nil
}

// HashPassword returns the bcrypt hash stored in the tenant table.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
