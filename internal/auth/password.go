package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"ecoindex/internal/core"
)

// Password length limits in bytes. The upper bound is bcrypt's input limit.
const (
	MinPasswordLen = 7
	MaxPasswordLen = 72
)

const saltBytes = 16

// Hasher hashes password+salt with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using cost, or bcrypt.DefaultCost when cost is
// out of range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// CheckPasswordLength rejects passwords outside the accepted range.
func CheckPasswordLength(password string) error {
	if n := len(password); n < MinPasswordLen || n > MaxPasswordLen {
		return core.NewValidationError("password", "must be between %d and %d bytes", MinPasswordLen, MaxPasswordLen)
	}
	return nil
}

// Hash returns a fresh salt and the bcrypt hash of password+salt.
func (h *Hasher) Hash(password string) (hash, salt string, err error) {
	if err := CheckPasswordLength(password); err != nil {
		return "", "", err
	}
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	salt = base64.RawStdEncoding.EncodeToString(raw)
	out, err := bcrypt.GenerateFromPassword(saltedInput(password, salt), h.cost)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), salt, nil
}

// Verify reports whether password matches hash under salt.
func (h *Hasher) Verify(password, salt, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), saltedInput(password, salt))
	return err == nil
}

// saltedInput concatenates password and salt, cut to bcrypt's 72 byte limit.
// This is the layout existing credential rows were written with. The cut
// only ever drops salt bytes, since passwords are at most 72 bytes: from a
// 50 byte password on, the stored salt contributes partly or not at all and
// bcrypt's own embedded salt is what keeps equal passwords apart.
func saltedInput(password, salt string) []byte {
	in := []byte(password + salt)
	if len(in) > MaxPasswordLen {
		in = in[:MaxPasswordLen]
	}
	return in
}
