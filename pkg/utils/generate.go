package utils

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
)

// ==================== OTP ====================

const (
	otpMin  = 1000
	otpSpan = 9000
)

// CodeGenerator produces one-time codes.
type CodeGenerator interface {
	Generate() (string, error)
}

type randomCode struct {
	src io.Reader
}

// NewCodeGenerator returns a generator of 4-digit codes drawn uniformly from 1000-9999.
func NewCodeGenerator() CodeGenerator {
	return &randomCode{src: rand.Reader}
}

func (g *randomCode) Generate() (string, error) {
	n, err := rand.Int(g.src, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}
