package domain

import (
	"errors"
	"strings"
	"time"
)

// Customer code parameters: four lower-case letters, base 26.
const (
	CustomerCodeAlphabet = "abcdefghijklmnopqrstuvwxyz"
	CustomerCodeLength   = 4
	MaxCustomerCodes     = 26 * 26 * 26 * 26
)

var (
	ErrInvalidCustomerCode   = errors.New("customer code must be 4 letters a-z")
	ErrCustomerCodeExhausted = errors.New("customer code space exhausted")
)

// Customer is a repair shop client.
type Customer struct {
	ID        int64
	Code      string
	Name      string
	Email     *string
	Phone     *string
	Address   *string
	CreatedAt time.Time
}

// EncodeCustomerCode renders a 0-indexed rank, most significant digit first.
func EncodeCustomerCode(rank int) (string, error) {
	if rank < 0 || rank >= MaxCustomerCodes {
		return "", ErrCustomerCodeExhausted
	}
	base := len(CustomerCodeAlphabet)
	buf := make([]byte, CustomerCodeLength)
	for i := CustomerCodeLength - 1; i >= 0; i-- {
		buf[i] = CustomerCodeAlphabet[rank%base]
		rank /= base
	}
	return string(buf), nil
}

// DecodeCustomerCode returns the rank of a code. Input is case-folded.
func DecodeCustomerCode(code string) (int, error) {
	normalized := NormalizeCustomerCode(code)
	if len(normalized) != CustomerCodeLength {
		return 0, ErrInvalidCustomerCode
	}
	value := 0
	for _, ch := range normalized {
		if ch < 'a' || ch > 'z' {
			return 0, ErrInvalidCustomerCode
		}
		value = value*len(CustomerCodeAlphabet) + int(ch-'a')
	}
	return value, nil
}

// NormalizeCustomerCode trims and lower-cases a code.
func NormalizeCustomerCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// NextCustomerCode returns the successor of the highest assigned code, or "aaaa" when none exists.
func NextCustomerCode(highest string) (string, error) {
	if strings.TrimSpace(highest) == "" {
		return EncodeCustomerCode(0)
	}
	rank, err := DecodeCustomerCode(highest)
	if err != nil {
		return "", err
	}
	return EncodeCustomerCode(rank + 1)
}
