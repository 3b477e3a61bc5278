// Package brdoc validates Brazilian identity documents and PIX payment keys.
package brdoc

import (
	"regexp"
	"strings"
)

var digitsOnly = regexp.MustCompile(`\D`)

func stripNonDigits(s string) string {
	return digitsOnly.ReplaceAllString(s, "")
}

// ValidCPF reports whether the value is a structurally valid CPF. Accepts
// formatted (000.000.000-00) or bare digit input.
func ValidCPF(value string) bool {
	cpf := stripNonDigits(value)
	if len(cpf) != 11 {
		return false
	}
	if allSame(cpf) {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(cpf[i]-'0') * (10 - i)
	}
	d1 := (sum * 10) % 11
	if d1 == 10 {
		d1 = 0
	}
	if d1 != int(cpf[9]-'0') {
		return false
	}
	sum = 0
	for i := 0; i < 10; i++ {
		sum += int(cpf[i]-'0') * (11 - i)
	}
	d2 := (sum * 10) % 11
	if d2 == 10 {
		d2 = 0
	}
	return d2 == int(cpf[10]-'0')
}

// ValidCNPJ reports whether the value is a structurally valid CNPJ.
func ValidCNPJ(value string) bool {
	cnpj := stripNonDigits(value)
	if len(cnpj) != 14 {
		return false
	}
	if allSame(cnpj) {
		return false
	}
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	if cnpjDigit(cnpj, w1) != int(cnpj[12]-'0') {
		return false
	}
	return cnpjDigit(cnpj, w2) == int(cnpj[13]-'0')
}

func cnpjDigit(cnpj string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(cnpj[i]-'0') * w
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	randomPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// ValidPixKey reports whether key is a valid PIX key of the given type.
// Supported types are cpf, cnpj, email, phone and random.
func ValidPixKey(keyType, key string) bool {
	switch keyType {
	case "cpf":
		return ValidCPF(key)
	case "cnpj":
		return ValidCNPJ(key)
	case "email":
		return emailPattern.MatchString(key)
	case "phone":
		digits := stripNonDigits(key)
		if strings.HasPrefix(digits, "55") && len(digits) >= 12 {
			digits = digits[2:]
		}
		return len(digits) == 10 || len(digits) == 11
	case "random":
		return randomPattern.MatchString(strings.ToLower(key))
	default:
		return false
	}
}
