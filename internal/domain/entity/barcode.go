package entity

import (
	"strings"
	"unicode"
)

// BarcodeLength — длина идентификатора платы на этикетке.
const BarcodeLength = 13

// ValidBarcode проверяет, что строка после обрезки пробелов состоит ровно из 13 цифр.
// Контрольная цифра не проверяется.
func ValidBarcode(payload string) bool {
	s := strings.TrimSpace(payload)
	if len(s) != BarcodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ExtractBarcode возвращает первый символ, прошедший проверку ValidBarcode.
// Второе значение false, если подходящего символа нет.
func ExtractBarcode(symbols []DecodedSymbol) (string, bool) {
	for _, s := range symbols {
		if ValidBarcode(s.Payload) {
			return strings.TrimSpace(s.Payload), true
		}
	}
	return "", false
}

// SanitizeBarcode убирает из ручного ввода все пробельные и невидимые символы
// (U+200B..U+200D, U+FEFF), которые часто приносит сканер или копипаст.
func SanitizeBarcode(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r >= '\u200b' && r <= '\u200d', r == '\ufeff':
			return -1
		}
		return r
	}, raw)
}
