package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// SignReceipt подписывает номер квитанции и сумму платежа HMAC-SHA256
func SignReceipt(receiptNumber string, amount float64, key []byte) string {
	h := hmac.New(sha256.New, key)
	fmt.Fprintf(h, "%s|%.2f", receiptNumber, amount)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyReceipt проверяет подпись квитанции
func VerifyReceipt(receiptNumber string, amount float64, signature string, key []byte) bool {
	expected, err := hex.DecodeString(SignReceipt(receiptNumber, amount, key))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// GenerateAccountNumber генерирует номер счета из digits цифр, первая не ноль
func GenerateAccountNumber(digits int) (string, error) {
	if digits <= 0 {
		return "", fmt.Errorf("invalid account number length: %d", digits)
	}

	buf := make([]byte, digits)
	for i := range buf {
		max := int64(10)
		if i == 0 {
			max = 9
		}
		n, err := rand.Int(rand.Reader, big.NewInt(max))
		if err != nil {
			return "", fmt.Errorf("failed to generate account number: %w", err)
		}
		d := byte(n.Int64())
		if i == 0 {
			d++
		}
		buf[i] = '0' + d
	}

	return string(buf), nil
}
