package utils

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const refAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateTransactionRef returns a provider-safe payment reference such as BK-7Q2M9XK4ZP1A.
func GenerateTransactionRef(prefix string) (string, error) {
	id, err := gonanoid.Generate(refAlphabet, 12)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return id, nil
	}
	return strings.ToUpper(prefix) + "-" + id, nil
}
