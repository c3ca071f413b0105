package app

import (
	"crypto/rand"
	"fmt"
)

// codeChars omits 0/O/1/I so codes read unambiguously on a projector.
const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// generateCode produces a short uppercase session code, retrying on collision
// against currently-live codes. Codes may collide with expired sessions;
// there is no history to protect.
func generateCode(exists func(code string) bool) (string, error) {
	for attempts := 0; attempts < 10; attempts++ {
		b := make([]byte, codeLength)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		code := make([]byte, codeLength)
		for i := range code {
			code[i] = codeChars[int(b[i])%len(codeChars)]
		}
		if !exists(string(code)) {
			return string(code), nil
		}
	}
	return "", fmt.Errorf("failed to generate unique session code")
}
