// Package protocol generates and validates tracking identifiers. The
// protocol number is public; the senha is the short secret required together
// with it for anonymous status queries.
package protocol

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const (
	// PlaceholderOffline is shown in place of a protocol while a submission
	// waits in the offline queue.
	PlaceholderOffline = "OUV-PENDENTE-OFFLINE"

	senhaLen      = 6
	senhaAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	protocoloRe = regexp.MustCompile(`^OUV-\d{8}-\d{6}$`)
	senhaRe     = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

// Format builds a protocol number from a date and a per-day sequence.
func Format(t time.Time, seq int) string {
	return fmt.Sprintf("OUV-%s-%06d", t.UTC().Format("20060102"), seq)
}

// NewSenha returns a 6-character uppercase alphanumeric tracking password.
func NewSenha() (string, error) {
	buf := make([]byte, senhaLen)
	max := big.NewInt(int64(len(senhaAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate senha: %w", err)
		}
		buf[i] = senhaAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ValidProtocolo reports whether s matches OUV-YYYYMMDD-NNNNNN.
func ValidProtocolo(s string) bool {
	return protocoloRe.MatchString(s)
}

// ValidSenha reports whether s is a 6-character uppercase alphanumeric senha.
func ValidSenha(s string) bool {
	return senhaRe.MatchString(s)
}
