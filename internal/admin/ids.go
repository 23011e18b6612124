package admin

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	idLength     = 20
	secretLength = 64
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func randomString(n int) string {
	limit := big.NewInt(int64(len(alphanumeric)))
	var b strings.Builder
	b.Grow(n)
	for range n {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b.WriteByte(alphanumeric[idx.Int64()])
	}
	return b.String()
}

func generateID(prefix string) string {
	return prefix + "_" + randomString(idLength)
}

func publishableKey(envPrefix string) string {
	return "pk_" + envPrefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func fingerprintSecret() string {
	return "fs_" + randomString(secretLength)
}

func requiresCVVKey(merchantID string) string {
	return merchantID + "_requires_cvv"
}

func fingerprintSecretKey(merchantID string) string {
	return "fingerprint_secret_" + merchantID
}
