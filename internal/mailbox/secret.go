package mailbox

import (
	"crypto/rand"
	"math/big"
)

// secretAlphabet leaves out characters that are easy to confuse when read aloud or copied.
const secretAlphabet = "ABCDEFGHJKMNPQRSTWXYZabcdefhijkmnprstwxyz2345678"

const SecretLength = 16

// GenerateSecret returns a random mailbox secret drawn uniformly from secretAlphabet.
func GenerateSecret() (string, error) {
	max := big.NewInt(int64(len(secretAlphabet)))
	b := make([]byte, SecretLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = secretAlphabet[n.Int64()]
	}
	return string(b), nil
}
