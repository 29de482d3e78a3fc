// Package sid generates and verifies session identifiers.
package sid

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DefaultLen is the default number of random bytes in an identifier.
const DefaultLen = 32

// maxUnsignedLen bounds the length of unsigned identifiers accepted from
// clients.
const maxUnsignedLen = 256

const hkdfInfo = "session id authentication"

// Generator creates unguessable session identifiers and verifies identifiers
// presented by clients. When constructed with a secret, identifiers carry an
// HMAC so that only identifiers issued by a holder of the secret verify.
type Generator struct {
	key []byte
	n   int
}

// NewGenerator returns a Generator producing identifiers with n random bytes
// (DefaultLen if n <= 0). An empty secret yields unsigned identifiers.
func NewGenerator(secret string, n int) *Generator {
	if n <= 0 {
		n = DefaultLen
	}
	g := &Generator{n: n}
	if secret != "" {
		g.key = deriveKey(secret)
	}
	return g
}

func deriveKey(secret string) []byte {
	key := make([]byte, sha256.Size)
	// Reading a single hash length from HKDF cannot fail.
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		panic(fmt.Sprintf("hkdf: %v", err))
	}
	return key
}

// Signed reports whether identifiers are authenticated.
func (g *Generator) Signed() bool {
	return g.key != nil
}

// New returns a fresh identifier.
func (g *Generator) New() string {
	data := make([]byte, g.n)
	// rand.Read never returns an error as of Go 1.24.
	_, _ = rand.Read(data)
	if g.key == nil {
		return enc.EncodeToString(data)
	}
	return sign(g.key, data)
}

// Verify checks that id is acceptable as a session identifier. Signed
// identifiers must carry a valid MAC over a payload of the configured length.
// Unsigned identifiers are only checked to be a non-empty, bounded run of
// base64url characters, since they cannot be authenticated anyway.
func (g *Generator) Verify(id string) error {
	if g.key == nil {
		if id == "" || len(id) > maxUnsignedLen {
			return fmt.Errorf("session id has length %d: %w", len(id), ErrBadID)
		}
		for i := 0; i < len(id); i++ {
			if !isBase64URL(id[i]) {
				return fmt.Errorf("session id has invalid character %q: %w", id[i], ErrBadID)
			}
		}
		return nil
	}
	data, err := verify(g.key, id)
	if err != nil {
		return err
	}
	if len(data) != g.n {
		return fmt.Errorf("session id payload has %d bytes, want %d: %w", len(data), g.n, ErrBadID)
	}
	return nil
}

func isBase64URL(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}
