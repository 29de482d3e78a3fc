package sid

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Signed identifiers are defined by:
// * MAC: HMAC-SHA256
// * Format:
//     <version><versionSeparator><base64url payload>.<base64url MAC>
//     [<--  "message" over which the MAC is computed  -->]
// Unsigned identifiers are the bare base64url payload.

// Version is the version identifier prefix for signed identifiers.
const Version = "v1"

const (
	versionSeparator = "!"
	macSeparator     = "."
)

// Length of an unpadded base64url-encoded 32 byte MAC.
const base64MACLen = 43

var enc = base64.RawURLEncoding

var (
	// ErrUnsupportedVersion indicates that the version prefix of a signed
	// identifier is not supported by this implementation.
	ErrUnsupportedVersion = errors.New("unsupported version")
	// ErrBadID indicates that the identifier is structurally invalid.
	ErrBadID = errors.New("bad session id")
	// ErrInvalidID indicates that the identifier fails authenticity checks.
	ErrInvalidID = errors.New("invalid session id")
)

func mac(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

func sign(key, data []byte) string {
	msg := Version + versionSeparator + enc.EncodeToString(data)
	return msg + macSeparator + enc.EncodeToString(mac(key, msg))
}

var (
	errNotFound  = errors.New("separator not found")
	errNotUnique = errors.New("separator not unique")
)

func uniqueIndex(s, sub string) (int, error) {
	i := strings.Index(s, sub)
	if i == -1 {
		return i, errNotFound
	}
	if strings.Contains(s[i+1:], sub) {
		return i, errNotUnique
	}
	return i, nil
}

// verify checks the authenticity of a signed identifier and extracts its
// payload.
func verify(key []byte, id string) ([]byte, error) {
	i, err := uniqueIndex(id, versionSeparator)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version header (error: %v): %w", err, ErrBadID)
	}
	if id[:i] != Version {
		return nil, fmt.Errorf("failed to parse session id: %w", ErrUnsupportedVersion)
	}
	j, err := uniqueIndex(id, macSeparator)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MAC footer (error: %v): %w", err, ErrBadID)
	}
	if j < i || len(id)-j != base64MACLen+1 {
		return nil, fmt.Errorf("failed to parse session id (incorrect MAC footer length): %w", ErrBadID)
	}
	got, err := enc.DecodeString(id[j+1:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode MAC footer (error: %v): %w", err, ErrBadID)
	}
	if !hmac.Equal(mac(key, id[:j]), got) {
		return nil, fmt.Errorf("session id MAC verification failed: %w", ErrInvalidID)
	}
	data, err := enc.DecodeString(id[i+1 : j])
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload (error: %v): %w", err, ErrBadID)
	}
	return data, nil
}
