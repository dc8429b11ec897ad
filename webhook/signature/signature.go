package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// SecretPrefix marks an encoded partner secret
	SecretPrefix = "whsec_"

	// SignatureVersion is the only accepted signature scheme: HMAC-SHA256 over the raw body
	SignatureVersion = "v1"

	// MinSecretBytes is the minimum accepted secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum accepted secret size (512 bits)
	MaxSecretBytes = 64
)

// Secret is a shared key agreed with one partner
type Secret struct {
	raw     []byte
	encoded string
}

// GenerateSecret creates a new random secret of size bytes
func GenerateSecret(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}

	return Secret{
		raw:     raw,
		encoded: SecretPrefix + base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// ParseSecret parses a base64-encoded secret with the whsec_ prefix
func ParseSecret(encoded string) (Secret, error) {
	if !strings.HasPrefix(encoded, SecretPrefix) {
		return Secret{}, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, SecretPrefix))
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}

	if len(raw) < MinSecretBytes || len(raw) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	return Secret{
		raw:     raw,
		encoded: encoded,
	}, nil
}

// String returns the encoded secret with prefix
func (s Secret) String() string {
	return s.encoded
}

// Bytes returns the raw secret bytes
func (s Secret) Bytes() []byte {
	return s.raw
}

// Signature is one "version,base64" element of a signature header
type Signature struct {
	Version string
	Value   string
}

// String returns the signature in the format: v1,<base64_signature>
func (s Signature) String() string {
	return fmt.Sprintf("%s,%s", s.Version, s.Value)
}

// ParseSignature parses a signature string in the format: v1,<base64_signature>
func ParseSignature(sig string) (Signature, error) {
	parts := strings.SplitN(sig, ",", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Signature{}, fmt.Errorf("invalid signature format, expected 'version,signature'")
	}

	return Signature{
		Version: parts[0],
		Value:   parts[1],
	}, nil
}

// Sign computes the v1 signature of body
func Sign(secret Secret, body []byte) Signature {
	return Signature{
		Version: SignatureVersion,
		Value:   base64.StdEncoding.EncodeToString(mac(secret, body)),
	}
}

// Verify checks sig against body using constant-time comparison
func Verify(secret Secret, body []byte, sig Signature) (bool, error) {
	if sig.Version != SignatureVersion {
		return false, fmt.Errorf("unsupported signature version: %s", sig.Version)
	}

	given, err := base64.StdEncoding.DecodeString(sig.Value)
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}

	return hmac.Equal(given, mac(secret, body)), nil
}

// VerifyMultiple succeeds if any signature matches any secret
// Partners rotate keys by sending one signature per active secret
func VerifyMultiple(secrets []Secret, body []byte, signatures []Signature) (bool, error) {
	if len(secrets) == 0 || len(signatures) == 0 {
		return false, fmt.Errorf("must provide at least one secret and one signature")
	}

	for _, sig := range signatures {
		for _, secret := range secrets {
			valid, err := Verify(secret, body, sig)
			if err != nil {
				// Malformed entries do not invalidate the others
				continue
			}
			if valid {
				return true, nil
			}
		}
	}

	return false, nil
}

// ParseSignatureHeader parses a header holding space-delimited signatures: "v1,sig1 v1,sig2"
func ParseSignatureHeader(header string) ([]Signature, error) {
	if strings.TrimSpace(header) == "" {
		return nil, fmt.Errorf("signature header is empty")
	}

	parts := strings.Fields(header)
	signatures := make([]Signature, 0, len(parts))
	for _, part := range parts {
		sig, err := ParseSignature(part)
		if err != nil {
			return nil, fmt.Errorf("parsing signature '%s': %w", part, err)
		}
		signatures = append(signatures, sig)
	}

	return signatures, nil
}

// BuildSignatureHeader builds a header value from multiple signatures (space-delimited)
func BuildSignatureHeader(signatures []Signature) string {
	parts := make([]string, len(signatures))
	for i, sig := range signatures {
		parts[i] = sig.String()
	}
	return strings.Join(parts, " ")
}

func mac(secret Secret, body []byte) []byte {
	h := hmac.New(sha256.New, secret.Bytes())
	h.Write(body)
	return h.Sum(nil)
}
