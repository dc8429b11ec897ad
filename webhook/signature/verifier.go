package signature

import (
	"fmt"

	"github.com/marcelsud/assistant-gateway/webhook"
)

/* Verifier holds the secrets of every partner source
 * It is filled at startup and only read afterwards
 */
type Verifier struct {
	secrets map[webhook.Source][]Secret
}

// NewVerifier creates an empty verifier; every source is rejected until it has a secret
func NewVerifier() *Verifier {
	return &Verifier{
		secrets: make(map[webhook.Source][]Secret),
	}
}

// AddSecret registers a secret for source. Several secrets may coexist during rotation.
func (v *Verifier) AddSecret(source webhook.Source, secret Secret) error {
	if err := source.Validate(); err != nil {
		return fmt.Errorf("adding secret: %w", err)
	}
	if len(secret.Bytes()) == 0 {
		return fmt.Errorf("adding secret: secret for %s is empty", source)
	}
	v.secrets[source] = append(v.secrets[source], secret)
	return nil
}

// Verify reports whether header carries a valid signature of rawBody for source.
// Unknown sources, missing or malformed headers and mismatches all return false.
func (v *Verifier) Verify(source webhook.Source, rawBody []byte, header string) bool {
	secrets, ok := v.secrets[source]
	if !ok {
		return false
	}

	signatures, err := ParseSignatureHeader(header)
	if err != nil {
		return false
	}

	valid, err := VerifyMultiple(secrets, rawBody, signatures)
	return err == nil && valid
}
