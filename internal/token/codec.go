// Package token mints and verifies the signed action tokens embedded in approval links.
//
// Wire format: base64url(json claim) "." base64url(HMAC-SHA256(key, first segment)),
// both segments unpadded. The signing key is derived from the process secret and a salt,
// so tokens signed for another purpose with the same secret do not verify here.
package token

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// DefaultSalt namespaces action tokens
const DefaultSalt = "invoice-action"

// ErrInvalidToken covers signature mismatch and malformed encoding alike
var ErrInvalidToken = errors.New("invalid token")

var encoding = base64.RawURLEncoding.Strict()

// Claim binds an invoice to a decision
type Claim struct {
	InvoiceID int64           `json:"id"`
	Action    workflow.Action `json:"action"`
}

// Codec is safe for concurrent use; its key never changes after construction.
type Codec struct {
	key []byte
}

// NewCodec derives the signing key from secret and salt
func NewCodec(secret, salt string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if salt == "" {
		salt = DefaultSalt
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(salt + ".signer"))
	return &Codec{key: mac.Sum(nil)}, nil
}

// Mint returns the opaque token for the claim {invoiceID, action}
func (c *Codec) Mint(invoiceID int64, action workflow.Action) (string, error) {
	if invoiceID <= 0 {
		return "", fmt.Errorf("invoice id must be positive: %d", invoiceID)
	}
	if !action.IsValid() {
		return "", fmt.Errorf("%w: %q", workflow.ErrInvalidAction, action)
	}

	payload, err := json.Marshal(Claim{InvoiceID: invoiceID, Action: action})
	if err != nil {
		return "", fmt.Errorf("failed to encode claim: %w", err)
	}

	body := encoding.EncodeToString(payload)
	return body + "." + encoding.EncodeToString(c.sign(body)), nil
}

// Verify checks the signature before decoding the claim
func (c *Codec) Verify(token string) (*Claim, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrInvalidToken
	}

	sig, err := encoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal(sig, c.sign(parts[0])) {
		return nil, ErrInvalidToken
	}

	payload, err := encoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidToken
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	var claim Claim
	if err := dec.Decode(&claim); err != nil {
		return nil, ErrInvalidToken
	}
	if claim.InvoiceID <= 0 || !claim.Action.IsValid() {
		return nil, ErrInvalidToken
	}

	return &claim, nil
}

func (c *Codec) sign(body string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(body))
	return mac.Sum(nil)
}
