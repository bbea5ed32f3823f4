package token

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("test-secret-0123456789", DefaultSalt)
	require.NoError(t, err)
	return c
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec("", DefaultSalt)
	assert.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	for _, id := range []int64{1, 5, 999999, 1 << 40} {
		for _, action := range []workflow.Action{workflow.ActionApprove, workflow.ActionReject} {
			tok, err := c.Mint(id, action)
			require.NoError(t, err)

			claim, err := c.Verify(tok)
			require.NoError(t, err)
			assert.Equal(t, id, claim.InvoiceID)
			assert.Equal(t, action, claim.Action)
		}
	}
}

func TestCodec_TokenIsURLSafe(t *testing.T) {
	tok, err := newTestCodec(t).Mint(12, workflow.ActionReject)
	require.NoError(t, err)
	assert.NotContains(t, tok, "/")
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "=")
}

func TestCodec_MintRejectsBadInput(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Mint(0, workflow.ActionApprove)
	assert.Error(t, err)

	_, err = c.Mint(1, workflow.Action("maybe"))
	assert.ErrorIs(t, err, workflow.ErrInvalidAction)
}

func TestCodec_SingleBitFlipFails(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Mint(5, workflow.ActionApprove)
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		for bit := 0; bit < 8; bit++ {
			b := []byte(tok)
			b[i] ^= 1 << bit
			_, err := c.Verify(string(b))
			assert.ErrorIs(t, err, ErrInvalidToken, "byte %d bit %d", i, bit)
		}
	}
}

func TestCodec_SubstitutedClaimFails(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Mint(5, workflow.ActionApprove)
	require.NoError(t, err)
	sig := tok[strings.Index(tok, ".")+1:]

	forged := []string{
		`{"id":6,"action":"approve"}`,
		`{"id":5,"action":"reject"}`,
	}
	for _, payload := range forged {
		candidate := base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + sig
		_, err := c.Verify(candidate)
		assert.ErrorIs(t, err, ErrInvalidToken, payload)
	}

	// swapping signatures between two genuine tokens must fail too
	other, err := c.Mint(5, workflow.ActionReject)
	require.NoError(t, err)
	swapped := other[:strings.Index(other, ".")] + "." + sig
	_, err = c.Verify(swapped)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_DifferentSecretOrSaltFails(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Mint(5, workflow.ActionApprove)
	require.NoError(t, err)

	otherSecret, err := NewCodec("another-secret-0123456789", DefaultSalt)
	require.NoError(t, err)
	_, err = otherSecret.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherSalt, err := NewCodec("test-secret-0123456789", "password-reset")
	require.NoError(t, err)
	_, err = otherSalt.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_MalformedInput(t *testing.T) {
	c := newTestCodec(t)
	tests := []string{
		"",
		".",
		"abc",
		"abc.",
		".abc",
		"a.b.c",
		"!!!.###",
	}
	for _, tt := range tests {
		_, err := c.Verify(tt)
		assert.ErrorIs(t, err, ErrInvalidToken, "%q", tt)
	}
}

func TestCodec_SignedButInvalidClaimFails(t *testing.T) {
	c := newTestCodec(t)
	payloads := []string{
		`{"id":5,"action":"maybe"}`,
		`{"id":0,"action":"approve"}`,
		`{"id":5,"action":"approve","exp":1}`,
		`not json`,
	}
	for _, payload := range payloads {
		body := base64.RawURLEncoding.EncodeToString([]byte(payload))
		tok := body + "." + base64.RawURLEncoding.EncodeToString(c.sign(body))
		_, err := c.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, payload)
	}
}
