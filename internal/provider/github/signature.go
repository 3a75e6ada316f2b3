package github

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/go-github/v59/github"

	"github.com/simplesurance/mergeguard/internal/guarderr"
)

const signaturePrefix = "sha256="

// VerifySignature verifies that header is the HMAC-SHA256 signature of body
// with secret, in the format of the X-Hub-Signature-256 header.
// If secret is empty, the request is not verified and nil is returned.
// Otherwise a *guarderr.VerificationError is returned when the verification
// failed.
func VerifySignature(header string, secret, body []byte) error {
	if len(secret) == 0 {
		return nil
	}

	if header == "" {
		return guarderr.NewVerificationError(guarderr.ReasonMissingHeader, nil)
	}

	hexSig, found := strings.CutPrefix(header, signaturePrefix)
	if !found {
		return guarderr.NewVerificationError(
			guarderr.ReasonMalformedHeader,
			errors.New("signature does not start with "+signaturePrefix),
		)
	}

	sig, err := hex.DecodeString(hexSig)
	if err != nil {
		return guarderr.NewVerificationError(guarderr.ReasonMalformedHeader, err)
	}

	if len(sig) != sha256.Size {
		return guarderr.NewVerificationError(
			guarderr.ReasonMalformedHeader,
			errors.New("signature has an invalid length"),
		)
	}

	if err := github.ValidateSignature(header, body, secret); err != nil {
		return guarderr.NewVerificationError(guarderr.ReasonSignatureMismatch, err)
	}

	return nil
}
