package babe

import (
	"github.com/gtank/merlin"

	"github.com/geanlabs/babe/crypto/sr25519"
	"github.com/geanlabs/babe/types"
)

// AuthorshipVerifier abstracts the signature and VRF primitives. The
// verifier decides which transcript and threshold apply; the primitive only
// answers whether a proof or signature is valid for a key.
type AuthorshipVerifier interface {
	// VerifyVrf reports whether proof proves that output is pub's VRF output
	// for the transcript.
	VerifyVrf(pub types.AuthorityID, t *merlin.Transcript, output types.VrfOutput, proof types.VrfProof) (bool, error)

	// VerifySignature reports whether sig is pub's signature over msg.
	VerifySignature(pub types.AuthorityID, msg []byte, sig types.SealSignature) (bool, error)
}

// sr25519Verifier is the default AuthorshipVerifier, backed by schnorrkel.
type sr25519Verifier struct{}

func (sr25519Verifier) VerifyVrf(pub types.AuthorityID, t *merlin.Transcript, output types.VrfOutput, proof types.VrfProof) (bool, error) {
	key, err := sr25519.NewPublicKey(pub)
	if err != nil {
		return false, err
	}
	return key.VrfVerify(t, output, proof)
}

func (sr25519Verifier) VerifySignature(pub types.AuthorityID, msg []byte, sig types.SealSignature) (bool, error) {
	key, err := sr25519.NewPublicKey(pub)
	if err != nil {
		return false, err
	}
	return key.Verify(msg, sig)
}

// Codec decodes raw header bytes. The default implementation is the SCALE
// codec in the types package; nodes with their own header store can plug in
// an alternative.
type Codec interface {
	DecodeHeader(data []byte) (*types.Header, error)
}

type scaleCodec struct{}

func (scaleCodec) DecodeHeader(data []byte) (*types.Header, error) {
	return types.DecodeHeader(data)
}
