// Package sr25519 wraps the schnorrkel implementation of sr25519 with the
// operations header verification needs: seal signature checks and VRF proof
// checks over merlin transcripts. Keypair generation and signing are
// included for block-authoring tooling and tests.
package sr25519

import (
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/gtank/merlin"
)

const (
	PublicKeyLength = 32
	SignatureLength = 64
	VrfOutputLength = 32
	VrfProofLength  = 64
)

// SigningContext is the domain separator for seal signatures. It must match
// the one the network's authors sign under.
var SigningContext = []byte("substrate")

// PublicKey is an sr25519 public key.
type PublicKey struct {
	key *schnorrkel.PublicKey
}

// NewPublicKey parses a public key from its 32-byte encoding.
func NewPublicKey(in [PublicKeyLength]byte) (*PublicKey, error) {
	key := new(schnorrkel.PublicKey)
	if err := key.Decode(in); err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	return &PublicKey{key: key}, nil
}

// Encode returns the 32-byte encoding of the key.
func (k *PublicKey) Encode() [PublicKeyLength]byte {
	return k.key.Encode()
}

// Verify reports whether sig is a valid signature by this key over msg under
// the signing context.
func (k *PublicKey) Verify(msg []byte, sig [SignatureLength]byte) (bool, error) {
	s := new(schnorrkel.Signature)
	if err := s.Decode(sig); err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}
	t := schnorrkel.NewSigningContext(SigningContext, msg)
	return k.key.Verify(s, t)
}

// VrfVerify reports whether proof proves that output is this key's VRF
// output for the given transcript.
func (k *PublicKey) VrfVerify(t *merlin.Transcript, output [VrfOutputLength]byte, proof [VrfProofLength]byte) (bool, error) {
	out := new(schnorrkel.VrfOutput)
	if err := out.Decode(output); err != nil {
		return false, fmt.Errorf("decoding vrf output: %w", err)
	}
	p := new(schnorrkel.VrfProof)
	if err := p.Decode(proof); err != nil {
		return false, fmt.Errorf("decoding vrf proof: %w", err)
	}
	return k.key.VrfVerify(t, out, p)
}

// Keypair is an sr25519 keypair.
type Keypair struct {
	secret *schnorrkel.SecretKey
	public *PublicKey
}

// GenerateKeypair creates a new random keypair.
func GenerateKeypair() (*Keypair, error) {
	secret, public, err := schnorrkel.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	return &Keypair{secret: secret, public: &PublicKey{key: public}}, nil
}

// Public returns the keypair's public key.
func (kp *Keypair) Public() *PublicKey {
	return kp.public
}

// Sign signs msg under the signing context.
func (kp *Keypair) Sign(msg []byte) ([SignatureLength]byte, error) {
	t := schnorrkel.NewSigningContext(SigningContext, msg)
	sig, err := kp.secret.Sign(t)
	if err != nil {
		return [SignatureLength]byte{}, fmt.Errorf("signing: %w", err)
	}
	return sig.Encode(), nil
}

// VrfSign produces the VRF output and proof for the given transcript.
func (kp *Keypair) VrfSign(t *merlin.Transcript) ([VrfOutputLength]byte, [VrfProofLength]byte, error) {
	inout, proof, err := kp.secret.VrfSign(t)
	if err != nil {
		return [VrfOutputLength]byte{}, [VrfProofLength]byte{}, fmt.Errorf("vrf sign: %w", err)
	}
	return inout.Output().Encode(), proof.Encode(), nil
}
