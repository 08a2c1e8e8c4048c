package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

/*
Owner authorizations are produced off-chain by signing a 32-byte digest, typically
keccak256 of a human-readable message such as "transfer 10 coins to bob".

Personal scheme (default):
  envelope = keccak256("\x19Ethereum Signed Message:\n32" || digest)
  signature = secp256k1 [R || S || V], V in {27, 28} (0/1 also accepted)

Raw scheme:
  signature over digest directly, same encoding. Used by signers that cannot apply the
  EIP-191 prefix (raw HSM/KMS signing endpoints).

High-S signatures are rejected to keep signatures non-malleable.
*/

// SignatureLength is the length of an [R || S || V] secp256k1 signature.
const SignatureLength = crypto.SignatureLength

// ErrMalformedSignature is returned when signature bytes cannot be parsed or recovered.
var ErrMalformedSignature = errors.New("malformed signature")

type Scheme string

const (
	SchemePersonal Scheme = "personal"
	SchemeRaw      Scheme = "raw"
)

func (s Scheme) String() string {
	return string(s)
}

// IRecoverer recovers the address that produced a signature over a digest.
type IRecoverer interface {
	// RecoverSigner returns the signing address or an error wrapping ErrMalformedSignature.
	RecoverSigner(digest common.Hash, sig []byte) (common.Address, error)

	// Scheme identifies the envelope convention this recoverer applies.
	Scheme() Scheme
}

// NewRecoverer returns the recoverer for the named scheme. An empty scheme selects the
// personal-message convention.
func NewRecoverer(scheme Scheme) (IRecoverer, error) {
	switch scheme {
	case SchemePersonal, "":
		return &PersonalMessageRecoverer{}, nil
	case SchemeRaw:
		return &RawDigestRecoverer{}, nil
	default:
		return nil, fmt.Errorf("unsupported signature scheme: %s", scheme)
	}
}

// SupportedSchemes lists every scheme accepted by NewRecoverer.
func SupportedSchemes() []Scheme {
	return []Scheme{SchemePersonal, SchemeRaw}
}

// PersonalMessageRecoverer implements IRecoverer for EIP-191 personal-message signatures.
type PersonalMessageRecoverer struct{}

func (p *PersonalMessageRecoverer) Scheme() Scheme {
	return SchemePersonal
}

func (p *PersonalMessageRecoverer) RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	return recoverFromHash(PersonalMessageHash(digest), sig)
}

// RawDigestRecoverer implements IRecoverer for signatures made directly over the digest.
type RawDigestRecoverer struct{}

func (r *RawDigestRecoverer) Scheme() Scheme {
	return SchemeRaw
}

func (r *RawDigestRecoverer) RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	return recoverFromHash(digest.Bytes(), sig)
}

// PersonalMessageHash returns the EIP-191 envelope hash of a 32-byte digest.
func PersonalMessageHash(digest common.Hash) []byte {
	return accounts.TextHash(digest.Bytes())
}

// MessageDigest hashes an off-chain authorization message, equivalent to
// solidityKeccak256(["string"], [message]).
func MessageDigest(message string) common.Hash {
	return crypto.Keccak256Hash([]byte(message))
}

// SignPersonalMessage signs digest under the personal-message envelope, returning V in {27, 28}.
func SignPersonalMessage(key *ecdsa.PrivateKey, digest common.Hash) ([]byte, error) {
	return signHash(key, PersonalMessageHash(digest))
}

// SignRawDigest signs digest without a prefix, returning V in {27, 28}.
func SignRawDigest(key *ecdsa.PrivateKey, digest common.Hash) ([]byte, error) {
	return signHash(key, digest.Bytes())
}

func signHash(key *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func recoverFromHash(hash []byte, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, SignatureLength, len(sig))
	}

	// never mutate the caller's slice
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	v := normalized[crypto.RecoveryIDOffset]
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: invalid signature values", ErrMalformedSignature)
	}

	pubKey, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}
