package authorizationSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// IAuthorizationSigner produces owner signatures over withdrawal digests. Signatures are
// 65 bytes [R||S||V] with V in {27, 28} and verify under the signer's Scheme.
type IAuthorizationSigner interface {
	Address() common.Address
	Scheme() signature.Scheme
	SignDigest(ctx context.Context, digest common.Hash) ([]byte, error)
}

// hashForScheme is the 32-byte value the key actually signs.
func hashForScheme(scheme signature.Scheme, digest common.Hash) ([]byte, error) {
	switch scheme {
	case signature.SchemePersonal, "":
		return signature.PersonalMessageHash(digest), nil
	case signature.SchemeRaw:
		return digest.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported signature scheme %q", scheme)
	}
}

// LocalSigner signs with an in-memory private key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	scheme  signature.Scheme
}

func NewLocalSigner(privateKeyHex string, scheme signature.Scheme) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewLocalSignerFromKey(key, scheme)
}

func NewLocalSignerFromKey(key *ecdsa.PrivateKey, scheme signature.Scheme) (*LocalSigner, error) {
	if key == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	if scheme == "" {
		scheme = signature.SchemePersonal
	}
	if _, err := hashForScheme(scheme, common.Hash{}); err != nil {
		return nil, err
	}
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		scheme:  scheme,
	}, nil
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

func (s *LocalSigner) Scheme() signature.Scheme {
	return s.scheme
}

func (s *LocalSigner) SignDigest(ctx context.Context, digest common.Hash) ([]byte, error) {
	if s.scheme == signature.SchemeRaw {
		return signature.SignRawDigest(s.key, digest)
	}
	return signature.SignPersonalMessage(s.key, digest)
}

var _ IAuthorizationSigner = (*LocalSigner)(nil)
