package authorizationSigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// secp256k1 group order
var (
	secp256k1N, _  = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// KMSClient is the subset of the AWS KMS API the signer needs. *kms.Client satisfies it.
type KMSClient interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

var _ KMSClient = (*kms.Client)(nil)

// AWSKMSSigner signs with an ECC_SECG_P256K1 key held in AWS KMS.
type AWSKMSSigner struct {
	client    KMSClient
	keyId     string
	scheme    signature.Scheme
	publicKey *cryptoEcdsa.PublicKey
	address   common.Address
	logger    *zap.Logger
}

// NewAWSKMSSigner resolves the key's public key and address up front.
func NewAWSKMSSigner(ctx context.Context, client KMSClient, keyId string, scheme signature.Scheme, logger *zap.Logger) (*AWSKMSSigner, error) {
	if client == nil {
		return nil, fmt.Errorf("kms client cannot be nil")
	}
	if keyId == "" {
		return nil, fmt.Errorf("kms key id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if scheme == "" {
		scheme = signature.SchemePersonal
	}
	if _, err := hashForScheme(scheme, common.Hash{}); err != nil {
		return nil, err
	}

	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for kms key %s", keyId)
	}
	publicKey, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for kms key %s", keyId)
	}

	address := crypto.PubkeyToAddress(*publicKey)
	logger.Sugar().Infow("Loaded KMS authorization key",
		"keyId", keyId,
		"address", address.Hex(),
	)

	return &AWSKMSSigner{
		client:    client,
		keyId:     keyId,
		scheme:    scheme,
		publicKey: publicKey,
		address:   address,
		logger:    logger,
	}, nil
}

func (k *AWSKMSSigner) Address() common.Address {
	return k.address
}

func (k *AWSKMSSigner) Scheme() signature.Scheme {
	return k.scheme
}

func (k *AWSKMSSigner) SignDigest(ctx context.Context, digest common.Hash) ([]byte, error) {
	hash, err := hashForScheme(k.scheme, digest)
	if err != nil {
		return nil, err
	}

	out, err := k.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(k.keyId),
		Message:          hash,
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "kms sign failed for key %s", k.keyId)
	}

	return k.toEthereumSignature(hash, out.Signature)
}

// toEthereumSignature converts a DER ECDSA signature to [R||S||V], normalising S to the
// lower half of the curve order and finding the recovery id that yields our public key.
func (k *AWSKMSSigner) toEthereumSignature(hash []byte, der []byte) ([]byte, error) {
	var sig asn1EcSig
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	}

	r := new(big.Int).SetBytes(sig.R.Bytes)
	s := new(big.Int).SetBytes(sig.S.Bytes)
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	out := make([]byte, signature.SignatureLength)
	r.FillBytes(out[0:32])
	s.FillBytes(out[32:64])

	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		out[64] = recoveryId
		recovered, err := crypto.SigToPub(hash, out)
		if err != nil {
			k.logger.Debug("Recovery failed", zap.Uint8("recoveryId", recoveryId), zap.Error(err))
			continue
		}
		if recovered.X.Cmp(k.publicKey.X) == 0 && recovered.Y.Cmp(k.publicKey.Y) == 0 {
			out[64] = 27 + recoveryId
			return out, nil
		}
	}
	return nil, fmt.Errorf("could not determine recovery id for kms signature")
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// parseECDSAPublicKey parses the DER SubjectPublicKeyInfo returned by KMS.
func parseECDSAPublicKey(der []byte) (*cryptoEcdsa.PublicKey, error) {
	var info asn1EcPublicKey
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(info.PublicKey.Bytes)
}

var _ IAuthorizationSigner = (*AWSKMSSigner)(nil)
