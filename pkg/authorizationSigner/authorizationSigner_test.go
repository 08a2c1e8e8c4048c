package authorizationSigner

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"errors"
	"math/big"
	"testing"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/clients/web3signer"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/testutil"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	oidEcPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// fakeKMS signs locally and answers in the DER formats KMS uses.
type fakeKMS struct {
	key *ecdsa.PrivateKey
	// highS returns the malleable twin of every signature.
	highS   bool
	signErr error
	signed  [][]byte
}

func (f *fakeKMS) GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	pub := crypto.FromECDSAPub(&f.key.PublicKey)
	der, err := asn1.Marshal(asn1EcPublicKey{
		EcPublicKeyInfo: asn1EcPublicKeyInfo{Algorithm: oidEcPublicKey, Parameters: oidSecp256k1},
		PublicKey:       asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{KeyId: params.KeyId, PublicKey: der}, nil
}

func (f *fakeKMS) Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	f.signed = append(f.signed, params.Message)

	sig, err := crypto.Sign(params.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{KeyId: params.KeyId, Signature: der}, nil
}

func Test_LocalSigner(t *testing.T) {
	key := testutil.DevKey(t, 0)
	digest := signature.MessageDigest("transfer 10 coins to bob")

	for _, scheme := range signature.SupportedSchemes() {
		t.Run(scheme.String(), func(t *testing.T) {
			s, err := NewLocalSigner(hexutil.Encode(crypto.FromECDSA(key)), scheme)
			require.NoError(t, err)
			assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), s.Address())

			sig, err := s.SignDigest(context.Background(), digest)
			require.NoError(t, err)
			assert.Contains(t, []byte{27, 28}, sig[64])

			recoverer, err := signature.NewRecoverer(scheme)
			require.NoError(t, err)
			signer, err := recoverer.RecoverSigner(digest, sig)
			require.NoError(t, err)
			assert.Equal(t, s.Address(), signer)
		})
	}

	_, err := NewLocalSigner("zz", signature.SchemePersonal)
	require.Error(t, err)
	_, err = NewLocalSignerFromKey(key, signature.Scheme("eip712"))
	require.Error(t, err)

	s, err := NewLocalSignerFromKey(key, "")
	require.NoError(t, err)
	assert.Equal(t, signature.SchemePersonal, s.Scheme())
}

func Test_AWSKMSSigner(t *testing.T) {
	l := zaptest.NewLogger(t)
	key := testutil.DevKey(t, 1)
	digest := signature.MessageDigest("withdraw")

	for _, highS := range []bool{false, true} {
		client := &fakeKMS{key: key, highS: highS}
		s, err := NewAWSKMSSigner(context.Background(), client, "test-key", signature.SchemePersonal, l)
		require.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), s.Address())

		sig, err := s.SignDigest(context.Background(), digest)
		require.NoError(t, err)
		require.Len(t, sig, signature.SignatureLength)
		assert.True(t, new(big.Int).SetBytes(sig[32:64]).Cmp(secp256k1HalfN) <= 0, "s must be canonical")

		signer, err := (&signature.PersonalMessageRecoverer{}).RecoverSigner(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, s.Address(), signer)

		require.Len(t, client.signed, 1)
		assert.Equal(t, signature.PersonalMessageHash(digest), client.signed[0])
	}
}

func Test_AWSKMSSigner_RawScheme(t *testing.T) {
	key := testutil.DevKey(t, 2)
	client := &fakeKMS{key: key}
	s, err := NewAWSKMSSigner(context.Background(), client, "test-key", signature.SchemeRaw, zaptest.NewLogger(t))
	require.NoError(t, err)

	digest := signature.MessageDigest("raw")
	sig, err := s.SignDigest(context.Background(), digest)
	require.NoError(t, err)
	assert.Equal(t, digest.Bytes(), client.signed[0])

	signer, err := (&signature.RawDigestRecoverer{}).RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)
}

func Test_AWSKMSSigner_Errors(t *testing.T) {
	l := zaptest.NewLogger(t)
	key := testutil.DevKey(t, 0)

	_, err := NewAWSKMSSigner(context.Background(), nil, "k", "", l)
	require.Error(t, err)
	_, err = NewAWSKMSSigner(context.Background(), &fakeKMS{key: key}, "", "", l)
	require.Error(t, err)

	client := &fakeKMS{key: key, signErr: errors.New("AccessDeniedException")}
	s, err := NewAWSKMSSigner(context.Background(), client, "k", "", l)
	require.NoError(t, err)
	_, err = s.SignDigest(context.Background(), common.Hash{1})
	require.ErrorContains(t, err, "AccessDeniedException")

	// a key that does not match the advertised public key never recovers
	other := &fakeKMS{key: testutil.DevKey(t, 3)}
	s.client = other
	_, err = s.SignDigest(context.Background(), common.Hash{1})
	require.Error(t, err)

	_, err = s.toEthereumSignature(make([]byte, 32), []byte{0x01, 0x02})
	require.Error(t, err)
}

func Test_Web3Signer(t *testing.T) {
	l := zaptest.NewLogger(t)
	key := testutil.DevKey(t, 0)
	fake := testutil.NewFakeWeb3Signer(t, key)

	client, err := web3signer.NewClient(&web3signer.Config{BaseUrl: fake.URL}, l)
	require.NoError(t, err)

	s, err := NewWeb3Signer(client, fake.Address(), l)
	require.NoError(t, err)
	assert.Equal(t, signature.SchemePersonal, s.Scheme())

	digest := signature.MessageDigest("transfer 10 coins to bob")
	sig, err := s.SignDigest(context.Background(), digest)
	require.NoError(t, err)

	signer, err := (&signature.PersonalMessageRecoverer{}).RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, fake.Address(), signer)
	assert.Equal(t, []string{"eth_sign"}, fake.Methods())

	unknown, err := NewWeb3Signer(client, common.HexToAddress("0xdead"), l)
	require.NoError(t, err)
	_, err = unknown.SignDigest(context.Background(), digest)
	require.Error(t, err)

	_, err = NewWeb3Signer(nil, fake.Address(), l)
	require.Error(t, err)
}

func Test_NewAuthorizationSigner(t *testing.T) {
	l := zaptest.NewLogger(t)
	key := testutil.DevKey(t, 0)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))

	_, err := NewAuthorizationSigner(context.Background(), nil, l)
	require.Error(t, err)

	_, err = NewAuthorizationSigner(context.Background(), &Config{}, l)
	require.Error(t, err)

	_, err = NewAuthorizationSigner(context.Background(), &Config{PrivateKey: keyHex, KMSKeyId: "k"}, l)
	require.Error(t, err)

	s, err := NewAuthorizationSigner(context.Background(), &Config{PrivateKey: keyHex}, l)
	require.NoError(t, err)
	assert.IsType(t, &LocalSigner{}, s)

	fake := testutil.NewFakeWeb3Signer(t, key)
	s, err = NewAuthorizationSigner(context.Background(), &Config{
		Web3SignerUrl:     fake.URL,
		Web3SignerAddress: fake.Address().Hex(),
	}, l)
	require.NoError(t, err)
	assert.IsType(t, &Web3Signer{}, s)

	_, err = NewAuthorizationSigner(context.Background(), &Config{
		Web3SignerUrl:     fake.URL,
		Web3SignerAddress: fake.Address().Hex(),
		Scheme:            signature.SchemeRaw,
	}, l)
	require.Error(t, err)
}
