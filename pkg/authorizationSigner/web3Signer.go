package authorizationSigner

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/clients/web3signer"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// Web3Signer signs digests with a key held by a Web3Signer instance using eth_sign. Only
// the personal scheme is available: Web3Signer's raw endpoint hashes its input again.
type Web3Signer struct {
	client  web3signer.IWeb3Signer
	address common.Address
	logger  *zap.Logger
}

func NewWeb3Signer(client web3signer.IWeb3Signer, address common.Address, logger *zap.Logger) (*Web3Signer, error) {
	if client == nil {
		return nil, fmt.Errorf("web3signer client cannot be nil")
	}
	if address == (common.Address{}) {
		return nil, fmt.Errorf("signer address cannot be the zero address")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Web3Signer{client: client, address: address, logger: logger}, nil
}

func (w *Web3Signer) Address() common.Address {
	return w.address
}

func (w *Web3Signer) Scheme() signature.Scheme {
	return signature.SchemePersonal
}

func (w *Web3Signer) SignDigest(ctx context.Context, digest common.Hash) ([]byte, error) {
	sigHex, err := w.client.EthSign(ctx, w.address.Hex(), hexutil.Encode(digest.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest with web3signer: %w", err)
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode web3signer signature: %w", err)
	}
	if len(sig) != signature.SignatureLength {
		return nil, fmt.Errorf("web3signer returned %d byte signature", len(sig))
	}
	if sig[64] < 27 {
		sig[64] += 27
	}

	signer, err := (&signature.PersonalMessageRecoverer{}).RecoverSigner(digest, sig)
	if err != nil {
		return nil, fmt.Errorf("web3signer returned unrecoverable signature: %w", err)
	}
	if signer != w.address {
		return nil, fmt.Errorf("web3signer signed with %s, expected %s", signer.Hex(), w.address.Hex())
	}
	w.logger.Sugar().Debugw("Signed digest with web3signer", "address", w.address.Hex(), "digest", digest.Hex())
	return sig, nil
}

var _ IAuthorizationSigner = (*Web3Signer)(nil)
