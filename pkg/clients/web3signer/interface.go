package web3signer

import (
	"context"
	"net/http"
)

// IWeb3Signer abstracts the Web3Signer client so signers can be tested without a live
// service.
type IWeb3Signer interface {
	SetHttpClient(client *http.Client)

	// EthAccounts corresponds to the eth_accounts JSON-RPC method.
	EthAccounts(ctx context.Context) ([]string, error)

	// EthSignTransaction corresponds to eth_signTransaction and returns the signed,
	// RLP encoded transaction.
	EthSignTransaction(ctx context.Context, from string, transaction map[string]interface{}) (string, error)

	// EthSign corresponds to eth_sign. The signer applies the personal-message prefix.
	EthSign(ctx context.Context, account string, data string) (string, error)

	ListPublicKeys(ctx context.Context) ([]string, error)

	Sign(ctx context.Context, account string, data string) (string, error)

	// SignRaw signs data without any Ethereum message prefix using the REST endpoint.
	SignRaw(ctx context.Context, identifier string, data []byte) (string, error)

	ReloadKeys(ctx context.Context) error

	Upcheck(ctx context.Context) error
}

var _ IWeb3Signer = (*Client)(nil)
