package testutil

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// FakeWeb3Signer serves the subset of the Web3Signer API used by this module, backed by a
// single in-memory key.
type FakeWeb3Signer struct {
	*httptest.Server

	key     *ecdsa.PrivateKey
	address common.Address

	mu      sync.Mutex
	methods []string
	reloads int
}

func NewFakeWeb3Signer(t testing.TB, key *ecdsa.PrivateKey) *FakeWeb3Signer {
	t.Helper()
	f := &FakeWeb3Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", f.handleJsonRpc)
	mux.HandleFunc("/api/v1/eth1/sign/", f.handleSignRaw)
	mux.HandleFunc("/upcheck", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/reload", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.reloads++
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *FakeWeb3Signer) Address() common.Address {
	return f.address
}

// Methods returns the JSON-RPC methods received so far.
func (f *FakeWeb3Signer) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func (f *FakeWeb3Signer) Reloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	Id     uint64            `json:"id"`
}

func (f *FakeWeb3Signer) handleJsonRpc(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	f.mu.Unlock()

	var (
		result interface{}
		err    error
	)
	switch req.Method {
	case "eth_accounts":
		result = []string{f.address.Hex()}
	case "eth_sign":
		result, err = f.ethSign(req.Params)
	case "eth_signTransaction":
		result, err = f.ethSignTransaction(req.Params)
	default:
		err = fmt.Errorf("method %s not supported", req.Method)
	}

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.Id}
	if err != nil {
		resp["error"] = map[string]interface{}{"code": -32000, "message": err.Error()}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *FakeWeb3Signer) checkAccount(account string) error {
	if !common.IsHexAddress(account) || common.HexToAddress(account) != f.address {
		return fmt.Errorf("no key for account %s", account)
	}
	return nil
}

func (f *FakeWeb3Signer) ethSign(params []json.RawMessage) (string, error) {
	if len(params) != 2 {
		return "", fmt.Errorf("eth_sign expects 2 params")
	}
	var account, data string
	if err := json.Unmarshal(params[0], &account); err != nil {
		return "", err
	}
	if err := json.Unmarshal(params[1], &data); err != nil {
		return "", err
	}
	if err := f.checkAccount(account); err != nil {
		return "", err
	}
	payload, err := hexutil.Decode(data)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(accounts.TextHash(payload), f.key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

type rpcTransaction struct {
	From                 string         `json:"from"`
	To                   common.Address `json:"to"`
	Value                *hexutil.Big   `json:"value"`
	Gas                  hexutil.Uint64 `json:"gas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	Nonce                hexutil.Uint64 `json:"nonce"`
	Data                 hexutil.Bytes  `json:"data"`
	ChainId              *hexutil.Big   `json:"chainId"`
}

func (f *FakeWeb3Signer) ethSignTransaction(params []json.RawMessage) (string, error) {
	if len(params) != 1 {
		return "", fmt.Errorf("eth_signTransaction expects 1 param")
	}
	var rtx rpcTransaction
	if err := json.Unmarshal(params[0], &rtx); err != nil {
		return "", err
	}
	if err := f.checkAccount(rtx.From); err != nil {
		return "", err
	}
	if rtx.ChainId == nil || rtx.MaxFeePerGas == nil || rtx.MaxPriorityFeePerGas == nil {
		return "", fmt.Errorf("missing fee or chain fields")
	}
	value := big.NewInt(0)
	if rtx.Value != nil {
		value = rtx.Value.ToInt()
	}
	to := rtx.To
	chainID := rtx.ChainId.ToInt()
	tx := ethTypes.NewTx(&ethTypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     uint64(rtx.Nonce),
		GasTipCap: rtx.MaxPriorityFeePerGas.ToInt(),
		GasFeeCap: rtx.MaxFeePerGas.ToInt(),
		Gas:       uint64(rtx.Gas),
		To:        &to,
		Value:     value,
		Data:      rtx.Data,
	})
	signed, err := ethTypes.SignTx(tx, ethTypes.LatestSignerForChainID(chainID), f.key)
	if err != nil {
		return "", err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hexutil.Encode(raw), nil
}

func (f *FakeWeb3Signer) handleSignRaw(w http.ResponseWriter, r *http.Request) {
	identifier := strings.TrimPrefix(r.URL.Path, "/api/v1/eth1/sign/")
	if err := f.checkAccount(identifier); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := hexutil.Decode(req.Data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sig, err := crypto.Sign(crypto.Keccak256(data), f.key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sig[64] += 27
	_, _ = w.Write([]byte(hexutil.Encode(sig)))
}
