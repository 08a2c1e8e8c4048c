package web3signer

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const (
	DefaultBaseUrl = "http://localhost:9000"
	DefaultTimeout = 30 * time.Second
)

type Config struct {
	BaseUrl string
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		BaseUrl: DefaultBaseUrl,
		Timeout: DefaultTimeout,
	}
}

// Client talks to a Web3Signer instance over its eth1 JSON-RPC and REST endpoints.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	requestId  atomic.Uint64
}

func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = DefaultBaseUrl
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// NewWeb3SignerClientFromRemoteSignerConfig builds a client from the remote signer config,
// wiring mTLS when a client certificate is configured. A nil config uses the defaults.
func NewWeb3SignerClientFromRemoteSignerConfig(rsc *config.RemoteSignerConfig, logger *zap.Logger) (*Client, error) {
	cfg := DefaultConfig()
	if rsc == nil {
		return NewClient(cfg, logger)
	}
	if rsc.Url != "" {
		cfg.BaseUrl = rsc.Url
	}

	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	if rsc.CACert == "" && rsc.Cert == "" {
		return client, nil
	}

	tlsConfig, err := buildTLSConfig(rsc)
	if err != nil {
		return nil, fmt.Errorf("failed to build TLS config: %w", err)
	}
	client.SetHttpClient(&http.Client{
		Timeout:   cfg.Timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	})
	return client, nil
}

func buildTLSConfig(rsc *config.RemoteSignerConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if rsc.CACert != "" {
		pem, err := readPEM(rsc.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA bundle")
		}
		tlsConfig.RootCAs = pool
	}

	if rsc.Cert != "" {
		certPEM, err := readPEM(rsc.Cert)
		if err != nil {
			return nil, fmt.Errorf("failed to read client certificate: %w", err)
		}
		keyPEM, err := readPEM(rsc.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to read client key: %w", err)
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load client key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// readPEM accepts either inline PEM or a path to a PEM file.
func readPEM(value string) ([]byte, error) {
	if strings.Contains(value, "-----BEGIN") {
		return []byte(value), nil
	}
	return os.ReadFile(value)
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

type jsonRpcRequest struct {
	JsonRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	Id      uint64        `json:"id"`
}

type jsonRpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *jsonRpcError) Error() string {
	return fmt.Sprintf("web3signer error %d: %s", e.Code, e.Message)
}

type jsonRpcResponse struct {
	JsonRpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRpcError   `json:"error,omitempty"`
	Id      uint64          `json:"id"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	req := &jsonRpcRequest{
		JsonRpc: "2.0",
		Method:  method,
		Params:  params,
		Id:      c.requestId.Add(1),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/", body)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}

	var resp jsonRpcResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, path string, body []byte) ([]byte, error) {
	url := strings.TrimSuffix(c.config.BaseUrl, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logger.Sugar().Debugw("Sending web3signer request", "method", method, "url", url)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func (c *Client) EthAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.call(ctx, "eth_accounts", []interface{}{}, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// EthSignTransaction returns the RLP encoded signed transaction as hex.
func (c *Client) EthSignTransaction(ctx context.Context, from string, transaction map[string]interface{}) (string, error) {
	tx := make(map[string]interface{}, len(transaction)+1)
	for k, v := range transaction {
		tx[k] = v
	}
	tx["from"] = from

	var signed string
	if err := c.call(ctx, "eth_signTransaction", []interface{}{tx}, &signed); err != nil {
		return "", err
	}
	return signed, nil
}

// EthSign signs data (hex) under the personal-message prefix.
func (c *Client) EthSign(ctx context.Context, account string, data string) (string, error) {
	var sig string
	if err := c.call(ctx, "eth_sign", []interface{}{account, data}, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

func (c *Client) ListPublicKeys(ctx context.Context) ([]string, error) {
	return c.EthAccounts(ctx)
}

func (c *Client) Sign(ctx context.Context, account string, data string) (string, error) {
	return c.EthSign(ctx, account, data)
}

type signRawRequest struct {
	Data string `json:"data"`
}

// SignRaw signs data with no message prefix through the eth1 REST endpoint.
func (c *Client) SignRaw(ctx context.Context, identifier string, data []byte) (string, error) {
	body, err := json.Marshal(&signRawRequest{Data: hexutil.Encode(data)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sign request: %w", err)
	}
	respBody, err := c.do(ctx, http.MethodPost, "/api/v1/eth1/sign/"+identifier, body)
	if err != nil {
		return "", fmt.Errorf("raw sign request failed: %w", err)
	}
	return strings.TrimSpace(string(respBody)), nil
}

func (c *Client) ReloadKeys(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, "/reload", nil); err != nil {
		return fmt.Errorf("failed to reload keys: %w", err)
	}
	return nil
}

// Upcheck reports whether the signer is reachable.
func (c *Client) Upcheck(ctx context.Context) error {
	body, err := c.do(ctx, http.MethodGet, "/upcheck", nil)
	if err != nil {
		return fmt.Errorf("upcheck failed: %w", err)
	}
	if strings.TrimSpace(string(body)) != "OK" {
		return fmt.Errorf("unexpected upcheck response: %s", string(body))
	}
	return nil
}
