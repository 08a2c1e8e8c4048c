package authorizationSigner

import (
	"context"
	"fmt"

	internalAws "github.com/Layr-Labs/token-withdrawal-module-go/internal/aws"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/clients/web3signer"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Config selects one key source. Exactly one of PrivateKey, KMSKeyId or Web3SignerUrl
// must be set.
type Config struct {
	PrivateKey string

	KMSKeyId  string
	AWSRegion string

	Web3SignerUrl     string
	Web3SignerAddress string

	Scheme signature.Scheme
}

func (c *Config) sources() int {
	n := 0
	for _, v := range []string{c.PrivateKey, c.KMSKeyId, c.Web3SignerUrl} {
		if v != "" {
			n++
		}
	}
	return n
}

func NewAuthorizationSigner(ctx context.Context, cfg *Config, logger *zap.Logger) (IAuthorizationSigner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("signer config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.sources() != 1 {
		return nil, fmt.Errorf("exactly one of private key, KMS key id or web3signer url must be set")
	}

	switch {
	case cfg.PrivateKey != "":
		return NewLocalSigner(cfg.PrivateKey, cfg.Scheme)

	case cfg.KMSKeyId != "":
		client, err := internalAws.NewKMSClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewAWSKMSSigner(ctx, client, cfg.KMSKeyId, cfg.Scheme, logger)

	default:
		if cfg.Scheme != "" && cfg.Scheme != signature.SchemePersonal {
			return nil, fmt.Errorf("web3signer only supports the %s scheme", signature.SchemePersonal)
		}
		if !common.IsHexAddress(cfg.Web3SignerAddress) {
			return nil, fmt.Errorf("invalid web3signer address %q", cfg.Web3SignerAddress)
		}
		client, err := web3signer.NewClient(&web3signer.Config{BaseUrl: cfg.Web3SignerUrl}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create web3signer client: %w", err)
		}
		return NewWeb3Signer(client, common.HexToAddress(cfg.Web3SignerAddress), logger)
	}
}
