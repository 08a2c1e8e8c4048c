package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the withdrawal module
const (
	EnvWithdrawalTokenAsset        = "WITHDRAWAL_TOKEN_ASSET"
	EnvWithdrawalControllingWallet = "WITHDRAWAL_CONTROLLING_WALLET"
	EnvWithdrawalRPCURL            = "WITHDRAWAL_RPC_URL"
	EnvWithdrawalChainID           = "WITHDRAWAL_CHAIN_ID"
	EnvWithdrawalModulePrivateKey  = "WITHDRAWAL_MODULE_PRIVATE_KEY"
	EnvWithdrawalSignerURL         = "WITHDRAWAL_SIGNER_URL"
	EnvWithdrawalSignerAddress     = "WITHDRAWAL_SIGNER_ADDRESS"
	EnvWithdrawalSignerPublicKey   = "WITHDRAWAL_SIGNER_PUBLIC_KEY"
	EnvWithdrawalSignatureScheme   = "WITHDRAWAL_SIGNATURE_SCHEME"
	EnvWithdrawalPersistence       = "WITHDRAWAL_PERSISTENCE"
	EnvWithdrawalDataPath          = "WITHDRAWAL_DATA_PATH"
	EnvWithdrawalRedisAddress      = "WITHDRAWAL_REDIS_ADDRESS"
	EnvWithdrawalRedisPassword     = "WITHDRAWAL_REDIS_PASSWORD"
	EnvWithdrawalRedisDB           = "WITHDRAWAL_REDIS_DB"
	EnvWithdrawalRedisKeyPrefix    = "WITHDRAWAL_REDIS_KEY_PREFIX"
	EnvWithdrawalPort              = "WITHDRAWAL_PORT"
	EnvWithdrawalRateLimit         = "WITHDRAWAL_RATE_LIMIT"
	EnvWithdrawalRateBurst         = "WITHDRAWAL_RATE_BURST"
	EnvWithdrawalWSAllowedOrigins  = "WITHDRAWAL_WS_ALLOWED_ORIGINS"
	EnvWithdrawalAWSKMSKeyID       = "WITHDRAWAL_AWS_KMS_KEY_ID"
	EnvWithdrawalAWSRegion         = "WITHDRAWAL_AWS_REGION"
	EnvWithdrawalMonitorInterval   = "WITHDRAWAL_MONITOR_INTERVAL"
	EnvWithdrawalMonitorEvery      = "WITHDRAWAL_MONITOR_EVERY"
	EnvWithdrawalServerURL         = "WITHDRAWAL_SERVER_URL"
	EnvWithdrawalOwnerPrivateKey   = "WITHDRAWAL_OWNER_PRIVATE_KEY"
	EnvWithdrawalOwnerSignerURL    = "WITHDRAWAL_OWNER_SIGNER_URL"
	EnvWithdrawalOwnerAddress      = "WITHDRAWAL_OWNER_ADDRESS"
	EnvWithdrawalDebug             = "WITHDRAWAL_DEBUG"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// IsEthereum reports whether the chain is an L1 Ethereum network (or a local fork of one).
func IsEthereum(chainId ChainId) bool {
	_, ok := ChainIdToName[chainId]
	return ok
}

// FeePolicy controls how transaction signers price EIP-1559 transactions.
type FeePolicy struct {
	// FallbackGasTipCap is used when the node cannot suggest a priority fee
	FallbackGasTipCap *big.Int
	// BaseFeeMultiplier is applied to the latest base fee to get maxFeePerGas
	BaseFeeMultiplier int64
}

// GetFeePolicyForChain returns the fee policy for a chain. Unknown chains are treated as
// L2s with cheap, spiky fees.
func GetFeePolicyForChain(chainId ChainId) *FeePolicy {
	if IsEthereum(chainId) {
		return &FeePolicy{
			FallbackGasTipCap: big.NewInt(1500000000), // 1.5 gwei
			BaseFeeMultiplier: 3,
		}
	}
	return &FeePolicy{
		FallbackGasTipCap: big.NewInt(1000000), // 0.001 gwei
		BaseFeeMultiplier: 2,
	}
}

// GetSupportedChainIDs returns all supported chain IDs
func GetSupportedChainIDs() []ChainId {
	return []ChainId{
		ChainId_EthereumMainnet,
		ChainId_EthereumSepolia,
		ChainId_EthereumAnvil,
	}
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

type PersistenceConfig struct {
	Type PersistenceType `json:"type" yaml:"type"`

	// DataPath is the Badger directory
	DataPath string `json:"dataPath" yaml:"dataPath"`

	RedisAddress   string `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB        int    `json:"redisDb" yaml:"redisDb"`
	RedisKeyPrefix string `json:"redisKeyPrefix" yaml:"redisKeyPrefix"`
}

func (pc *PersistenceConfig) Validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch pc.Type {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if pc.DataPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if pc.RedisDB < 0 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDb"), pc.RedisDB, "must be non-negative"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), string(pc.Type), []string{
			string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis),
		}))
	}
	return allErrors
}

type RemoteSignerConfig struct {
	Url         string `json:"url" yaml:"url"`
	CACert      string `json:"caCert" yaml:"caCert"`
	Cert        string `json:"cert" yaml:"cert"`
	Key         string `json:"key" yaml:"key"`
	FromAddress string `json:"fromAddress" yaml:"fromAddress"`
	PublicKey   string `json:"publicKey" yaml:"publicKey"`
}

func (rsc *RemoteSignerConfig) Validate() error {
	if errs := rsc.validate(field.NewPath("remoteSigner")); len(errs) > 0 {
		return errs.ToAggregate()
	}
	return nil
}

func (rsc *RemoteSignerConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	if rsc.FromAddress == "" {
		allErrors = append(allErrors, field.Required(path.Child("fromAddress"), "fromAddress is required"))
	} else if !common.IsHexAddress(rsc.FromAddress) {
		allErrors = append(allErrors, field.Invalid(path.Child("fromAddress"), rsc.FromAddress, "must be a hex address"))
	}
	if rsc.PublicKey == "" {
		allErrors = append(allErrors, field.Required(path.Child("publicKey"), "publicKey is required"))
	}
	return allErrors
}

// ModuleSignerConfig selects the key that sends execTransactionFromModule transactions.
// The key's address is the module address enabled on the controlling wallet.
type ModuleSignerConfig struct {
	PrivateKey   string              `json:"privateKey" yaml:"privateKey"`
	RemoteSigner *RemoteSignerConfig `json:"remoteSigner,omitempty" yaml:"remoteSigner,omitempty"`
}

func (msc *ModuleSignerConfig) Validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	hasKey := msc.PrivateKey != ""
	hasRemote := msc.RemoteSigner != nil
	switch {
	case hasKey && hasRemote:
		allErrors = append(allErrors, field.Forbidden(path, "only one of privateKey or remoteSigner may be set"))
	case !hasKey && !hasRemote:
		allErrors = append(allErrors, field.Required(path, "one of privateKey or remoteSigner is required"))
	case hasKey:
		key := strings.TrimPrefix(msc.PrivateKey, "0x")
		if len(key) != 64 {
			allErrors = append(allErrors, field.Invalid(path.Child("privateKey"), "<redacted>",
				fmt.Sprintf("must be 32 bytes (64 hex chars), got %d chars", len(key))))
		}
	default:
		allErrors = append(allErrors, msc.RemoteSigner.validate(path.Child("remoteSigner"))...)
	}
	return allErrors
}

// WithdrawalModuleConfig is the configuration of a withdrawal module service bound to one
// token and one controlling wallet.
type WithdrawalModuleConfig struct {
	TokenAsset        string `json:"token_asset"`
	ControllingWallet string `json:"controlling_wallet"`

	// Chain configuration
	RpcUrl    string    `json:"rpc_url"`
	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`

	ModuleSigner    ModuleSignerConfig `json:"module_signer"`
	SignatureScheme string             `json:"signature_scheme"`

	Persistence PersistenceConfig `json:"persistence"`

	// HTTP API
	Port      int     `json:"port"`
	RateLimit float64 `json:"rate_limit"` // withdraw requests per second, 0 disables
	RateBurst int     `json:"rate_burst"`
	// WSAllowedOrigins lists browser origins allowed on /events/ws besides the server's own.
	WSAllowedOrigins []string `json:"ws_allowed_origins"`

	// MonitorInterval is how often the chain head is polled for status checks. Zero
	// disables the module monitor.
	MonitorInterval time.Duration `json:"monitor_interval"`
	MonitorEvery    uint64        `json:"monitor_every"`

	Debug bool `json:"debug"`
}

// Validate validates the configuration and fills in derived fields.
func (c *WithdrawalModuleConfig) Validate() error {
	var allErrors field.ErrorList
	root := field.NewPath("withdrawal")

	allErrors = append(allErrors, validateAddress(root.Child("tokenAsset"), c.TokenAsset)...)
	allErrors = append(allErrors, validateAddress(root.Child("controllingWallet"), c.ControllingWallet)...)
	if len(allErrors) == 0 && strings.EqualFold(c.TokenAsset, c.ControllingWallet) {
		allErrors = append(allErrors, field.Invalid(root.Child("controllingWallet"), c.ControllingWallet, "must differ from tokenAsset"))
	}

	if c.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(root.Child("rpcUrl"), "rpcUrl is required"))
	}
	if c.ChainID == 0 {
		allErrors = append(allErrors, field.Required(root.Child("chainId"), "chainId is required"))
	}

	allErrors = append(allErrors, c.ModuleSigner.Validate(root.Child("moduleSigner"))...)

	if c.SignatureScheme == "" {
		c.SignatureScheme = string(signature.SchemePersonal)
	}
	if _, err := signature.NewRecoverer(signature.Scheme(c.SignatureScheme)); err != nil {
		supported := make([]string, 0)
		for _, s := range signature.SupportedSchemes() {
			supported = append(supported, s.String())
		}
		allErrors = append(allErrors, field.NotSupported(root.Child("signatureScheme"), c.SignatureScheme, supported))
	}

	if c.Persistence.Type == "" {
		c.Persistence.Type = PersistenceType_Memory
	}
	allErrors = append(allErrors, c.Persistence.Validate(root.Child("persistence"))...)

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(root.Child("port"), c.Port, "must be between 1-65535"))
	}
	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(root.Child("rateLimit"), c.RateLimit, "must be non-negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		allErrors = append(allErrors, field.Invalid(root.Child("rateBurst"), c.RateBurst, "must be at least 1 when rateLimit is set"))
	}

	if c.MonitorInterval < 0 {
		allErrors = append(allErrors, field.Invalid(root.Child("monitorInterval"), c.MonitorInterval.String(), "must be non-negative"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}

	// unknown chains are allowed (L2s, private devnets); they just have no name
	if name, ok := ChainIdToName[c.ChainID]; ok {
		c.ChainName = name
	}
	return nil
}

func (c *WithdrawalModuleConfig) TokenAssetAddress() common.Address {
	return common.HexToAddress(c.TokenAsset)
}

func (c *WithdrawalModuleConfig) ControllingWalletAddress() common.Address {
	return common.HexToAddress(c.ControllingWallet)
}

func validateAddress(path *field.Path, value string) field.ErrorList {
	if value == "" {
		return field.ErrorList{field.Required(path, "address is required")}
	}
	if !common.IsHexAddress(value) {
		return field.ErrorList{field.Invalid(path, value, "must be a hex address")}
	}
	if common.HexToAddress(value) == (common.Address{}) {
		return field.ErrorList{field.Invalid(path, value, "cannot be the zero address")}
	}
	return nil
}
