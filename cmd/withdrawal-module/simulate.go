package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/ledger"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/middleware-bindings/ISafe"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence/memory"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/server"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/withdrawal"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	simTokenAddress  = common.HexToAddress("0x00000000000000000000000000000000000070C3")
	simSafeAddress   = common.HexToAddress("0x000000000000000000000000000000000000005A")
	simModuleAddress = common.HexToAddress("0x000000000000000000000000000000000000A0D1")
	simRecipient     = common.HexToAddress("0x00000000000000000000000000000000000000B0")
)

type scenarioParams struct {
	Balance   int64
	Owners    int
	Threshold uint64
	Amount    int64
}

type scenarioStep struct {
	Name         string `json:"name"`
	Signer       string `json:"signer"`
	Amount       string `json:"amount"`
	Outcome      string `json:"outcome"`
	EventID      string `json:"eventId,omitempty"`
	SafeBalance  string `json:"safeBalance"`
	Recipient    string `json:"recipientBalance"`
	ErrorMessage string `json:"error,omitempty"`
}

type scenarioReport struct {
	Token     string          `json:"token"`
	Safe      string          `json:"safe"`
	Module    string          `json:"module"`
	Owners    []string        `json:"owners"`
	Threshold uint64          `json:"threshold"`
	Steps     []*scenarioStep `json:"steps"`
	Events    int             `json:"events"`
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Run a scripted withdrawal scenario against an in-process chain",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "balance", Value: 50, Usage: "Initial Safe token balance"},
			&cli.IntFlag{Name: "owners", Value: 3, Usage: "Number of Safe owners"},
			&cli.Uint64Flag{Name: "threshold", Value: 2, Usage: "Safe confirmation threshold"},
			&cli.Int64Flag{Name: "amount", Value: 10, Usage: "Amount per authorized withdrawal"},
		},
		Action: func(c *cli.Context) error {
			l, err := newLogger(c)
			if err != nil {
				return err
			}
			defer func() { _ = l.Sync() }()

			report, err := runScenario(c.Context, &scenarioParams{
				Balance:   c.Int64("balance"),
				Owners:    c.Int("owners"),
				Threshold: c.Uint64("threshold"),
				Amount:    c.Int64("amount"),
			}, l)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

type simulation struct {
	chain     *ledger.Chain
	token     *ledger.TokenLedger
	safe      *ledger.SafeWallet
	module    *ledger.HostedModule
	publisher *server.EventPublisher
	owners    []*ecdsa.PrivateKey
	safeAbi   *abi.ABI
}

func (p *scenarioParams) validate() error {
	if p.Owners < 1 {
		return fmt.Errorf("at least one owner is required")
	}
	if p.Threshold < 1 || p.Threshold > uint64(p.Owners) {
		return fmt.Errorf("threshold must be between 1 and %d", p.Owners)
	}
	if p.Balance < 0 || p.Amount < 1 {
		return fmt.Errorf("balance must be non-negative and amount positive")
	}
	return nil
}

func newSimulation(p *scenarioParams, l *zap.Logger) (*simulation, error) {
	s := &simulation{chain: ledger.NewChain(l)}
	safeAbi, err := ISafe.ISafeMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	s.safeAbi = safeAbi

	owners := make([]common.Address, 0, p.Owners)
	for i := 0; i < p.Owners; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		s.owners = append(s.owners, key)
		owners = append(owners, crypto.PubkeyToAddress(key.PublicKey))
	}

	if s.token, err = s.chain.DeployToken(simTokenAddress); err != nil {
		return nil, err
	}
	if s.safe, err = s.chain.DeploySafe(simSafeAddress, owners, p.Threshold); err != nil {
		return nil, err
	}
	if err := s.token.Mint(simSafeAddress, big.NewInt(p.Balance)); err != nil {
		return nil, err
	}

	s.publisher, err = server.NewEventPublisher(memory.NewMemoryPersistence(l), l)
	if err != nil {
		return nil, err
	}
	s.module, err = s.chain.DeployModule(simModuleAddress, &withdrawal.ModuleConfig{
		TokenAsset:        simTokenAddress,
		ControllingWallet: simSafeAddress,
		EventSink:         s.publisher,
	}, l)
	if err != nil {
		return nil, err
	}

	if err := s.ownerCall("enableModule", simModuleAddress); err != nil {
		return nil, fmt.Errorf("failed to enable module: %w", err)
	}
	return s, nil
}

// ownerCall runs a Safe self-call approved by the first threshold owners.
func (s *simulation) ownerCall(method string, args ...interface{}) error {
	data, err := s.safeAbi.Pack(method, args...)
	if err != nil {
		return err
	}
	hash, err := s.safe.TransactionHash(simSafeAddress, big.NewInt(0), data, types.OperationCall, s.safe.Nonce())
	if err != nil {
		return err
	}
	sigs := make([][]byte, 0, s.safe.Threshold())
	for _, key := range s.owners[:s.safe.Threshold()] {
		sig, err := signature.SignRawDigest(key, hash)
		if err != nil {
			return err
		}
		sigs = append(sigs, sig)
	}
	ok, err := s.safe.ExecTransaction(simSafeAddress, big.NewInt(0), data, types.OperationCall, sigs)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s reverted", method)
	}
	return nil
}

func signClaim(key *ecdsa.PrivateKey, amount int64, message string) (*types.WithdrawalClaim, error) {
	digest := signature.MessageDigest(message)
	sig, err := signature.SignPersonalMessage(key, digest)
	if err != nil {
		return nil, err
	}
	return &types.WithdrawalClaim{
		Recipient:     simRecipient,
		Amount:        big.NewInt(amount),
		Signature:     sig,
		MessageDigest: digest,
	}, nil
}

func (s *simulation) attempt(ctx context.Context, name string, signer common.Address, claim *types.WithdrawalClaim) (*scenarioStep, error) {
	step := &scenarioStep{Name: name, Signer: signer.Hex(), Amount: claim.Amount.String()}
	receipt, err := s.module.Withdraw(ctx, claim)
	switch {
	case err == nil:
		step.Outcome = "Completed"
		step.EventID = receipt.EventID
	default:
		kind, ok := withdrawal.KindOf(err)
		if !ok {
			return nil, fmt.Errorf("step %s could not be evaluated: %w", name, err)
		}
		step.Outcome = string(kind)
		step.ErrorMessage = err.Error()
	}
	step.SafeBalance = s.token.BalanceOf(simSafeAddress).String()
	step.Recipient = s.token.BalanceOf(simRecipient).String()
	return step, nil
}

// runScenario walks the authorization paths: a valid claim, a replay of it, a non-owner,
// an overdraft, and a claim whose signer has since been removed as owner.
func runScenario(ctx context.Context, p *scenarioParams, l *zap.Logger) (*scenarioReport, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	s, err := newSimulation(p, l)
	if err != nil {
		return nil, fmt.Errorf("failed to set up simulation: %w", err)
	}

	report := &scenarioReport{
		Token:     simTokenAddress.Hex(),
		Safe:      simSafeAddress.Hex(),
		Module:    simModuleAddress.Hex(),
		Threshold: p.Threshold,
	}
	for _, o := range s.safe.Owners() {
		report.Owners = append(report.Owners, o.Hex())
	}

	lastOwner := s.owners[len(s.owners)-1]
	lastOwnerAddr := crypto.PubkeyToAddress(lastOwner.PublicKey)
	outsider, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("withdraw %d to %s", p.Amount, simRecipient.Hex())
	valid, err := signClaim(lastOwner, p.Amount, message)
	if err != nil {
		return nil, err
	}
	stranger, err := signClaim(outsider, p.Amount, message)
	if err != nil {
		return nil, err
	}

	run := func(name string, signer common.Address, claim *types.WithdrawalClaim) error {
		step, err := s.attempt(ctx, name, signer, claim)
		if err != nil {
			return err
		}
		report.Steps = append(report.Steps, step)
		return nil
	}

	if err := run("owner authorization", lastOwnerAddr, valid); err != nil {
		return nil, err
	}
	if err := run("replayed authorization", lastOwnerAddr, valid); err != nil {
		return nil, err
	}
	if err := run("non-owner authorization", crypto.PubkeyToAddress(outsider.PublicKey), stranger); err != nil {
		return nil, err
	}

	overdraft, err := signClaim(lastOwner, s.token.BalanceOf(simSafeAddress).Int64()+1, message)
	if err != nil {
		return nil, err
	}
	if err := run("overdraft", lastOwnerAddr, overdraft); err != nil {
		return nil, err
	}

	// removing the signer invalidates its outstanding authorizations
	if p.Owners > 1 {
		threshold := p.Threshold
		if threshold > uint64(p.Owners-1) {
			threshold = uint64(p.Owners - 1)
		}
		prev := s.safe.Owners()[len(s.safe.Owners())-2]
		if err := s.ownerCall("removeOwner", prev, lastOwnerAddr, new(big.Int).SetUint64(threshold)); err != nil {
			return nil, fmt.Errorf("failed to remove owner: %w", err)
		}
		if err := run("removed owner authorization", lastOwnerAddr, valid); err != nil {
			return nil, err
		}
	}

	events, err := s.publisher.Store().ListEvents()
	if err != nil {
		return nil, err
	}
	report.Events = len(events)
	return report, nil
}
