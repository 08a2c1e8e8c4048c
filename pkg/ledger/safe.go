package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/middleware-bindings/ISafe"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/util"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var (
	ErrModuleNotEnabled   = errors.New("GS104: method can only be called from an enabled module")
	ErrThresholdNotMet    = errors.New("GS020: signatures data too short")
	ErrInvalidOwnerSig    = errors.New("GS026: invalid owner provided")
	ErrDuplicateOwnerSig  = errors.New("GS025: duplicate owner signature")
	ErrInvalidThreshold   = errors.New("GS201: threshold cannot exceed owner count")
	ErrInvalidOwner       = errors.New("GS203: invalid owner address provided")
	ErrOwnerAlreadyExists = errors.New("GS204: address is already an owner")
	ErrNotAnOwner         = errors.New("GS205: invalid prevOwner, owner pair provided")
	ErrInvalidModule      = errors.New("GS101: invalid module address provided")
	ErrModuleExists       = errors.New("GS102: module has already been added")
	ErrModuleNotFound     = errors.New("GS103: invalid prevModule, module pair provided")
)

// Names of the events a SafeWallet records, matching the Safe contract's events.
const (
	EventExecutionSuccess           = "ExecutionSuccess"
	EventExecutionFailure           = "ExecutionFailure"
	EventExecutionFromModuleSuccess = "ExecutionFromModuleSuccess"
	EventExecutionFromModuleFailure = "ExecutionFromModuleFailure"
	EventEnabledModule              = "EnabledModule"
	EventDisabledModule             = "DisabledModule"
	EventAddedOwner                 = "AddedOwner"
	EventRemovedOwner               = "RemovedOwner"
	EventChangedThreshold           = "ChangedThreshold"
)

type SafeEvent struct {
	Name    string
	Subject common.Address
	Value   uint64
}

var (
	safeABI = mustSafeABI()

	safeTxHashArgs = abi.Arguments{
		{Type: mustType("address")},
		{Type: mustType("address")},
		{Type: mustType("uint256")},
		{Type: mustType("bytes32")},
		{Type: mustType("uint8")},
		{Type: mustType("uint256")},
	}
)

func mustSafeABI() *abi.ABI {
	parsed, err := ISafe.ISafeMetaData.GetAbi()
	if err != nil {
		panic(fmt.Sprintf("failed to parse safe ABI: %v", err))
	}
	return parsed
}

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// SafeWallet is a multi-owner wallet with a signature threshold and a set of enabled modules.
// Owners administer it through ExecTransaction; enabled modules act through
// ExecTransactionFromModule.
type SafeWallet struct {
	chain   *Chain
	address common.Address

	mu        sync.RWMutex
	owners    []common.Address
	threshold uint64
	modules   map[common.Address]bool
	nonce     uint64
	events    []SafeEvent

	logger *zap.Logger
}

func newSafeWallet(chain *Chain, address common.Address, owners []common.Address, threshold uint64, logger *zap.Logger) (*SafeWallet, error) {
	if len(owners) == 0 {
		return nil, fmt.Errorf("safe requires at least one owner")
	}
	if threshold == 0 || threshold > uint64(len(owners)) {
		return nil, fmt.Errorf("%w: threshold %d, owners %d", ErrInvalidThreshold, threshold, len(owners))
	}

	s := &SafeWallet{
		chain:     chain,
		address:   address,
		threshold: threshold,
		modules:   make(map[common.Address]bool),
		logger:    logger,
	}
	for _, owner := range owners {
		if owner == (common.Address{}) || owner == address {
			return nil, fmt.Errorf("%w: %s", ErrInvalidOwner, owner.Hex())
		}
		if s.isOwnerLocked(owner) {
			return nil, fmt.Errorf("%w: %s", ErrOwnerAlreadyExists, owner.Hex())
		}
		s.owners = append(s.owners, owner)
	}
	return s, nil
}

func (s *SafeWallet) Address() common.Address {
	return s.address
}

func (s *SafeWallet) IsOwner(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOwnerLocked(addr)
}

func (s *SafeWallet) Owners() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]common.Address(nil), s.owners...)
}

func (s *SafeWallet) Threshold() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

func (s *SafeWallet) Nonce() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonce
}

func (s *SafeWallet) IsModuleEnabled(module common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modules[module]
}

func (s *SafeWallet) Events() []SafeEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SafeEvent(nil), s.events...)
}

// AddOwner, RemoveOwner, EnableModule and DisableModule apply an administrative change
// directly, as the wallet calling itself. Use ExecTransaction to go through owner approvals.

func (s *SafeWallet) AddOwner(owner common.Address, threshold uint64) error {
	return s.selfCall(func() error { return s.addOwnerLocked(owner, threshold) })
}

func (s *SafeWallet) RemoveOwner(owner common.Address, threshold uint64) error {
	return s.selfCall(func() error { return s.removeOwnerLocked(owner, threshold) })
}

func (s *SafeWallet) ChangeThreshold(threshold uint64) error {
	return s.selfCall(func() error { return s.changeThresholdLocked(threshold) })
}

func (s *SafeWallet) EnableModule(module common.Address) error {
	return s.selfCall(func() error { return s.enableModuleLocked(module) })
}

func (s *SafeWallet) DisableModule(module common.Address) error {
	return s.selfCall(func() error { return s.disableModuleLocked(module) })
}

func (s *SafeWallet) selfCall(fn func() error) error {
	return s.chain.Atomically(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn()
	})
}

// TransactionHash is the digest owners sign to approve a wallet transaction at the given nonce.
func (s *SafeWallet) TransactionHash(to common.Address, value *big.Int, data []byte, operation types.Operation, nonce uint64) (common.Hash, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	packed, err := safeTxHashArgs.Pack(
		s.address,
		to,
		value,
		crypto.Keccak256Hash(data),
		uint8(operation),
		new(big.Int).SetUint64(nonce),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack safe transaction: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// ExecTransaction executes a wallet transaction approved by at least threshold distinct owners.
// Each signature is a raw secp256k1 signature over TransactionHash at the current nonce.
// Invalid approvals return an error and leave the nonce untouched; a failing inner call
// consumes the nonce and returns false.
func (s *SafeWallet) ExecTransaction(to common.Address, value *big.Int, data []byte, operation types.Operation, signatures [][]byte) (bool, error) {
	var success bool
	err := s.chain.Atomically(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		hash, err := s.TransactionHash(to, value, data, operation, s.nonce)
		if err != nil {
			return err
		}
		if err := s.checkSignaturesLocked(hash, signatures); err != nil {
			return err
		}

		s.nonce++
		success = s.callLocked(to, value, data, operation)
		if success {
			s.emitLocked(EventExecutionSuccess, common.Address{}, s.nonce-1)
		} else {
			s.emitLocked(EventExecutionFailure, common.Address{}, s.nonce-1)
		}
		return nil
	})
	return success, err
}

// execTransactionFromModule must run inside Chain.Atomically.
func (s *SafeWallet) execTransactionFromModule(module common.Address, to common.Address, value *big.Int, data []byte, operation types.Operation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.modules[module] {
		return false, fmt.Errorf("%w: %s", ErrModuleNotEnabled, module.Hex())
	}

	success := s.callLocked(to, value, data, operation)
	if success {
		s.emitLocked(EventExecutionFromModuleSuccess, module, 0)
	} else {
		s.emitLocked(EventExecutionFromModuleFailure, module, 0)
	}

	s.logger.Sugar().Debugw("Module transaction executed",
		"safe", s.address.Hex(),
		"module", module.Hex(),
		"to", to.Hex(),
		"success", success,
	)
	return success, nil
}

// SimulateTransactionFromModule reports what execTransactionFromModule would return
// without changing state, like an eth_call against the latest block. Self calls are only
// checked for well-formed calldata.
func (s *SafeWallet) SimulateTransactionFromModule(module common.Address, to common.Address, value *big.Int, data []byte, operation types.Operation) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.modules[module] {
		return false, fmt.Errorf("%w: %s", ErrModuleNotEnabled, module.Hex())
	}
	if operation != types.OperationCall || (value != nil && value.Sign() != 0) {
		return false, nil
	}
	if to == s.address {
		if len(data) < 4 {
			return false, nil
		}
		_, err := safeABI.MethodById(data[:4])
		return err == nil, nil
	}

	token, ok := s.chain.token(to)
	if !ok {
		return false, nil
	}
	_, amount, err := util.DecodeERC20Transfer(data)
	if err != nil {
		return false, nil
	}
	return amount.Cmp(token.BalanceOf(s.address)) <= 0, nil
}

func (s *SafeWallet) checkSignaturesLocked(hash common.Hash, signatures [][]byte) error {
	if uint64(len(signatures)) < s.threshold {
		return fmt.Errorf("%w: have %d, need %d", ErrThresholdNotMet, len(signatures), s.threshold)
	}

	recoverer := &signature.RawDigestRecoverer{}
	seen := make(map[common.Address]bool, len(signatures))
	for _, sig := range signatures {
		signer, err := recoverer.RecoverSigner(hash, sig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOwnerSig, err)
		}
		if !s.isOwnerLocked(signer) {
			return fmt.Errorf("%w: %s", ErrInvalidOwnerSig, signer.Hex())
		}
		if seen[signer] {
			return fmt.Errorf("%w: %s", ErrDuplicateOwnerSig, signer.Hex())
		}
		seen[signer] = true
	}
	return nil
}

// callLocked performs a call from the wallet's account. Native value and delegatecall are
// not modelled and always fail.
func (s *SafeWallet) callLocked(to common.Address, value *big.Int, data []byte, operation types.Operation) bool {
	if operation != types.OperationCall {
		return false
	}
	if value != nil && value.Sign() != 0 {
		return false
	}

	if to == s.address {
		if err := s.dispatchSelfCallLocked(data); err != nil {
			s.logger.Sugar().Debugw("Safe self call failed", "safe", s.address.Hex(), "error", err)
			return false
		}
		return true
	}

	token, ok := s.chain.token(to)
	if !ok {
		return false
	}
	recipient, amount, err := util.DecodeERC20Transfer(data)
	if err != nil {
		return false
	}
	if err := token.transfer(s.address, recipient, amount); err != nil {
		s.logger.Sugar().Debugw("Token transfer from safe failed", "safe", s.address.Hex(), "error", err)
		return false
	}
	return true
}

func (s *SafeWallet) dispatchSelfCallLocked(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("calldata too short")
	}
	method, err := safeABI.MethodById(data[:4])
	if err != nil {
		return err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return fmt.Errorf("failed to unpack %s: %w", method.Name, err)
	}

	switch method.Name {
	case "enableModule":
		return s.enableModuleLocked(args[0].(common.Address))
	case "disableModule":
		return s.disableModuleLocked(args[1].(common.Address))
	case "addOwnerWithThreshold":
		threshold, err := thresholdArg(args[1])
		if err != nil {
			return err
		}
		return s.addOwnerLocked(args[0].(common.Address), threshold)
	case "removeOwner":
		threshold, err := thresholdArg(args[2])
		if err != nil {
			return err
		}
		return s.removeOwnerLocked(args[1].(common.Address), threshold)
	case "changeThreshold":
		threshold, err := thresholdArg(args[0])
		if err != nil {
			return err
		}
		return s.changeThresholdLocked(threshold)
	default:
		return fmt.Errorf("unsupported self call %s", method.Name)
	}
}

// thresholdArg narrows a uint256 threshold. Anything above 2^64-1 exceeds every owner count.
func thresholdArg(arg interface{}) (uint64, error) {
	v, ok := arg.(*big.Int)
	if !ok || !v.IsUint64() {
		return 0, ErrInvalidThreshold
	}
	return v.Uint64(), nil
}

func (s *SafeWallet) isOwnerLocked(addr common.Address) bool {
	for _, o := range s.owners {
		if o == addr {
			return true
		}
	}
	return false
}

func (s *SafeWallet) addOwnerLocked(owner common.Address, threshold uint64) error {
	if owner == (common.Address{}) || owner == s.address {
		return fmt.Errorf("%w: %s", ErrInvalidOwner, owner.Hex())
	}
	if s.isOwnerLocked(owner) {
		return fmt.Errorf("%w: %s", ErrOwnerAlreadyExists, owner.Hex())
	}
	if threshold == 0 || threshold > uint64(len(s.owners)+1) {
		return fmt.Errorf("%w: threshold %d, owners %d", ErrInvalidThreshold, threshold, len(s.owners)+1)
	}
	s.owners = append(s.owners, owner)
	s.emitLocked(EventAddedOwner, owner, 0)
	return s.setThresholdLocked(threshold)
}

func (s *SafeWallet) removeOwnerLocked(owner common.Address, threshold uint64) error {
	idx := -1
	for i, o := range s.owners {
		if o == owner {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotAnOwner, owner.Hex())
	}
	if threshold == 0 || threshold > uint64(len(s.owners)-1) {
		return fmt.Errorf("%w: threshold %d, owners %d", ErrInvalidThreshold, threshold, len(s.owners)-1)
	}
	s.owners = append(s.owners[:idx:idx], s.owners[idx+1:]...)
	s.emitLocked(EventRemovedOwner, owner, 0)
	return s.setThresholdLocked(threshold)
}

func (s *SafeWallet) changeThresholdLocked(threshold uint64) error {
	if threshold == 0 || threshold > uint64(len(s.owners)) {
		return fmt.Errorf("%w: threshold %d, owners %d", ErrInvalidThreshold, threshold, len(s.owners))
	}
	return s.setThresholdLocked(threshold)
}

func (s *SafeWallet) setThresholdLocked(threshold uint64) error {
	if s.threshold != threshold {
		s.threshold = threshold
		s.emitLocked(EventChangedThreshold, common.Address{}, threshold)
	}
	return nil
}

func (s *SafeWallet) enableModuleLocked(module common.Address) error {
	if module == (common.Address{}) {
		return ErrInvalidModule
	}
	if s.modules[module] {
		return fmt.Errorf("%w: %s", ErrModuleExists, module.Hex())
	}
	s.modules[module] = true
	s.emitLocked(EventEnabledModule, module, 0)
	return nil
}

func (s *SafeWallet) disableModuleLocked(module common.Address) error {
	if !s.modules[module] {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, module.Hex())
	}
	delete(s.modules, module)
	s.emitLocked(EventDisabledModule, module, 0)
	return nil
}

func (s *SafeWallet) emitLocked(name string, subject common.Address, value uint64) {
	s.events = append(s.events, SafeEvent{Name: name, Subject: subject, Value: value})
}
