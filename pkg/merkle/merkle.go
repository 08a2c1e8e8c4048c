package merkle

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// BuildMerkleTree commits to a set of withdrawal events. Events are ordered by sequence
// so every indexer holding the same events derives the same root. A level with an odd
// node count duplicates its last node.
func BuildMerkleTree(events []*types.WithdrawalEvent) (*MerkleTree, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty event list")
	}

	for i, e := range events {
		if e == nil || e.Amount == nil {
			return nil, fmt.Errorf("event at position %d is incomplete", i)
		}
	}
	sorted := SortEvents(events)

	leaves := make([][32]byte, len(sorted))
	ids := make([]string, len(sorted))
	for i, e := range sorted {
		leaves[i] = HashWithdrawalEvent(e)
		ids[i] = e.ID
	}

	levels := [][][32]byte{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			right := current[i]
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, hashPair(current[i], right))
		}
		levels = append(levels, next)
		current = next
	}

	return &MerkleTree{
		Leaves:   leaves,
		EventIDs: ids,
		Root:     current[0],
		levels:   levels,
	}, nil
}

// IndexOf returns the leaf index of an event, or -1.
func (mt *MerkleTree) IndexOf(eventID string) int {
	for i, id := range mt.EventIDs {
		if id == eventID {
			return i
		}
	}
	return -1
}

func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(mt.Leaves))
	}

	proof := make([][32]byte, 0, len(mt.levels)-1)
	index := leafIndex
	for level := 0; level < len(mt.levels)-1; level++ {
		nodes := mt.levels[level]

		sibling := index ^ 1
		if sibling >= len(nodes) {
			sibling = index
		}
		proof = append(proof, nodes[sibling])
		index /= 2
	}

	return &MerkleProof{
		LeafIndex: leafIndex,
		Leaf:      mt.Leaves[leafIndex],
		Proof:     proof,
	}, nil
}

// VerifyProof recomputes the root from proof and compares it with root.
func VerifyProof(proof *MerkleProof, root [32]byte) bool {
	if proof == nil || proof.LeafIndex < 0 {
		return false
	}

	hash := proof.Leaf
	index := proof.LeafIndex
	for _, sibling := range proof.Proof {
		if index%2 == 0 {
			hash = hashPair(hash, sibling)
		} else {
			hash = hashPair(sibling, hash)
		}
		index /= 2
	}
	return hash == root
}

// HashWithdrawalEvent is the leaf hash
//
//	keccak256(abi.encodePacked(uint64 sequence, address token, address wallet,
//	          address recipient, uint256 amount, address signer, bytes32 digest))
//
// The event ID and timestamp are off-chain bookkeeping and are not committed.
func HashWithdrawalEvent(e *types.WithdrawalEvent) [32]byte {
	data := make([]byte, 0, 8+20*4+32*2)
	data = append(data, new(big.Int).SetUint64(e.Sequence).FillBytes(make([]byte, 8))...)
	data = append(data, e.TokenAsset.Bytes()...)
	data = append(data, e.ControllingWallet.Bytes()...)
	data = append(data, e.Recipient.Bytes()...)
	data = append(data, math.U256Bytes(new(big.Int).Set(e.Amount))...)
	data = append(data, e.Signer.Bytes()...)
	data = append(data, e.MessageDigest.Bytes()...)
	return crypto.Keccak256Hash(data)
}

// SortEvents returns a copy of events ordered by ascending sequence.
func SortEvents(events []*types.WithdrawalEvent) []*types.WithdrawalEvent {
	sorted := make([]*types.WithdrawalEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})
	return sorted
}

func hashPair(left, right [32]byte) [32]byte {
	return crypto.Keccak256Hash(left[:], right[:])
}

// ProofHex renders proof hashes as 0x-prefixed strings.
func ProofHex(proof *MerkleProof) []string {
	out := make([]string, len(proof.Proof))
	for i, p := range proof.Proof {
		out[i] = common.Hash(p).Hex()
	}
	return out
}
