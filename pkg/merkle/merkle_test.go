package merkle

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestEvents creates n events with sequences 1..n
func createTestEvents(n int) []*types.WithdrawalEvent {
	events := make([]*types.WithdrawalEvent, n)
	for i := 0; i < n; i++ {
		events[i] = &types.WithdrawalEvent{
			ID:                common.BigToHash(big.NewInt(int64(i + 1))).Hex(),
			Sequence:          uint64(i + 1),
			TokenAsset:        common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
			ControllingWallet: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
			Recipient:         common.BigToAddress(big.NewInt(int64(1000 + i))),
			Amount:            big.NewInt(int64(10 * (i + 1))),
			Signer:            common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
			MessageDigest:     randomHash(),
		}
	}
	return events
}

func randomHash() [32]byte {
	var hash [32]byte
	_, _ = rand.Read(hash[:])
	return hash
}

func TestBuildMerkleTree(t *testing.T) {
	testCases := []struct {
		name      string
		numEvents int
	}{
		{"Single event", 1},
		{"Two events", 2},
		{"Three events", 3},
		{"Four events (power of 2)", 4},
		{"Seven events", 7},
		{"Sixteen events (power of 2)", 16},
		{"Seventeen events", 17},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			events := createTestEvents(tc.numEvents)
			tree, err := BuildMerkleTree(events)
			require.NoError(t, err)

			require.Len(t, tree.Leaves, tc.numEvents)
			require.Len(t, tree.EventIDs, tc.numEvents)
			require.NotEqual(t, [32]byte{}, tree.Root)

			if tc.numEvents == 1 {
				assert.Equal(t, tree.Leaves[0], tree.Root)
			}

			for i := range events {
				proof, err := tree.GenerateProof(i)
				require.NoError(t, err)
				assert.True(t, VerifyProof(proof, tree.Root), "proof for leaf %d", i)
			}
		})
	}
}

func TestBuildMerkleTreeEmpty(t *testing.T) {
	_, err := BuildMerkleTree(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestBuildMerkleTreeIncompleteEvent(t *testing.T) {
	events := createTestEvents(3)
	events[1].Amount = nil
	_, err := BuildMerkleTree(events)
	require.Error(t, err)

	_, err = BuildMerkleTree([]*types.WithdrawalEvent{nil})
	require.Error(t, err)
}

func TestMerkleProofRejectsTampering(t *testing.T) {
	tree, err := BuildMerkleTree(createTestEvents(5))
	require.NoError(t, err)

	proof, err := tree.GenerateProof(2)
	require.NoError(t, err)

	wrongLeaf := *proof
	wrongLeaf.Leaf = randomHash()
	assert.False(t, VerifyProof(&wrongLeaf, tree.Root))

	wrongIndex := *proof
	wrongIndex.LeafIndex = 3
	assert.False(t, VerifyProof(&wrongIndex, tree.Root))

	assert.False(t, VerifyProof(proof, randomHash()))
	assert.False(t, VerifyProof(nil, tree.Root))
}

func TestGenerateProofInvalidIndex(t *testing.T) {
	tree, err := BuildMerkleTree(createTestEvents(4))
	require.NoError(t, err)

	_, err = tree.GenerateProof(-1)
	require.Error(t, err)
	_, err = tree.GenerateProof(4)
	require.Error(t, err)
}

func TestMerkleTreeOrdersBySequence(t *testing.T) {
	events := createTestEvents(6)
	shuffled := []*types.WithdrawalEvent{events[3], events[0], events[5], events[1], events[4], events[2]}

	a, err := BuildMerkleTree(events)
	require.NoError(t, err)
	b, err := BuildMerkleTree(shuffled)
	require.NoError(t, err)

	assert.Equal(t, a.Root, b.Root)
	assert.Equal(t, a.EventIDs, b.EventIDs)

	// input slice untouched
	assert.Equal(t, events[3].ID, shuffled[0].ID)
}

func TestIndexOf(t *testing.T) {
	events := createTestEvents(3)
	tree, err := BuildMerkleTree(events)
	require.NoError(t, err)

	assert.Equal(t, 1, tree.IndexOf(events[1].ID))
	assert.Equal(t, -1, tree.IndexOf("missing"))
}

func TestHashWithdrawalEventCoversFields(t *testing.T) {
	base := createTestEvents(1)[0]
	h := HashWithdrawalEvent(base)

	mutations := map[string]func(e *types.WithdrawalEvent){
		"sequence":  func(e *types.WithdrawalEvent) { e.Sequence++ },
		"recipient": func(e *types.WithdrawalEvent) { e.Recipient = common.HexToAddress("0x1") },
		"amount":    func(e *types.WithdrawalEvent) { e.Amount = big.NewInt(11) },
		"signer":    func(e *types.WithdrawalEvent) { e.Signer = common.HexToAddress("0x2") },
		"digest":    func(e *types.WithdrawalEvent) { e.MessageDigest = common.HexToHash("0x3") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			e := base.Copy()
			mutate(e)
			assert.NotEqual(t, h, HashWithdrawalEvent(e))
		})
	}

	// off-chain bookkeeping is not committed
	e := base.Copy()
	e.ID = "other"
	e.Timestamp = 42
	assert.Equal(t, h, HashWithdrawalEvent(e))
}

func TestProofHex(t *testing.T) {
	tree, err := BuildMerkleTree(createTestEvents(4))
	require.NoError(t, err)
	proof, err := tree.GenerateProof(0)
	require.NoError(t, err)

	hexes := ProofHex(proof)
	require.Len(t, hexes, 2)
	assert.Equal(t, common.Hash(proof.Proof[0]).Hex(), hexes[0])
}
