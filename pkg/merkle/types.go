package merkle

// MerkleTree is a keccak256 binary tree over withdrawal events in sequence order.
type MerkleTree struct {
	// Leaves are the event hashes in sequence order
	Leaves [][32]byte

	// EventIDs[i] is the event behind Leaves[i]
	EventIDs []string

	Root [32]byte

	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}

// MerkleProof shows that Leaf sits at LeafIndex under some root.
type MerkleProof struct {
	LeafIndex int
	Leaf      [32]byte

	// sibling hashes, leaf level first
	Proof [][32]byte
}
