package merkle

import (
	"fmt"
	"testing"
)

func BenchmarkMerkleTreeBuild(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("Events_%d", size), func(b *testing.B) {
			events := createTestEvents(size)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = BuildMerkleTree(events)
			}
		})
	}
}

func BenchmarkMerkleProofVerification(b *testing.B) {
	events := createTestEvents(1000)
	tree, _ := BuildMerkleTree(events)
	proof, _ := tree.GenerateProof(500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = VerifyProof(proof, tree.Root)
	}
}
