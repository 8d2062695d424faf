package lockchain

import "golang.org/x/crypto/sha3"

// merkleLevels builds a standard binary Merkle tree over leaf hashes,
// duplicating the last node on odd fan-outs (spec §4.6), and returns
// every level (level 0 = leaves, last level = the root) for proof
// construction.
func merkleLevels(leaves [][32]byte) [][][32]byte {
	if len(leaves) == 0 {
		return [][][32]byte{{}}
	}
	levels := [][][32]byte{leaves}
	cur := leaves
	for len(cur) > 1 {
		next := make([][32]byte, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 < len(cur) {
				next = append(next, hashPair(cur[i], cur[i+1]))
			} else {
				next = append(next, hashPair(cur[i], cur[i]))
			}
		}
		levels = append(levels, next)
		cur = next
	}
	return levels
}

func hashPair(a, b [32]byte) [32]byte {
	buf := make([]byte, 64)
	copy(buf[0:32], a[:])
	copy(buf[32:64], b[:])
	return sha3.Sum256(buf)
}

func merkleRoot(leaves [][32]byte) [32]byte {
	levels := merkleLevels(leaves)
	top := levels[len(levels)-1]
	if len(top) == 0 {
		return [32]byte{}
	}
	return top[0]
}

// Proof is a standard binary Merkle inclusion proof: the sibling hash at
// each level from leaf to root, plus whether the sibling is on the left.
type Proof struct {
	LeafIndex int
	Siblings  []ProofStep
}

type ProofStep struct {
	Hash   [32]byte
	IsLeft bool
}

// Prove builds an inclusion proof for leafIdx over the given leaves.
func Prove(leaves [][32]byte, leafIdx int) (Proof, bool) {
	if leafIdx < 0 || leafIdx >= len(leaves) {
		return Proof{}, false
	}
	levels := merkleLevels(leaves)
	proof := Proof{LeafIndex: leafIdx}
	idx := leafIdx
	for lvl := 0; lvl < len(levels)-1; lvl++ {
		level := levels[lvl]
		var sibIdx int
		var isLeft bool
		if idx%2 == 0 {
			sibIdx = idx + 1
			isLeft = false
			if sibIdx >= len(level) {
				sibIdx = idx // duplicated last node
			}
		} else {
			sibIdx = idx - 1
			isLeft = true
		}
		proof.Siblings = append(proof.Siblings, ProofStep{Hash: level[sibIdx], IsLeft: isLeft})
		idx /= 2
	}
	return proof, true
}

// VerifyProof recomputes the root from leaf and proof and compares it to
// root.
func VerifyProof(leaf [32]byte, proof Proof, root [32]byte) bool {
	cur := leaf
	for _, step := range proof.Siblings {
		if step.IsLeft {
			cur = hashPair(step.Hash, cur)
		} else {
			cur = hashPair(cur, step.Hash)
		}
	}
	return cur == root
}
