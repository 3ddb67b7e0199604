package quatro

import "testing"

func TestSymmetryMapsAreDistinctBijections(t *testing.T) {
	if len(symmetryMaps) != numSymmetries {
		t.Fatalf("expected %d symmetry maps, got %d", numSymmetries, len(symmetryMaps))
	}
	seen := make(map[[NumPieces]byte]bool)
	for idx, m := range symmetryMaps {
		var hit [NumPieces]bool
		for _, mapped := range m {
			if mapped >= NumPieces {
				t.Fatalf("map %d produces value %d", idx, mapped)
			}
			if hit[mapped] {
				t.Fatalf("map %d is not a bijection", idx)
			}
			hit[mapped] = true
		}
		if seen[m] {
			t.Fatalf("map %d duplicates another transform", idx)
		}
		seen[m] = true
	}
}

func TestFirstSymmetryMapIsIdentity(t *testing.T) {
	for v := 0; v < NumPieces; v++ {
		if symmetryMaps[0][v] != byte(v) {
			t.Fatalf("map 0 sends %d to %d", v, symmetryMaps[0][v])
		}
	}
}

func TestSymmetryMapsPreserveSharedTraits(t *testing.T) {
	// Relabeling traits must map winning quadruples to winning quadruples.
	quads := [][4]byte{
		{1, 3, 5, 7},   // bit 0 set everywhere
		{0, 2, 4, 8},   // bit 0 clear everywhere
		{8, 9, 10, 11}, // bit 3 set everywhere
		{1, 2, 4, 8},   // no shared trait
		{0, 5, 10, 15}, // no shared trait
	}
	for _, m := range symmetryMaps {
		for _, q := range quads {
			want := lineSharesTrait(q[0], q[1], q[2], q[3])
			got := lineSharesTrait(m[q[0]], m[q[1]], m[q[2]], m[q[3]])
			if got != want {
				t.Fatalf("transform changed the win relation for %v", q)
			}
		}
	}
}

func TestCanonicalSignatureInvariantUnderRelabeling(t *testing.T) {
	sequences := [][]Piece{
		{0},
		{5, 3},
		{7, 0, 12, 10},
		{9, 6, 15, 0, 3, 12},
	}
	for _, seq := range sequences {
		want := CanonicalSignature(seq)
		for idx, m := range symmetryMaps {
			mapped := make([]Piece, len(seq))
			for i, p := range seq {
				mapped[i] = Piece(m[p])
			}
			if got := CanonicalSignature(mapped); got != want {
				t.Fatalf("sequence %v under map %d: signature %#x, want %#x", seq, idx, got, want)
			}
		}
	}
}

func TestCanonicalSignatureFirstPieceDependsOnlyOnPopCount(t *testing.T) {
	// Trait permutations keep the number of set bits, inversion flips it to
	// 4-k, and the minimal image packs the surviving bits low. So the first
	// folded value is (1 << min(k, 4-k)) - 1.
	for v := 0; v < NumPieces; v++ {
		pc := 0
		for bit := 0; bit < NumTraits; bit++ {
			if v&(1<<bit) != 0 {
				pc++
			}
		}
		if NumTraits-pc < pc {
			pc = NumTraits - pc
		}
		want := uint64(1<<pc - 1)
		if sig := CanonicalSignature([]Piece{Piece(v)}); sig != want {
			t.Fatalf("signature of [%d] = %#x, want %#x", v, sig, want)
		}
	}
}

func TestCanonicalSignatureSeparatesDifferentStructures(t *testing.T) {
	// 1,2 share no set bit; 1,3 share bit 0. No trait relabeling can make
	// those prefixes equivalent.
	a := CanonicalSignature([]Piece{1, 2})
	b := CanonicalSignature([]Piece{1, 3})
	if a == b {
		t.Fatalf("structurally different prefixes share signature %#x", a)
	}
}
