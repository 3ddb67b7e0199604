package quatro

// Positions are equivalent under relabeling of the four traits: any
// permutation of the trait bits, optionally combined with inverting all of
// them. That gives 24*2 = 48 piece-value mappings, built once at init and
// read-only afterwards.

const numSymmetries = 48

const allSymmetries uint64 = 1<<numSymmetries - 1

var symmetryMaps = buildSymmetryMaps()

func buildSymmetryMaps() [numSymmetries][NumPieces]byte {
	perms := buildTraitPermutations()
	var maps [numSymmetries][NumPieces]byte
	idx := 0
	for _, perm := range perms {
		for _, invert := range [2]byte{0x0, 0xF} {
			for v := 0; v < NumPieces; v++ {
				mapped := byte(0)
				for bit := 0; bit < NumTraits; bit++ {
					if v&(1<<bit) != 0 {
						mapped |= 1 << perm[bit]
					}
				}
				maps[idx][v] = mapped ^ invert
			}
			idx++
		}
	}
	return maps
}

func buildTraitPermutations() [][NumTraits]int {
	perms := make([][NumTraits]int, 0, 24)
	var visit func(current []int, used [NumTraits]bool)
	visit = func(current []int, used [NumTraits]bool) {
		if len(current) == NumTraits {
			var perm [NumTraits]int
			copy(perm[:], current)
			perms = append(perms, perm)
			return
		}
		for bit := 0; bit < NumTraits; bit++ {
			if used[bit] {
				continue
			}
			used[bit] = true
			visit(append(current, bit), used)
			used[bit] = false
		}
	}
	visit(make([]int, 0, NumTraits), [NumTraits]bool{})
	return perms
}

// canonicalStep maps v through every symmetry still in the candidate mask,
// keeps the transforms reaching the minimal image, and returns that minimum
// with the narrowed mask.
func canonicalStep(candidates uint64, v byte) (byte, uint64) {
	best := byte(0xFF)
	var kept uint64
	for t := 0; t < numSymmetries; t++ {
		if candidates&(1<<uint(t)) == 0 {
			continue
		}
		mapped := symmetryMaps[t][v]
		if mapped < best {
			best = mapped
			kept = 1 << uint(t)
		} else if mapped == best {
			kept |= 1 << uint(t)
		}
	}
	return best, kept
}

// CanonicalSignature folds a placed-piece sequence into its lexicographically
// minimal image under the 48 trait symmetries, packed 4 bits per ply. Two
// prefixes with equal signatures play out identically.
func CanonicalSignature(pieces []Piece) uint64 {
	var sig uint64
	candidates := allSymmetries
	for i, p := range pieces {
		v, kept := canonicalStep(candidates, byte(p)&0xF)
		sig |= uint64(v) << (4 * uint(i))
		candidates = kept
	}
	return sig
}
