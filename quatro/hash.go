package quatro

const (
	fnv64Offset uint64 = 1469598103934665603
	fnv64Prime  uint64 = 1099511628211
)

func fnv1a(data []byte) uint64 {
	h := fnv64Offset
	for _, b := range data {
		h ^= uint64(b)
		h *= fnv64Prime
	}
	return h
}

// StateHash keys the live-state caches: FNV-1a over the 20-byte
// serialization. Collisions are possible and accepted; a hit is trusted
// without verifying the full state.
func StateHash(s GameState) uint64 {
	return fnv1a(s.Serialize())
}

// mixKey runs the splitmix64 finalizer over a key before stripe selection,
// so structured keys still spread across stripes.
func mixKey(v uint64) uint64 {
	v += 0x9e3779b97f4a7c15
	v ^= v >> 30
	v *= 0xbf58476d1ce4e5b9
	v ^= v >> 27
	v *= 0x94d049bb133111eb
	v ^= v >> 31
	return v
}
