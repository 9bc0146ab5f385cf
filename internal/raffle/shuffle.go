package raffle

import "math/rand/v2"

// Source yields uniformly distributed ints in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource draws from math/rand/v2's auto-seeded global generator.
var DefaultSource Source = globalSource{}

// Shuffle returns a Fisher–Yates permutation of items; items is not modified.
// Walking i from the last index down to 1 and swapping with j in [0, i]
// makes every permutation equally likely for a uniform src.
func Shuffle[T any](items []T, src Source) []T {
	shuffled := make([]T, len(items))
	copy(shuffled, items)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// SelectWinners shuffles regs and keeps the first min(totalSpots, len(regs)).
func SelectWinners(regs []Registration, totalSpots int, src Source) []Registration {
	shuffled := Shuffle(regs, src)
	n := min(max(totalSpots, 0), len(shuffled))
	return shuffled[:n]
}
