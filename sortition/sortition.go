package sortition

import (
	"fmt"
)

// prng is a splitmix64 generator; the draw must be reproducible from the
// fulfilled random number alone, on any replica, so no stdlib rand state
// is allowed to leak into it
type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

func (p *prng) next() uint64 {
	p.state += 0x9e3779b97f4a7c15
	z := p.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// uintn returns a uniform value in [0, n) using rejection sampling to
// avoid modulo bias
func (p *prng) uintn(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	max := ^uint64(0) - (^uint64(0) % n)
	for {
		v := p.next()
		if v < max {
			return v % n
		}
	}
}

// Draw deterministically selects count agent ids from the ordered candidate
// pool using the fulfilled random number as seed. Indices are drawn without
// replacement via a partial Fisher-Yates shuffle; when distinct is set,
// candidates whose id has already been chosen are skipped.
func Draw(randomNumber uint64, pool []string, count int, distinct bool) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid draw count: %d", count)
	}
	if len(pool) < count {
		return nil, fmt.Errorf("candidate pool of %d cannot satisfy draw of %d", len(pool), count)
	}

	rng := newPRNG(randomNumber)

	indices := make([]int, len(pool))
	for i := range indices {
		indices[i] = i
	}

	selected := make([]string, 0, count)
	chosen := map[string]struct{}{}

	remaining := len(indices)
	for remaining > 0 && len(selected) < count {
		j := int(rng.uintn(uint64(remaining)))
		idx := indices[j]
		indices[j] = indices[remaining-1]
		remaining--

		id := pool[idx]
		if distinct {
			if _, dup := chosen[id]; dup {
				continue
			}
			chosen[id] = struct{}{}
		}
		selected = append(selected, id)
	}

	if len(selected) < count {
		return nil, fmt.Errorf("candidate pool exhausted after %d distinct draws; %d required", len(selected), count)
	}

	return selected, nil
}
