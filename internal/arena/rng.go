package arena

import (
	"math/rand"

	"github.com/zeebo/xxh3"
)

// Streams holds one deterministic random stream per subsystem, all derived
// from the match seed. Keeping the streams separate means a combat crit
// roll never shifts spawn selection, so replays stay stable when one
// subsystem changes how much randomness it draws.
type Streams struct {
	Combat *rand.Rand
	Spawn  *rand.Rand
}

// NewStreams derives the per-subsystem streams from the match seed.
func NewStreams(seed uint64) *Streams {
	return &Streams{
		Combat: rand.New(rand.NewSource(deriveSeed(seed, "combat"))),
		Spawn:  rand.New(rand.NewSource(deriveSeed(seed, "spawn"))),
	}
}

func deriveSeed(seed uint64, subsystem string) int64 {
	return int64(seed ^ xxh3.HashString(subsystem))
}
