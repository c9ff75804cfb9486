package consequence

import (
	"fmt"

	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/entropy"
)

const (
	rouletteSides = 3
	// rouletteHit is the face that fires a checkpoint consequence.
	rouletteHit = 0
)

// Roulette decides whether a lapsed item's consequence fires. Final deadlines
// always fire. Checkpoints fire on one uniform draw in three.
type Roulette struct {
	src entropy.Source
}

func NewRoulette(src entropy.Source) *Roulette {
	if src == nil {
		src = entropy.Secure()
	}
	return &Roulette{src: src}
}

// Decide draws at most once. Callers must not retry a failed draw for the same
// item in the same pass.
func (r *Roulette) Decide(ft types.FailureType) (bool, error) {
	switch ft {
	case types.FailureFinalDeadline:
		return true, nil
	case types.FailureCheckpoint:
		v, err := r.src.Intn(rouletteSides)
		if err != nil {
			return false, fmt.Errorf("roulette draw: %w", err)
		}
		return v == rouletteHit, nil
	default:
		return false, fmt.Errorf("roulette: unknown failure type %q", ft)
	}
}
