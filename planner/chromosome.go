package planner

import (
	"math/rand"

	"github.com/brensch/hypersonic/game"
)

// Chromosome is a candidate plan: one action per future round.
type Chromosome struct {
	Genes   []game.Action
	Fitness float64
}

func randomChromosome(rng *rand.Rand, length int) Chromosome {
	genes := make([]game.Action, length)
	for i := range genes {
		genes[i] = game.Actions[rng.Intn(game.NumActions)]
	}
	return Chromosome{Genes: genes}
}

func (c Chromosome) Clone() Chromosome {
	genes := make([]game.Action, len(c.Genes))
	copy(genes, c.Genes)
	return Chromosome{Genes: genes, Fitness: c.Fitness}
}

// First is the action the plan commits to now.
func (c Chromosome) First() game.Action {
	if len(c.Genes) == 0 {
		return game.Stay
	}
	return c.Genes[0]
}

// Crossover swaps the tails of c and other after a random cut, with
// probability rate. Both must have the same length.
func (c *Chromosome) Crossover(other *Chromosome, rng *rand.Rand, rate float64) {
	if len(c.Genes) == 0 || len(c.Genes) != len(other.Genes) {
		return
	}
	if rng.Float64() >= rate {
		return
	}
	cut := rng.Intn(len(c.Genes))
	a := make([]game.Action, len(c.Genes))
	b := make([]game.Action, len(c.Genes))
	copy(a[:cut], c.Genes[:cut])
	copy(b[:cut], other.Genes[:cut])
	copy(a[cut:], other.Genes[cut:])
	copy(b[cut:], c.Genes[cut:])
	c.Genes = a
	other.Genes = b
}

// Mutate replaces each gene with a uniform draw with probability rate.
func (c *Chromosome) Mutate(rng *rand.Rand, rate float64) {
	for i := range c.Genes {
		if rng.Float64() < rate {
			c.Genes[i] = game.Actions[rng.Intn(game.NumActions)]
		}
	}
}
