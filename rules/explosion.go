package rules

import (
	"github.com/brensch/hypersonic/game"
)

type boxCredit struct {
	owner int
	cell  game.Cell
}

// Reach is how many cells a terrain ray of the given range walks on each side
// of the bomb. Range counts the bomb's own cell. Agents are killed out to the
// full range, one cell further than the rays (see onBlastLine).
func Reach(explosionRange int) int {
	if explosionRange <= 1 {
		return 0
	}
	return explosionRange - 1
}

// detonate runs the explosion phase against round-start positions.
// Destruction is recorded while the queue drains and applied afterwards, so a
// box stops every ray that reaches it this round.
func (e *Engine) detonate() {
	s := e.state

	queue := make([]int, 0, len(s.Bombs))
	queued := make([]bool, len(s.Bombs))
	for i := range s.Bombs {
		s.Bombs[i].Fuse--
		if s.Bombs[i].Fuse <= 0 {
			queue = append(queue, i)
			queued[i] = true
		}
	}
	if len(queue) == 0 {
		return
	}

	cells := s.Grid.Width * s.Grid.Height
	boxHit := make([]bool, cells)
	itemHit := make([]bool, cells)
	var boxes []game.Cell
	credited := make(map[boxCredit]bool)

	for head := 0; head < len(queue); head++ {
		b := s.Bombs[queue[head]]
		reach := Reach(b.Range)

		for i := range s.Agents {
			if onBlastLine(b.Pos, s.Agents[i].Pos, b.Range) {
				e.dead[s.Agents[i].ID] = true
			}
		}

		for _, d := range directions {
			c := b.Pos
			for step := 0; step < reach; step++ {
				c = c.Add(d)
				if !s.Grid.InBounds(c) || s.Grid.At(c) == game.Block {
					break
				}
				at := e.idx(c)
				if s.Grid.At(c).IsBox() {
					if !boxHit[at] {
						boxHit[at] = true
						boxes = append(boxes, c)
					}
					key := boxCredit{owner: b.Owner, cell: c}
					if !credited[key] {
						credited[key] = true
						e.boxes[b.Owner]++
					}
					break
				}
				if e.itemAt[at] >= 0 {
					itemHit[at] = true
					break
				}
				if j := e.bombAt[at]; j >= 0 && !queued[j] {
					// forced to 1: it goes off in this same step
					s.Bombs[j].Fuse = 1
					queued[j] = true
					queue = append(queue, j)
				}
			}
		}
	}

	if len(s.Items) > 0 {
		kept := s.Items[:0]
		for _, it := range s.Items {
			if !itemHit[e.idx(it.Pos)] {
				kept = append(kept, it)
			}
		}
		s.Items = kept
	}

	for _, c := range boxes {
		if kind, ok := s.Grid.At(c).Content(); ok {
			s.Items = append(s.Items, game.Item{Pos: c, Kind: kind})
		}
		s.Grid.Set(c, game.Floor)
	}

	kept := s.Bombs[:0]
	var returned []int
	for i, b := range s.Bombs {
		if queued[i] {
			returned = append(returned, b.Owner)
			continue
		}
		kept = append(kept, b)
	}
	s.Bombs = kept

	for _, owner := range returned {
		if a, ok := s.Agent(owner); ok && a.BombsLeft < a.BombBudget {
			a.BombsLeft++
		}
	}

	e.reindex()
}

// onBlastLine reports whether agent shares the bomb's row or column within
// explosionRange cells. Terrain does not shield agents.
func onBlastLine(bomb, agent game.Cell, explosionRange int) bool {
	if bomb.X == agent.X {
		return abs(bomb.Y-agent.Y) <= explosionRange
	}
	if bomb.Y == agent.Y {
		return abs(bomb.X-agent.X) <= explosionRange
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
