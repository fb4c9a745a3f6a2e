package rules

import (
	"github.com/brensch/hypersonic/game"
)

// act runs the action phase in tracked-agent order. Later agents see bombs
// placed by earlier ones.
func (e *Engine) act(actions []game.Action) {
	s := e.state
	for i := range s.Agents {
		if e.dead[s.Agents[i].ID] && !e.relaxed {
			continue
		}
		a := actions[i]
		if a.PlacesBomb() {
			e.placeBomb(i)
		}
		if d := a.Delta(); d != (game.Cell{}) {
			e.moveTo(i, s.Agents[i].Pos.Add(d))
		}
	}
}

func (e *Engine) placeBomb(agentIdx int) {
	s := e.state
	a := &s.Agents[agentIdx]
	if a.BombsLeft <= 0 || !s.Grid.InBounds(a.Pos) || e.bombAt[e.idx(a.Pos)] >= 0 {
		return
	}
	s.Bombs = append(s.Bombs, game.Bomb{
		Owner: a.ID,
		Pos:   a.Pos,
		Fuse:  game.BombFuse,
		Range: a.Range,
	})
	e.bombAt[e.idx(a.Pos)] = len(s.Bombs) - 1
	a.BombsLeft--
}

func (e *Engine) moveTo(agentIdx int, to game.Cell) {
	if !e.CanEnter(to) {
		return
	}
	s := e.state
	a := &s.Agents[agentIdx]
	a.Pos = to

	j := e.itemAt[e.idx(to)]
	if j < 0 {
		return
	}
	switch s.Items[j].Kind {
	case game.ExtraRange:
		a.Range++
	case game.ExtraBomb:
		a.BombsLeft++
		a.BombBudget++
	}
	s.Items = append(s.Items[:j], s.Items[j+1:]...)
	e.reindexItems()
}

func (e *Engine) reindexItems() {
	for i := range e.itemAt {
		e.itemAt[i] = -1
	}
	for i, it := range e.state.Items {
		if e.state.Grid.InBounds(it.Pos) {
			e.itemAt[e.idx(it.Pos)] = i
		}
	}
}
