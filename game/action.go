package game

import (
	"fmt"
	"strings"
)

// Action is one of the ten per-round commands: a move (or stay), optionally
// preceded by placing a bomb on the current cell.
type Action uint8

const (
	MoveUp Action = iota
	MoveDown
	MoveLeft
	MoveRight
	Stay
	BombUp
	BombDown
	BombLeft
	BombRight
	BombStay
)

// NumActions is the size of the action vocabulary.
const NumActions = 10

// Actions lists the vocabulary in declaration order.
var Actions = [NumActions]Action{
	MoveUp, MoveDown, MoveLeft, MoveRight, Stay,
	BombUp, BombDown, BombLeft, BombRight, BombStay,
}

var actionNames = [NumActions]string{
	"up", "down", "left", "right", "stay",
	"bomb+up", "bomb+down", "bomb+left", "bomb+right", "bomb+stay",
}

func (a Action) Valid() bool {
	return a < NumActions
}

// PlacesBomb reports whether the action drops a bomb before moving.
func (a Action) PlacesBomb() bool {
	return a >= BombUp && a <= BombStay
}

// Move strips the bomb part of the action.
func (a Action) Move() Action {
	if a.PlacesBomb() {
		return a - BombUp
	}
	return a
}

// Delta is the displacement of the move part.
func (a Action) Delta() Cell {
	switch a.Move() {
	case MoveUp:
		return Cell{Y: -1}
	case MoveDown:
		return Cell{Y: 1}
	case MoveLeft:
		return Cell{X: -1}
	case MoveRight:
		return Cell{X: 1}
	default:
		return Cell{}
	}
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
	return actionNames[a]
}

func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range actionNames {
		if name == s {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}
