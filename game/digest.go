package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Digest is a stable hash of the whole state. Two states with equal digests
// hold identical terrain, agents, bombs and items in the same order.
func (s *State) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	writeInt(h, &tmp, s.Round)
	writeInt(h, &tmp, s.YouID)
	writeInt(h, &tmp, s.Grid.Width)
	writeInt(h, &tmp, s.Grid.Height)
	for _, k := range s.Grid.cells {
		h.Write([]byte{byte(k)})
	}

	writeInt(h, &tmp, len(s.Agents))
	for _, a := range s.Agents {
		writeInt(h, &tmp, a.ID)
		writeInt(h, &tmp, a.Pos.X)
		writeInt(h, &tmp, a.Pos.Y)
		writeInt(h, &tmp, a.BombsLeft)
		writeInt(h, &tmp, a.BombBudget)
		writeInt(h, &tmp, a.Range)
	}

	writeInt(h, &tmp, len(s.Bombs))
	for _, b := range s.Bombs {
		writeInt(h, &tmp, b.Owner)
		writeInt(h, &tmp, b.Pos.X)
		writeInt(h, &tmp, b.Pos.Y)
		writeInt(h, &tmp, b.Fuse)
		writeInt(h, &tmp, b.Range)
	}

	writeInt(h, &tmp, len(s.Items))
	for _, it := range s.Items {
		writeInt(h, &tmp, it.Pos.X)
		writeInt(h, &tmp, it.Pos.Y)
		h.Write([]byte{byte(it.Kind)})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeInt(h hash.Hash, tmp *[8]byte, v int) {
	binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
	h.Write(tmp[:])
}
