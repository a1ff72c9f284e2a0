package history

import (
	"cmp"
	"fmt"
	"hash/fnv"
)

// LineID identifies one submitted snippet: its sequence number, a hash of
// its text and the generation of the position, which is bumped when a
// snippet at the same position is replaced.
type LineID struct {
	No         int
	Generation int
	Hash       uint64
}

// NewLineID hashes text into a LineID.
func NewLineID(no, generation int, text string) LineID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return LineID{No: no, Generation: generation, Hash: h.Sum64()}
}

// Compare orders ids by sequence number, then content hash, then
// generation. Ids that differ only in hash are never equal.
func (id LineID) Compare(o LineID) int {
	if c := cmp.Compare(id.No, o.No); c != 0 {
		return c
	}
	if c := cmp.Compare(id.Hash, o.Hash); c != 0 {
		return c
	}
	return cmp.Compare(id.Generation, o.Generation)
}

// SameSnippet reports whether o is a re-submission of the snippet id
// names: the same position with the same text.
func (id LineID) SameSnippet(o LineID) bool {
	return id.No == o.No && id.Hash == o.Hash
}

func (id LineID) String() string {
	return fmt.Sprintf("#%d.%d(%016x)", id.No, id.Generation, id.Hash)
}
