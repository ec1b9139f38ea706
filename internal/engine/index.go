package engine

// OffsetIndex maps a string table index to the input offset of the String
// record that most recently defined it.
type OffsetIndex struct {
	offsets map[uint16]int64
}

func NewOffsetIndex() *OffsetIndex {
	return &OffsetIndex{offsets: make(map[uint16]int64)}
}

// Put records a definition. A later definition of the same index replaces
// the earlier one.
func (x *OffsetIndex) Put(idx uint16, off int64) {
	x.offsets[idx] = off
}

func (x *OffsetIndex) Lookup(idx uint16) (int64, bool) {
	off, ok := x.offsets[idx]
	return off, ok
}

func (x *OffsetIndex) Len() int {
	return len(x.offsets)
}

// EmittedSet tracks which string indices have been written to the output.
// Indices are 16 bits wide, so a fixed bitmap covers every value.
type EmittedSet struct {
	bits [1 << 16 / 64]uint64
	n    int
}

// Add marks idx as emitted and reports whether it was new.
func (s *EmittedSet) Add(idx uint16) bool {
	word, bit := idx/64, uint64(1)<<(idx%64)
	if s.bits[word]&bit != 0 {
		return false
	}
	s.bits[word] |= bit
	s.n++
	return true
}

func (s *EmittedSet) Contains(idx uint16) bool {
	return s.bits[idx/64]&(uint64(1)<<(idx%64)) != 0
}

func (s *EmittedSet) Len() int {
	return s.n
}
