package runtime

// Slot index within the current stack segment. The stack grows downward, so
// pushing decrements it and the end of a segment is its empty position.
type StackPointer = int

const DefaultSegmentSize = 8192

type stackBlock struct {
	data []Value
	// write offset recorded when the block was retired by a newer block
	offset int
}

// Stack is the segmented evaluation stack. Segments are kept in an
// append-only vector, the last one being current and the first one being the
// sentinel, which is never released. At most one retired segment is kept as
// a reserve for the next reservation.
type Stack struct {
	blocks      []*stackBlock
	reserve     *stackBlock
	total       int
	segmentSize int
	allocated   int
}

func NewStack(segmentSize int) *Stack {
	if segmentSize <= 0 {
		segmentSize = DefaultSegmentSize
	}
	s := new(Stack)
	s.segmentSize = segmentSize
	s.blocks = []*stackBlock{s.newBlock(segmentSize)}
	return s
}

func (s *Stack) newBlock(size int) *stackBlock {
	s.allocated++
	return &stackBlock{data: make([]Value, size)}
}

func (s *Stack) current() *stackBlock {
	return s.blocks[len(s.blocks)-1]
}

// The fixed top of an empty stack: the end of the sentinel segment.
func (s *Stack) Root() StackPointer {
	return len(s.blocks[0].data)
}

func (s *Stack) Begin() StackPointer {
	return 0
}

func (s *Stack) End() StackPointer {
	return len(s.current().data)
}

// Reserve retires the current segment at sp and makes a segment with at
// least n free slots current, returning its empty top. The reserve is reused
// when it is large enough, otherwise a new segment is allocated.
func (s *Stack) Reserve(sp StackPointer, n int) StackPointer {
	cur := s.current()
	cur.offset = sp
	s.total += len(cur.data) - cur.offset

	var b *stackBlock
	if s.reserve != nil && len(s.reserve.data) >= n {
		b = s.reserve
		s.reserve = nil
	} else {
		size := s.segmentSize
		if n > size {
			size = n
		}
		b = s.newBlock(size)
	}
	b.offset = 0
	s.blocks = append(s.blocks, b)

	return len(b.data)
}

// Release pops n slots starting at sp, crossing into older segments as
// needed. Popping past the sentinel saturates at Root.
func (s *Stack) Release(sp StackPointer, n int) StackPointer {
	for {
		end := s.End()
		remaining := end - sp

		// still inside the current segment
		if n < remaining {
			clear(s.current().data[sp : sp+n])
			return sp + n
		}

		if len(s.blocks) == 1 {
			clear(s.current().data[sp:end])
			return end
		}

		// the popped block becomes the reserve, replacing any older one
		b := s.current()
		clear(b.data)
		s.reserve = b
		s.blocks[len(s.blocks)-1] = nil
		s.blocks = s.blocks[:len(s.blocks)-1]

		// the older block is restored in full, so a reservation that counted on
		// it before the newer block was added still holds
		older := s.current()
		s.total -= len(older.data) - older.offset

		n -= remaining
		sp = older.offset
	}
}

// Contiguous guarantees n free slots below sp, reserving a new segment only
// when the current one cannot hold them.
func (s *Stack) Contiguous(sp StackPointer, n int) StackPointer {
	if sp-n < s.Begin() {
		return s.Reserve(sp, n)
	}
	return sp
}

func (s *Stack) Push(sp StackPointer, v Value) StackPointer {
	if sp == s.Begin() {
		sp = s.Reserve(sp, 1)
	}
	sp--
	s.current().data[sp] = v
	return sp
}

func (s *Stack) Pop(sp StackPointer) (Value, StackPointer) {
	if sp >= s.End() {
		panic("Stack underflow detected.")
	}
	result := s.current().data[sp]
	s.current().data[sp] = nil
	if sp+1 >= s.End() {
		return result, s.Release(sp, 1)
	}
	return result, sp + 1
}

// PopN drops n slots without inspecting them. Callers down-reference any
// values they own first.
func (s *Stack) PopN(sp StackPointer, n int) StackPointer {
	if sp+n >= s.End() {
		return s.Release(sp, n)
	}
	clear(s.current().data[sp : sp+n])
	return sp + n
}

func (s *Stack) At(sp StackPointer) Value {
	return s.current().data[sp]
}

func (s *Stack) Set(sp StackPointer, v Value) {
	s.current().data[sp] = v
}

// Slots returns the n slots starting at sp. They alias the segment, so
// writes through the slice are writes to the stack.
func (s *Stack) Slots(sp StackPointer, n int) []Value {
	if sp+n > s.End() {
		panic("Slots cross a segment boundary.")
	}
	return s.current().data[sp : sp+n]
}

// Used is the number of live slots across all segments.
func (s *Stack) Used(sp StackPointer) int {
	return s.total + s.End() - sp
}

func (s *Stack) Segments() int {
	return len(s.blocks)
}

func (s *Stack) Allocated() int {
	return s.allocated
}

func (s *Stack) HasReserve() bool {
	return s.reserve != nil
}

func (s *Stack) ReserveSize() int {
	if s.reserve == nil {
		return 0
	}
	return len(s.reserve.data)
}

func (s *Stack) Clear() {
	for i := range s.blocks {
		s.blocks[i] = nil
	}
	s.blocks = nil
	s.reserve = nil
	s.total = 0
}
