package runtime

// Handle addresses a heap record. The generation makes handles to deleted
// records stale instead of dangling: a record slot that is reused gets a new
// generation, and lookups through an old handle fail. The zero Handle never
// refers to a record.
type Handle struct {
	index uint32
	gen   uint32
}

func (h Handle) Valid() bool {
	return h.gen != 0
}

// Record is a structured value with named fields. Records may refer to each
// other, and to themselves, through pointer trees, so they are not reclaimed by
// reference counting. They stay alive until deleted explicitly or until the
// program is deleted.
type Record struct {
	ID     TypeId
	Fields []*Tree
}

// Downrefer releases one reference to a tree.
type Downrefer interface {
	Downref(t *Tree)
}

const noSlot = -1

type heapSlot struct {
	rec  *Record
	gen  uint32
	prev int
	next int
}

// Heap is the arena of every live record. Live records are threaded on a
// list with the most recently created record at the head.
type Heap struct {
	slots []heapSlot
	free  []uint32
	head  int
	live  int
	owner Downrefer
}

func NewHeap(owner Downrefer) *Heap {
	return &Heap{head: noSlot, owner: owner}
}

func (h *Heap) New(id TypeId, fieldCount int) Handle {
	var index uint32
	if len(h.free) > 0 {
		index = h.free[len(h.free)-1]
		h.free = h.free[:len(h.free)-1]
	} else {
		index = uint32(len(h.slots))
		h.slots = append(h.slots, heapSlot{})
	}

	slot := &h.slots[index]
	slot.gen++
	slot.rec = &Record{ID: id, Fields: make([]*Tree, fieldCount)}
	slot.prev = noSlot
	slot.next = h.head
	if h.head != noSlot {
		h.slots[h.head].prev = int(index)
	}
	h.head = int(index)
	h.live++

	return Handle{index, slot.gen}
}

func (h *Heap) lookup(handle Handle) *heapSlot {
	if !handle.Valid() || int(handle.index) >= len(h.slots) {
		return nil
	}
	slot := &h.slots[handle.index]
	if slot.gen != handle.gen || slot.rec == nil {
		return nil
	}
	return slot
}

func (h *Heap) Get(handle Handle) (*Record, bool) {
	slot := h.lookup(handle)
	if slot == nil {
		return nil, false
	}
	return slot.rec, true
}

// SetField stores t in field i, taking over the caller's reference, and
// releases the previous occupant.
func (h *Heap) SetField(handle Handle, i int, t *Tree) bool {
	slot := h.lookup(handle)
	if slot == nil {
		return false
	}
	prev := slot.rec.Fields[i]
	slot.rec.Fields[i] = t
	h.owner.Downref(prev)
	return true
}

// Delete unlinks the record and releases its fields regardless of how many
// pointers still refer to it. Deleting through a stale handle does nothing
// and reports false.
func (h *Heap) Delete(handle Handle) bool {
	slot := h.lookup(handle)
	if slot == nil {
		return false
	}

	if slot.prev != noSlot {
		h.slots[slot.prev].next = slot.next
	} else {
		h.head = slot.next
	}
	if slot.next != noSlot {
		h.slots[slot.next].prev = slot.prev
	}

	rec := slot.rec
	slot.rec = nil
	slot.gen++
	slot.prev, slot.next = noSlot, noSlot
	h.free = append(h.free, handle.index)
	h.live--

	// the record is already unreachable through the heap, so releasing a field
	// that points back at it finds a stale handle
	for i, field := range rec.Fields {
		rec.Fields[i] = nil
		h.owner.Downref(field)
	}
	return true
}

// Each visits live records from the head of the list. Returning false stops
// the walk.
func (h *Heap) Each(fn func(Handle, *Record) bool) {
	for i := h.head; i != noSlot; {
		slot := &h.slots[i]
		next := slot.next
		if !fn(Handle{uint32(i), slot.gen}, slot.rec) {
			return
		}
		i = next
	}
}

func (h *Heap) Len() int {
	return h.live
}

// Clear deletes every live record, head first.
func (h *Heap) Clear() {
	for h.head != noSlot {
		slot := &h.slots[h.head]
		h.Delete(Handle{uint32(h.head), slot.gen})
	}
}
