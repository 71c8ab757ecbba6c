package runtime

import (
	"reflect"
	"testing"
)

func TestHeapFields(t *testing.T) {
	p := newTestProgram()
	h := p.Heap.New(IDUser, 2)

	first := p.NewString([]byte("first"))
	Upref(first)
	if !p.Heap.SetField(h, 0, first) {
		t.Fatalf("Expected a live record to accept a field")
	}
	second := p.NewString([]byte("second"))
	Upref(second)
	p.Heap.SetField(h, 0, second)

	rec, ok := p.Heap.Get(h)
	if !ok {
		t.Fatalf("Expected the record to be live")
	}
	if rec.Fields[0] != second || rec.Fields[1] != nil {
		t.Errorf("Expected [second nil], got %v instead", rec.Fields)
	}

	p.Heap.Delete(h)
	if leaks := lostNodes(p); len(leaks) != 0 {
		t.Errorf("Expected replaced and deleted fields to be released, got %v instead", leaks)
	}
}

func TestHeapStaleHandles(t *testing.T) {
	p := newTestProgram()
	h := p.Heap.New(IDUser, 1)
	if !p.Heap.Delete(h) {
		t.Fatalf("Expected the first delete to succeed")
	}

	if _, ok := p.Heap.Get(h); ok {
		t.Errorf("Expected a deleted record to be gone")
	}
	if p.Heap.Delete(h) {
		t.Errorf("Expected deleting twice to do nothing")
	}

	v := p.NewInt(1)
	Upref(v)
	if p.Heap.SetField(h, 0, v) {
		t.Errorf("Expected a stale handle to refuse fields")
	}
	p.Downref(v)

	reused := p.Heap.New(IDUser, 1)
	if reused.index != h.index {
		t.Fatalf("Expected the slot to be reused")
	}
	if _, ok := p.Heap.Get(h); ok {
		t.Errorf("Expected the old handle to stay stale after reuse")
	}
	if _, ok := p.Heap.Get(reused); !ok {
		t.Errorf("Expected the new handle to be live")
	}
	if (Handle{}).Valid() {
		t.Errorf("Expected the zero handle to be invalid")
	}
}

func TestHeapCycles(t *testing.T) {
	p := newTestProgram()
	a := p.Heap.New(IDUser, 2)
	b := p.Heap.New(IDUser, 1)

	link := func(from Handle, i int, to Handle) {
		ptr := p.NewPointer(to)
		Upref(ptr)
		p.Heap.SetField(from, i, ptr)
	}
	link(a, 0, a)
	link(a, 1, b)
	link(b, 0, a)

	p.Heap.Delete(a)
	rec, ok := p.Heap.Get(b)
	if !ok {
		t.Fatalf("Expected the other record to survive")
	}
	if _, ok := p.Heap.Get(rec.Fields[0].Ptr); ok {
		t.Errorf("Expected the pointer to the deleted record to be stale")
	}

	p.Heap.Clear()
	if n := p.Heap.Len(); n != 0 {
		t.Errorf("Expected an empty heap, got %d records instead", n)
	}
	if leaks := lostNodes(p); len(leaks) != 0 {
		t.Errorf("Expected no lost nodes, got %v instead", leaks)
	}
}

func TestHeapOrder(t *testing.T) {
	p := newTestProgram()
	var handles []Handle
	for id := 0; id < 4; id++ {
		handles = append(handles, p.Heap.New(IDUser+id, 0))
	}
	p.Heap.Delete(handles[2])

	var ids []TypeId
	p.Heap.Each(func(h Handle, rec *Record) bool {
		ids = append(ids, rec.ID)
		return true
	})
	// the global record was created first
	exp := []TypeId{IDUser + 3, IDUser + 1, IDUser, -1}
	if !reflect.DeepEqual(ids, exp) {
		t.Errorf("Expected %v, got %v instead", exp, ids)
	}

	var first []TypeId
	p.Heap.Each(func(h Handle, rec *Record) bool {
		first = append(first, rec.ID)
		return false
	})
	if len(first) != 1 {
		t.Errorf("Expected the walk to stop after one record, got %d instead", len(first))
	}
}
