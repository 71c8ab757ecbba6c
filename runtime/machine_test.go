package runtime

import (
	"strings"
	"testing"
)

const (
	testRoot = iota
	testPair
	testTwice
	testDrop
	testFail
)

// testRuntimeData assembles the functions the machine tests call. Record 0
// is the global record and record 1 a two-field node.
func testRuntimeData() *RuntimeData {
	rtd := &RuntimeData{
		GlobalID: 0,
		Structs:  []StructInfo{{Name: "global", Fields: 2}, {Name: "node", Fields: 2}},
		Literals: [][]byte{[]byte("hello"), []byte("key"), []byte("broken")},
	}

	root := NewAssembler()
	root.OpU16(LOCALS, 1)
	root.OpU16(NEW_RECORD, 1)
	root.OpU16(STORE, 0)
	root.OpU16(LOAD, 0)
	root.OpU16(LOAD, 0)
	root.OpU16(SET_FIELD, 0)
	root.OpU16(LOAD, 0)
	root.OpU16(SET_GLOBAL, 0)
	root.OpU16(CONSTANT, 1)
	root.Op(INT)
	root.WriteI64(7)
	root.OpU8(MAP, 1)
	root.OpU16(SET_GLOBAL, 1)
	root.OpU16(GET_GLOBAL, 0)
	root.OpU16(GET_FIELD, 0)
	root.Op(POP)
	root.Op(TRUE)
	root.Op(EXIT)
	root.WriteI32(5)
	root.Op(STOP)

	pair := NewAssembler()
	pair.OpU16(LOCALS, 1)
	pair.OpU8(ARG, 0)
	pair.OpU8(ARG, 1)
	pair.OpU8(LIST, 2)
	pair.OpU16(STORE, 0)
	pair.OpU16(LOAD, 0)
	pair.OpU16(CONSTANT, 0)
	pair.OpU16(TREE, uint16(IDUser))
	pair.WriteU8(2)
	pair.Op(RETURN)

	twice := NewAssembler()
	twice.OpU16(FRAME, testPair)
	twice.OpU8(ARG, 0)
	twice.OpU8(ARG, 0)
	twice.OpU16(CALL, testPair)
	twice.Op(RETURN)

	drop := NewAssembler()
	drop.OpU16(LOCALS, 1)
	drop.OpU16(NEW_RECORD, 1)
	drop.OpU16(STORE, 0)
	drop.OpU16(LOAD, 0)
	drop.Op(DELETE)
	drop.OpU16(LOAD, 0)
	drop.OpU16(GET_FIELD, 1)
	drop.Op(RETURN)

	fail := NewAssembler()
	fail.OpU16(CONSTANT, 2)
	fail.Op(SET_ERROR)
	fail.Op(NIL)
	fail.Op(FALSE)
	fail.Op(RETURN)

	rtd.RootCode = root.Code()
	rtd.Frames = []FrameInfo{
		testRoot:  {Name: "root", Code: root.Code(), FrameSize: 1},
		testPair:  {Name: "pair", Code: pair.Code(), ArgSize: 2, FrameSize: 1},
		testTwice: {Name: "twice", Code: twice.Code(), ArgSize: 1},
		testDrop:  {Name: "drop", Code: drop.Code(), FrameSize: 1},
		testFail:  {Name: "fail", Code: fail.Code()},
	}
	return rtd
}

func newMachineProgram(segmentSize int) *Program {
	rtd := testRuntimeData()
	return NewProgram(rtd, NewReleaseMachine(rtd), testConfig(segmentSize))
}

func TestMachineRunProgram(t *testing.T) {
	for _, segmentSize := range []int{2, 8, 0} {
		p := newMachineProgram(segmentSize)
		p.RunProgram(nil)

		if n := p.Heap.Len(); n != 2 {
			t.Errorf("Expected the global and one node record, got %d instead", n)
		}
		rec, _ := p.Heap.Get(p.Global)
		if s := rec.Fields[1].String(); s != `map("key": 7)` {
			t.Errorf("Expected the map global, got %s instead", s)
		}
		node, ok := p.Heap.Get(rec.Fields[0].Ptr)
		if !ok {
			t.Fatalf("Expected the node record to be live")
		}
		if node.Fields[0].Ptr != rec.Fields[0].Ptr {
			t.Errorf("Expected the node to point at itself")
		}
		if used := p.Stack.Used(p.Stack.Root()); used != 0 {
			t.Errorf("Expected an empty stack, got %d used slots instead", used)
		}

		status, leaks := p.Delete()
		if status != 5 {
			t.Errorf("Expected exit status 5, got %d instead", status)
		}
		if len(leaks) != 0 {
			t.Errorf("Expected no lost nodes with segment size %d, got %v instead", segmentSize, leaks)
		}
	}
}

func TestMachineRunFunc(t *testing.T) {
	a, bb, x := "a", "bb", "x"
	testCases := []struct {
		name   string
		frame  int
		params []*string
		exp    string
	}{
		{"Pair", testPair, []*string{&a, &bb}, `tree(7 list("a", "bb") "hello")`},
		{"PairNil", testPair, []*string{nil, &bb}, `tree(7 list(nil, "bb") "hello")`},
		{"Twice", testTwice, []*string{&x}, `tree(7 list("x", "x") "hello")`},
		{"Drop", testDrop, nil, "nil"},
		{"Fail", testFail, nil, "false"},
	}

	for _, tc := range testCases {
		for _, segmentSize := range []int{8, 16, 0} {
			t.Run(tc.name, func(t *testing.T) {
				p := newMachineProgram(segmentSize)
				for round := 0; round < 3; round++ {
					if res := p.RunFunc(tc.frame, tc.params).String(); res != tc.exp {
						t.Errorf("Expected %s, got %s instead", tc.exp, res)
					}
					if used := p.Stack.Used(p.Stack.Root()); used != 0 {
						t.Errorf("Expected an empty stack, got %d used slots instead", used)
					}
				}
				if _, leaks := p.Delete(); len(leaks) != 0 {
					t.Errorf("Expected no lost nodes, got %v instead", leaks)
				}
			})
		}
	}
}

func TestMachineSetError(t *testing.T) {
	p := newMachineProgram(0)
	p.RunFunc(testFail, nil)
	if e := p.ErrorValue(); e == nil || e.String() != "broken" {
		t.Errorf("Expected the error value to be set, got %v instead", e)
	}
	p.RunFunc(testFail, nil)
	if _, leaks := p.Delete(); len(leaks) != 0 {
		t.Errorf("Expected a replaced error to be released, got %v instead", leaks)
	}
}

func TestMachineUnknownOpcode(t *testing.T) {
	rtd := &RuntimeData{Frames: []FrameInfo{{Name: "bad", Code: []byte{0xff}}}}
	p := NewReleaseProgram(rtd, NewReleaseMachine(rtd))
	defer func() {
		if recover() == nil {
			t.Errorf("Expected an unknown opcode to panic")
		}
	}()
	p.RunFunc(0, nil)
}

func TestDisassemble(t *testing.T) {
	rtd := testRuntimeData()
	m := NewReleaseMachine(rtd)

	asm := NewAssembler()
	asm.Label("start")
	asm.OpU16(CONSTANT, 0)
	asm.Op(INT)
	asm.WriteI64(-3)
	asm.OpU16(TREE, 9)
	asm.WriteU8(2)
	asm.OpU16(CALL, testPair)
	asm.Label("end")
	asm.Op(STOP)
	asm.Op(0xff)

	var b strings.Builder
	m.Disassemble(&b, asm.Code(), asm.Labels())
	exp := `start:
0000 CONSTANT: "hello"
0003 INT: -3
0012 TREE: 9 2
0016 CALL: pair
end:
0019 STOP
0020 Unknown opcode: 255
`
	if b.String() != exp {
		t.Errorf("Expected\n%s\ngot\n%s\ninstead", exp, b.String())
	}
}

func TestCodeOperands(t *testing.T) {
	asm := NewAssembler()
	asm.WriteU8(0x12)
	asm.WriteU16(0x3456)
	asm.WriteI32(-2)
	asm.WriteI64(1 << 40)
	code := asm.Code()

	u8, next := code.ReadUInt8(0)
	u16, next := code.ReadUInt16(next)
	i32, next := code.ReadInt32(next)
	i64, next := code.ReadInt64(next)
	if u8 != 0x12 || u16 != 0x3456 || i32 != -2 || i64 != 1<<40 {
		t.Errorf("Expected 0x12 0x3456 -2 %d, got %#x %#x %d %d instead", int64(1)<<40, u8, u16, i32, i64)
	}
	if next != CodePointer(len(code)) {
		t.Errorf("Expected to read to the end at %d, got %d instead", len(code), next)
	}
	if code[1] != 0x34 {
		t.Errorf("Expected big-endian operands, got %#x first instead", code[1])
	}
}
