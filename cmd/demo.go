package cmd

import "github.com/glossopoeia/treevm/runtime"

// Frames of the demonstration program.
const (
	mainFrame = iota
	pairFrame
	twiceFrame
)

const (
	globalStruct = iota
	nodeStruct
)

// demoProgram assembles a small program for the reference machine. The root
// code builds a self-referencing heap record and stores it, together with a
// map, in the global record. "pair" returns a tree holding its two string
// arguments as a list and a literal; "twice" calls "pair" with its single
// argument in both positions.
func demoProgram() (*runtime.RuntimeData, map[int]map[runtime.CodePointer]string) {
	rtd := &runtime.RuntimeData{
		RootFrameID: mainFrame,
		GlobalID:    globalStruct,
		Structs: []runtime.StructInfo{
			globalStruct: {Name: "global", Fields: 2},
			nodeStruct:   {Name: "node", Fields: 2},
		},
		Literals: [][]byte{[]byte("hello"), []byte("world"), []byte("key")},
	}
	labels := make(map[int]map[runtime.CodePointer]string)

	root := runtime.NewAssembler()
	root.Label("main")
	root.OpU16(runtime.LOCALS, 1)
	root.OpU16(runtime.NEW_RECORD, nodeStruct)
	root.OpU16(runtime.STORE, 0)
	root.Label("cycle")
	root.OpU16(runtime.LOAD, 0)
	root.OpU16(runtime.LOAD, 0)
	root.OpU16(runtime.SET_FIELD, 0)
	root.OpU16(runtime.LOAD, 0)
	root.OpU16(runtime.CONSTANT, 0)
	root.OpU16(runtime.CONSTANT, 1)
	root.OpU16(runtime.TREE, uint16(runtime.IDUser))
	root.WriteU8(2)
	root.OpU16(runtime.SET_FIELD, 1)
	root.Label("globals")
	root.OpU16(runtime.LOAD, 0)
	root.OpU16(runtime.SET_GLOBAL, 0)
	root.OpU16(runtime.CONSTANT, 2)
	root.Op(runtime.INT)
	root.WriteI64(7)
	root.OpU8(runtime.MAP, 1)
	root.OpU16(runtime.SET_GLOBAL, 1)
	root.Op(runtime.EXIT)
	root.WriteI32(0)
	root.Op(runtime.STOP)
	labels[mainFrame] = root.Labels()

	pair := runtime.NewAssembler()
	pair.Label("pair")
	pair.OpU16(runtime.LOCALS, 1)
	pair.OpU8(runtime.ARG, 0)
	pair.OpU8(runtime.ARG, 1)
	pair.OpU8(runtime.LIST, 2)
	pair.OpU16(runtime.STORE, 0)
	pair.OpU16(runtime.LOAD, 0)
	pair.OpU16(runtime.CONSTANT, 0)
	pair.OpU16(runtime.TREE, uint16(runtime.IDUser))
	pair.WriteU8(2)
	pair.Op(runtime.RETURN)
	labels[pairFrame] = pair.Labels()

	twice := runtime.NewAssembler()
	twice.Label("twice")
	twice.OpU16(runtime.FRAME, pairFrame)
	twice.OpU8(runtime.ARG, 0)
	twice.OpU8(runtime.ARG, 0)
	twice.OpU16(runtime.CALL, pairFrame)
	twice.Op(runtime.RETURN)
	labels[twiceFrame] = twice.Labels()

	rtd.RootCode = root.Code()
	rtd.Frames = []runtime.FrameInfo{
		mainFrame:  {Name: "main", Code: root.Code(), FrameSize: 1},
		pairFrame:  {Name: "pair", Code: pair.Code(), ArgSize: 2, FrameSize: 1},
		twiceFrame: {Name: "twice", Code: twice.Code(), ArgSize: 1},
	}
	return rtd, labels
}

func frameByName(rtd *runtime.RuntimeData, name string) (int, bool) {
	for id, fi := range rtd.Frames {
		if fi.Name == name {
			return id, true
		}
	}
	return 0, false
}
