package runtime

// FrameInfo describes one compiled function. ArgSize and FrameSize are in
// stack slots.
type FrameInfo struct {
	Name      string
	Code      []byte
	ArgSize   int
	FrameSize int
}

type StructInfo struct {
	Name   string
	Fields int
}

// RuntimeData is the compiled program as the runtime sees it.
type RuntimeData struct {
	RootCode    []byte
	RootFrameID int
	Frames      []FrameInfo
	Structs     []StructInfo
	GlobalID    int
	Literals    [][]byte
}

// Number of slots between a frame's arguments and its locals, reserved for
// the interpreter's return linkage.
const LinkageSlots = 4

// Execution is the interpreter state for one activation. Root marks the
// program's root activation, which has no arguments or linkage slots.
type Execution struct {
	FrameID  int
	FramePtr StackPointer
	Depth    int
	Root     bool
}

// Executor runs bytecode until the stack has unwound to the caller's frame.
// For a function activation the produced value is left on top of the stack.
type Executor interface {
	Execute(p *Program, exec *Execution, sp StackPointer, code []byte) StackPointer
}

type ExecutorFunc func(p *Program, exec *Execution, sp StackPointer, code []byte) StackPointer

func (f ExecutorFunc) Execute(p *Program, exec *Execution, sp StackPointer, code []byte) StackPointer {
	return f(p, exec, sp, code)
}
