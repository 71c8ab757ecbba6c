package runtime

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/glossopoeia/treevm/config"
)

var log = commonlog.GetLogger("treevm.runtime")

// RunBuf is an input buffer handed to the parser and kept until the program
// is deleted.
type RunBuf struct {
	Data []byte
	next *RunBuf
}

// Leaks maps a node kind to the number of its nodes that were allocated but
// never released.
type Leaks map[Kind]int64

// Kinds returns the leaking kinds in declaration order.
func (l Leaks) Kinds() []Kind {
	kinds := maps.Keys(l)
	slices.Sort(kinds)
	return kinds
}

// Program owns everything a running program touches: the node pools, the
// evaluation stack, the heap records and the values the runtime hands back
// to its embedder. A Program is used by one goroutine at a time.
type Program struct {
	ID uuid.UUID

	rtd    *RuntimeData
	exec   Executor
	config *config.Config

	kids       Allocator[Kid]
	trees      Allocator[Tree]
	parseTrees Allocator[ParseTree]
	listEls    Allocator[ListEl]
	mapEls     Allocator[MapEl]
	heads      Allocator[Head]
	locations  Allocator[Location]

	Heap  *Heap
	Stack *Stack

	True   *Tree
	False  *Tree
	Global Handle

	ReturnVal  *Tree
	Error      *Tree
	Args       []string
	ExitStatus int

	runBufs *RunBuf
	deleted bool
}

func NewProgram(rtd *RuntimeData, exec Executor, cfg *config.Config) *Program {
	if cfg == nil {
		cfg = config.Default()
	}

	p := new(Program)
	p.ID = uuid.New()
	p.rtd = rtd
	p.exec = exec
	p.config = cfg

	blockSize := cfg.Pool.BlockSize
	p.kids = newAllocator[Kid](blockSize, cfg.Diagnostics.Enabled)
	p.trees = newAllocator[Tree](blockSize, cfg.Diagnostics.Enabled)
	p.parseTrees = newAllocator[ParseTree](blockSize, cfg.Diagnostics.Enabled)
	p.listEls = newAllocator[ListEl](blockSize, cfg.Diagnostics.Enabled)
	p.mapEls = newAllocator[MapEl](blockSize, cfg.Diagnostics.Enabled)
	p.heads = newAllocator[Head](blockSize, cfg.Diagnostics.Enabled)
	p.locations = newAllocator[Location](blockSize, cfg.Diagnostics.Enabled)

	p.True = p.newBool(true)
	p.True.Refs = 1
	p.False = p.newBool(false)
	p.False.Refs = 1

	p.Heap = NewHeap(p)
	p.Global = p.Heap.New(rtd.GlobalID, rtd.globalFields())

	p.Stack = NewStack(cfg.Stack.SegmentSize)

	log.Debugf("program %s created", p.ID)
	return p
}

// NewDebugProgram counts every pool allocation so Delete can report lost
// nodes.
func NewDebugProgram(rtd *RuntimeData, exec Executor) *Program {
	cfg := config.Default()
	cfg.Diagnostics.Enabled = true
	return NewProgram(rtd, exec, cfg)
}

func NewReleaseProgram(rtd *RuntimeData, exec Executor) *Program {
	return NewProgram(rtd, exec, config.Default())
}

func newAllocator[T any](blockSize int, counted bool) Allocator[T] {
	var a Allocator[T] = NewPool[T](blockSize)
	if counted {
		a = NewCounted(a)
	}
	return a
}

func (rtd *RuntimeData) globalFields() int {
	if rtd.GlobalID >= 0 && rtd.GlobalID < len(rtd.Structs) {
		return rtd.Structs[rtd.GlobalID].Fields
	}
	return 0
}

func (p *Program) Diagnostics() bool {
	return p.config.Diagnostics.Enabled
}

func (p *Program) RuntimeData() *RuntimeData {
	return p.rtd
}

func (p *Program) checkLive() {
	if p.deleted {
		panic("Program used after it was deleted.")
	}
}

// RunProgram executes the root code with argv visible to the program. A
// program without root code does nothing.
func (p *Program) RunProgram(argv []string) {
	p.checkLive()
	if len(p.rtd.RootCode) == 0 {
		return
	}

	p.Args = argv

	exec := Execution{FrameID: p.rtd.RootFrameID, FramePtr: p.Stack.Root(), Root: true}
	sp := p.exec.Execute(p, &exec, p.Stack.Root(), p.rtd.RootCode)
	if sp != p.Stack.Root() {
		log.Warningf("program %s: root code left %d slots on the stack", p.ID, p.Stack.Used(sp))
	}

	p.Args = nil
}

// RunFunc calls a function as if from the root of the program, passing each
// param as a string argument (nil params pass nil). The value the function
// returns replaces the previous return value and is also returned.
func (p *Program) RunFunc(frameID int, params []*string) *Tree {
	p.checkLive()
	p.Args = nil

	fi := &p.rtd.Frames[frameID]
	sp := p.Stack.Root()

	// one reservation for the whole frame, so no push below crosses a segment
	sp = p.Stack.Contiguous(sp, fi.ArgSize+LinkageSlots+fi.FrameSize)

	for _, param := range params {
		if param == nil {
			sp = p.Stack.Push(sp, nil)
			continue
		}
		t := p.NewString([]byte(*param))
		Upref(t)
		sp = p.Stack.Push(sp, t)
	}

	for i := 0; i < LinkageSlots; i++ {
		sp = p.Stack.Push(sp, nil)
	}

	exec := Execution{FrameID: frameID, FramePtr: sp}
	sp = p.exec.Execute(p, &exec, sp, fi.Code)

	p.Downref(p.ReturnVal)
	var ret Value
	ret, sp = p.Stack.Pop(sp)
	p.ReturnVal, _ = ret.(*Tree)

	if sp != p.Stack.Root() {
		panic("Function call did not unwind the stack to its root.")
	}

	return p.ReturnVal
}

func (p *Program) ReturnValue() *Tree {
	return p.ReturnVal
}

func (p *Program) ExitCode() int {
	return p.ExitStatus
}

// SetError replaces the error value, taking over the caller's reference.
func (p *Program) SetError(t *Tree) {
	p.Downref(p.Error)
	p.Error = t
}

func (p *Program) ErrorValue() *Tree {
	return p.Error
}

func (p *Program) AllocRunBuf(size int) *RunBuf {
	rb := &RunBuf{Data: make([]byte, size), next: p.runBufs}
	p.runBufs = rb
	return rb
}

// Delete releases everything the program owns and returns its exit status.
// With diagnostics enabled the nodes that were never released are reported
// per kind. The program must not be used afterwards.
func (p *Program) Delete() (int, Leaks) {
	p.checkLive()
	exitStatus := p.ExitStatus

	p.Downref(p.ReturnVal)
	p.ReturnVal = nil
	p.Heap.Clear()

	p.Downref(p.True)
	p.Downref(p.False)
	p.True, p.False = nil, nil

	p.Downref(p.Error)
	p.Error = nil

	var leaks Leaks
	if p.Diagnostics() {
		leaks = p.lost()
		for _, kind := range leaks.Kinds() {
			log.Warningf("lost %s: %d", kind, leaks[kind])
		}
	}

	for _, a := range p.allocators() {
		a.Clear()
	}

	for rb := p.runBufs; rb != nil; {
		next := rb.next
		rb.next = nil
		rb = next
	}
	p.runBufs = nil

	p.Stack.Clear()
	p.deleted = true

	log.Debugf("program %s deleted with exit status %d", p.ID, exitStatus)
	return exitStatus, leaks
}

type clearer interface {
	Clear()
	Free() int
	Blocks() int
}

func (p *Program) allocators() map[Kind]clearer {
	return map[Kind]clearer{
		KidKind:       p.kids,
		TreeKind:      p.trees,
		ParseTreeKind: p.parseTrees,
		ListElKind:    p.listEls,
		MapElKind:     p.mapEls,
		HeadKind:      p.heads,
		LocationKind:  p.locations,
	}
}

func (p *Program) lost() Leaks {
	leaks := make(Leaks)
	for kind, a := range p.allocators() {
		if c, ok := a.(Counter); ok && c.Lost() != 0 {
			leaks[kind] = c.Lost()
		}
	}
	return leaks
}
