package runtime

import (
	"strings"

	"github.com/tliron/commonlog"
)

var machineLog = commonlog.GetLogger("treevm.machine")

// Machine is a small reference interpreter for the runtime. It executes one
// activation per Execute call and recurses for CALL.
//
// Frame layout, from higher to lower slots: arguments in push order, the
// linkage slots, then the locals declared by LOCALS. Everything pushed after
// that is operand stack and may spill into newer segments; the frame itself
// always lies in one segment because callers reserve it with FRAME before
// pushing arguments.
type Machine struct {
	rtd   *RuntimeData
	Trace bool
}

func NewDebugMachine(rtd *RuntimeData) *Machine {
	return &Machine{rtd: rtd, Trace: true}
}

func NewReleaseMachine(rtd *RuntimeData) *Machine {
	return &Machine{rtd: rtd, Trace: false}
}

// activation is the per-call state of the dispatch loop.
type activation struct {
	p        *Program
	exec     *Execution
	sp       StackPointer
	window   []Value
	locals   int
	args     int
	operands int
}

func (a *activation) push(v Value) {
	a.sp = a.p.Stack.Push(a.sp, v)
	a.operands++
}

func (a *activation) pushTree(t *Tree) {
	Upref(t)
	a.push(t)
}

func (a *activation) pop() *Tree {
	if a.operands <= 0 {
		panic("Stack underflow detected.")
	}
	var v Value
	v, a.sp = a.p.Stack.Pop(a.sp)
	a.operands--
	return asTree(v)
}

func (a *activation) popN(n int) []*Tree {
	values := make([]*Tree, n)
	for i := n - 1; i >= 0; i-- {
		values[i] = a.pop()
	}
	return values
}

func (a *activation) local(i int) int {
	return a.locals - 1 - i
}

func (a *activation) arg(i int) int {
	return a.locals + a.linkage() + a.args - 1 - i
}

func (a *activation) linkage() int {
	if a.exec.Root {
		return 0
	}
	return LinkageSlots
}

// unwind drops the operand stack and the frame, releasing every value they
// hold.
func (a *activation) unwind() {
	for a.operands > 0 {
		a.p.Downref(a.pop())
	}
	for i, v := range a.window {
		a.window[i] = nil
		a.p.Downref(asTree(v))
	}
	a.sp = a.p.Stack.PopN(a.sp, len(a.window))
	a.window = nil
}

func asTree(v Value) *Tree {
	t, _ := v.(*Tree)
	return t
}

func (m *Machine) Execute(p *Program, exec *Execution, sp StackPointer, code []byte) StackPointer {
	a := &activation{p: p, exec: exec, sp: sp}
	if !exec.Root {
		a.args = p.rtd.Frames[exec.FrameID].ArgSize
	}
	a.window = p.Stack.Slots(sp, a.linkage()+a.args)

	c := Code(code)
	for ip := CodePointer(0); ; {
		if ip >= CodePointer(len(c)) {
			panic("Execution ran past the end of the code.")
		}
		if m.Trace {
			m.trace(exec, c, ip, p.Stack.Used(a.sp))
		}

		instr := c[ip]
		ip++
		switch instr {
		case NOP:
			// nothing
		case STOP:
			a.unwind()
			return a.sp
		case EXIT:
			var status int32
			status, ip = c.ReadInt32(ip)
			p.ExitStatus = int(status)

		case CONSTANT:
			var idx uint16
			idx, ip = c.ReadUInt16(ip)
			a.pushTree(p.NewString(p.rtd.Literals[idx]))
		case TRUE:
			a.pushTree(p.True)
		case FALSE:
			a.pushTree(p.False)
		case NIL:
			a.push(nil)
		case INT:
			var v int64
			v, ip = c.ReadInt64(ip)
			a.pushTree(p.NewInt(v))

		case ARG:
			var i uint8
			i, ip = c.ReadUInt8(ip)
			a.pushTree(asTree(a.window[a.arg(int(i))]))
		case LOCALS:
			var n uint16
			n, ip = c.ReadUInt16(ip)
			if a.operands > 0 || a.locals > 0 {
				panic("LOCALS must open the frame.")
			}
			if a.sp-int(n) < p.Stack.Begin() {
				panic("LOCALS: frame does not fit in the current segment.")
			}
			for i := 0; i < int(n); i++ {
				a.sp = p.Stack.Push(a.sp, nil)
			}
			a.locals = int(n)
			a.window = p.Stack.Slots(a.sp, a.locals+a.linkage()+a.args)
		case LOAD:
			var i uint16
			i, ip = c.ReadUInt16(ip)
			a.pushTree(asTree(a.window[a.local(int(i))]))
		case STORE:
			var i uint16
			i, ip = c.ReadUInt16(ip)
			slot := a.local(int(i))
			prev := asTree(a.window[slot])
			a.window[slot] = a.pop()
			p.Downref(prev)
		case POP:
			p.Downref(a.pop())

		case GET_GLOBAL:
			var i uint16
			i, ip = c.ReadUInt16(ip)
			rec, _ := p.Heap.Get(p.Global)
			a.pushTree(rec.Fields[i])
		case SET_GLOBAL:
			var i uint16
			i, ip = c.ReadUInt16(ip)
			p.Heap.SetField(p.Global, int(i), a.pop())
		case NEW_RECORD:
			var id uint16
			id, ip = c.ReadUInt16(ip)
			h := p.Heap.New(int(id), p.rtd.Structs[id].Fields)
			a.pushTree(p.NewPointer(h))
		case SET_FIELD:
			var i uint16
			i, ip = c.ReadUInt16(ip)
			val := a.pop()
			ptr := a.pop()
			if !p.Heap.SetField(ptr.Ptr, int(i), val) {
				p.Downref(val)
			}
			p.Downref(ptr)
		case GET_FIELD:
			var i uint16
			i, ip = c.ReadUInt16(ip)
			ptr := a.pop()
			var field *Tree
			if rec, ok := p.Heap.Get(ptr.Ptr); ok {
				field = rec.Fields[i]
			}
			a.pushTree(field)
			p.Downref(ptr)
		case DELETE:
			ptr := a.pop()
			p.Heap.Delete(ptr.Ptr)
			p.Downref(ptr)

		case TREE:
			var id uint16
			var count uint8
			id, ip = c.ReadUInt16(ip)
			count, ip = c.ReadUInt8(ip)
			children := a.popN(int(count))
			a.pushTree(p.NewTree(int(id), children...))
			for _, child := range children {
				p.Downref(child)
			}
		case LIST:
			var count uint8
			count, ip = c.ReadUInt8(ip)
			values := a.popN(int(count))
			a.pushTree(p.NewList(values...))
			for _, v := range values {
				p.Downref(v)
			}
		case MAP:
			var count uint8
			count, ip = c.ReadUInt8(ip)
			pairs := a.popN(2 * int(count))
			a.pushTree(p.NewMap(pairs...))
			for _, v := range pairs {
				p.Downref(v)
			}

		case SET_ERROR:
			p.SetError(a.pop())

		case FRAME:
			var id uint16
			id, ip = c.ReadUInt16(ip)
			fi := &p.rtd.Frames[id]
			a.sp = p.Stack.Contiguous(a.sp, fi.ArgSize+LinkageSlots+fi.FrameSize)
		case CALL:
			var id uint16
			id, ip = c.ReadUInt16(ip)
			fi := &p.rtd.Frames[id]
			for i := 0; i < LinkageSlots; i++ {
				a.sp = p.Stack.Push(a.sp, nil)
			}
			callee := Execution{FrameID: int(id), FramePtr: a.sp, Depth: exec.Depth + 1}
			a.sp = m.Execute(p, &callee, a.sp, fi.Code)
			// the callee consumed the arguments and left its result
			a.operands += 1 - fi.ArgSize
		case RETURN:
			result := a.pop()
			a.unwind()
			a.sp = p.Stack.Push(a.sp, result)
			return a.sp

		default:
			panic("Unknown opcode.")
		}
	}
}

func (m *Machine) trace(exec *Execution, code Code, ip CodePointer, used int) {
	var b strings.Builder
	m.DisassembleInstruction(&b, code, ip)
	machineLog.Debugf("%s[%s sp:%d] %s", strings.Repeat("  ", exec.Depth), m.frameName(exec.FrameID), used, strings.TrimSuffix(b.String(), "\n"))
}
