package runtime

import (
	"fmt"
	"io"
)

type Instruction = byte

type CodePointer = uint

const (
	NOP Instruction = iota
	STOP
	EXIT

	CONSTANT
	TRUE
	FALSE
	NIL
	INT

	ARG
	LOCALS
	LOAD
	STORE
	POP

	GET_GLOBAL
	SET_GLOBAL
	NEW_RECORD
	SET_FIELD
	GET_FIELD
	DELETE

	TREE
	LIST
	MAP

	SET_ERROR

	FRAME
	CALL
	RETURN
)

var instructionNames = map[Instruction]string{
	NOP:        "NOP",
	STOP:       "STOP",
	EXIT:       "EXIT",
	CONSTANT:   "CONSTANT",
	TRUE:       "TRUE",
	FALSE:      "FALSE",
	NIL:        "NIL",
	INT:        "INT",
	ARG:        "ARG",
	LOCALS:     "LOCALS",
	LOAD:       "LOAD",
	STORE:      "STORE",
	POP:        "POP",
	GET_GLOBAL: "GET_GLOBAL",
	SET_GLOBAL: "SET_GLOBAL",
	NEW_RECORD: "NEW_RECORD",
	SET_FIELD:  "SET_FIELD",
	GET_FIELD:  "GET_FIELD",
	DELETE:     "DELETE",
	TREE:       "TREE",
	LIST:       "LIST",
	MAP:        "MAP",
	SET_ERROR:  "SET_ERROR",
	FRAME:      "FRAME",
	CALL:       "CALL",
	RETURN:     "RETURN",
}

// Code is a frame's bytecode. Operands are big-endian.
type Code []byte

func (c Code) ReadUInt8(offset CodePointer) (uint8, CodePointer) {
	return c[offset], offset + 1
}

func (c Code) ReadUInt16(offset CodePointer) (uint16, CodePointer) {
	result := (uint16(c[offset]) << 8) | uint16(c[offset+1])
	return result, offset + 2
}

func (c Code) ReadInt32(offset CodePointer) (int32, CodePointer) {
	result := (int32(c[offset]) << 24) | (int32(c[offset+1]) << 16) | (int32(c[offset+2]) << 8) | int32(c[offset+3])
	return result, offset + 4
}

func (c Code) ReadInt64(offset CodePointer) (int64, CodePointer) {
	result := (int64(c[offset]) << 56) |
		(int64(c[offset+1]) << 48) |
		(int64(c[offset+2]) << 40) |
		(int64(c[offset+3]) << 32) |
		(int64(c[offset+4]) << 24) |
		(int64(c[offset+5]) << 16) |
		(int64(c[offset+6]) << 8) |
		int64(c[offset+7])
	return result, offset + 8
}

// Assembler writes the bytecode of one frame.
type Assembler struct {
	code   Code
	labels map[CodePointer]string
}

func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[CodePointer]string)}
}

func (a *Assembler) Label(label string) {
	a.labels[CodePointer(len(a.code))] = label
}

func (a *Assembler) Code() Code {
	return a.code
}

func (a *Assembler) Labels() map[CodePointer]string {
	return a.labels
}

func (a *Assembler) Op(instr Instruction) {
	a.WriteU8(instr)
}

func (a *Assembler) OpU8(instr Instruction, arg uint8) {
	a.WriteU8(instr)
	a.WriteU8(arg)
}

func (a *Assembler) OpU16(instr Instruction, arg uint16) {
	a.WriteU8(instr)
	a.WriteU16(arg)
}

func (a *Assembler) WriteU8(val uint8) {
	a.code = append(a.code, val)
}

func (a *Assembler) WriteU16(val uint16) {
	a.WriteU8(byte(val>>8))
	a.WriteU8(byte(val))
}

func (a *Assembler) WriteI32(val int32) {
	a.WriteU8(byte(val>>24))
	a.WriteU8(byte(val>>16))
	a.WriteU8(byte(val>>8))
	a.WriteU8(byte(val))
}

func (a *Assembler) WriteI64(val int64) {
	a.WriteU8(byte(val>>56))
	a.WriteU8(byte(val>>48))
	a.WriteU8(byte(val>>40))
	a.WriteU8(byte(val>>32))
	a.WriteU8(byte(val>>24))
	a.WriteU8(byte(val>>16))
	a.WriteU8(byte(val>>8))
	a.WriteU8(byte(val))
}

// Disassemble writes one line per instruction of code.
func (m *Machine) Disassemble(w io.Writer, code Code, labels map[CodePointer]string) {
	for i := CodePointer(0); i < CodePointer(len(code)); {
		if val, hasLabel := labels[i]; hasLabel {
			fmt.Fprintf(w, "%s:\n", val)
		}
		i = m.DisassembleInstruction(w, code, i)
	}
}

func (m *Machine) DisassembleInstruction(w io.Writer, code Code, offset CodePointer) CodePointer {
	fmt.Fprintf(w, "%04d ", offset)

	instruction := code[offset]
	name, known := instructionNames[instruction]
	if !known {
		fmt.Fprintf(w, "Unknown opcode: %d\n", instruction)
		return offset + 1
	}

	switch instruction {
	case CONSTANT:
		idx, next := code.ReadUInt16(offset + 1)
		if m.rtd != nil && int(idx) < len(m.rtd.Literals) {
			fmt.Fprintf(w, "%s: %q\n", name, m.rtd.Literals[idx])
		} else {
			fmt.Fprintf(w, "%s: %d\n", name, idx)
		}
		return next
	case INT:
		arg, next := code.ReadInt64(offset + 1)
		fmt.Fprintf(w, "%s: %d\n", name, arg)
		return next
	case EXIT:
		arg, next := code.ReadInt32(offset + 1)
		fmt.Fprintf(w, "%s: %d\n", name, arg)
		return next
	case ARG, LIST, MAP:
		arg, next := code.ReadUInt8(offset + 1)
		fmt.Fprintf(w, "%s: %d\n", name, arg)
		return next
	case LOCALS, LOAD, STORE, GET_GLOBAL, SET_GLOBAL, NEW_RECORD, SET_FIELD, GET_FIELD:
		arg, next := code.ReadUInt16(offset + 1)
		fmt.Fprintf(w, "%s: %d\n", name, arg)
		return next
	case FRAME, CALL:
		frameId, next := code.ReadUInt16(offset + 1)
		fmt.Fprintf(w, "%s: %s\n", name, m.frameName(int(frameId)))
		return next
	case TREE:
		id, aft := code.ReadUInt16(offset + 1)
		count, next := code.ReadUInt8(aft)
		fmt.Fprintf(w, "%s: %d %d\n", name, id, count)
		return next
	default:
		fmt.Fprintln(w, name)
		return offset + 1
	}
}

func (m *Machine) frameName(frameId int) string {
	if m.rtd != nil && frameId < len(m.rtd.Frames) && m.rtd.Frames[frameId].Name != "" {
		return m.rtd.Frames[frameId].Name
	}
	return fmt.Sprint(frameId)
}
