package runtime

// A stack slot. Holds a *Tree, nil, or a raw scalar the interpreter keeps
// alongside values (code offsets, counts).
type Value interface{}

type TypeId = int

// Type ids with a fixed meaning in the runtime. Ids from IDUser onward belong
// to the program's grammar.
const (
	IDPtr TypeId = iota + 1
	IDBool
	IDInt
	IDStr
	IDList
	IDMap
	IDUser
)

// Tree is the reference-counted value node. Which fields are meaningful
// depends on ID: Int for booleans and integers, Tokdata for strings and
// tokens, List and Map for containers, Ptr for pointers, Child for everything
// with children.
type Tree struct {
	ID      TypeId
	Refs    int
	Child   *Kid
	Tokdata *Head
	Int     int64
	List    *ListEl
	Map     *MapEl
	Ptr     Handle
}

// Kid links a tree into its parent's child sequence. It is owned by the
// parent and carries no count of its own.
type Kid struct {
	Tree *Tree
	Next *Kid
}

// Head is the text buffer behind strings and tokens.
type Head struct {
	Data     []byte
	Location *Location
}

type Location struct {
	Name   string
	Line   int64
	Column int64
	Byte   int64
}

type ParseTree struct {
	ID     TypeId
	State  int
	Shadow *Kid
	Next   *ParseTree
	Child  *ParseTree
	Retry  int
	Flags  uint16
}

type ListEl struct {
	Value *Tree
	Next  *ListEl
	Prev  *ListEl
}

type MapEl struct {
	Key    *Tree
	Value  *Tree
	Left   *MapEl
	Right  *MapEl
	Height int
}

func (t *Tree) String() string {
	if t == nil {
		return "nil"
	}
	switch t.ID {
	case IDStr:
		return string(t.Tokdata.Data)
	}
	return treeString(t)
}
