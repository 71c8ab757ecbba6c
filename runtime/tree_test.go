package runtime

import (
	"reflect"
	"testing"
)

func newTestProgram() *Program {
	return NewDebugProgram(&RuntimeData{GlobalID: -1}, nil)
}

func freeCounts(p *Program) map[Kind]int {
	counts := make(map[Kind]int)
	for kind, a := range p.allocators() {
		counts[kind] = a.Free()
	}
	return counts
}

// lostNodes reports the nodes still allocated, not counting the booleans the
// program keeps for its whole life.
func lostNodes(p *Program) Leaks {
	leaks := p.lost()
	if leaks[TreeKind] -= 2; leaks[TreeKind] == 0 {
		delete(leaks, TreeKind)
	}
	return leaks
}

func TestTreeString(t *testing.T) {
	p := newTestProgram()
	testCases := []struct {
		name string
		tree *Tree
		exp  string
	}{
		{"Nil", nil, "nil"},
		{"String", p.NewString([]byte("abc")), "abc"},
		{"Int", p.NewInt(-12), "-12"},
		{"Bool", p.True, "true"},
		{"List", p.NewList(p.NewString([]byte("a")), p.NewInt(2)), `list("a", 2)`},
		{"Map", p.NewMap(p.NewString([]byte("k")), p.NewInt(1), p.NewString([]byte("j")), p.False), `map("k": 1, "j": false)`},
		{"Tree", p.NewTree(IDUser, p.NewInt(1), nil), "tree(7 1 nil)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if res := tc.tree.String(); res != tc.exp {
				t.Errorf("Expected %q, got %q instead", tc.exp, res)
			}
		})
	}
}

func TestNewStringCopies(t *testing.T) {
	p := newTestProgram()
	data := []byte("hello")
	s := p.NewString(data)
	data[0] = 'j'
	if s.String() != "hello" {
		t.Errorf("Expected the string to own its bytes, got %q instead", s.String())
	}
	if s.Refs != 0 {
		t.Errorf("Expected a new tree to have no owners, got %d instead", s.Refs)
	}
}

func TestDownrefReleasesNodes(t *testing.T) {
	p := newTestProgram()
	loc := Location{Name: "input", Line: 3, Column: 1, Byte: 40}
	root := p.NewTree(IDUser,
		p.NewStringAt([]byte("a"), loc),
		p.NewList(p.NewInt(1), p.NewInt(2)),
		p.NewMap(p.NewString([]byte("k")), p.NewInt(3)),
	)
	Upref(root)

	before := freeCounts(p)
	p.Downref(root)
	after := freeCounts(p)

	exp := map[Kind]int{
		KidKind:       before[KidKind] + 3,
		TreeKind:      before[TreeKind] + 8,
		ParseTreeKind: before[ParseTreeKind],
		ListElKind:    before[ListElKind] + 2,
		MapElKind:     before[MapElKind] + 1,
		HeadKind:      before[HeadKind] + 2,
		LocationKind:  before[LocationKind] + 1,
	}
	if !reflect.DeepEqual(after, exp) {
		t.Errorf("Expected free counts %v, got %v instead", exp, after)
	}
	if leaks := lostNodes(p); len(leaks) != 0 {
		t.Errorf("Expected no lost nodes, got %v instead", leaks)
	}
}

func TestDownrefShared(t *testing.T) {
	p := newTestProgram()
	child := p.NewString([]byte("shared"))
	Upref(child)

	first := p.NewTree(IDUser, child)
	second := p.NewList(child, child)
	Upref(first)
	Upref(second)
	if child.Refs != 4 {
		t.Fatalf("Expected 4 owners, got %d instead", child.Refs)
	}

	p.Downref(first)
	p.Downref(second)
	if child.Refs != 1 {
		t.Fatalf("Expected the child to outlive its parents, got %d owners instead", child.Refs)
	}
	if child.String() != "shared" {
		t.Errorf("Expected the child to stay intact, got %q instead", child.String())
	}

	p.Downref(child)
	if leaks := lostNodes(p); len(leaks) != 0 {
		t.Errorf("Expected no lost nodes, got %v instead", leaks)
	}
}

func TestDownrefDeep(t *testing.T) {
	p := newTestProgram()
	tree := p.NewInt(0)
	for i := 0; i < 100000; i++ {
		tree = p.NewTree(IDUser, tree)
	}
	Upref(tree)
	p.Downref(tree)
	if leaks := lostNodes(p); len(leaks) != 0 {
		t.Errorf("Expected no lost nodes, got %v instead", leaks)
	}
}

func TestDownrefLargeMap(t *testing.T) {
	p := newTestProgram()
	var pairs []*Tree
	for i := 0; i < 1000; i++ {
		pairs = append(pairs, p.NewInt(int64(i)), p.NewInt(int64(i*i)))
	}
	m := p.NewMap(pairs...)
	if h := mapElHeight(m.Map); h != 10 {
		t.Errorf("Expected a balanced map of height 10, got %d instead", h)
	}

	var keys []int64
	var walk func(el *MapEl)
	walk = func(el *MapEl) {
		if el == nil {
			return
		}
		walk(el.Left)
		keys = append(keys, el.Key.Int)
		walk(el.Right)
	}
	walk(m.Map)
	for i, k := range keys {
		if k != int64(i) {
			t.Fatalf("Expected key %d at position %d, got %d instead", i, i, k)
		}
	}

	Upref(m)
	p.Downref(m)
	if leaks := lostNodes(p); len(leaks) != 0 {
		t.Errorf("Expected no lost nodes, got %v instead", leaks)
	}
}

func TestNewMapOdd(t *testing.T) {
	p := newTestProgram()
	defer func() {
		if recover() == nil {
			t.Errorf("Expected an odd number of map operands to panic")
		}
	}()
	p.NewMap(p.NewInt(1))
}

func TestParseTrees(t *testing.T) {
	p := newTestProgram()
	root := p.NewParseTree(IDUser)
	root.Child = p.NewParseTree(IDUser + 1)
	root.Child.Next = p.NewParseTree(IDUser + 2)
	p.ShadowParseTree(root, p.NewString([]byte("tok")))
	p.ShadowParseTree(root.Child, p.NewInt(5))

	if root.Shadow.Tree.Refs != 1 {
		t.Errorf("Expected the shadow to own its tree, got %d owners instead", root.Shadow.Tree.Refs)
	}

	p.ReleaseParseTree(root)
	if leaks := lostNodes(p); len(leaks) != 0 {
		t.Errorf("Expected no lost nodes, got %v instead", leaks)
	}
}
