package runtime

import (
	"fmt"
	"strings"
)

// Upref records a new owner of t.
func Upref(t *Tree) {
	if t != nil {
		t.Refs++
	}
}

// Downref drops one owner of t. When the count reaches zero everything the
// tree owns is released and the tree goes back to its pool. The count of a
// tree always reaches zero before any of its children are visited, and
// children are visited in order. A worklist stands in for recursion so deep
// trees cannot exhaust the goroutine stack.
func (p *Program) Downref(t *Tree) {
	if t == nil {
		return
	}
	t.Refs--
	if t.Refs > 0 {
		return
	}

	work := []*Tree{t}
	for len(work) > 0 {
		t := work[0]
		work = work[1:]

		// collect owned trees in order, then put the node storage back
		var owned []*Tree
		for kid := t.Child; kid != nil; {
			next := kid.Next
			owned = append(owned, kid.Tree)
			p.kids.Release(kid)
			kid = next
		}
		for el := t.List; el != nil; {
			next := el.Next
			owned = append(owned, el.Value)
			p.listEls.Release(el)
			el = next
		}
		owned = p.releaseMapEls(t.Map, owned)
		if t.Tokdata != nil {
			p.releaseHead(t.Tokdata)
		}
		p.trees.Release(t)

		for _, child := range owned {
			if child == nil {
				continue
			}
			child.Refs--
			if child.Refs <= 0 {
				work = append(work, child)
			}
		}
	}
}

func (p *Program) releaseMapEls(root *MapEl, owned []*Tree) []*Tree {
	var pending []*MapEl
	for el := root; el != nil || len(pending) > 0; {
		for el != nil {
			pending = append(pending, el)
			el = el.Left
		}
		el = pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		owned = append(owned, el.Key, el.Value)
		right := el.Right
		p.mapEls.Release(el)
		el = right
	}
	return owned
}

func (p *Program) releaseHead(h *Head) {
	if h.Location != nil {
		p.locations.Release(h.Location)
	}
	p.heads.Release(h)
}

func (p *Program) newTree(id TypeId) *Tree {
	t := p.trees.Allocate()
	t.ID = id
	return t
}

// NewString builds a string tree over a copy of data. Like every
// constructor it returns the tree with no owners.
func (p *Program) NewString(data []byte) *Tree {
	head := p.heads.Allocate()
	head.Data = append([]byte(nil), data...)
	t := p.newTree(IDStr)
	t.Tokdata = head
	return t
}

func (p *Program) NewStringAt(data []byte, loc Location) *Tree {
	t := p.NewString(data)
	l := p.locations.Allocate()
	*l = loc
	t.Tokdata.Location = l
	return t
}

func (p *Program) NewInt(v int64) *Tree {
	t := p.newTree(IDInt)
	t.Int = v
	return t
}

func (p *Program) newBool(v bool) *Tree {
	t := p.newTree(IDBool)
	if v {
		t.Int = 1
	}
	return t
}

// NewTree builds a tree with the given children, taking one reference to
// each of them.
func (p *Program) NewTree(id TypeId, children ...*Tree) *Tree {
	t := p.newTree(id)
	var last *Kid
	for _, child := range children {
		kid := p.kids.Allocate()
		kid.Tree = child
		Upref(child)
		if last == nil {
			t.Child = kid
		} else {
			last.Next = kid
		}
		last = kid
	}
	return t
}

func (p *Program) NewList(values ...*Tree) *Tree {
	t := p.newTree(IDList)
	var last *ListEl
	for _, v := range values {
		el := p.listEls.Allocate()
		el.Value = v
		el.Prev = last
		Upref(v)
		if last == nil {
			t.List = el
		} else {
			last.Next = el
		}
		last = el
	}
	return t
}

// NewMap builds a map from alternating keys and values. The elements form a
// balanced tree whose in-order walk is the insertion order.
func (p *Program) NewMap(pairs ...*Tree) *Tree {
	if len(pairs)%2 != 0 {
		panic("NewMap: odd number of keys and values")
	}
	els := make([]*MapEl, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		el := p.mapEls.Allocate()
		el.Key, el.Value = pairs[i], pairs[i+1]
		Upref(el.Key)
		Upref(el.Value)
		els = append(els, el)
	}
	t := p.newTree(IDMap)
	t.Map = buildMapEls(els)
	return t
}

func buildMapEls(els []*MapEl) *MapEl {
	if len(els) == 0 {
		return nil
	}
	mid := len(els) / 2
	root := els[mid]
	root.Left = buildMapEls(els[:mid])
	root.Right = buildMapEls(els[mid+1:])
	root.Height = 1 + max(mapElHeight(root.Left), mapElHeight(root.Right))
	return root
}

func mapElHeight(el *MapEl) int {
	if el == nil {
		return 0
	}
	return el.Height
}

// NewPointer refers to a heap record without owning it.
func (p *Program) NewPointer(h Handle) *Tree {
	t := p.newTree(IDPtr)
	t.Ptr = h
	return t
}

func (p *Program) NewParseTree(id TypeId) *ParseTree {
	pt := p.parseTrees.Allocate()
	pt.ID = id
	return pt
}

// ReleaseParseTree gives a parse tree and its subtrees back to the pool,
// dropping the shadow kids' trees.
func (p *Program) ReleaseParseTree(pt *ParseTree) {
	for pt != nil {
		next := pt.Next
		p.ReleaseParseTree(pt.Child)
		if pt.Shadow != nil {
			p.Downref(pt.Shadow.Tree)
			p.kids.Release(pt.Shadow)
		}
		p.parseTrees.Release(pt)
		pt = next
	}
}

// ShadowParseTree attaches t as the value carried by a parse tree.
func (p *Program) ShadowParseTree(pt *ParseTree, t *Tree) {
	kid := p.kids.Allocate()
	kid.Tree = t
	Upref(t)
	pt.Shadow = kid
}

func treeString(t *Tree) string {
	var b strings.Builder
	writeTree(&b, t)
	return b.String()
}

func writeTree(b *strings.Builder, t *Tree) {
	if t == nil {
		b.WriteString("nil")
		return
	}
	switch t.ID {
	case IDBool:
		fmt.Fprintf(b, "%t", t.Int != 0)
	case IDInt:
		fmt.Fprintf(b, "%d", t.Int)
	case IDStr:
		fmt.Fprintf(b, "%q", t.Tokdata.Data)
	case IDPtr:
		fmt.Fprintf(b, "ptr(%d.%d)", t.Ptr.index, t.Ptr.gen)
	case IDList:
		b.WriteString("list(")
		for el := t.List; el != nil; el = el.Next {
			writeTree(b, el.Value)
			if el.Next != nil {
				b.WriteString(", ")
			}
		}
		b.WriteString(")")
	case IDMap:
		b.WriteString("map(")
		first := true
		var walk func(el *MapEl)
		walk = func(el *MapEl) {
			if el == nil {
				return
			}
			walk(el.Left)
			if !first {
				b.WriteString(", ")
			}
			first = false
			writeTree(b, el.Key)
			b.WriteString(": ")
			writeTree(b, el.Value)
			walk(el.Right)
		}
		walk(t.Map)
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "tree(%d", t.ID)
		if t.Tokdata != nil {
			fmt.Fprintf(b, " %q", t.Tokdata.Data)
		}
		for kid := t.Child; kid != nil; kid = kid.Next {
			b.WriteString(" ")
			writeTree(b, kid.Tree)
		}
		b.WriteString(")")
	}
}
