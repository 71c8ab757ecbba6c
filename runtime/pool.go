package runtime

const DefaultPoolBlockSize = 1024

// Kind names the node types that are allocated from pools.
type Kind int

const (
	KidKind Kind = iota
	TreeKind
	ParseTreeKind
	ListElKind
	MapElKind
	HeadKind
	LocationKind
)

var kindNames = [...]string{
	KidKind:       "kids",
	TreeKind:      "trees",
	ParseTreeKind: "parse trees",
	ListElKind:    "list elements",
	MapElKind:     "map elements",
	HeadKind:      "heads",
	LocationKind:  "locations",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Allocator hands out fixed-size nodes of one type.
type Allocator[T any] interface {
	Allocate() *T
	Release(node *T)
	Clear()
	// number of nodes currently on the free list
	Free() int
	// number of blocks allocated since the last Clear
	Blocks() int
}

// Pool is a free-list allocator that carves nodes out of blocks. Blocks are
// only given back in bulk by Clear.
type Pool[T any] struct {
	free      []*T
	blocks    [][]T
	blockSize int
}

func NewPool[T any](blockSize int) *Pool[T] {
	if blockSize <= 0 {
		blockSize = DefaultPoolBlockSize
	}
	return &Pool[T]{blockSize: blockSize}
}

func (p *Pool[T]) Allocate() *T {
	if len(p.free) == 0 {
		block := make([]T, p.blockSize)
		p.blocks = append(p.blocks, block)
		for i := len(block) - 1; i > 0; i-- {
			p.free = append(p.free, &block[i])
		}
		return &block[0]
	}

	node := p.free[len(p.free)-1]
	p.free[len(p.free)-1] = nil
	p.free = p.free[:len(p.free)-1]

	var zero T
	*node = zero
	return node
}

// Release does not validate the node. It must not be read afterwards.
func (p *Pool[T]) Release(node *T) {
	p.free = append(p.free, node)
}

func (p *Pool[T]) Clear() {
	p.free = nil
	p.blocks = nil
}

func (p *Pool[T]) Free() int {
	return len(p.free)
}

func (p *Pool[T]) Blocks() int {
	return len(p.blocks)
}

// Counted wraps an allocator with lifetime allocate and release counts, so
// that a refcounting mistake shows up as lost nodes at teardown.
type Counted[T any] struct {
	Allocator[T]
	allocated int64
	released  int64
}

func NewCounted[T any](inner Allocator[T]) *Counted[T] {
	return &Counted[T]{Allocator: inner}
}

func (c *Counted[T]) Allocate() *T {
	c.allocated++
	return c.Allocator.Allocate()
}

func (c *Counted[T]) Release(node *T) {
	c.released++
	c.Allocator.Release(node)
}

func (c *Counted[T]) Allocated() int64 {
	return c.allocated
}

func (c *Counted[T]) Released() int64 {
	return c.released
}

func (c *Counted[T]) Lost() int64 {
	return c.allocated - c.released
}

// Counter is satisfied by allocators that can report lost nodes.
type Counter interface {
	Lost() int64
}
