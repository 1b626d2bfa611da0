package agrpc

// operationPoolLimit bounds the free list of each pool.
const operationPoolLimit = 256

// operationPool recycles the operations backing Post. Only the goroutine
// holding the pool, via its ThreadContext, may use it.
type operationPool struct {
	free []*funcOperation
}

func (x *operationPool) get() *funcOperation {
	if n := len(x.free); n != 0 {
		op := x.free[n-1]
		x.free[n-1] = nil
		x.free = x.free[:n-1]
		return op
	}
	return new(funcOperation)
}

func (x *operationPool) put(op *funcOperation) {
	if x == nil || len(x.free) >= operationPoolLimit {
		return
	}
	x.free = append(x.free, op)
}

// poolSet holds one pool per concurrency hint slot. A run acquires a pool for
// its duration.
type poolSet struct {
	pools chan *operationPool
}

func newPoolSet(n int) poolSet {
	s := poolSet{pools: make(chan *operationPool, n)}
	for range n {
		s.pools <- &operationPool{free: make([]*funcOperation, 0, 16)}
	}
	return s
}

func (s poolSet) acquire() *operationPool {
	select {
	case p := <-s.pools:
		return p
	default:
		// more concurrent runners than hinted
		return &operationPool{}
	}
}

func (s poolSet) release(p *operationPool) {
	select {
	case s.pools <- p:
	default:
	}
}

// drain drops every pooled operation.
func (s poolSet) drain() {
	for {
		select {
		case p := <-s.pools:
			clear(p.free)
			p.free = p.free[:0]
		default:
			return
		}
	}
}
