package deepcrawl

import (
	"container/heap"

	"github.com/use-agent/crawl4go/model"
)

// Frontier is the pending-URL queue a deep crawl strategy pops from and
// pushes to. The discipline (FIFO/LIFO/priority) is what distinguishes
// BFS/DFS/Best-First per spec.md §4.7.
type Frontier interface {
	Push(node model.FrontierNode)
	Pop() (model.FrontierNode, bool)
	Len() int
	Snapshot() []model.FrontierNode
}

// fifoFrontier backs BFS: first pushed, first popped.
type fifoFrontier struct {
	nodes []model.FrontierNode
}

func (f *fifoFrontier) Push(node model.FrontierNode) { f.nodes = append(f.nodes, node) }

func (f *fifoFrontier) Pop() (model.FrontierNode, bool) {
	if len(f.nodes) == 0 {
		return model.FrontierNode{}, false
	}
	n := f.nodes[0]
	f.nodes = f.nodes[1:]
	return n, true
}

func (f *fifoFrontier) Len() int { return len(f.nodes) }

func (f *fifoFrontier) Snapshot() []model.FrontierNode {
	return append([]model.FrontierNode(nil), f.nodes...)
}

// lifoFrontier backs DFS: last pushed, first popped.
type lifoFrontier struct {
	nodes []model.FrontierNode
}

func (f *lifoFrontier) Push(node model.FrontierNode) { f.nodes = append(f.nodes, node) }

func (f *lifoFrontier) Pop() (model.FrontierNode, bool) {
	n := len(f.nodes)
	if n == 0 {
		return model.FrontierNode{}, false
	}
	node := f.nodes[n-1]
	f.nodes = f.nodes[:n-1]
	return node, true
}

func (f *lifoFrontier) Len() int { return len(f.nodes) }

func (f *lifoFrontier) Snapshot() []model.FrontierNode {
	return append([]model.FrontierNode(nil), f.nodes...)
}

// priorityItem wraps a FrontierNode with its insertion sequence, used to
// break score ties in insertion order per spec.md §5's Best-First ordering
// guarantee ("score desc, insertion asc").
type priorityItem struct {
	node model.FrontierNode
	seq  int
}

type priorityItems []*priorityItem

func (pq priorityItems) Len() int { return len(pq) }

func (pq priorityItems) Less(i, j int) bool {
	if pq[i].node.Score != pq[j].node.Score {
		return pq[i].node.Score > pq[j].node.Score
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityItems) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityItems) Push(x any) { *pq = append(*pq, x.(*priorityItem)) }

func (pq *priorityItems) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// bestFirstFrontier backs Best-First: highest FrontierNode.Score popped
// first, ties broken by insertion order.
type bestFirstFrontier struct {
	items priorityItems
	seq   int
}

func (f *bestFirstFrontier) Push(node model.FrontierNode) {
	heap.Push(&f.items, &priorityItem{node: node, seq: f.seq})
	f.seq++
}

func (f *bestFirstFrontier) Pop() (model.FrontierNode, bool) {
	if f.items.Len() == 0 {
		return model.FrontierNode{}, false
	}
	item := heap.Pop(&f.items).(*priorityItem)
	return item.node, true
}

func (f *bestFirstFrontier) Len() int { return f.items.Len() }

func (f *bestFirstFrontier) Snapshot() []model.FrontierNode {
	out := make([]model.FrontierNode, len(f.items))
	for i, item := range f.items {
		out[i] = item.node
	}
	return out
}

// newFrontier builds the frontier discipline named by kind, seeded from
// seed (either the single start node or a resumed snapshot's frontier).
func newFrontier(kind model.DeepCrawlKind, seed []model.FrontierNode) Frontier {
	var f Frontier
	switch kind {
	case model.DeepCrawlDFS:
		f = &lifoFrontier{}
	case model.DeepCrawlBestFirst:
		f = &bestFirstFrontier{}
	default:
		f = &fifoFrontier{}
	}
	for _, node := range seed {
		f.Push(node)
	}
	return f
}
