package requestqueue

import (
	"container/heap"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// pqItem is one entry in the priority heap: a request plus the sequence
// number that orders it relative to its peers.
type pqItem struct {
	request *types.Request
	seq     int64
	index   int
}

// priorityQueue orders strictly by seq, ascending — lower sequence pops
// first. Forefront insertion assigns a seq below every non-forefront
// sequence issued so far (see Queue.nextForefrontSeq), so this single
// ordering relation gives both FIFO-by-default and forefront-jumps-the-line
// without a second priority dimension. Same container/heap skeleton as the
// teacher's engine.priorityQueue.
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pqItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

var _ heap.Interface = (*priorityQueue)(nil)
