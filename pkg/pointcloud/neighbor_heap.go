package pointcloud

import "sort"

type neighbor struct {
	index  int
	sqDist float64
}

// neighborHeap is a bounded max-heap on sqDist, keyed so the root (items[0])
// is always the current worst candidate, letting KNearest reject far points
// in O(log k) instead of re-sorting the whole candidate set every insert.
type neighborHeap struct {
	items []neighbor
}

func (h *neighborHeap) Len() int { return len(h.items) }

func (h *neighborHeap) push(n neighbor) {
	h.items = append(h.items, n)
	h.up(len(h.items) - 1)
}

func (h *neighborHeap) replaceMax(n neighbor) {
	h.items[0] = n
	h.down(0)
}

func (h *neighborHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[parent].sqDist >= h.items[i].sqDist {
			break
		}
		h.items[parent], h.items[i] = h.items[i], h.items[parent]
		i = parent
	}
}

func (h *neighborHeap) down(i int) {
	n := len(h.items)
	for {
		left, right := 2*i+1, 2*i+2
		largest := i
		if left < n && h.items[left].sqDist > h.items[largest].sqDist {
			largest = left
		}
		if right < n && h.items[right].sqDist > h.items[largest].sqDist {
			largest = right
		}
		if largest == i {
			return
		}
		h.items[i], h.items[largest] = h.items[largest], h.items[i]
		i = largest
	}
}

func (h *neighborHeap) sortedIndices() []int {
	items := append([]neighbor(nil), h.items...)
	sort.Slice(items, func(a, b int) bool { return items[a].sqDist < items[b].sqDist })
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.index
	}
	return out
}
