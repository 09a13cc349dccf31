package game

// History is a bounded FIFO of recently dropped character ids.
type History struct {
	ids  []int64
	size int
}

func NewHistory(ids []int64, size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	h := &History{size: size}
	for _, id := range ids {
		h.Push(id)
	}
	return h
}

// Push appends id and evicts the oldest entries beyond the bound.
func (h *History) Push(id int64) {
	h.ids = append(h.ids, id)
	if over := len(h.ids) - h.size; over > 0 {
		h.ids = append(h.ids[:0:0], h.ids[over:]...)
	}
}

func (h *History) Contains(id int64) bool {
	for _, v := range h.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (h *History) Len() int {
	return len(h.ids)
}

func (h *History) IDs() []int64 {
	return append([]int64(nil), h.ids...)
}
