package queue

import (
	"container/list"
	"fmt"
)

// Index is the ordered structure described in spec §4.1: an ordered map
// from LogIndex to an optional shadow snapshot, supporting append,
// delete, smallest-key lookup, next-key-after, and size.
//
// Appends always happen at the tail: the consensus log only hands Apply
// strictly increasing LogIndexes, so a doubly linked list kept in append
// order already is the sorted order, and deletion (which can land anywhere,
// since settle can drop a message delivered long before the most recent
// enqueue) is O(1) via a LogIndex -> *list.Element side table. No balanced
// tree or skip-list is needed for this access pattern; see DESIGN.md.
type Index struct {
	order   *list.List
	byIndex map[LogIndex]*list.Element
	lastIdx LogIndex
	hasLast bool
}

type indexEntry struct {
	idx    LogIndex
	shadow []byte // nil when absent
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		order:   list.New(),
		byIndex: make(map[LogIndex]*list.Element),
	}
}

// Append inserts idx with an optional shadow snapshot. idx must be strictly
// greater than every previously appended index; a violation is a host bug
// (spec §7) and is reported by panicking.
func (ix *Index) Append(idx LogIndex, shadow []byte) {
	if ix.hasLast && idx <= ix.lastIdx {
		panic(fmt.Sprintf("queue: index append out of order: %d after %d", idx, ix.lastIdx))
	}
	el := ix.order.PushBack(&indexEntry{idx: idx, shadow: shadow})
	ix.byIndex[idx] = el
	ix.lastIdx = idx
	ix.hasLast = true
}

// Delete removes idx from the index. A no-op if idx is absent.
func (ix *Index) Delete(idx LogIndex) {
	el, ok := ix.byIndex[idx]
	if !ok {
		return
	}
	ix.order.Remove(el)
	delete(ix.byIndex, idx)
}

// Smallest returns the minimum key currently stored and its shadow, or ok
// == false if the index is empty.
func (ix *Index) Smallest() (idx LogIndex, shadow []byte, ok bool) {
	front := ix.order.Front()
	if front == nil {
		return 0, nil, false
	}
	e := front.Value.(*indexEntry)
	return e.idx, e.shadow, true
}

// NextKeyAfter returns the least key strictly greater than idx, or ok ==
// false if none exists (idx itself need not be present in the index).
func (ix *Index) NextKeyAfter(idx LogIndex) (next LogIndex, ok bool) {
	if el, present := ix.byIndex[idx]; present {
		n := el.Next()
		if n == nil {
			return 0, false
		}
		return n.Value.(*indexEntry).idx, true
	}
	for el := ix.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*indexEntry)
		if e.idx > idx {
			return e.idx, true
		}
	}
	return 0, false
}

// Size returns the number of entries currently stored.
func (ix *Index) Size() int {
	return ix.order.Len()
}

// Map transforms every stored shadow in place. Test support only (spec
// §4.1): production code never rewrites a shadow once appended.
func (ix *Index) Map(fn func(shadow []byte) []byte) {
	for el := ix.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*indexEntry)
		e.shadow = fn(e.shadow)
	}
}

// clone returns a deep, independent copy of the index.
func (ix *Index) clone() *Index {
	out := NewIndex()
	for el := ix.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*indexEntry)
		var shadowCopy []byte
		if e.shadow != nil {
			shadowCopy = append([]byte(nil), e.shadow...)
		}
		out.Append(e.idx, shadowCopy)
	}
	return out
}
