package resolution

import (
	"sort"
	"strings"
)

// queue is a FIFO of descriptors. head indexes the next descriptor to pop.
type queue struct {
	items []Descriptor
	head  int
}

func (q *queue) len() int {
	return len(q.items) - q.head
}

// Table maps each Key to the descriptors given for it, in input order.
// It is consumed by a Matcher and is not safe for concurrent use.
type Table struct {
	queues map[Key]*queue
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{queues: make(map[Key]*queue)}
}

// Push appends d to the queue for k.
func (t *Table) Push(k Key, d Descriptor) {
	q, ok := t.queues[k]
	if !ok {
		q = &queue{}
		t.queues[k] = q
	}
	q.items = append(q.items, d)
}

// Pop removes and returns the oldest descriptor for k. The key is removed
// once its last descriptor has been popped. ok is false if k has no
// descriptors.
func (t *Table) Pop(k Key) (d Descriptor, ok bool) {
	q, found := t.queues[k]
	if !found {
		return Descriptor{}, false
	}
	d = q.items[q.head]
	q.head++
	if q.len() == 0 {
		delete(t.queues, k)
	}
	return d, true
}

// Pending returns the descriptors not yet popped for k, oldest first.
func (t *Table) Pending(k Key) []Descriptor {
	q, ok := t.queues[k]
	if !ok {
		return nil
	}
	out := make([]Descriptor, q.len())
	copy(out, q.items[q.head:])
	return out
}

// Len returns the number of keys with pending descriptors.
func (t *Table) Len() int {
	return len(t.queues)
}

// Empty reports whether every descriptor has been consumed.
func (t *Table) Empty() bool {
	return len(t.queues) == 0
}

// Keys returns the keys with pending descriptors sorted by file, then symbol.
func (t *Table) Keys() []Key {
	keys := make([]Key, 0, len(t.queues))
	for k := range t.queues {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// String renders the pending descriptors as one "file,symbol,flags" line
// each, sorted by key and in FIFO order within a key.
func (t *Table) String() string {
	var b strings.Builder
	for _, k := range t.Keys() {
		for _, d := range t.Pending(k) {
			b.WriteString(k.String())
			b.WriteByte(',')
			b.WriteString(d.Flags())
			b.WriteByte('\n')
		}
	}
	return b.String()
}
