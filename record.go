package collisiongrid

// EntityID identifies an entity owned by the host. The grid never
// dereferences it; it is handed back to the collaborators.
type EntityID uint64

// Handle is what an entity stores to find its record again. NoHandle
// means the entity is not indexed.
type Handle uint32

const NoHandle Handle = 0

type RecordFlags uint8

const (
	// Committed is set while the record is held by an entity.
	Committed RecordFlags = 1 << iota
	// Global records live in the overflow list instead of cells.
	Global
	// BoxReject records must pass the query's box test before the
	// validity check and the narrow phase.
	BoxReject
	MovingBrush
)

// Record is the per entity membership entry. Records live in an
// ElementPool; cells and the overflow list point at them directly.
type Record struct {
	Entity     EntityID
	QueryFlags uint32
	Flags      RecordFlags
	// Box is a snapshot taken when the record was inserted. Remove walks
	// the cells of this box, so nothing but the hash may change it.
	Box        Box

	handle Handle
	tag    uint32
	links  int32
}

func (r *Record) CanAcquire() bool { return r.Flags&Committed == 0 }
func (r *Record) CanRelease() bool { return r.Flags&Committed != 0 }

func (r *Record) SetAcquired(acquired bool) {
	if acquired {
		r.Flags |= Committed
	} else {
		r.Flags &^= Committed
	}
}

func (r *Record) Handle() Handle { return r.handle }

// Links is the number of lists holding the record.
func (r *Record) Links() int32 { return r.links }

func (r *Record) IsGlobal() bool { return r.Flags&Global != 0 }

// RecordList is an unordered list of records plus the union of their query
// flags. The union only shrinks when the list empties.
type RecordList struct {
	items      []*Record
	QueryFlags uint32
}

func (l *RecordList) Len() int { return len(l.items) }

func (l *RecordList) At(i int) *Record { return l.items[i] }

// Records returns the backing slice. It is only valid until the next
// mutation.
func (l *RecordList) Records() []*Record { return l.items }

func (l *RecordList) Add(r *Record) {
	l.QueryFlags |= r.QueryFlags
	l.items = append(l.items, r)
	r.links++
}

// RemoveAt swaps the last record into slot i. Order is not kept and the
// backing array never shrinks.
func (l *RecordList) RemoveAt(i int) {
	last := len(l.items) - 1
	r := l.items[i]
	l.items[i] = l.items[last]
	l.items[last] = nil
	l.items = l.items[:last]
	r.links--
	if last == 0 {
		l.QueryFlags = 0
	}
}

// RemoveItem removes the first occurrence of r.
func (l *RecordList) RemoveItem(r *Record) bool {
	for i, it := range l.items {
		if it == r {
			l.RemoveAt(i)
			return true
		}
	}
	return false
}

func (l *RecordList) Contains(r *Record) bool {
	for _, it := range l.items {
		if it == r {
			return true
		}
	}
	return false
}
