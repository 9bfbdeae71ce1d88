package collisiongrid

// shape is what a concrete query plugs into the shared record pipeline.
type shape interface {
	// shouldQuery is a cheap logical filter run before anything else.
	shouldQuery(r *Record) bool
	// intersects tests a BoxReject record's box against the query volume.
	intersects(b Box) bool
	// primitiveQuery runs the final test and records a hit.
	primitiveQuery(r *Record)
}

// queryBase is the state shared by all queries. A query lives for a single
// call.
type queryBase struct {
	hash   *CollisionHash
	grid   *Grid
	arena  *HitArena
	result *Hit
	flags  uint32
	extra  uint32
	tag    uint32
}

func newQueryBase(h *CollisionHash, arena *HitArena, flags, extra uint32) queryBase {
	h.queries++
	return queryBase{
		hash:  h,
		grid:  h.grid,
		arena: arena,
		flags: flags,
		extra: extra,
		tag:   h.grid.nextTag(),
	}
}

func (q *queryBase) shouldQuery(*Record) bool { return true }
func (q *queryBase) intersects(Box) bool      { return true }

// Result is the hit list built so far.
func (q *queryBase) Result() *Hit { return q.result }

func (q *queryBase) prepend(h Hit) {
	n := q.arena.New(q.result)
	h.Next = q.result
	*n = h
	q.result = n
}

// visit runs the pipeline over a cell once per query.
func (q *queryBase) visit(s shape, c *Cell) {
	if c == nil || c.Tag == q.tag {
		return
	}
	c.Tag = q.tag
	q.queryRecords(s, &c.Records)
}

// queryRecords is the per candidate pipeline: de-duplicate by tag, filter
// by flags, run the shape filters, drop stale records, then run the
// primitive test.
func (q *queryBase) queryRecords(s shape, list *RecordList) {
	if list.QueryFlags&q.flags == 0 {
		return
	}
	for i := 0; i < len(list.items); i++ {
		r := list.items[i]
		if r.tag == q.tag || r.QueryFlags&q.flags == 0 {
			continue
		}
		r.tag = q.tag

		if !s.shouldQuery(r) || (r.Flags&BoxReject != 0 && !s.intersects(r.Box)) {
			continue
		}
		if !q.hash.valid(r) {
			list.RemoveAt(i)
			i--
			q.hash.purge(r)
			continue
		}
		s.primitiveQuery(r)
	}
}
