package collisiongrid

import "github.com/go-gl/mathgl/mgl32"

const defaultArenaBlock = 256

// Hit is one query result. Results form a singly linked list, most recent
// discovery first.
type Hit struct {
	Entity   EntityID
	Time     float32
	Location mgl32.Vec3
	Normal   mgl32.Vec3
	// Item is free for the narrow phase, e.g. a sub primitive index.
	Item     int32
	Next     *Hit
}

// Len counts the nodes from h onward.
func (h *Hit) Len() int {
	n := 0
	for ; h != nil; h = h.Next {
		n++
	}
	return n
}

// Entities lists the entities from h onward in list order.
func (h *Hit) Entities() []EntityID {
	var ids []EntityID
	for ; h != nil; h = h.Next {
		ids = append(ids, h.Entity)
	}
	return ids
}

// SanitizeHits unlinks hits whose location is not finite or whose normal is
// not finite or clearly not unit length. It returns the new head and the
// number of hits removed.
func SanitizeHits(head *Hit) (*Hit, int) {
	removed := 0
	link := &head
	for *link != nil {
		h := *link
		loc := FromVec3(h.Location)
		n := FromVec3(h.Normal)
		if loc.InvalidBits()&Mask3D != 0 || n.InvalidBits()&Mask3D != 0 || n.SizeSq() > 2 {
			*link = h.Next
			removed++
			continue
		}
		link = &h.Next
	}
	return head, removed
}

// HitArena hands out Hit nodes from reusable blocks. A frame typically
// issues many queries against one arena and calls Reset once at the end.
// The zero value is ready to use.
type HitArena struct {
	blocks    [][]Hit
	block     int
	used      int
	blockSize int
}

func NewHitArena(blockSize int) *HitArena {
	return &HitArena{blockSize: blockSize}
}

// New returns a zeroed node with Time 1 linked in front of next.
func (a *HitArena) New(next *Hit) *Hit {
	if a.blockSize <= 0 {
		a.blockSize = defaultArenaBlock
	}
	if len(a.blocks) == 0 {
		a.blocks = append(a.blocks, make([]Hit, a.blockSize))
	}
	if a.used == len(a.blocks[a.block]) {
		a.block++
		a.used = 0
		if a.block == len(a.blocks) {
			a.blocks = append(a.blocks, make([]Hit, a.blockSize))
		}
	}
	h := &a.blocks[a.block][a.used]
	a.used++
	*h = Hit{Time: 1, Next: next}
	return h
}

// Reset recycles every node. Hits handed out earlier must not be used
// afterwards.
func (a *HitArena) Reset() {
	a.block = 0
	a.used = 0
}

// Allocated is the number of nodes handed out since the last Reset.
func (a *HitArena) Allocated() int {
	if len(a.blocks) == 0 {
		return 0
	}
	return a.block*a.blockSize + a.used
}
