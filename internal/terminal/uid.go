package terminal

import "errors"

// ErrUIDSpaceExhausted aborts an upload batch: once no free device uid can
// be found there is no point trying the remaining records.
var ErrUIDSpaceExhausted = errors.New("no free uid available on the terminal")

// uidAllocationCap bounds the upward scan so a pathological device user
// list cannot loop forever.
const uidAllocationCap = 200000

// uidAllocator hands out device uids avoiding both uids already present on
// the device and uids given out earlier in the same batch. Device uids are
// a scarce device-local namespace distinct from the business user_id, so
// the employee's own uid label is deliberately ignored.
type uidAllocator struct {
	used      map[int]struct{}
	allocated map[int]struct{}
	next      int
}

func newUIDAllocator(used map[int]struct{}) *uidAllocator {
	if used == nil {
		used = make(map[int]struct{})
	}
	return &uidAllocator{
		used:      used,
		allocated: make(map[int]struct{}),
		next:      1,
	}
}

func (a *uidAllocator) allocate() (int, error) {
	attempts := 0
	for {
		if _, taken := a.used[a.next]; !taken {
			if _, taken := a.allocated[a.next]; !taken {
				uid := a.next
				a.allocated[uid] = struct{}{}
				a.next++
				return uid, nil
			}
		}
		a.next++
		attempts++
		if attempts > uidAllocationCap {
			return 0, ErrUIDSpaceExhausted
		}
	}
}
