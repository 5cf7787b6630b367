package sim

import (
	"errors"
	"strconv"
)

// ErrStaleHandle is returned when a handle refers to a removed slot.
var ErrStaleHandle = errors.New("sim: stale handle")

// BodyHandle identifies a rigid body. The upper 32 bits carry the slot
// generation, the lower 32 bits the slot index.
type BodyHandle uint64

// ColliderHandle identifies a collider, encoded like BodyHandle.
type ColliderHandle uint64

const slotBits = 32

func makeHandle(slot, gen uint32) uint64 {
	return uint64(gen)<<slotBits | uint64(slot)
}

func splitHandle(h uint64) (slot, gen uint32) {
	return uint32(h), uint32(h >> slotBits)
}

func (h BodyHandle) Valid() bool { return h > 0 }

func (h BodyHandle) String() string {
	slot, gen := splitHandle(uint64(h))
	return "body(" + strconv.FormatUint(uint64(slot), 10) + "v" + strconv.FormatUint(uint64(gen), 10) + ")"
}

func (h ColliderHandle) Valid() bool { return h > 0 }

func (h ColliderHandle) String() string {
	slot, gen := splitHandle(uint64(h))
	return "collider(" + strconv.FormatUint(uint64(slot), 10) + "v" + strconv.FormatUint(uint64(gen), 10) + ")"
}

// arena stores values in reusable slots. Removing a value bumps the slot
// generation so handles minted before the removal stop resolving.
type arena[T any] struct {
	slots []arenaSlot[T]
	free  []uint32
	count int
}

type arenaSlot[T any] struct {
	gen   uint32
	live  bool
	value T
}

func (a *arena[T]) insert(v T) uint64 {
	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		slot = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot[T]{gen: 1})
	}
	s := &a.slots[slot]
	s.live = true
	s.value = v
	a.count++
	return makeHandle(slot, s.gen)
}

func (a *arena[T]) get(h uint64) (T, bool) {
	var zero T
	slot, gen := splitHandle(h)
	if int(slot) >= len(a.slots) {
		return zero, false
	}
	s := a.slots[slot]
	if !s.live || s.gen != gen {
		return zero, false
	}
	return s.value, true
}

func (a *arena[T]) remove(h uint64) (T, bool) {
	var zero T
	slot, gen := splitHandle(h)
	if int(slot) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[slot]
	if !s.live || s.gen != gen {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.live = false
	s.gen++
	a.free = append(a.free, slot)
	a.count--
	return v, true
}

func (a *arena[T]) each(fn func(h uint64, v T)) {
	for i := range a.slots {
		s := a.slots[i]
		if !s.live {
			continue
		}
		fn(makeHandle(uint32(i), s.gen), s.value)
	}
}

func (a *arena[T]) len() int { return a.count }
