package profile

// Multi-slot locker sizes. Dance and ItemWrap are the only slot families
// with sub-slots; every other locker slot holds a single item.
const (
	// DanceSlots is the number of emote sub-slots.
	DanceSlots = 6
	// ItemWrapSlots is the number of wrap sub-slots.
	ItemWrapSlots = 7
)
