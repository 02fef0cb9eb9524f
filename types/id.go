package types

// The client protocol overlays several numeric representations onto one
// 64-bit id slot. The top 2 bits carry a type tag; the low 62 bits carry
// the numeric id. Every id observed on the wire uses the user tag (0b10).
// The masking is preserved exactly as the upstream protocol has it.

const (
	// UserIDTag is the tag value occupying the top 2 bits of a tagged user id.
	UserIDTag uint64 = 0b10

	tagShift   = 62
	tagMask    uint64 = 0b11 << tagShift
	userIDMask uint64 = ^tagMask
)

// TagUserID applies the user tag to a raw numeric id.
// Bits above the low 62 are discarded.
func TagUserID(id uint64) uint64 {
	return (UserIDTag << tagShift) | (id & userIDMask)
}

// StripUserID removes the tag bits from a wire-encoded user id.
func StripUserID(tagged uint64) uint64 {
	return tagged & userIDMask
}

// IDTag extracts the 2-bit tag from a wire-encoded id.
func IDTag(tagged uint64) uint64 {
	return tagged >> tagShift
}
