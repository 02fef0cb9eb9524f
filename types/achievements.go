package types

// Achievement is one user achievement as held by the backend.
type Achievement struct {
	AchievementID      uint64
	Key                string
	Name               string
	Description        string
	ImageURLLocked     string
	ImageURLUnlocked   string
	VisibleWhileLocked bool

	// UnlockTime is a unix timestamp in seconds; zero means locked.
	UnlockTime uint32

	Rarity                 float32
	RarityLevelDescription string
	RarityLevelSlug        string
}

// Unlocked reports whether the achievement has a recorded unlock time.
func (a Achievement) Unlocked() bool { return a.UnlockTime != 0 }

// AchievementList is the most recently fetched achievement set for a user.
// It is replaced wholesale on every fetch, never merged incrementally.
type AchievementList struct {
	Items    []Achievement
	Mode     string
	Language string
}

// Find returns the achievement with the given id, if present.
func (l AchievementList) Find(id uint64) (Achievement, bool) {
	for _, a := range l.Items {
		if a.AchievementID == id {
			return a, true
		}
	}
	return Achievement{}, false
}
