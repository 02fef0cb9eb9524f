package types

// LeaderboardDefinition describes one leaderboard as held by the backend.
type LeaderboardDefinition struct {
	LeaderboardID uint64
	Key           string
	Name          string
	SortMethod    string
	DisplayType   string
}

// LeaderboardEntry is one ranked row of a leaderboard.
// UserID is untagged here; the wire layer re-applies the id tag.
type LeaderboardEntry struct {
	UserID uint64
	Score  int32
	Rank   uint32
}

// EntryRange selects leaderboard entries by absolute rank range.
type EntryRange struct {
	Start uint32
	End   uint32
}

// EntryAroundUser selects leaderboard entries centered on a user.
type EntryAroundUser struct {
	UserID      uint64
	CountBefore uint32
	CountAfter  uint32
}

// EntrySelector is either an EntryRange or an EntryAroundUser.
// The backend client branches on the concrete type.
type EntrySelector interface {
	isEntrySelector()
}

func (EntryRange) isEntrySelector()      {}
func (EntryAroundUser) isEntrySelector() {}
