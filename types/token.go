package types

import "time"

// TokenRecord is a cached credential pair for one backend client id.
// Records are mutated by obtain/refresh operations and are never
// persisted to disk.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	// ObtainedAt is when the record was issued, used as the expiry
	// anchor when the access token carries no parseable exp claim.
	ObtainedAt time.Time
	// ExpiresIn is the token lifetime in seconds as reported by the
	// token endpoint.
	ExpiresIn int
}

// Expired reports whether the record is within margin of its expiry.
func (t TokenRecord) Expired(now time.Time, margin time.Duration) bool {
	if t.ExpiresIn <= 0 {
		return false
	}
	deadline := t.ObtainedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	return !now.Add(margin).Before(deadline)
}

// UserInfo is the authenticated user identity resolved from the backend.
type UserInfo struct {
	// UserID is the numeric backend user id, untagged.
	UserID uint64
	// Username is the display name.
	Username string
}
