// Package backend is the account backend capability: the authenticated
// HTTP operations the gateway translates client requests into.
//
// The gateway core treats this package as an external collaborator; the
// protocol layers depend only on the Client interface.
package backend

import (
	"context"

	"github.com/pithecene-io/gantry/types"
)

// Client is the set of backend operations consumed by message handlers.
// Implementations must be safe for use from multiple goroutines.
type Client interface {
	// ObtainToken exchanges the stored refresh token for credentials
	// scoped to the given client id, caching the result.
	ObtainToken(ctx context.Context, clientID, clientSecret string) (types.TokenRecord, error)

	// RefreshToken re-obtains credentials for a previously identified
	// client. The bool reports whether a refresh actually happened.
	RefreshToken(ctx context.Context, clientID, clientSecret string) (bool, *types.TokenRecord, error)

	// GetUserInfo resolves the authenticated user's identity.
	GetUserInfo(ctx context.Context) (types.UserInfo, error)

	// GetUserStats fetches the stat list for a user. Returns ErrNotFound
	// when the backend has no stats for the client/user pair.
	GetUserStats(ctx context.Context, userID uint64) ([]types.Stat, error)

	// UpdateUserStat writes one typed stat value.
	UpdateUserStat(ctx context.Context, statID uint64, value types.StatValue) error

	// DeleteUserStats removes all stats for the current user, returning
	// the backend status code.
	DeleteUserStats(ctx context.Context) (int, error)

	// GetUserAchievements fetches the full achievement list for a user.
	GetUserAchievements(ctx context.Context, userID uint64) (types.AchievementList, error)

	// SetUserAchievement sets (unlockTime > 0) or clears (unlockTime == 0)
	// one achievement. The bool reports the backend saying the achievement
	// was already unlocked.
	SetUserAchievement(ctx context.Context, achievementID uint64, unlockTime uint32) (bool, error)

	// DeleteUserAchievements removes all achievements for the current
	// user, returning the backend status code.
	DeleteUserAchievements(ctx context.Context) (int, error)

	// GetLeaderboards fetches the leaderboard definitions for the client.
	GetLeaderboards(ctx context.Context) ([]types.LeaderboardDefinition, error)

	// GetLeaderboardEntries fetches entries by rank range or centered on
	// a user, returning the entries and the leaderboard's total count.
	GetLeaderboardEntries(ctx context.Context, leaderboardID uint64, sel types.EntrySelector) ([]types.LeaderboardEntry, uint32, error)
}
