package catalog

// Message type identifiers for the request/response channel.
// The numbering is fixed by the upstream protocol and must not change.
const (
	MsgAuthInfoRequest  uint16 = 3
	MsgAuthInfoResponse uint16 = 4

	MsgGetUserStatsRequest    uint16 = 15
	MsgGetUserStatsResponse   uint16 = 16
	MsgUpdateUserStatRequest  uint16 = 17
	MsgUpdateUserStatResponse uint16 = 18
	MsgDeleteUserStatsRequest  uint16 = 19
	MsgDeleteUserStatsResponse uint16 = 20

	MsgGetUserAchievementsRequest     uint16 = 23
	MsgGetUserAchievementsResponse    uint16 = 24
	MsgUnlockUserAchievementRequest   uint16 = 25
	MsgUnlockUserAchievementResponse  uint16 = 26
	MsgClearUserAchievementRequest    uint16 = 27
	MsgClearUserAchievementResponse   uint16 = 28
	MsgDeleteUserAchievementsRequest  uint16 = 29
	MsgDeleteUserAchievementsResponse uint16 = 30

	MsgGetLeaderboardsRequest                  uint16 = 31
	MsgGetLeaderboardsResponse                 uint16 = 32
	MsgGetLeaderboardEntriesGlobalRequest      uint16 = 33
	MsgGetLeaderboardEntriesAroundUserRequest  uint16 = 34
	MsgGetLeaderboardEntriesResponse           uint16 = 36
)

// Message type identifiers for the push channel.
const (
	MsgBrokerAuthRequest            uint16 = 1
	MsgBrokerAuthResponse           uint16 = 2
	MsgBrokerSubscribeTopicRequest  uint16 = 3
	MsgBrokerSubscribeTopicResponse uint16 = 4
	MsgBrokerMessageFromTopic       uint16 = 5
)

// AuthInfoRequest identifies the connecting game client.
type AuthInfoRequest struct {
	ClientID     uint64 `msgpack:"client_id"`
	ClientSecret string `msgpack:"client_secret"`
	GamePID      uint32 `msgpack:"game_pid,omitempty"`
}

// AuthInfoResponse carries the credentials and identity of the session user.
type AuthInfoResponse struct {
	RefreshToken    string `msgpack:"refresh_token"`
	EnvironmentType uint32 `msgpack:"environment_type"`
	UserID          uint64 `msgpack:"user_id"`
	UserName        string `msgpack:"user_name"`
	Region          uint32 `msgpack:"region"`
}

// GetUserStatsRequest asks for the stat list of a tagged user id.
type GetUserStatsRequest struct {
	UserID uint64 `msgpack:"user_id"`
}

// UserStat is one stat row in a GetUserStatsResponse. Exactly one of the
// int_*/float_* field sets is populated, selected by ValueType; the other
// set stays at zero.
type UserStat struct {
	StatID        uint64 `msgpack:"stat_id"`
	Key           string `msgpack:"key"`
	ValueType     int32  `msgpack:"value_type"`
	WindowSize    uint32 `msgpack:"window_size"`
	IncrementOnly bool   `msgpack:"increment_only"`

	IntValue        int32 `msgpack:"int_value"`
	IntDefaultValue int32 `msgpack:"int_default_value"`
	IntMinValue     int32 `msgpack:"int_min_value"`
	IntMaxValue     int32 `msgpack:"int_max_value"`
	IntMaxChange    int32 `msgpack:"int_max_change"`

	FloatValue        float32 `msgpack:"float_value"`
	FloatDefaultValue float32 `msgpack:"float_default_value"`
	FloatMinValue     float32 `msgpack:"float_min_value"`
	FloatMaxValue     float32 `msgpack:"float_max_value"`
	FloatMaxChange    float32 `msgpack:"float_max_change"`
}

// GetUserStatsResponse lists the user's stats.
type GetUserStatsResponse struct {
	UserStats []UserStat `msgpack:"user_stats"`
}

// UpdateUserStatRequest writes one typed stat value. The value_type field
// selects whether int_value or float_value carries the payload.
type UpdateUserStatRequest struct {
	StatID     uint64  `msgpack:"stat_id"`
	ValueType  int32   `msgpack:"value_type"`
	IntValue   int32   `msgpack:"int_value"`
	FloatValue float32 `msgpack:"float_value"`
}

// UpdateUserStatResponse acknowledges a stat write; failures are carried
// on the response header's status extension.
type UpdateUserStatResponse struct{}

// DeleteUserStatsRequest clears all stats for the session user.
type DeleteUserStatsRequest struct{}

// DeleteUserStatsResponse acknowledges a stats wipe.
type DeleteUserStatsResponse struct{}

// GetUserAchievementsRequest asks for the achievement list of a tagged
// user id.
type GetUserAchievementsRequest struct {
	UserID uint64 `msgpack:"user_id"`
}

// UserAchievement is one achievement row in a GetUserAchievementsResponse.
type UserAchievement struct {
	AchievementID          uint64  `msgpack:"achievement_id"`
	Key                    string  `msgpack:"key"`
	Name                   string  `msgpack:"name"`
	Description            string  `msgpack:"description"`
	ImageURLLocked         string  `msgpack:"image_url_locked"`
	ImageURLUnlocked       string  `msgpack:"image_url_unlocked"`
	VisibleWhileLocked     bool    `msgpack:"visible_while_locked"`
	UnlockTime             uint32  `msgpack:"unlock_time,omitempty"`
	Rarity                 float32 `msgpack:"rarity"`
	RarityLevelDescription string  `msgpack:"rarity_level_description"`
	RarityLevelSlug        string  `msgpack:"rarity_level_slug"`
}

// GetUserAchievementsResponse lists the user's achievements.
type GetUserAchievementsResponse struct {
	UserAchievements []UserAchievement `msgpack:"user_achievements"`
	Language         string            `msgpack:"language"`
	AchievementsMode string            `msgpack:"achievements_mode"`
}

// UnlockUserAchievementRequest unlocks one achievement at a unix time.
type UnlockUserAchievementRequest struct {
	AchievementID uint64 `msgpack:"achievement_id"`
	Time          uint32 `msgpack:"time"`
}

// UnlockUserAchievementResponse acknowledges an unlock. An achievement
// that was already unlocked is reported via the header status extension.
type UnlockUserAchievementResponse struct{}

// ClearUserAchievementRequest re-locks one achievement.
type ClearUserAchievementRequest struct {
	AchievementID uint64 `msgpack:"achievement_id"`
}

// ClearUserAchievementResponse acknowledges a clear.
type ClearUserAchievementResponse struct{}

// DeleteUserAchievementsRequest wipes all achievements for the session user.
type DeleteUserAchievementsRequest struct{}

// DeleteUserAchievementsResponse acknowledges an achievements wipe.
type DeleteUserAchievementsResponse struct{}

// GetLeaderboardsRequest asks for the leaderboard definitions.
type GetLeaderboardsRequest struct{}

// LeaderboardDefinition is one leaderboard row in a GetLeaderboardsResponse.
type LeaderboardDefinition struct {
	LeaderboardID uint64 `msgpack:"leaderboard_id"`
	Key           string `msgpack:"key"`
	Name          string `msgpack:"name"`
	SortMethod    string `msgpack:"sort_method"`
	DisplayType   string `msgpack:"display_type"`
}

// GetLeaderboardsResponse lists the client's leaderboards.
type GetLeaderboardsResponse struct {
	Leaderboards []LeaderboardDefinition `msgpack:"leaderboards"`
}

// GetLeaderboardEntriesGlobalRequest selects entries by absolute rank range.
type GetLeaderboardEntriesGlobalRequest struct {
	LeaderboardID uint64 `msgpack:"leaderboard_id"`
	RangeStart    uint32 `msgpack:"range_start"`
	RangeEnd      uint32 `msgpack:"range_end"`
}

// GetLeaderboardEntriesAroundUserRequest selects entries centered on a
// tagged user id.
type GetLeaderboardEntriesAroundUserRequest struct {
	LeaderboardID uint64 `msgpack:"leaderboard_id"`
	UserID        uint64 `msgpack:"user_id"`
	CountBefore   uint32 `msgpack:"count_before"`
	CountAfter    uint32 `msgpack:"count_after"`
}

// LeaderboardEntry is one ranked row. UserID carries the wire id tag.
type LeaderboardEntry struct {
	UserID uint64 `msgpack:"user_id"`
	Score  int32  `msgpack:"score"`
	Rank   uint32 `msgpack:"rank"`
}

// GetLeaderboardEntriesResponse lists entries plus the leaderboard total.
type GetLeaderboardEntriesResponse struct {
	LeaderboardEntries         []LeaderboardEntry `msgpack:"leaderboard_entries"`
	LeaderboardEntryTotalCount uint32             `msgpack:"leaderboard_entry_total_count"`
}

// BrokerAuthRequest authenticates the pusher connection.
type BrokerAuthRequest struct {
	AuthToken string `msgpack:"auth_token"`
}

// SubscribeTopicRequest subscribes to one pusher topic.
type SubscribeTopicRequest struct {
	Topic string `msgpack:"topic"`
}

// SubscribeTopicResponse confirms a topic subscription.
type SubscribeTopicResponse struct {
	Topic string `msgpack:"topic"`
}

// MessageFromTopic is one push notification. The payload is opaque to the
// gateway and forwarded to the client as-is.
type MessageFromTopic struct {
	Topic   string `msgpack:"topic"`
	Payload []byte `msgpack:"payload"`
}
