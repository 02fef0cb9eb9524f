package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/pithecene-io/gantry/backend"
	"github.com/pithecene-io/gantry/types"
	"github.com/pithecene-io/gantry/wire"
)

// handleAuthInfo identifies the game client and resolves the session user.
// The token exchange and the user-info fetch are independent backend calls
// and are issued concurrently.
func (c *Catalog) handleAuthInfo(ctx context.Context, _ Session, frame *wire.Frame) (*wire.Frame, error) {
	var req AuthInfoRequest
	if err := msgpack.Unmarshal(frame.Payload, &req); err != nil {
		return nil, err
	}
	clientID := strconv.FormatUint(req.ClientID, 10)
	c.log.Info("client identified", zap.String("client_id", clientID))

	type tokenResult struct {
		rec types.TokenRecord
		err error
	}
	tokenCh := make(chan tokenResult, 1)
	go func() {
		rec, err := c.backend.ObtainToken(ctx, clientID, req.ClientSecret)
		tokenCh <- tokenResult{rec: rec, err: err}
	}()

	info, infoErr := c.backend.GetUserInfo(ctx)
	token := <-tokenCh

	if token.err != nil {
		if errors.Is(token.err, backend.ErrAuth) {
			// The user does not own this client; the session must end.
			return nil, ErrUnauthorized
		}
		c.metrics.IncBackendError()
		c.log.Warn("token exchange failed", zap.Error(token.err))
	}
	if infoErr != nil {
		c.metrics.IncBackendError()
		return newResponse(MsgAuthInfoResponse, statusOf(infoErr), nil)
	}

	return newResponse(MsgAuthInfoResponse, 0, AuthInfoResponse{
		RefreshToken:    token.rec.RefreshToken,
		EnvironmentType: 0,
		UserID:          info.UserID,
		UserName:        info.Username,
		Region:          0,
	})
}

// handleGetUserStats answers with the user's stat list. A user without
// stats yields no response frame at all: the protocol has no error-capable
// reply for this operation.
func (c *Catalog) handleGetUserStats(ctx context.Context, _ Session, frame *wire.Frame) (*wire.Frame, error) {
	var req GetUserStatsRequest
	if err := msgpack.Unmarshal(frame.Payload, &req); err != nil {
		return nil, err
	}

	stats, err := c.backend.GetUserStats(ctx, types.StripUserID(req.UserID))
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, nil
		}
		c.metrics.IncBackendError()
		return newResponse(MsgGetUserStatsResponse, statusOf(err), nil)
	}

	resp := GetUserStatsResponse{UserStats: make([]UserStat, 0, len(stats))}
	for _, stat := range stats {
		resp.UserStats = append(resp.UserStats, toUserStat(stat))
	}
	return newResponse(MsgGetUserStatsResponse, 0, resp)
}

// toUserStat converts a backend stat to its wire form, populating exactly
// one of the two parallel field sets.
func toUserStat(stat types.Stat) UserStat {
	out := UserStat{
		StatID:        stat.StatID,
		Key:           stat.Key,
		ValueType:     int32(stat.ValueType),
		WindowSize:    stat.WindowSize,
		IncrementOnly: stat.IncrementOnly,
	}
	switch stat.ValueType {
	case types.StatValueInt:
		out.IntValue = stat.IntValue
		out.IntDefaultValue = stat.IntDefaultValue
		out.IntMinValue = stat.IntMinValue
		out.IntMaxValue = stat.IntMaxValue
		out.IntMaxChange = stat.IntMaxChange
	case types.StatValueFloat:
		out.FloatValue = stat.FloatValue
		out.FloatDefaultValue = stat.FloatDefaultValue
		out.FloatMinValue = stat.FloatMinValue
		out.FloatMaxValue = stat.FloatMaxValue
		out.FloatMaxChange = stat.FloatMaxChange
	}
	return out
}

func (c *Catalog) handleUpdateUserStat(ctx context.Context, _ Session, frame *wire.Frame) (*wire.Frame, error) {
	var req UpdateUserStatRequest
	if err := msgpack.Unmarshal(frame.Payload, &req); err != nil {
		return nil, err
	}

	value := types.StatValue{Type: types.StatValueType(req.ValueType)}
	switch value.Type {
	case types.StatValueInt:
		value.Int = req.IntValue
	case types.StatValueFloat:
		value.Float = req.FloatValue
	}

	if err := c.backend.UpdateUserStat(ctx, req.StatID, value); err != nil {
		c.metrics.IncBackendError()
		c.log.Warn("stat update failed", zap.Uint64("stat_id", req.StatID), zap.Error(err))
		return newResponse(MsgUpdateUserStatResponse, statusOf(err), UpdateUserStatResponse{})
	}
	return newResponse(MsgUpdateUserStatResponse, 0, UpdateUserStatResponse{})
}

func (c *Catalog) handleDeleteUserStats(ctx context.Context, _ Session, frame *wire.Frame) (*wire.Frame, error) {
	code, err := c.backend.DeleteUserStats(ctx)
	if err != nil {
		c.metrics.IncBackendError()
		return newResponse(MsgDeleteUserStatsResponse, codeInternal, DeleteUserStatsResponse{})
	}
	return newResponse(MsgDeleteUserStatsResponse, failureCode(code), DeleteUserStatsResponse{})
}

func (c *Catalog) handleGetUserAchievements(ctx context.Context, sess Session, frame *wire.Frame) (*wire.Frame, error) {
	var req GetUserAchievementsRequest
	if err := msgpack.Unmarshal(frame.Payload, &req); err != nil {
		return nil, err
	}

	list, err := c.backend.GetUserAchievements(ctx, types.StripUserID(req.UserID))
	if err != nil {
		c.metrics.IncBackendError()
		return newResponse(MsgGetUserAchievementsResponse, statusOf(err), nil)
	}
	sess.CacheAchievements(list)

	resp := GetUserAchievementsResponse{
		UserAchievements: make([]UserAchievement, 0, len(list.Items)),
		Language:         list.Language,
		AchievementsMode: list.Mode,
	}
	for _, ach := range list.Items {
		resp.UserAchievements = append(resp.UserAchievements, UserAchievement{
			AchievementID:          ach.AchievementID,
			Key:                    ach.Key,
			Name:                   ach.Name,
			Description:            ach.Description,
			ImageURLLocked:         ach.ImageURLLocked,
			ImageURLUnlocked:       ach.ImageURLUnlocked,
			VisibleWhileLocked:     ach.VisibleWhileLocked,
			UnlockTime:             ach.UnlockTime,
			Rarity:                 ach.Rarity,
			RarityLevelDescription: ach.RarityLevelDescription,
			RarityLevelSlug:        ach.RarityLevelSlug,
		})
	}
	return newResponse(MsgGetUserAchievementsResponse, 0, resp)
}

// handleUnlockUserAchievement unlocks one achievement. The cached list is
// consulted first: an achievement already carrying an unlock date is
// acknowledged without any backend call. A successful backend set is
// followed by a list re-fetch to keep the cache current.
func (c *Catalog) handleUnlockUserAchievement(ctx context.Context, sess Session, frame *wire.Frame) (*wire.Frame, error) {
	var req UnlockUserAchievementRequest
	if err := msgpack.Unmarshal(frame.Payload, &req); err != nil {
		return nil, err
	}

	if cached, ok := sess.CachedAchievements(); ok {
		if ach, found := cached.Find(req.AchievementID); found && ach.Unlocked() {
			return newResponse(MsgUnlockUserAchievementResponse, codeAlreadyUnlocked, UnlockUserAchievementResponse{})
		}
	}

	already, err := c.backend.SetUserAchievement(ctx, req.AchievementID, req.Time)
	if err != nil {
		c.metrics.IncBackendError()
		c.log.Warn("achievement unlock failed", zap.Uint64("achievement_id", req.AchievementID), zap.Error(err))
		return newResponse(MsgUnlockUserAchievementResponse, statusOf(err), UnlockUserAchievementResponse{})
	}
	if already {
		return newResponse(MsgUnlockUserAchievementResponse, codeAlreadyUnlocked, UnlockUserAchievementResponse{})
	}

	c.refreshAchievementCache(ctx, sess)
	return newResponse(MsgUnlockUserAchievementResponse, 0, UnlockUserAchievementResponse{})
}

// handleClearUserAchievement re-locks one achievement. No idempotence
// short-circuit here: the backend is always called and the cache always
// re-fetched afterwards.
func (c *Catalog) handleClearUserAchievement(ctx context.Context, sess Session, frame *wire.Frame) (*wire.Frame, error) {
	var req ClearUserAchievementRequest
	if err := msgpack.Unmarshal(frame.Payload, &req); err != nil {
		return nil, err
	}

	code := uint32(0)
	if _, err := c.backend.SetUserAchievement(ctx, req.AchievementID, 0); err != nil {
		c.metrics.IncBackendError()
		c.log.Warn("achievement clear failed", zap.Uint64("achievement_id", req.AchievementID), zap.Error(err))
		code = statusOf(err)
	}
	c.refreshAchievementCache(ctx, sess)
	return newResponse(MsgClearUserAchievementResponse, code, ClearUserAchievementResponse{})
}

func (c *Catalog) handleDeleteUserAchievements(ctx context.Context, sess Session, frame *wire.Frame) (*wire.Frame, error) {
	code, err := c.backend.DeleteUserAchievements(ctx)
	if err != nil {
		c.metrics.IncBackendError()
		return newResponse(MsgDeleteUserAchievementsResponse, codeInternal, DeleteUserAchievementsResponse{})
	}
	sess.CacheAchievements(types.AchievementList{})
	return newResponse(MsgDeleteUserAchievementsResponse, failureCode(code), DeleteUserAchievementsResponse{})
}

// refreshAchievementCache replaces the session's cached achievement list
// with a fresh fetch. Failures leave the old cache in place.
func (c *Catalog) refreshAchievementCache(ctx context.Context, sess Session) {
	list, err := c.backend.GetUserAchievements(ctx, sess.User().UserID)
	if err != nil {
		c.metrics.IncBackendError()
		c.log.Warn("achievement cache refresh failed", zap.Error(err))
		return
	}
	sess.CacheAchievements(list)
}

func (c *Catalog) handleGetLeaderboards(ctx context.Context, _ Session, frame *wire.Frame) (*wire.Frame, error) {
	defs, err := c.backend.GetLeaderboards(ctx)
	if err != nil {
		c.metrics.IncBackendError()
		return newResponse(MsgGetLeaderboardsResponse, statusOf(err), nil)
	}

	resp := GetLeaderboardsResponse{Leaderboards: make([]LeaderboardDefinition, 0, len(defs))}
	for _, def := range defs {
		resp.Leaderboards = append(resp.Leaderboards, LeaderboardDefinition{
			LeaderboardID: def.LeaderboardID,
			Key:           def.Key,
			Name:          def.Name,
			SortMethod:    def.SortMethod,
			DisplayType:   def.DisplayType,
		})
	}
	return newResponse(MsgGetLeaderboardsResponse, 0, resp)
}

func (c *Catalog) handleLeaderboardEntriesGlobal(ctx context.Context, _ Session, frame *wire.Frame) (*wire.Frame, error) {
	var req GetLeaderboardEntriesGlobalRequest
	if err := msgpack.Unmarshal(frame.Payload, &req); err != nil {
		return nil, err
	}
	sel := types.EntryRange{Start: req.RangeStart, End: req.RangeEnd}
	return c.leaderboardEntries(ctx, req.LeaderboardID, sel)
}

func (c *Catalog) handleLeaderboardEntriesAroundUser(ctx context.Context, _ Session, frame *wire.Frame) (*wire.Frame, error) {
	var req GetLeaderboardEntriesAroundUserRequest
	if err := msgpack.Unmarshal(frame.Payload, &req); err != nil {
		return nil, err
	}
	sel := types.EntryAroundUser{
		UserID:      types.StripUserID(req.UserID),
		CountBefore: req.CountBefore,
		CountAfter:  req.CountAfter,
	}
	return c.leaderboardEntries(ctx, req.LeaderboardID, sel)
}

// leaderboardEntries answers an entries request. A 404 yields an
// empty-payload response carrying the status extension; entry user ids
// are re-tagged for the wire.
func (c *Catalog) leaderboardEntries(ctx context.Context, leaderboardID uint64, sel types.EntrySelector) (*wire.Frame, error) {
	entries, total, err := c.backend.GetLeaderboardEntries(ctx, leaderboardID, sel)
	if err != nil {
		c.metrics.IncBackendError()
		c.log.Warn("leaderboard entries fetch failed", zap.Uint64("leaderboard_id", leaderboardID), zap.Error(err))
		return newResponse(MsgGetLeaderboardEntriesResponse, statusOf(err), nil)
	}

	resp := GetLeaderboardEntriesResponse{
		LeaderboardEntries:         make([]LeaderboardEntry, 0, len(entries)),
		LeaderboardEntryTotalCount: total,
	}
	for _, entry := range entries {
		resp.LeaderboardEntries = append(resp.LeaderboardEntries, LeaderboardEntry{
			UserID: types.TagUserID(entry.UserID),
			Score:  entry.Score,
			Rank:   entry.Rank,
		})
	}
	return newResponse(MsgGetLeaderboardEntriesResponse, 0, resp)
}

// statusOf maps a backend error to the status extension value.
func statusOf(err error) uint32 {
	if code := backend.StatusCode(err); code != 0 {
		return uint32(code)
	}
	return codeInternal
}

// failureCode passes a backend status through only when it is a failure.
func failureCode(code int) uint32 {
	if code >= 200 && code <= 299 {
		return 0
	}
	return uint32(code)
}
