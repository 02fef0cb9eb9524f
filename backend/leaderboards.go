package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pithecene-io/gantry/types"
)

type leaderboardJSON struct {
	LeaderboardID string `json:"leaderboard_id"`
	Key           string `json:"key"`
	Name          string `json:"name"`
	SortMethod    string `json:"sort_method"`
	DisplayType   string `json:"display_type"`
}

type leaderboardEntryJSON struct {
	UserID string `json:"user_id"`
	Score  int32  `json:"score"`
	Rank   uint32 `json:"rank"`
}

// GetLeaderboards fetches the leaderboard definitions for the client.
func (h *HTTP) GetLeaderboards(ctx context.Context) ([]types.LeaderboardDefinition, error) {
	clientID, token, err := h.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	var body struct {
		Items []leaderboardJSON `json:"items"`
	}
	u := fmt.Sprintf("%s/clients/%s/leaderboards", h.cfg.GameplayURL, clientID)
	if err := h.getJSON(ctx, "get_leaderboards", u, token, &body); err != nil {
		return nil, err
	}

	defs := make([]types.LeaderboardDefinition, 0, len(body.Items))
	for _, item := range body.Items {
		id, err := strconv.ParseUint(item.LeaderboardID, 10, 64)
		if err != nil {
			h.log.Warnf("skipping leaderboard %q: unparseable id", item.LeaderboardID)
			continue
		}
		defs = append(defs, types.LeaderboardDefinition{
			LeaderboardID: id,
			Key:           item.Key,
			Name:          item.Name,
			SortMethod:    item.SortMethod,
			DisplayType:   item.DisplayType,
		})
	}
	return defs, nil
}

// GetLeaderboardEntries fetches entries for one leaderboard, selected by
// rank range or centered on a user. Entry user ids come back untagged.
func (h *HTTP) GetLeaderboardEntries(ctx context.Context, leaderboardID uint64, sel types.EntrySelector) ([]types.LeaderboardEntry, uint32, error) {
	clientID, token, err := h.currentToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	q := url.Values{}
	switch s := sel.(type) {
	case types.EntryRange:
		q.Set("range_start", strconv.FormatUint(uint64(s.Start), 10))
		q.Set("range_end", strconv.FormatUint(uint64(s.End), 10))
	case types.EntryAroundUser:
		q.Set("users", strconv.FormatUint(s.UserID, 10))
		q.Set("count_before", strconv.FormatUint(uint64(s.CountBefore), 10))
		q.Set("count_after", strconv.FormatUint(uint64(s.CountAfter), 10))
	default:
		return nil, 0, fmt.Errorf("get_leaderboard_entries: unknown selector %T", sel)
	}

	var body struct {
		Items      []leaderboardEntryJSON `json:"items"`
		TotalCount uint32                 `json:"leaderboard_entry_total_count"`
	}
	u := fmt.Sprintf("%s/clients/%s/leaderboards/%d/entries?%s", h.cfg.GameplayURL, clientID, leaderboardID, q.Encode())
	if err := h.getJSON(ctx, "get_leaderboard_entries", u, token, &body); err != nil {
		return nil, 0, err
	}

	entries := make([]types.LeaderboardEntry, 0, len(body.Items))
	for _, item := range body.Items {
		id, err := strconv.ParseUint(item.UserID, 10, 64)
		if err != nil {
			h.log.Warnf("skipping leaderboard entry with unparseable user id %q", item.UserID)
			continue
		}
		entries = append(entries, types.LeaderboardEntry{
			UserID: id,
			Score:  item.Score,
			Rank:   item.Rank,
		})
	}
	return entries, body.TotalCount, nil
}
