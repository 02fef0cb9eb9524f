package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pithecene-io/gantry/types"
)

type statJSON struct {
	StatID        string   `json:"stat_id"`
	Key           string   `json:"stat_key"`
	Type          string   `json:"type"`
	Window        *uint32  `json:"window"`
	IncrementOnly bool     `json:"increment_only"`
	Value         float64  `json:"value"`
	DefaultValue  *float64 `json:"default_value"`
	MinValue      *float64 `json:"min_value"`
	MaxValue      *float64 `json:"max_value"`
	MaxChange     *float64 `json:"max_change"`
}

// Fallbacks for absent stat bounds, matching the upstream service.
const (
	defaultStatMax       = 1_000_000
	defaultStatMaxChange = 1
)

// GetUserStats fetches the stat list for userID.
// A backend 404 and an empty item list both map to ErrNotFound: the
// protocol has no stats response for a user without stats.
func (h *HTTP) GetUserStats(ctx context.Context, userID uint64) ([]types.Stat, error) {
	clientID, token, err := h.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	var body struct {
		Items []statJSON `json:"items"`
	}
	u := fmt.Sprintf("%s/clients/%s/users/%d/stats", h.cfg.GameplayURL, clientID, userID)
	if err := h.getJSON(ctx, "get_user_stats", u, token, &body); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("get_user_stats: %w", ErrNotFound)
		}
		return nil, err
	}
	if len(body.Items) == 0 {
		return nil, fmt.Errorf("get_user_stats: %w", ErrNotFound)
	}

	stats := make([]types.Stat, 0, len(body.Items))
	for _, item := range body.Items {
		stat, err := item.toStat()
		if err != nil {
			h.log.Warnf("skipping stat %q: %v", item.StatID, err)
			continue
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func (s statJSON) toStat() (types.Stat, error) {
	id, err := strconv.ParseUint(s.StatID, 10, 64)
	if err != nil {
		return types.Stat{}, fmt.Errorf("unparseable stat id: %w", err)
	}

	stat := types.Stat{
		StatID:        id,
		Key:           s.Key,
		IncrementOnly: s.IncrementOnly,
	}
	if s.Window != nil {
		stat.WindowSize = *s.Window
	}

	switch s.Type {
	case "int":
		stat.ValueType = types.StatValueInt
		stat.IntValue = int32(s.Value)
		stat.IntDefaultValue = int32(orDefault(s.DefaultValue, 0))
		stat.IntMinValue = int32(orDefault(s.MinValue, 0))
		stat.IntMaxValue = int32(orDefault(s.MaxValue, defaultStatMax))
		stat.IntMaxChange = int32(orDefault(s.MaxChange, defaultStatMaxChange))
	case "float", "avgrate":
		stat.ValueType = types.StatValueFloat
		stat.FloatValue = float32(s.Value)
		stat.FloatDefaultValue = float32(orDefault(s.DefaultValue, 0))
		stat.FloatMinValue = float32(orDefault(s.MinValue, 0))
		stat.FloatMaxValue = float32(orDefault(s.MaxValue, defaultStatMax))
		stat.FloatMaxChange = float32(orDefault(s.MaxChange, defaultStatMaxChange))
	default:
		return types.Stat{}, fmt.Errorf("unknown stat type %q", s.Type)
	}
	return stat, nil
}

func orDefault(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

// UpdateUserStat writes one typed stat value for the configured user.
func (h *HTTP) UpdateUserStat(ctx context.Context, statID uint64, value types.StatValue) error {
	clientID, token, err := h.currentToken(ctx)
	if err != nil {
		return err
	}

	var body struct {
		Value any `json:"value"`
	}
	switch value.Type {
	case types.StatValueInt:
		body.Value = value.Int
	case types.StatValueFloat:
		body.Value = value.Float
	default:
		return fmt.Errorf("update_user_stat: unknown value type %d", value.Type)
	}

	u := fmt.Sprintf("%s/clients/%s/users/%s/stats/%d", h.cfg.GameplayURL, clientID, h.cfg.UserID, statID)
	return h.doJSON(ctx, "update_user_stat", http.MethodPost, u, token, &body, nil)
}

// DeleteUserStats removes all stats for the configured user.
func (h *HTTP) DeleteUserStats(ctx context.Context) (int, error) {
	clientID, token, err := h.currentToken(ctx)
	if err != nil {
		return 0, err
	}
	u := fmt.Sprintf("%s/clients/%s/users/%s/stats", h.cfg.GameplayURL, clientID, h.cfg.UserID)
	return h.status(ctx, "delete_user_stats", http.MethodDelete, u, token)
}
