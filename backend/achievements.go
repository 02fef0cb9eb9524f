package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pithecene-io/gantry/types"
)

type achievementJSON struct {
	AchievementID          string  `json:"achievement_id"`
	Key                    string  `json:"achievement_key"`
	Name                   string  `json:"name"`
	Description            string  `json:"description"`
	ImageURLLocked         string  `json:"image_url_locked"`
	ImageURLUnlocked       string  `json:"image_url_unlocked"`
	Visible                bool    `json:"visible"`
	DateUnlocked           *string `json:"date_unlocked"`
	Rarity                 float32 `json:"rarity"`
	RarityLevelDescription string  `json:"rarity_level_description"`
	RarityLevelSlug        string  `json:"rarity_level_slug"`
}

// GetUserAchievements fetches the full achievement list for userID.
func (h *HTTP) GetUserAchievements(ctx context.Context, userID uint64) (types.AchievementList, error) {
	clientID, token, err := h.currentToken(ctx)
	if err != nil {
		return types.AchievementList{}, err
	}

	var body struct {
		Items []achievementJSON `json:"items"`
		Mode  string            `json:"achievements_mode"`
	}
	u := fmt.Sprintf("%s/clients/%s/users/%d/achievements", h.cfg.GameplayURL, clientID, userID)
	if err := h.getJSON(ctx, "get_user_achievements", u, token, &body); err != nil {
		return types.AchievementList{}, err
	}

	list := types.AchievementList{
		Items:    make([]types.Achievement, 0, len(body.Items)),
		Mode:     body.Mode,
		Language: "en-US",
	}
	for _, item := range body.Items {
		ach, err := item.toAchievement()
		if err != nil {
			h.log.Warnf("skipping achievement %q: %v", item.AchievementID, err)
			continue
		}
		list.Items = append(list.Items, ach)
	}
	return list, nil
}

func (a achievementJSON) toAchievement() (types.Achievement, error) {
	id, err := strconv.ParseUint(a.AchievementID, 10, 64)
	if err != nil {
		return types.Achievement{}, fmt.Errorf("unparseable achievement id: %w", err)
	}

	ach := types.Achievement{
		AchievementID:          id,
		Key:                    a.Key,
		Name:                   a.Name,
		Description:            a.Description,
		ImageURLLocked:         a.ImageURLLocked,
		ImageURLUnlocked:       a.ImageURLUnlocked,
		VisibleWhileLocked:     a.Visible,
		Rarity:                 a.Rarity,
		RarityLevelDescription: a.RarityLevelDescription,
		RarityLevelSlug:        a.RarityLevelSlug,
	}
	if a.DateUnlocked != nil {
		unlocked, err := time.Parse(time.RFC3339, *a.DateUnlocked)
		if err != nil {
			return types.Achievement{}, fmt.Errorf("unparseable unlock date %q: %w", *a.DateUnlocked, err)
		}
		ach.UnlockTime = uint32(unlocked.Unix())
	}
	return ach, nil
}

// SetUserAchievement sets or clears one achievement for the configured
// user. unlockTime == 0 clears. A 409 from the backend means the
// achievement was already unlocked; reported, not an error.
func (h *HTTP) SetUserAchievement(ctx context.Context, achievementID uint64, unlockTime uint32) (bool, error) {
	clientID, token, err := h.currentToken(ctx)
	if err != nil {
		return false, err
	}

	body := struct {
		DateUnlocked *string `json:"date_unlocked"`
	}{}
	if unlockTime != 0 {
		formatted := time.Unix(int64(unlockTime), 0).UTC().Format(time.RFC3339)
		body.DateUnlocked = &formatted
	}

	u := fmt.Sprintf("%s/clients/%s/users/%s/achievements/%d", h.cfg.GameplayURL, clientID, h.cfg.UserID, achievementID)
	err = h.doJSON(ctx, "set_user_achievement", http.MethodPost, u, token, &body, nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusConflict {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// DeleteUserAchievements removes all achievements for the configured user.
func (h *HTTP) DeleteUserAchievements(ctx context.Context) (int, error) {
	clientID, token, err := h.currentToken(ctx)
	if err != nil {
		return 0, err
	}
	u := fmt.Sprintf("%s/clients/%s/users/%s/achievements", h.cfg.GameplayURL, clientID, h.cfg.UserID)
	return h.status(ctx, "delete_user_achievements", http.MethodDelete, u, token)
}
