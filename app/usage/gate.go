package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"askpdf/store"
	"askpdf/types"
)

// GracePeriod extends an expired subscription: renewal webhooks can lag the
// billing provider by a while.
const GracePeriod = 24 * time.Hour

// Free-tier defaults used when the app_settings row is missing.
const (
	DefaultFreeMessages = 10
	DefaultFreeChats    = 3
)

// Kind is what the user is asking to spend quota on.
type Kind string

const (
	KindMessage Kind = "message"
	KindFile    Kind = "file"
)

// Gate enforces the free tier. Admins and subscribers pass unconditionally;
// everyone else is checked against their counters before any pipeline work
// begins.
type Gate struct {
	store  store.DBStorer
	logger *slog.Logger
}

func New(db store.DBStorer, logger *slog.Logger) *Gate {
	return &Gate{store: db, logger: logger}
}

// CanProceed returns nil when the request may run, or types.ErrUsageLimit
// with an actionable message when the user is at their free-tier limit.
func (g *Gate) CanProceed(ctx context.Context, userID string, isAdmin bool, kind Kind) error {
	if isAdmin {
		return nil
	}

	subscribed, err := g.hasValidSubscription(ctx, userID)
	if err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}
	if subscribed {
		return nil
	}

	settings, err := g.store.GetUserSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user settings: %w", err)
	}

	switch kind {
	case KindFile:
		limit := g.limit(ctx, settings.FreeChats, store.SettingFreeChats, DefaultFreeChats)
		if settings.ChatCount >= limit {
			return fmt.Errorf("%w: free limit of %d uploaded documents reached, subscribe to add more",
				types.ErrUsageLimit, limit)
		}
	default:
		limit := g.limit(ctx, settings.FreeMessages, store.SettingFreeMessages, DefaultFreeMessages)
		if settings.MessageCount >= limit {
			return fmt.Errorf("%w: free limit of %d messages reached, subscribe to continue chatting",
				types.ErrUsageLimit, limit)
		}
	}
	return nil
}

// Record increments the counter for an accepted request. Rejected requests
// never reach here.
func (g *Gate) Record(ctx context.Context, userID string, kind Kind) error {
	if kind == KindFile {
		return g.store.IncrementChatCount(ctx, userID)
	}
	return g.store.IncrementMessageCount(ctx, userID)
}

func (g *Gate) hasValidSubscription(ctx context.Context, userID string) (bool, error) {
	sub, err := g.store.GetSubscription(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.CurrentPeriodEnd.Add(GracePeriod).After(time.Now()), nil
}

// limit resolves the free-tier ceiling: per-user override first, then the
// operator-set app setting, then the baked-in default.
func (g *Gate) limit(ctx context.Context, override *int, setting string, fallback int) int {
	if override != nil {
		return *override
	}
	value, err := g.store.GetAppSetting(ctx, setting)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			g.logger.Warn("failed to load app setting", "setting", setting, "error", err)
		}
		return fallback
	}
	limit, err := strconv.Atoi(value)
	if err != nil {
		g.logger.Warn("malformed app setting", "setting", setting, "value", value)
		return fallback
	}
	return limit
}
