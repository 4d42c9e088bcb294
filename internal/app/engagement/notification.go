package engagement

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/habitforge/habitforge/internal/domain"
)

// NotificationStore persists the unread notification queue.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n domain.Notification) (int64, error)
	ListPendingNotifications(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkNotificationShown(ctx context.Context, id int64) error
}

// NotificationPolicy defers delivery during quiet hours ("HH:MM").
// Empty bounds disable quiet hours.
type NotificationPolicy struct {
	QuietStart string `toml:"quiet_start"`
	QuietEnd   string `toml:"quiet_end"`
}

// NotificationService keeps celebratory notifications until they are shown.
//   - Every badge unlock and level-up is stored exactly once
//   - Quiet hours hold notifications back; they are never dropped
//   - MarkShown consumes a notification
type NotificationService struct {
	store  NotificationStore
	policy NotificationPolicy
}

// NewNotificationService creates a notification service without quiet hours.
func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

// NewNotificationServiceWithPolicy creates a notification service with a custom policy.
func NewNotificationServiceWithPolicy(store NotificationStore, policy NotificationPolicy) *NotificationService {
	return &NotificationService{store: store, policy: policy}
}

// PublishBadge stores a badge unlock notification. Implements domain.BadgeSink.
func (n *NotificationService) PublishBadge(ctx context.Context, ev domain.BadgeUnlocked) error {
	_, err := n.store.InsertNotification(ctx, domain.Notification{
		Type:      domain.NotifyBadge,
		Title:     "Badge unlocked: " + ev.Title,
		Body:      ev.Description,
		BonusXP:   ev.BonusXP,
		CreatedAt: ev.UnlockedAt,
	})
	if err != nil {
		return fmt.Errorf("insert badge notification: %w", err)
	}
	return nil
}

// LevelUp stores a level-up notification.
func (n *NotificationService) LevelUp(ctx context.Context, level domain.LevelProgress, at time.Time) error {
	_, err := n.store.InsertNotification(ctx, domain.Notification{
		Type:      domain.NotifyLevelUp,
		Title:     fmt.Sprintf("Level %d reached", level.Level),
		Body:      fmt.Sprintf("%d XP to level %d", level.XPForNextLevel-level.XPInLevel, level.Level+1),
		CreatedAt: at,
	})
	if err != nil {
		return fmt.Errorf("insert level notification: %w", err)
	}
	return nil
}

// Pending returns unshown notifications, or none while quiet hours are active.
func (n *NotificationService) Pending(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	if n.InQuietHours(now) {
		return nil, nil
	}
	return n.store.ListPendingNotifications(ctx, limit)
}

// MarkShown marks a notification as shown.
func (n *NotificationService) MarkShown(ctx context.Context, id int64) error {
	return n.store.MarkNotificationShown(ctx, id)
}

// Policy returns the current notification policy.
func (n *NotificationService) Policy() NotificationPolicy {
	return n.policy
}

// InQuietHours reports whether t's wall clock falls within quiet hours.
// Pass t in the user's location.
func (n *NotificationService) InQuietHours(t time.Time) bool {
	if n.policy.QuietStart == "" || n.policy.QuietEnd == "" {
		return false
	}
	startHour, startMin := parseHHMM(n.policy.QuietStart)
	endHour, endMin := parseHHMM(n.policy.QuietEnd)

	timeMinutes := t.Hour()*60 + t.Minute()
	startMinutes := startHour*60 + startMin
	endMinutes := endHour*60 + endMin

	if startMinutes > endMinutes {
		// Wraps midnight: e.g. 22:00-08:00
		return timeMinutes >= startMinutes || timeMinutes < endMinutes
	}
	return timeMinutes >= startMinutes && timeMinutes < endMinutes
}

// parseHHMM parses "HH:MM" into hour and minute.
func parseHHMM(s string) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m
}
