package model

import "time"

// NotificationType identifies the trigger condition behind a notification.
type NotificationType string

const (
	NotificationScoreDrop        NotificationType = "score-drop"
	NotificationRatingDowngrade  NotificationType = "rating-downgrade"
	NotificationScoreImprovement NotificationType = "score-improvement"
	NotificationHighPremiumGap   NotificationType = "high-premium-gap"
	NotificationLowCoverageGap   NotificationType = "low-coverage-gap"
)

// NotificationPriority orders notifications for display.
type NotificationPriority string

const (
	PriorityHigh   NotificationPriority = "high"
	PriorityMedium NotificationPriority = "medium"
	PriorityLow    NotificationPriority = "low"
)

// NotificationEvent is an append-only notification record. No two events with
// the same (UserID, Type, DedupKey) may be created within that type's dedup
// window.
type NotificationEvent struct {
	ID         string               `json:"id"`
	UserID     string               `json:"user_id"`
	Type       NotificationType     `json:"type"`
	Priority   NotificationPriority `json:"priority"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	TargetLink string               `json:"target_link"`
	DedupKey   string               `json:"dedup_key"`
	CreatedAt  time.Time            `json:"created_at"`
}
