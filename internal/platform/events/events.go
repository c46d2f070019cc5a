package events

import (
	"context"
	"log/slog"
	"time"
)

// Topic names used by the quest service.
const (
	TopicQuestEvents = "quest.events"
	TopicBadgeEvents = "badge.events"
)

// QuestCompleted is emitted once a finished quest has been recorded.
type QuestCompleted struct {
	UserID         string    `json:"userId"`
	Region         string    `json:"region"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	CompletedAt    time.Time `json:"completedAt"`
}

// BadgesAwarded is emitted when a quest completion earns new badges.
type BadgesAwarded struct {
	UserID    string    `json:"userId"`
	BadgeIDs  []string  `json:"badgeIds"`
	AwardedAt time.Time `json:"awardedAt"`
}

// Publisher delivers domain events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// LogPublisher writes events to the structured log. It is the default until a broker is wired.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs the event payload.
func (p LogPublisher) Publish(ctx context.Context, topic string, payload any) error {
	if p.Logger == nil {
		return nil
	}
	p.Logger.InfoContext(ctx, "event published", slog.String("topic", topic), slog.Any("payload", payload))
	return nil
}
