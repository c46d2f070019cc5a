package quest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banglabot/quest-service/internal/badge"
)

// NotificationKind classifies a user-visible message.
type NotificationKind string

const (
	KindRegionLocked         NotificationKind = "region_locked"
	KindQuestLoadFailed      NotificationKind = "quest_load_failed"
	KindProgressLoadFailed   NotificationKind = "progress_load_failed"
	KindProgressUpdateFailed NotificationKind = "progress_update_failed"
	KindBadgesEarned         NotificationKind = "badges_earned"
	KindActionRejected       NotificationKind = "action_rejected"
	KindConfiguration        NotificationKind = "configuration_error"
)

var defaultMessages = map[NotificationKind]string{
	KindRegionLocked:         "এই অঞ্চল এখনও লক করা আছে! আগের অঞ্চল সম্পূর্ণ করুন।",
	KindQuestLoadFailed:      "কুইজ লোড করতে ব্যর্থ হয়েছে।",
	KindProgressLoadFailed:   "অগ্রগতি লোড করতে ব্যর্থ হয়েছে।",
	KindProgressUpdateFailed: "অগ্রগতি আপডেট করতে ব্যর্থ হয়েছে।",
	KindBadgesEarned:         "অভিনন্দন! নতুন ব্যাজ অর্জন করেছেন!",
	KindActionRejected:       "এই মুহূর্তে এটি করা যাবে না।",
	KindConfiguration:        "অঞ্চলের তথ্য সঠিক নয়।",
}

// Notification is a dismissible message for one user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Detail    string           `json:"detail,omitempty"`
	Badges    []badge.Badge    `json:"badges,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Notifier delivers notifications to users.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

const inboxCapacity = 50

// Inbox keeps undelivered notifications in memory, bounded per user.
type Inbox struct {
	mu    sync.Mutex
	queue map[string][]Notification
	now   func() time.Time
}

// NewInbox returns an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{queue: make(map[string][]Notification), now: time.Now}
}

// Notify enqueues n, filling in the ID and timestamp when absent. The oldest entries are
// dropped once the user's queue is full.
func (i *Inbox) Notify(_ context.Context, n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = i.now().UTC()
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	q := append(i.queue[n.UserID], n)
	if len(q) > inboxCapacity {
		q = q[len(q)-inboxCapacity:]
	}
	i.queue[n.UserID] = q
}

// Drain returns and removes the user's pending notifications, oldest first.
func (i *Inbox) Drain(userID string) []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.queue[userID]
	delete(i.queue, userID)
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Pending reports how many notifications are queued for the user.
func (i *Inbox) Pending(userID string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queue[userID])
}
