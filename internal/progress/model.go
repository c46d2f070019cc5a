package progress

import (
	"context"
	"sort"
	"time"

	"github.com/banglabot/quest-service/internal/badge"
)

// RegionProgress is a user's standing in one region.
type RegionProgress struct {
	Completed bool      `json:"completed" firestore:"completed"`
	Progress  float64   `json:"progress" firestore:"progress"` // in [0,1]
	BestScore int       `json:"bestScore,omitempty" firestore:"best_score"`
	Attempts  int       `json:"attempts,omitempty" firestore:"attempts"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" firestore:"updated_at"`
}

// Map is the per-user progress keyed by region ID.
type Map map[string]RegionProgress

// Completed reports whether the region has been completed.
func (m Map) Completed(regionID string) bool {
	return m[regionID].Completed
}

// Fraction reports partial progress for the region.
func (m Map) Fraction(regionID string) float64 {
	return m[regionID].Progress
}

// CompletedRegions returns the sorted IDs of completed regions.
func (m Map) CompletedRegions() []string {
	var out []string
	for id, rp := range m {
		if rp.Completed {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns a copy that can be mutated independently.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Result is what a finished quest reports.
type Result struct {
	Region         string `json:"region" validate:"required"`
	Score          int    `json:"score" validate:"gte=0,ltefield=TotalQuestions"`
	TotalQuestions int    `json:"totalQuestions" validate:"gte=1"`
}

// Update is returned after a result has been recorded.
type Update struct {
	Progress  Map           `json:"progress"`
	NewBadges []badge.Badge `json:"newBadges"`
}

// Attempt is one recorded quest result.
type Attempt struct {
	ID             string    `json:"id" firestore:"id"`
	Region         string    `json:"region" firestore:"region"`
	Score          int       `json:"score" firestore:"score"`
	TotalQuestions int       `json:"totalQuestions" firestore:"total_questions"`
	RecordedAt     time.Time `json:"recordedAt" firestore:"recorded_at"`
}

// Record is everything persisted for one user.
type Record struct {
	Progress Map
	Badges   []badge.Badge
}

func emptyRecord() Record {
	return Record{Progress: Map{}}
}

// Repository persists progress records. Apply must run the read-modify-write atomically and
// store the attempt alongside; mutate may be invoked more than once on contention.
type Repository interface {
	Load(ctx context.Context, userID string) (Record, error)
	Apply(ctx context.Context, userID string, attempt Attempt, mutate func(*Record) error) (Record, error)
	Attempts(ctx context.Context, userID string, limit int) ([]Attempt, error)
}

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for attempts.
type IDGenerator interface {
	NewID() string
}
