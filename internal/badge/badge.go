// Package badge defines achievement markers and the rules that award them after a quest.
package badge

import (
	"fmt"
	"time"

	"github.com/banglabot/quest-service/internal/region"
)

// Category groups badges on the collection screen.
type Category string

const (
	CategoryLanguage    Category = "language"
	CategoryCultural    Category = "cultural"
	CategoryAchievement Category = "achievement"
)

// Categories lists categories in display order.
var Categories = []Category{CategoryLanguage, CategoryCultural, CategoryAchievement}

// SlotsPerCategory is the number of badge slots shown per category, locked slots included.
const SlotsPerCategory = 3

// Stable IDs; clients may store them.
const (
	IDPerfectScore   = "perfect-score"
	IDHeritageSeeker = "heritage-seeker"
	IDGrandTour      = "grand-tour"

	heritageRegions = 2
)

// Badge is an awarded achievement marker owned by a user.
type Badge struct {
	ID          string    `json:"id" firestore:"id"`
	Category    Category  `json:"category" firestore:"category"`
	Name        string    `json:"name" firestore:"name"`
	Description string    `json:"description" firestore:"description"`
	Icon        string    `json:"icon" firestore:"icon"`
	AwardedAt   time.Time `json:"awardedAt,omitempty" firestore:"awarded_at"`
}

// Outcome is the state after a quest result has been applied to a user's progress.
type Outcome struct {
	Region           string
	Score            int
	TotalQuestions   int
	RegionCompleted  bool
	CompletedRegions []string
}

// LanguageID is the badge ID awarded for completing a region.
func LanguageID(regionID string) string {
	return "language-" + regionID
}

// Award returns the badges the outcome earns that are not already owned.
func Award(catalog *region.Catalog, owned []Badge, o Outcome, now time.Time) []Badge {
	have := make(map[string]bool, len(owned))
	for _, b := range owned {
		have[b.ID] = true
	}

	var earned []Badge
	grant := func(b Badge) {
		if have[b.ID] {
			return
		}
		have[b.ID] = true
		b.AwardedAt = now
		earned = append(earned, b)
	}

	if o.RegionCompleted {
		if r, err := catalog.Get(o.Region); err == nil {
			grant(Badge{
				ID:          LanguageID(r.ID),
				Category:    CategoryLanguage,
				Name:        r.Name,
				Description: fmt.Sprintf("Completed the %s language quest", r.ID),
				Icon:        r.Icon,
			})
		}
	}

	if o.TotalQuestions > 0 && o.Score == o.TotalQuestions {
		grant(Badge{
			ID:          IDPerfectScore,
			Category:    CategoryAchievement,
			Name:        "নিখুঁত",
			Description: "Answered every challenge of a quest correctly",
			Icon:        "⭐",
		})
	}

	if len(o.CompletedRegions) >= heritageRegions {
		grant(Badge{
			ID:          IDHeritageSeeker,
			Category:    CategoryCultural,
			Name:        "ঐতিহ্য সন্ধানী",
			Description: fmt.Sprintf("Completed %d regions", heritageRegions),
			Icon:        "🎭",
		})
	}

	if catalog.Len() > 0 && len(o.CompletedRegions) >= catalog.Len() {
		grant(Badge{
			ID:          IDGrandTour,
			Category:    CategoryAchievement,
			Name:        "বাংলা ভ্রমণ",
			Description: "Completed every region",
			Icon:        "🏆",
		})
	}

	return earned
}

// Merge appends incoming badges that are not yet present, preserving order.
func Merge(owned, incoming []Badge) []Badge {
	seen := make(map[string]bool, len(owned)+len(incoming))
	out := make([]Badge, 0, len(owned)+len(incoming))
	for _, b := range owned {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	for _, b := range incoming {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	return out
}

// Group is one category on the collection screen.
type Group struct {
	Category    Category `json:"category"`
	Badges      []Badge  `json:"badges"`
	LockedSlots int      `json:"lockedSlots"`
}

// GroupByCategory splits badges by category in display order, padding with locked slots.
func GroupByCategory(badges []Badge) []Group {
	groups := make([]Group, 0, len(Categories))
	for _, cat := range Categories {
		g := Group{Category: cat}
		for _, b := range badges {
			if b.Category == cat {
				g.Badges = append(g.Badges, b)
			}
		}
		if n := SlotsPerCategory - len(g.Badges); n > 0 {
			g.LockedSlots = n
		}
		groups = append(groups, g)
	}
	return groups
}
