package badge

import (
	"testing"
	"time"

	"github.com/banglabot/quest-service/internal/region"
)

func testCatalog(t *testing.T) *region.Catalog {
	t.Helper()
	c, err := region.New([]region.Region{
		{ID: "sylhet", Name: "Sylhet", Icon: "🏞️"},
		{ID: "chittagong", Name: "Chittagong", UnlockRequirement: "sylhet"},
	})
	if err != nil {
		t.Fatalf("region.New: %v", err)
	}
	return c
}

func ids(badges []Badge) map[string]bool {
	out := make(map[string]bool, len(badges))
	for _, b := range badges {
		out[b.ID] = true
	}
	return out
}

func TestAwardFirstPerfectCompletion(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	got := Award(testCatalog(t), nil, Outcome{
		Region: "sylhet", Score: 3, TotalQuestions: 3,
		RegionCompleted: true, CompletedRegions: []string{"sylhet"},
	}, now)

	set := ids(got)
	if len(got) != 2 || !set[LanguageID("sylhet")] || !set[IDPerfectScore] {
		t.Fatalf("expected language + perfect badges, got %+v", got)
	}
	for _, b := range got {
		if !b.AwardedAt.Equal(now) {
			t.Fatalf("badge %s missing award time", b.ID)
		}
	}
}

func TestAwardSkipsOwnedBadges(t *testing.T) {
	owned := []Badge{{ID: LanguageID("sylhet")}, {ID: IDPerfectScore}}
	got := Award(testCatalog(t), owned, Outcome{
		Region: "sylhet", Score: 3, TotalQuestions: 3,
		RegionCompleted: true, CompletedRegions: []string{"sylhet"},
	}, time.Now())
	if len(got) != 0 {
		t.Fatalf("expected no new badges, got %+v", got)
	}
}

func TestAwardIncompleteRegionEarnsNothing(t *testing.T) {
	got := Award(testCatalog(t), nil, Outcome{Region: "sylhet", Score: 1, TotalQuestions: 3}, time.Now())
	if len(got) != 0 {
		t.Fatalf("expected nothing, got %+v", got)
	}
}

func TestAwardGrandTourAndHeritage(t *testing.T) {
	got := Award(testCatalog(t), []Badge{{ID: LanguageID("sylhet")}}, Outcome{
		Region: "chittagong", Score: 2, TotalQuestions: 3,
		RegionCompleted: true, CompletedRegions: []string{"sylhet", "chittagong"},
	}, time.Now())
	set := ids(got)
	if !set[LanguageID("chittagong")] || !set[IDHeritageSeeker] || !set[IDGrandTour] || set[IDPerfectScore] {
		t.Fatalf("unexpected badges: %+v", got)
	}
}

func TestMergeDeduplicates(t *testing.T) {
	got := Merge([]Badge{{ID: "a"}, {ID: "b"}}, []Badge{{ID: "b"}, {ID: "c"}})
	if len(got) != 3 || got[2].ID != "c" {
		t.Fatalf("unexpected merge: %+v", got)
	}
}

func TestGroupByCategoryPadsLockedSlots(t *testing.T) {
	groups := GroupByCategory([]Badge{
		{ID: "l1", Category: CategoryLanguage},
		{ID: "a1", Category: CategoryAchievement},
		{ID: "a2", Category: CategoryAchievement},
	})
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	want := map[Category]int{CategoryLanguage: 2, CategoryCultural: 3, CategoryAchievement: 1}
	for _, g := range groups {
		if g.LockedSlots != want[g.Category] {
			t.Fatalf("%s: expected %d locked slots, got %d", g.Category, want[g.Category], g.LockedSlots)
		}
	}
}
