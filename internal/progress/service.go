package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/banglabot/quest-service/internal/badge"
	"github.com/banglabot/quest-service/internal/platform/envconfig"
	"github.com/banglabot/quest-service/internal/region"
)

// DefaultPassRatio is the share of correct answers that completes a region.
const DefaultPassRatio = 0.6

const defaultAttemptLimit = 20

// Service records quest results, maintains progress and awards badges.
type Service struct {
	catalog   *region.Catalog
	repo      Repository
	clock     Clock
	ids       IDGenerator
	passRatio float64
}

// NewService constructs a Service. A passRatio outside (0,1] falls back to DefaultPassRatio.
func NewService(catalog *region.Catalog, repo Repository, clock Clock, ids IDGenerator, passRatio float64) (*Service, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if passRatio <= 0 || passRatio > 1 {
		passRatio = DefaultPassRatio
	}
	return &Service{catalog: catalog, repo: repo, clock: clock, ids: ids, passRatio: passRatio}, nil
}

// Progress returns the user's progress map, empty for new users.
func (s *Service) Progress(ctx context.Context, userID string) (Map, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	rec, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rec.Progress, nil
}

// Badges returns the badges the user owns, in award order.
func (s *Service) Badges(ctx context.Context, userID string) ([]badge.Badge, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	rec, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rec.Badges, nil
}

// Attempts returns the most recent recorded results, newest first.
func (s *Service) Attempts(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if limit <= 0 {
		limit = defaultAttemptLimit
	}
	return s.repo.Attempts(ctx, userID, limit)
}

// RecordResult applies a finished quest to the user's progress and returns the updated map
// together with any newly earned badges.
func (s *Service) RecordResult(ctx context.Context, userID string, result Result) (Update, error) {
	if userID == "" {
		return Update{}, ErrMissingUserID
	}
	if err := envconfig.Validate(result); err != nil {
		return Update{}, fmt.Errorf("%w: %s", ErrInvalidResult, err.Error())
	}
	if _, err := s.catalog.Get(result.Region); err != nil {
		return Update{}, err
	}

	now := s.clock.Now().UTC()
	attempt := Attempt{
		ID:             s.ids.NewID(),
		Region:         result.Region,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		RecordedAt:     now,
	}
	ratio := float64(result.Score) / float64(result.TotalQuestions)

	var earned []badge.Badge
	rec, err := s.repo.Apply(ctx, userID, attempt, func(rec *Record) error {
		rp := rec.Progress[result.Region]
		if ratio > rp.Progress {
			rp.Progress = ratio
		}
		if result.Score > rp.BestScore {
			rp.BestScore = result.Score
		}
		rp.Attempts++
		if ratio >= s.passRatio {
			rp.Completed = true
		}
		rp.UpdatedAt = now
		rec.Progress[result.Region] = rp

		earned = badge.Award(s.catalog, rec.Badges, badge.Outcome{
			Region:           result.Region,
			Score:            result.Score,
			TotalQuestions:   result.TotalQuestions,
			RegionCompleted:  rp.Completed,
			CompletedRegions: rec.Progress.CompletedRegions(),
		}, now)
		rec.Badges = append(rec.Badges, earned...)
		return nil
	})
	if err != nil {
		return Update{}, err
	}

	if earned == nil {
		earned = []badge.Badge{}
	}
	return Update{Progress: rec.Progress, NewBadges: earned}, nil
}
