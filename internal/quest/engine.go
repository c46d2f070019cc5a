package quest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banglabot/quest-service/internal/badge"
	"github.com/banglabot/quest-service/internal/platform/events"
	"github.com/banglabot/quest-service/internal/progress"
	"github.com/banglabot/quest-service/internal/region"
)

// reportTimeout bounds the completion report sent after the last answer. The report is detached
// from the caller's context so a disconnecting client does not lose a finished quest.
const reportTimeout = 10 * time.Second

// DefaultRevealDelay is how long answer feedback is shown before the session advances.
const DefaultRevealDelay = 1500 * time.Millisecond

// ProgressClient is the progress and badge collaborator.
type ProgressClient interface {
	Progress(ctx context.Context, userID string) (progress.Map, error)
	Badges(ctx context.Context, userID string) ([]badge.Badge, error)
	RecordResult(ctx context.Context, userID string, result progress.Result) (progress.Update, error)
}

// Config wires the engine's collaborators.
type Config struct {
	Catalog     *region.Catalog
	Content     ContentProvider
	Progress    ProgressClient
	Notifier    Notifier
	Events      events.Publisher
	Clock       Clock
	Logger      *slog.Logger
	RevealDelay time.Duration
}

// Profile is a user's cached progress and badge collection.
type Profile struct {
	Progress progress.Map  `json:"progress"`
	Badges   []badge.Badge `json:"badges"`
}

// AnswerResult is returned once an answer has been revealed and the session advanced.
type AnswerResult struct {
	Feedback Feedback         `json:"feedback"`
	Session  Snapshot         `json:"session"`
	Update   *progress.Update `json:"update,omitempty"`
}

// Engine drives quest sessions for many users. Each user owns one player; operations for
// different users never contend.
type Engine struct {
	cfg Config

	mu      sync.Mutex
	players map[string]*player
}

// player is the per-user state. gen increments whenever the session is abandoned or restarted so
// that late results of cancelled calls are dropped.
type player struct {
	mu        sync.Mutex
	session   Session
	profile   Profile
	loaded    bool
	starting  bool
	revealing bool
	reporting bool
	gen       uint64
	cancel    context.CancelFunc
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.Content == nil {
		return nil, errors.New("content provider is required")
	}
	if cfg.Progress == nil {
		return nil, errors.New("progress client is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewInbox()
	}
	if cfg.Clock == nil {
		cfg.Clock = NewSystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = events.LogPublisher{Logger: cfg.Logger}
	}
	if cfg.RevealDelay < 0 {
		cfg.RevealDelay = 0
	}
	return &Engine{cfg: cfg, players: make(map[string]*player)}, nil
}

func (e *Engine) player(userID string) *player {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[userID]
	if !ok {
		p = &player{}
		e.players[userID] = p
	}
	return p
}

// Load fetches progress and badges concurrently and caches them for the user.
func (e *Engine) Load(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrMissingUserID
	}
	prof, err := e.fetchProfile(ctx, userID)
	if err != nil {
		e.fail(ctx, userID, KindProgressLoadFailed, err)
		return Profile{}, err
	}
	return prof, nil
}

func (e *Engine) fetchProfile(ctx context.Context, userID string) (Profile, error) {
	var (
		prog   progress.Map
		badges []badge.Badge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prog, err = e.cfg.Progress.Progress(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		badges, err = e.cfg.Progress.Badges(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Profile{}, &NetworkError{Op: "load progress", Err: err}
	}
	if prog == nil {
		prog = progress.Map{}
	}

	p := e.player(userID)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = Profile{Progress: prog, Badges: badge.Merge(nil, badges)}
	p.loaded = true
	return cloneProfile(p.profile), nil
}

var errNotLoaded = errors.New("profile not loaded")

func (e *Engine) cachedProfile(userID string) (Profile, error) {
	p := e.player(userID)
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return Profile{}, errNotLoaded
	}
	return cloneProfile(p.profile), nil
}

func (e *Engine) ensureLoaded(ctx context.Context, userID string) (Profile, error) {
	if prof, err := e.cachedProfile(userID); err == nil {
		return prof, nil
	}
	return e.Load(ctx, userID)
}

// Profile returns the cached progress and badges, loading them on first use.
func (e *Engine) Profile(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrMissingUserID
	}
	return e.ensureLoaded(ctx, userID)
}

// Regions returns the map screen statuses for the user.
func (e *Engine) Regions(ctx context.Context, userID string) ([]region.Status, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	prof, err := e.ensureLoaded(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.cfg.Catalog.Statuses(prof.Progress), nil
}

// IsUnlocked reports whether the user may start the region.
func (e *Engine) IsUnlocked(ctx context.Context, userID, regionID string) (bool, error) {
	if userID == "" {
		return false, ErrMissingUserID
	}
	prof, err := e.ensureLoaded(ctx, userID)
	if err != nil {
		return false, err
	}
	return e.cfg.Catalog.IsUnlocked(regionID, prof.Progress)
}

// Start begins a quest for regionID. It is rejected while another session for the user is
// running, starting or waiting for its completion report.
func (e *Engine) Start(ctx context.Context, userID, regionID string) (Snapshot, error) {
	if userID == "" {
		return Snapshot{}, ErrMissingUserID
	}
	p := e.player(userID)

	p.mu.Lock()
	if p.starting || p.session.State() != StateNotStarted {
		verr := &ValidationError{Op: "start", State: p.session.State(), Reason: "a quest is already running"}
		p.mu.Unlock()
		e.fail(ctx, userID, KindActionRejected, verr)
		return Snapshot{}, verr
	}
	if _, err := e.cfg.Catalog.Get(regionID); err != nil {
		p.mu.Unlock()
		e.fail(ctx, userID, KindConfiguration, err)
		return Snapshot{}, err
	}
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.starting = true
	p.cancel = cancel
	gen := p.gen
	p.mu.Unlock()

	// release clears the starting flag unless the attempt was abandoned in the meantime.
	release := func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.gen != gen {
			return false
		}
		p.starting = false
		p.cancel = nil
		return true
	}

	prof, err := e.cachedProfile(userID)
	if err != nil {
		prof, err = e.fetchProfile(opCtx, userID)
	}
	if err != nil {
		if !release() {
			return Snapshot{}, ErrSessionAbandoned
		}
		e.fail(ctx, userID, KindProgressLoadFailed, err)
		return Snapshot{}, err
	}

	unlocked, err := e.cfg.Catalog.IsUnlocked(regionID, prof.Progress)
	if err != nil {
		if !release() {
			return Snapshot{}, ErrSessionAbandoned
		}
		e.fail(ctx, userID, KindConfiguration, err)
		return Snapshot{}, err
	}
	if !unlocked {
		if !release() {
			return Snapshot{}, ErrSessionAbandoned
		}
		lerr := fmt.Errorf("%w: %s", ErrRegionLocked, regionID)
		e.fail(ctx, userID, KindRegionLocked, lerr)
		return Snapshot{}, lerr
	}

	q, err := e.cfg.Content.Quest(opCtx, regionID)
	if err == nil {
		q = q.Normalized()
		if verr := q.Validate(); verr != nil {
			err = &region.ConfigurationError{Region: regionID, Err: verr}
		}
	}
	if err != nil {
		if !release() {
			return Snapshot{}, ErrSessionAbandoned
		}
		var cerr *region.ConfigurationError
		if errors.As(err, &cerr) {
			e.fail(ctx, userID, KindConfiguration, err)
			return Snapshot{}, err
		}
		nerr := &NetworkError{Op: "load quest", Err: err}
		e.fail(ctx, userID, KindQuestLoadFailed, nerr)
		return Snapshot{}, nerr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return Snapshot{}, ErrSessionAbandoned
	}
	p.starting = false
	p.cancel = nil
	if err := p.session.Begin(regionID, q); err != nil {
		return Snapshot{}, err
	}
	e.cfg.Logger.InfoContext(ctx, "quest started",
		slog.String("userId", userID), slog.String("region", regionID), slog.Int("challenges", len(q.Challenges)))
	return p.session.Snapshot(), nil
}

// Answer scores option against the current challenge, waits for the reveal delay and advances.
// Reaching the end of the quest reports the result immediately.
func (e *Engine) Answer(ctx context.Context, userID, option string) (AnswerResult, error) {
	if userID == "" {
		return AnswerResult{}, ErrMissingUserID
	}
	p := e.player(userID)

	p.mu.Lock()
	fb, err := p.session.Answer(option)
	if err != nil {
		p.mu.Unlock()
		e.fail(ctx, userID, KindActionRejected, err)
		return AnswerResult{}, err
	}
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.revealing = true
	p.cancel = cancel
	gen := p.gen
	p.mu.Unlock()

	// The reveal is presentation only; a caller that stops waiting still advances the session.
	_ = sleep(opCtx, e.cfg.Clock, e.cfg.RevealDelay)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return AnswerResult{Feedback: fb}, ErrSessionAbandoned
	}
	p.revealing = false
	p.cancel = nil
	if err := p.session.Advance(); err != nil {
		p.mu.Unlock()
		return AnswerResult{Feedback: fb}, err
	}
	snap := p.session.Snapshot()
	done := p.session.State() == StateCompleted
	p.mu.Unlock()

	// res keeps the Completed snapshot with the final score; the engine-side session is reset
	// once the report succeeds.
	res := AnswerResult{Feedback: fb, Session: snap}
	if !done {
		return res, nil
	}
	reportCtx, cancelReport := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancelReport()
	upd, err := e.complete(reportCtx, userID)
	if err != nil {
		return res, err
	}
	res.Update = &upd
	return res, nil
}

// Complete retries the completion report of a finished session.
func (e *Engine) Complete(ctx context.Context, userID string) (progress.Update, error) {
	if userID == "" {
		return progress.Update{}, ErrMissingUserID
	}
	return e.complete(ctx, userID)
}

func (e *Engine) complete(ctx context.Context, userID string) (progress.Update, error) {
	p := e.player(userID)

	p.mu.Lock()
	result, err := p.session.Result()
	if err == nil && p.reporting {
		err = &ValidationError{Op: "complete", State: p.session.State(), Reason: "report already in flight"}
	}
	if err != nil {
		p.mu.Unlock()
		e.fail(ctx, userID, KindActionRejected, err)
		return progress.Update{}, err
	}
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.reporting = true
	p.cancel = cancel
	gen := p.gen
	p.mu.Unlock()

	upd, err := e.cfg.Progress.RecordResult(opCtx, userID, result)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return progress.Update{}, ErrSessionAbandoned
	}
	p.reporting = false
	p.cancel = nil
	if err != nil {
		p.mu.Unlock()
		nerr := &NetworkError{Op: "update progress", Err: err}
		e.fail(ctx, userID, KindProgressUpdateFailed, nerr)
		return progress.Update{}, nerr
	}
	if upd.Progress != nil {
		p.profile.Progress = upd.Progress.Clone()
		p.loaded = true
	}
	p.profile.Badges = badge.Merge(p.profile.Badges, upd.NewBadges)
	p.session.Reset()
	p.mu.Unlock()

	now := e.cfg.Clock.Now().UTC()
	e.cfg.Logger.InfoContext(ctx, "quest completed",
		slog.String("userId", userID), slog.String("region", result.Region),
		slog.Int("score", result.Score), slog.Int("totalQuestions", result.TotalQuestions))
	e.publish(ctx, events.TopicQuestEvents, events.QuestCompleted{
		UserID:         userID,
		Region:         result.Region,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		CompletedAt:    now,
	})

	if len(upd.NewBadges) > 0 {
		ids := make([]string, 0, len(upd.NewBadges))
		for _, b := range upd.NewBadges {
			ids = append(ids, b.ID)
		}
		e.cfg.Notifier.Notify(ctx, Notification{
			UserID:  userID,
			Kind:    KindBadgesEarned,
			Message: defaultMessages[KindBadgesEarned],
			Badges:  upd.NewBadges,
		})
		e.publish(ctx, events.TopicBadgeEvents, events.BadgesAwarded{UserID: userID, BadgeIDs: ids, AwardedAt: now})
	}
	return upd, nil
}

// Abandon cancels any in-flight call for the user and discards the session, partial score
// included. It is a no-op when nothing is running.
func (e *Engine) Abandon(userID string) {
	p := e.player(userID)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.starting || p.revealing || p.reporting || p.session.State() != StateNotStarted {
		e.cfg.Logger.Info("quest abandoned",
			slog.String("userId", userID), slog.String("region", p.session.Region()), slog.Int("score", p.session.Score()))
	}
	p.gen++
	p.starting = false
	p.revealing = false
	p.reporting = false
	p.session.Reset()
}

// Snapshot returns the user's current session view.
func (e *Engine) Snapshot(userID string) Snapshot {
	p := e.player(userID)
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.session.Snapshot()
	snap.Busy = p.starting || p.revealing || p.reporting
	return snap
}

// fail logs err and emits exactly one notification of kind.
func (e *Engine) fail(ctx context.Context, userID string, kind NotificationKind, err error) {
	level := slog.LevelWarn
	var cerr *region.ConfigurationError
	if errors.As(err, &cerr) {
		level = slog.LevelError
	}
	e.cfg.Logger.Log(ctx, level, "quest operation failed",
		slog.String("userId", userID), slog.String("kind", string(kind)), slog.String("error", err.Error()))
	e.cfg.Notifier.Notify(ctx, Notification{
		UserID:  userID,
		Kind:    kind,
		Message: defaultMessages[kind],
		Detail:  err.Error(),
	})
}

func (e *Engine) publish(ctx context.Context, topic string, payload any) {
	if err := e.cfg.Events.Publish(ctx, topic, payload); err != nil {
		e.cfg.Logger.WarnContext(ctx, "event publish failed", slog.String("topic", topic), slog.String("error", err.Error()))
	}
}

func cloneProfile(p Profile) Profile {
	return Profile{
		Progress: p.Progress.Clone(),
		Badges:   append([]badge.Badge(nil), p.Badges...),
	}
}
