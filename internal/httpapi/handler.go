package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/banglabot/quest-service/internal/badge"
	"github.com/banglabot/quest-service/internal/banglish"
	"github.com/banglabot/quest-service/internal/platform/apierror"
	"github.com/banglabot/quest-service/internal/platform/auth"
	"github.com/banglabot/quest-service/internal/progress"
	"github.com/banglabot/quest-service/internal/quest"
	"github.com/banglabot/quest-service/internal/region"
)

const (
	serviceTimeout  = 8 * time.Second
	maxBodyBytes    = 16 * 1024
	maxAttemptLimit = 100
)

// ProgressService is the local progress collaborator served under /api.
type ProgressService interface {
	Progress(ctx context.Context, userID string) (progress.Map, error)
	Badges(ctx context.Context, userID string) ([]badge.Badge, error)
	Attempts(ctx context.Context, userID string, limit int) ([]progress.Attempt, error)
	RecordResult(ctx context.Context, userID string, result progress.Result) (progress.Update, error)
}

// TextConverter converts Banglish into Bangla script.
type TextConverter interface {
	Convert(ctx context.Context, text string) (string, error)
}

// NotificationSource hands out queued user notifications.
type NotificationSource interface {
	Drain(userID string) []quest.Notification
}

// Dependencies groups everything the routes need.
type Dependencies struct {
	Engine        *quest.Engine
	Progress      ProgressService
	Content       quest.ContentProvider
	Notifications NotificationSource
	Converter     TextConverter
	Verifier      auth.Verifier
	Logger        *slog.Logger
}

// RegisterRoutes registers the collaborator contract under /api and the session API under /v1.
func RegisterRoutes(r chi.Router, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Recoverer)

		// Quest content is the same for every user.
		r.Get("/quests/{region}", getQuest(deps.Content, logger))

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(deps.Verifier))

			r.Get("/progress/user", getProgress(deps.Progress, logger))
			r.Get("/progress/attempts", listAttempts(deps.Progress, logger))
			r.Post("/progress/update", updateProgress(deps.Progress, logger))
			r.Get("/badges/user", getBadges(deps.Progress, logger))
			r.Post("/convert", convertText(deps.Converter, logger))
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Recoverer)
		r.Use(auth.Middleware(deps.Verifier))

		r.Get("/regions", listRegions(deps.Engine, logger))
		r.Get("/badges", badgeCollection(deps.Engine, logger))
		r.Get("/notifications", drainNotifications(deps.Notifications))

		r.Route("/quest-session", func(r chi.Router) {
			r.Get("/", getSession(deps.Engine))
			r.Post("/", startSession(deps.Engine, logger))
			r.Delete("/", abandonSession(deps.Engine))
			r.Post("/answers", answerChallenge(deps.Engine, logger))
			r.Post("/complete", completeSession(deps.Engine, logger))
		})
	})
}

func getQuest(content quest.ContentProvider, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		regionID := strings.TrimSpace(chi.URLParam(r, "region"))
		if regionID == "" {
			writeError(w, r, apierror.CodeBadRequest, "missing region")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		q, err := content.Quest(ctx, regionID)
		if err == nil {
			err = q.Validate()
		}
		if err != nil {
			writeDomainError(w, r, logger, "failed to load quest", err, requestUserID(r))
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func convertText(converter TextConverter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if converter == nil {
			writeError(w, r, apierror.CodeUnavailable, "text conversion is not configured")
			return
		}

		var body struct {
			Text string `json:"text"`
		}
		if !decodeBody(w, r, &body) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*serviceTimeout)
		defer cancel()

		converted, err := converter.Convert(ctx, body.Text)
		if err != nil {
			writeDomainError(w, r, logger, "failed to convert text", err, requestUserID(r))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"convertedBangla": converted})
	}
}

func getProgress(service ProgressService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		prog, err := service.Progress(ctx, userID)
		if err != nil {
			writeDomainError(w, r, logger, "failed to load progress", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"progress": prog})
	}
}

func getBadges(service ProgressService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		badges, err := service.Badges(ctx, userID)
		if err != nil {
			writeDomainError(w, r, logger, "failed to load badges", err, userID)
			return
		}
		if badges == nil {
			badges = []badge.Badge{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"badges": badges})
	}
}

func listAttempts(service ProgressService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 || v > maxAttemptLimit {
				writeError(w, r, apierror.CodeBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = v
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		attempts, err := service.Attempts(ctx, userID, limit)
		if err != nil {
			writeDomainError(w, r, logger, "failed to list attempts", err, userID)
			return
		}
		if attempts == nil {
			attempts = []progress.Attempt{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
	}
}

// updateRequest accepts the flat contract body and the nested form older clients send.
type updateRequest struct {
	Region         string           `json:"region"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	Result         *progress.Result `json:"result,omitempty"`
}

func (u updateRequest) toResult() progress.Result {
	res := progress.Result{Region: u.Region, Score: u.Score, TotalQuestions: u.TotalQuestions}
	if u.Result != nil {
		res.Score = u.Result.Score
		res.TotalQuestions = u.Result.TotalQuestions
	}
	return res
}

func updateProgress(service ProgressService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		var body updateRequest
		if !decodeBody(w, r, &body) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		upd, err := service.RecordResult(ctx, userID, body.toResult())
		if err != nil {
			writeDomainError(w, r, logger, "failed to update progress", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, upd)
	}
}

func listRegions(engine *quest.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		statuses, err := engine.Regions(ctx, userID)
		if err != nil {
			writeDomainError(w, r, logger, "failed to list regions", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"regions": statuses})
	}
}

func badgeCollection(engine *quest.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		prof, err := engine.Profile(ctx, userID)
		if err != nil {
			writeDomainError(w, r, logger, "failed to load badges", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total":  len(prof.Badges),
			"groups": badge.GroupByCategory(prof.Badges),
		})
	}
}

func drainNotifications(source NotificationSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": source.Drain(userID)})
	}
}

func getSession(engine *quest.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}
		writeJSON(w, http.StatusOK, engine.Snapshot(userID))
	}
}

func startSession(engine *quest.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		var body struct {
			Region string `json:"region"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if strings.TrimSpace(body.Region) == "" {
			writeError(w, r, apierror.CodeBadRequest, "region is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		snap, err := engine.Start(ctx, userID, body.Region)
		if err != nil {
			writeDomainError(w, r, logger, "failed to start quest", err, userID)
			return
		}
		writeJSON(w, http.StatusCreated, snap)
	}
}

func answerChallenge(engine *quest.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		var body struct {
			Option *string `json:"option"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if body.Option == nil {
			writeError(w, r, apierror.CodeBadRequest, "option is required")
			return
		}

		// The reveal delay runs inside the request, so the answer gets the full timeout.
		ctx, cancel := context.WithTimeout(r.Context(), 2*serviceTimeout)
		defer cancel()

		res, err := engine.Answer(ctx, userID, *body.Option)
		if err != nil {
			writeDomainError(w, r, logger, "failed to answer challenge", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func completeSession(engine *quest.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		upd, err := engine.Complete(ctx, userID)
		if err != nil {
			writeDomainError(w, r, logger, "failed to report quest", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, upd)
	}
}

func abandonSession(engine *quest.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}
		engine.Abandon(userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, apierror.ErrorResponse{
				Code:      apierror.CodeBadRequest,
				Message:   "payload too large",
				RequestID: middleware.GetReqID(r.Context()),
			})
			return false
		}
		writeError(w, r, apierror.CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

// errorCode maps domain errors onto the canonical error codes.
func errorCode(err error) (string, string) {
	var (
		verr *quest.ValidationError
		nerr *quest.NetworkError
		cerr *region.ConfigurationError
	)
	switch {
	case errors.Is(err, quest.ErrMissingUserID), errors.Is(err, progress.ErrMissingUserID):
		return apierror.CodeUnauthorized, "missing user ID"
	case errors.Is(err, region.ErrUnknownRegion), errors.Is(err, quest.ErrQuestNotFound):
		return apierror.CodeNotFound, "region not found"
	case errors.As(err, &cerr):
		return apierror.CodeInternal, "region configuration is invalid"
	case errors.Is(err, quest.ErrRegionLocked):
		return apierror.CodeForbidden, "region is locked"
	case errors.As(err, &verr):
		return apierror.CodeConflict, verr.Error()
	case errors.Is(err, quest.ErrSessionAbandoned):
		return apierror.CodeConflict, "quest session was abandoned"
	case errors.Is(err, progress.ErrInvalidResult):
		return apierror.CodeBadRequest, "invalid quest result"
	case errors.Is(err, quest.ErrInvalidQuest):
		return apierror.CodeInternal, "quest content is invalid"
	case errors.As(err, &nerr):
		return apierror.CodeBadGateway, "upstream service unavailable"
	case errors.Is(err, banglish.ErrEmptyText):
		return apierror.CodeBadRequest, "text is required"
	case errors.Is(err, banglish.ErrTextTooLong):
		return apierror.CodeBadRequest, err.Error()
	case errors.Is(err, banglish.ErrConversionFailed):
		return apierror.CodeBadGateway, "conversion failed"
	default:
		return apierror.CodeInternal, "internal error"
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string, err error, userID string) {
	code, public := errorCode(err)
	if status := apierror.ToStatusCode(code); status >= http.StatusInternalServerError {
		logRequestError(r.Context(), logger, message, err, userID)
	}
	writeError(w, r, code, public)
}

func requestUserID(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok && u.UserID != "" {
		return u.UserID
	}
	return headerUserID(r)
}

func headerUserID(r *http.Request) string {
	if v := r.Header.Get("X-User-ID"); v != "" {
		return v
	}
	return r.Header.Get("x-user-id")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, code, message string) {
	writeJSON(w, apierror.ToStatusCode(code), apierror.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func logRequestError(ctx context.Context, logger *slog.Logger, message string, err error, userID string) {
	if logger == nil || err == nil {
		return
	}
	attrs := []any{
		slog.String("userId", userID),
		slog.Any("error", err),
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		attrs = append(attrs, slog.String("requestId", reqID))
	}
	logger.Error(message, attrs...)
}
