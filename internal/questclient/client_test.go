package questclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banglabot/quest-service/internal/httpapi"
	"github.com/banglabot/quest-service/internal/platform/auth"
	"github.com/banglabot/quest-service/internal/platform/logging"
	"github.com/banglabot/quest-service/internal/platform/server"
	"github.com/banglabot/quest-service/internal/progress"
	"github.com/banglabot/quest-service/internal/quest"
	"github.com/banglabot/quest-service/internal/region"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	verifier, err := auth.NewVerifier(auth.Config{Mode: auth.ModeNoop})
	require.NoError(t, err)
	return newBackendWithVerifier(t, verifier)
}

func newBackendWithVerifier(t *testing.T, verifier auth.Verifier) *httptest.Server {
	t.Helper()
	catalog, err := region.Default()
	require.NoError(t, err)
	svc, err := progress.NewService(catalog, progress.NewMemoryRepository(), progress.NewSystemClock(), progress.NewUUIDGenerator(), progress.DefaultPassRatio)
	require.NoError(t, err)
	content, err := quest.NewStaticProvider()
	require.NoError(t, err)
	engine, err := quest.NewEngine(quest.Config{Catalog: catalog, Content: content, Progress: svc, Logger: logging.Discard()})
	require.NoError(t, err)

	router := server.NewRouter("quest-service", func(r chi.Router) {
		httpapi.RegisterRoutes(r, httpapi.Dependencies{
			Engine:        engine,
			Progress:      svc,
			Content:       content,
			Notifications: quest.NewInbox(),
			Verifier:      verifier,
			Logger:        logging.Discard(),
		})
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newBackend(t)
	client, err := New(srv.URL + "/")
	require.NoError(t, err)
	ctx := context.Background()

	q, err := client.Quest(ctx, "sylhet")
	require.NoError(t, err)
	require.NoError(t, q.Validate())
	assert.Equal(t, "sylhet", q.Region)

	prog, err := client.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, prog)

	upd, err := client.RecordResult(ctx, "u1", progress.Result{Region: "sylhet", Score: 3, TotalQuestions: 3})
	require.NoError(t, err)
	assert.True(t, upd.Progress["sylhet"].Completed)
	assert.Len(t, upd.NewBadges, 2)

	badges, err := client.Badges(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, badges, 2)

	prog, err = client.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, prog["sylhet"].Progress)
}

func TestClientErrors(t *testing.T) {
	srv := newBackend(t)
	client, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Quest(ctx, "dhaka")
	require.ErrorIs(t, err, quest.ErrQuestNotFound)

	_, err = client.RecordResult(ctx, "u1", progress.Result{Region: "dhaka", Score: 1, TotalQuestions: 1})
	var cerr *region.ConfigurationError
	require.ErrorAs(t, err, &cerr)

	_, err = client.RecordResult(ctx, "u1", progress.Result{Region: "sylhet", Score: 5, TotalQuestions: 1})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode)
	assert.Equal(t, "bad_request", serr.Code)

	_, err = client.Progress(ctx, "")
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
}

func TestClientDrivesEngine(t *testing.T) {
	srv := newBackend(t)
	client, err := New(srv.URL)
	require.NoError(t, err)
	catalog, err := region.Default()
	require.NoError(t, err)

	inbox := quest.NewInbox()
	engine, err := quest.NewEngine(quest.Config{
		Catalog:  catalog,
		Content:  client,
		Progress: client,
		Notifier: inbox,
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = engine.Start(ctx, "u1", "sylhet")
	require.NoError(t, err)
	q, err := client.Quest(ctx, "sylhet")
	require.NoError(t, err)

	var res quest.AnswerResult
	for _, c := range q.Challenges {
		res, err = engine.Answer(ctx, "u1", c.CorrectAnswer)
		require.NoError(t, err)
	}
	require.NotNil(t, res.Update)
	ok, err := engine.IsUnlocked(ctx, "u1", "chittagong")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClientUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := New(srv.URL)
	require.NoError(t, err)
	_, err = client.Progress(context.Background(), "u1")
	require.Error(t, err)
	var serr *StatusError
	assert.False(t, errors.As(err, &serr))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUser = r.Header.Get("X-User-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"progress":{}}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL, WithToken("secret"))
	require.NoError(t, err)
	_, err = client.Progress(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "u1", gotUser)
}

// sessionTokens stands in for a JWT verifier: it maps opaque tokens to users and ignores the
// internal user header.
type sessionTokens map[string]string

func (s sessionTokens) Verify(_ context.Context, token string) (auth.AuthenticatedUser, error) {
	userID, ok := s[token]
	if !ok {
		return auth.AuthenticatedUser{}, errors.New("token verification failed")
	}
	return auth.AuthenticatedUser{UserID: userID, Token: token}, nil
}

func TestClientThroughTokenAuth(t *testing.T) {
	srv := newBackendWithVerifier(t, sessionTokens{"tok-u1": "u1"})
	ctx := context.Background()

	anonymous, err := New(srv.URL)
	require.NoError(t, err)
	q, err := anonymous.Quest(ctx, "sylhet")
	require.NoError(t, err, "quest content needs no identity")
	assert.Equal(t, "sylhet", q.Region)

	_, err = anonymous.Progress(ctx, "u1")
	var serr *StatusError
	require.ErrorAs(t, err, &serr, "the user header alone is not trusted")
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)

	client, err := New(srv.URL, WithToken("tok-u1"))
	require.NoError(t, err)
	upd, err := client.RecordResult(ctx, "u1", progress.Result{Region: "sylhet", Score: 3, TotalQuestions: 3})
	require.NoError(t, err)
	assert.True(t, upd.Progress["sylhet"].Completed)

	prog, err := client.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, prog["sylhet"].Completed)
}
