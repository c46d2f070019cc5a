package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banglabot/quest-service/internal/config"
	"github.com/banglabot/quest-service/internal/httpapi"
	"github.com/banglabot/quest-service/internal/platform/auth"
	"github.com/banglabot/quest-service/internal/platform/logging"
	"github.com/banglabot/quest-service/internal/platform/server"
	"github.com/banglabot/quest-service/internal/progress"
	"github.com/banglabot/quest-service/internal/quest"
	"github.com/banglabot/quest-service/internal/questclient"
	"github.com/banglabot/quest-service/internal/region"
)

func newUpstream(t *testing.T, catalog *region.Catalog) *httptest.Server {
	t.Helper()
	svc, err := progress.NewService(catalog, progress.NewMemoryRepository(), progress.NewSystemClock(), progress.NewUUIDGenerator(), progress.DefaultPassRatio)
	require.NoError(t, err)
	content, err := quest.NewStaticProvider()
	require.NoError(t, err)
	engine, err := quest.NewEngine(quest.Config{Catalog: catalog, Content: content, Progress: svc, Logger: logging.Discard()})
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(auth.Config{Mode: auth.ModeNoop})
	require.NoError(t, err)

	router := server.NewRouter(serviceName, func(r chi.Router) {
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

func TestRemoteContentProviderPlaysAgainstUpstream(t *testing.T) {
	catalog, err := region.Default()
	require.NoError(t, err)
	upstream := newUpstream(t, catalog)

	cfg := config.Config{Content: config.ContentConfig{
		Source:       config.ContentRemote,
		BackendURL:   upstream.URL,
		BackendToken: "service-token",
	}}
	content, closeContent, err := newContentProvider(context.Background(), cfg, catalog, logging.Discard())
	require.NoError(t, err)
	defer closeContent()

	remote, ok := content.(*questclient.Client)
	require.True(t, ok, "remote source must use the backend client")

	engine, err := quest.NewEngine(quest.Config{Catalog: catalog, Content: remote, Progress: remote, Logger: logging.Discard()})
	require.NoError(t, err)
	ctx := context.Background()

	snap, err := engine.Start(ctx, "u1", "sylhet")
	require.NoError(t, err)
	assert.Equal(t, quest.StateInProgress, snap.State)

	q, err := remote.Quest(ctx, "sylhet")
	require.NoError(t, err)
	var res quest.AnswerResult
	for _, c := range q.Challenges {
		res, err = engine.Answer(ctx, "u1", c.CorrectAnswer)
		require.NoError(t, err)
	}
	require.NotNil(t, res.Update)
	assert.Equal(t, quest.StateCompleted, res.Session.State)
	assert.Equal(t, len(q.Challenges), res.Session.Score)
}

func TestStaticContentProviderIsDefault(t *testing.T) {
	catalog, err := region.Default()
	require.NoError(t, err)
	content, closeContent, err := newContentProvider(context.Background(), config.Config{}, catalog, logging.Discard())
	require.NoError(t, err)
	defer closeContent()
	_, ok := content.(*quest.StaticProvider)
	assert.True(t, ok)
}

func TestTextConverterDisabledWithoutKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	assert.Nil(t, newTextConverter(context.Background(), config.Config{}, logging.Discard()))
}
