package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banglabot/quest-service/internal/quest"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// correctAnswers returns the 1-based option numbers that answer the built-in quest perfectly.
func correctAnswers(t *testing.T, regionID string) string {
	t.Helper()
	provider, err := quest.NewStaticProvider()
	require.NoError(t, err)
	q, err := provider.Quest(context.Background(), regionID)
	require.NoError(t, err)

	var lines []string
	for _, c := range q.Challenges {
		for i, opt := range c.Options {
			if opt == c.CorrectAnswer {
				lines = append(lines, strconv.Itoa(i+1))
			}
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestPlayUnlocksNextRegion(t *testing.T) {
	db := filepath.Join(t.TempDir(), "quest.db")
	common := []string{"--db", db, "--reveal", "0", "--user", "tester"}

	out, err := runCLI(t, "", append(common, "regions")...)
	require.NoError(t, err)
	assert.Contains(t, out, "🔒")

	out, err = runCLI(t, "", append(common, "play", "chittagong")...)
	require.ErrorIs(t, err, quest.ErrRegionLocked)
	assert.Contains(t, out, "লক করা আছে")

	out, err = runCLI(t, "9\n"+correctAnswers(t, "sylhet"), append(common, "play", "sylhet")...)
	require.NoError(t, err)
	assert.Contains(t, out, "choose 1-")
	assert.Contains(t, out, "স্কোর: 3/3")
	assert.Contains(t, out, "new badge")

	out, err = runCLI(t, "", append(common, "regions")...)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "100%")

	out, err = runCLI(t, "", append(common, "badges")...)
	require.NoError(t, err)
	assert.Contains(t, out, "language")
	assert.Contains(t, out, "achievement")
}

func TestPlayAbandonsOnEOF(t *testing.T) {
	db := filepath.Join(t.TempDir(), "quest.db")
	_, err := runCLI(t, "1\n", "--db", db, "--reveal", "0", "play", "sylhet")
	require.ErrorIs(t, err, errQuestAbandoned)

	out, err := runCLI(t, "", "--db", db, "regions")
	require.NoError(t, err)
	assert.Contains(t, out, "0%")
	assert.NotContains(t, out, "completed")
}

func TestPlayRefusesConcurrentLocalSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "quest.db")
	held := flock.New(db + ".lock")
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = held.Unlock() }()

	_, err = runCLI(t, correctAnswers(t, "sylhet"), "--db", db, "--reveal", "0", "play", "sylhet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already being played")
}

func TestInteractiveIgnoresNonTerminalInput(t *testing.T) {
	assert.False(t, interactive(strings.NewReader("1\n")))
}

type recordingPublisher struct {
	published []quest.Quest
}

func (p *recordingPublisher) Publish(_ context.Context, q quest.Quest) error {
	p.published = append(p.published, q)
	return nil
}

func TestPublishQuestsUploadsEveryRegion(t *testing.T) {
	src, err := quest.NewStaticProvider()
	require.NoError(t, err)
	dst := &recordingPublisher{}
	var out bytes.Buffer

	require.NoError(t, publishQuests(context.Background(), &out, src, dst))
	require.Len(t, dst.published, len(src.Regions()))
	for i, regionID := range src.Regions() {
		assert.Equal(t, regionID, dst.published[i].Region)
	}
	assert.Contains(t, out.String(), "published sylhet")
}

func TestPublishContentRequiresBucket(t *testing.T) {
	_, err := runCLI(t, "", "publish-content")
	require.Error(t, err)
}

func TestRenderTableHandlesShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "x")
	assert.Empty(t, renderTable(nil, nil, nil))
}
