package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/banglabot/quest-service/internal/quest"
)

var errQuestAbandoned = errors.New("quest abandoned")

func newPlayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "play <region>",
		Short: "Play a region's quest in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			if ctx.serverURL == "" {
				unlock, err := lockDatabase(ctx.dbPath)
				if err != nil {
					return err
				}
				defer unlock()
			}

			out := cmd.OutOrStdout()
			err = playQuest(cmd, b, ctx.userID, args[0])
			for _, n := range b.inbox.Drain(ctx.userID) {
				fmt.Fprintf(out, "» %s\n", n.Message)
			}
			return err
		},
	}
}

// lockDatabase keeps a second local play from running a parallel session against the same database.
func lockDatabase(dbPath string) (func(), error) {
	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another quest is already being played against %s", dbPath)
	}
	return func() { _ = lock.Unlock() }, nil
}

func playQuest(cmd *cobra.Command, b *backend, userID, regionID string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())
	prompt := interactive(cmd.InOrStdin())

	snap, err := b.engine.Start(ctx, userID, regionID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", snap.Title)

	for {
		snap = b.engine.Snapshot(userID)
		if snap.Challenge == nil {
			return fmt.Errorf("quest is %s", snap.State)
		}
		printChallenge(out, snap)

		option, err := readOption(out, in, snap.Challenge.Options, prompt)
		if err != nil {
			b.engine.Abandon(userID)
			if errors.Is(err, io.EOF) {
				return errQuestAbandoned
			}
			return err
		}

		res, err := b.engine.Answer(ctx, userID, option)
		if res.Feedback.Option != "" || err == nil {
			if res.Feedback.Correct {
				fmt.Fprintln(out, "✓ সঠিক!")
			} else {
				fmt.Fprintf(out, "✗ সঠিক উত্তর: %s\n", res.Feedback.CorrectAnswer)
			}
		}
		if err != nil {
			var nerr *quest.NetworkError
			if errors.As(err, &nerr) {
				fmt.Fprintln(out, "progress was not saved; run again to retry")
			}
			return err
		}
		if res.Update != nil {
			fmt.Fprintf(out, "স্কোর: %d/%d\n", res.Session.Score, res.Session.TotalQuestions)
			last := res.Update.Progress[regionID]
			fmt.Fprintf(out, "%s progress %.0f%% (completed: %t)\n", regionID, last.Progress*100, last.Completed)
			for _, bd := range res.Update.NewBadges {
				fmt.Fprintf(out, "new badge: %s %s\n", bd.Icon, bd.Name)
			}
			return nil
		}
	}
}

func printChallenge(out io.Writer, snap quest.Snapshot) {
	c := snap.Challenge
	fmt.Fprintf(out, "\nপ্রশ্ন %d/%d\n", snap.Index+1, snap.TotalQuestions)
	switch c.Type {
	case quest.TypeVocabulary:
		fmt.Fprintf(out, "%s\n%s\n", c.Word, c.Context)
	case quest.TypeConversation:
		for _, line := range c.Dialogue {
			fmt.Fprintf(out, "%s: %s\n", line.Speaker, line.Text)
		}
		fmt.Fprintln(out, c.Question)
	case quest.TypeCultural:
		fmt.Fprintf(out, "%s\n%s\n%s\n", c.Title, c.Story, c.Question)
	}
	for i, opt := range c.Options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
	}
}

func interactive(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func readOption(out io.Writer, in *bufio.Scanner, options []string, prompt bool) (string, error) {
	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		n, err := strconv.Atoi(strings.TrimSpace(in.Text()))
		if err == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		fmt.Fprintf(out, "choose 1-%d\n", len(options))
	}
}
