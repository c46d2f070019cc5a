package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/banglabot/quest-service/internal/quest"
)

type questPublisher interface {
	Publish(ctx context.Context, q quest.Quest) error
}

func newPublishCommand() *cobra.Command {
	var (
		bucket string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "publish-content",
		Short: "Upload quest content to the Cloud Storage bucket the server reads from",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := loadQuestFile(file)
			if err != nil {
				return err
			}
			dst, err := quest.NewStorageProvider(cmd.Context(), bucket)
			if err != nil {
				return err
			}
			defer dst.Close()
			return publishQuests(cmd.Context(), cmd.OutOrStdout(), src, dst)
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "Destination bucket")
	cmd.Flags().StringVar(&file, "file", "", "Quest YAML file (defaults to the built-in content)")
	_ = cmd.MarkFlagRequired("bucket")
	return cmd
}

func loadQuestFile(path string) (*quest.StaticProvider, error) {
	if path == "" {
		return quest.NewStaticProvider()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quest file: %w", err)
	}
	return quest.ParseStatic(data)
}

func publishQuests(ctx context.Context, out io.Writer, src *quest.StaticProvider, dst questPublisher) error {
	for _, regionID := range src.Regions() {
		q, err := src.Quest(ctx, regionID)
		if err != nil {
			return err
		}
		if err := dst.Publish(ctx, q.Normalized()); err != nil {
			return fmt.Errorf("publish %s: %w", regionID, err)
		}
		fmt.Fprintf(out, "published %s (%d challenges)\n", regionID, len(q.Challenges))
	}
	return nil
}
