package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banglabot/quest-service/internal/badge"
	"github.com/banglabot/quest-service/internal/region"
)

func newRegionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "Show the quest map with lock and completion state",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			statuses, err := b.engine.Regions(cmd.Context(), ctx.userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRegions(statuses))
			return nil
		},
	}
}

func renderRegions(statuses []region.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, []string{
			st.Region.ID,
			st.Region.Icon + " " + st.Region.Name,
			regionState(st),
			fmt.Sprintf("%.0f%%", st.Progress*100),
		})
	}
	return renderTable([]string{"ID", "Region", "Status", "Progress"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}

func regionState(st region.Status) string {
	switch {
	case st.Complete:
		return "completed"
	case st.Unlocked:
		return "open"
	default:
		return "🔒 " + st.LockedBy + " সম্পন্ন করুন"
	}
}

func newBadgesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "badges",
		Short: "Show the badge collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			prof, err := b.engine.Profile(cmd.Context(), ctx.userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderBadges(prof.Badges))
			return nil
		},
	}
}

func renderBadges(badges []badge.Badge) string {
	var rows [][]string
	for _, g := range badge.GroupByCategory(badges) {
		for _, bd := range g.Badges {
			rows = append(rows, []string{string(g.Category), bd.Icon + " " + bd.Name, bd.Description})
		}
		for i := 0; i < g.LockedSlots; i++ {
			rows = append(rows, []string{string(g.Category), "🔒", ""})
		}
	}
	return renderTable([]string{"Category", "Badge", "Description"}, rows, nil)
}
