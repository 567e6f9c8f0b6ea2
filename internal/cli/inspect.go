package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"podfinder/internal/storage"
)

var listEpisodesCmd = &cobra.Command{
	Use:   "list-episodes <id>",
	Short: "Show the episodes stored for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIDArg(args[0])
		if err != nil {
			return err
		}
		order, err := episodeOrder(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		ascending, _ := cmd.Flags().GetBool("asc")

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()

		ctx := cmd.Context()
		query, err := env.store.GetQuery(ctx, id)
		if err != nil {
			return describeNotFound(err, id)
		}

		episodes, err := env.store.ListEpisodes(ctx, id, order, !ascending, limit)
		if err != nil {
			return err
		}
		total, err := env.store.CountEpisodes(ctx, id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Query %d: %q, %d episode(s) stored\n", query.ID, query.Term, total)
		for _, ep := range episodes {
			fmt.Fprint(out, formatEpisode(&ep))
		}
		return nil
	},
}

var recentRunsCmd = &cobra.Command{
	Use:   "recent-runs",
	Short: "Show the most recent executions across all queries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()

		runs, err := env.store.ListRecentRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatRunTable(runs))
		return nil
	},
}

func init() {
	listEpisodesCmd.Flags().Int("limit", 20, "maximum episodes to show (0 for all)")
	listEpisodesCmd.Flags().String("order", "release", "sort column: release or first (first time seen)")
	listEpisodesCmd.Flags().Bool("asc", false, "sort oldest first")

	recentRunsCmd.Flags().Int("limit", 10, "maximum runs to show")
}

func episodeOrder(cmd *cobra.Command) (storage.EpisodeOrder, error) {
	value, _ := cmd.Flags().GetString("order")
	switch storage.EpisodeOrder(value) {
	case storage.OrderByRelease:
		return storage.OrderByRelease, nil
	case storage.OrderByFirstSeen:
		return storage.OrderByFirstSeen, nil
	}
	return "", fmt.Errorf("invalid order %q: want release or first", value)
}
