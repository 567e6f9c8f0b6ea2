package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"podfinder/internal/search"
)

var runQueryCmd = &cobra.Command{
	Use:   "run-query <id>",
	Short: "Execute one saved search now, regardless of its schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIDArg(args[0])
		if err != nil {
			return err
		}

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()

		svc, err := env.searchService()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		query, err := env.store.GetQuery(ctx, id)
		if err != nil {
			return describeNotFound(err, id)
		}

		summary, err := svc.RunQuery(ctx, query, runOptions(cmd, env))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatSummary(summary))
		return nil
	},
}

var runDueCmd = &cobra.Command{
	Use:   "run-due",
	Short: "Execute every saved search whose schedule has elapsed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()

		svc, err := env.searchService()
		if err != nil {
			return err
		}

		results, err := svc.RunDue(cmd.Context(), runOptions(cmd, env))
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No queries due.")
			return nil
		}

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "Query %d %q failed: %v\n", res.Query.ID, res.Query.Term, res.Err)
				continue
			}
			fmt.Fprint(cmd.OutOrStdout(), formatSummary(res.Summary))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d due queries failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{runQueryCmd, runDueCmd} {
		cmd.Flags().String("market", "", "two-letter market code sent to the search API")
		cmd.Flags().Int("limit", 50, "results per page requested from the API")
		cmd.Flags().Int("max-pages", 4, "maximum pages fetched per query")
	}
}

func runOptions(cmd *cobra.Command, e *env) search.Options {
	market, _ := cmd.Flags().GetString("market")
	limit, _ := cmd.Flags().GetInt("limit")
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	return search.Options{
		Market:   e.market(market),
		Limit:    limit,
		MaxPages: maxPages,
	}
}
