package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podfinder/internal/filter"
	"podfinder/internal/model"
	"podfinder/internal/storage"
)

var addQueryCmd = &cobra.Command{
	Use:   "add-query <term>",
	Short: "Save a new episode search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.TrimSpace(args[0])
		if term == "" {
			return errors.New("search term is empty")
		}

		query := model.SearchQuery{Term: term}
		if err := applyQueryFlags(cmd, &query); err != nil {
			return err
		}
		if query.Frequency == "" {
			query.Frequency = "weekly"
		}
		if err := model.ValidateFrequency(query.Frequency); err != nil {
			return err
		}

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()

		ctx := cmd.Context()
		if existing, err := env.store.FindQueryByTerm(ctx, term); err == nil {
			return fmt.Errorf("query %d already tracks %q", existing.ID, existing.Term)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if err := env.store.CreateQuery(ctx, &query); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added query %d: %q (%s)\n", query.ID, query.Term, query.Frequency)
		return nil
	},
}

var listQueriesCmd = &cobra.Command{
	Use:   "list-queries",
	Short: "List saved searches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()

		queries, err := env.store.ListQueries(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatQueryTable(queries))
		return nil
	},
}

var updateQueryCmd = &cobra.Command{
	Use:   "update-query <id>",
	Short: "Change a saved search",
	Long: "Change a saved search. Only the flags given on the command line are\n" +
		"applied; everything else keeps its stored value. Passing an empty value\n" +
		"to a filter flag clears that filter list.",
	Args: cobra.ExactArgs(1),
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

		ctx := cmd.Context()
		query, err := env.store.GetQuery(ctx, id)
		if err != nil {
			return describeNotFound(err, id)
		}

		if cmd.Flags().Changed("term") {
			term, _ := cmd.Flags().GetString("term")
			term = strings.TrimSpace(term)
			if term == "" {
				return errors.New("search term is empty")
			}
			if !strings.EqualFold(term, query.Term) {
				if existing, err := env.store.FindQueryByTerm(ctx, term); err == nil {
					return fmt.Errorf("query %d already tracks %q", existing.ID, existing.Term)
				} else if !errors.Is(err, storage.ErrNotFound) {
					return err
				}
			}
			query.Term = term
		}
		if err := applyQueryFlags(cmd, query); err != nil {
			return err
		}
		if err := model.ValidateFrequency(query.Frequency); err != nil {
			return err
		}

		if err := env.store.UpdateQuery(ctx, query); err != nil {
			return describeNotFound(err, id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated query %d: %q (%s)\n", query.ID, query.Term, query.Frequency)
		return nil
	},
}

var deleteQueryCmd = &cobra.Command{
	Use:   "delete-query <id>",
	Short: "Delete a saved search and everything recorded for it",
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

		if err := env.store.DeleteQuery(cmd.Context(), id); err != nil {
			return describeNotFound(err, id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted query %d\n", id)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{addQueryCmd, updateQueryCmd} {
		cmd.Flags().String("frequency", "", "how often the query is due (daily, weekly, biweekly, monthly, quarterly, Nd, Nw)")
		cmd.Flags().StringArray("exclude-show", nil, "drop episodes whose show matches the pattern")
		cmd.Flags().StringArray("exclude-title", nil, "drop episodes whose title matches the pattern")
		cmd.Flags().StringArray("exclude-description", nil, "drop episodes whose description matches the pattern")
		cmd.Flags().StringArray("include-show", nil, "keep only episodes whose show matches one of these patterns")
		cmd.Flags().StringArray("include-title", nil, "keep only episodes whose title matches one of these patterns")
		cmd.Flags().StringArray("include-description", nil, "keep only episodes whose description matches one of these patterns")
	}
	updateQueryCmd.Flags().String("term", "", "new search term")
}

// applyQueryFlags copies the frequency and filter flags that were explicitly
// set into the query, validating every pattern.
func applyQueryFlags(cmd *cobra.Command, query *model.SearchQuery) error {
	if cmd.Flags().Changed("frequency") {
		freq, _ := cmd.Flags().GetString("frequency")
		query.Frequency = strings.TrimSpace(freq)
	}

	lists := []struct {
		flag string
		dst  *[]string
	}{
		{"exclude-show", &query.ExcludeShows},
		{"exclude-title", &query.ExcludeTitles},
		{"exclude-description", &query.ExcludeDescriptions},
		{"include-show", &query.IncludeShows},
		{"include-title", &query.IncludeTitles},
		{"include-description", &query.IncludeDescriptions},
	}
	for _, l := range lists {
		if !cmd.Flags().Changed(l.flag) {
			continue
		}
		values, _ := cmd.Flags().GetStringArray(l.flag)
		var cleaned []string
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if err := filter.ValidatePattern(v); err != nil {
				return fmt.Errorf("--%s: %w", l.flag, err)
			}
			cleaned = append(cleaned, v)
		}
		*l.dst = cleaned
	}
	return nil
}

func describeNotFound(err error, id int64) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("query %d does not exist", id)
	}
	return err
}
