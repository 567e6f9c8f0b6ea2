package cli

import (
	"fmt"
	"strings"
	"time"

	"podfinder/internal/model"
	"podfinder/internal/search"
)

const displayTime = "2006-01-02 15:04 UTC"

// formatQueryTable formats the saved searches for display.
func formatQueryTable(queries []model.SearchQuery) string {
	if len(queries) == 0 {
		return "No saved queries. Use 'podfinder add-query <term>' to add one.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d saved quer%s:\n", len(queries), plural(len(queries), "y", "ies"))
	for _, q := range queries {
		fmt.Fprintf(&b, "\n#%d %q  (%s)\n", q.ID, q.Term, q.Frequency)
		if q.LastRunAt == nil {
			b.WriteString("   never run, due now\n")
		} else {
			fmt.Fprintf(&b, "   last run %s", q.LastRunAt.Format(displayTime))
			if next := q.NextRunDue(); next != nil {
				fmt.Fprintf(&b, ", next due %s", next.Format(displayTime))
			}
			b.WriteString("\n")
		}
		if n := filterCount(&q); n > 0 {
			fmt.Fprintf(&b, "   %d filter%s\n", n, plural(n, "", "s"))
		}
	}
	return b.String()
}

// formatSummary formats the outcome of one query execution.
func formatSummary(s *search.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query %d %q: ", s.Query.ID, s.Query.Term)
	switch {
	case s.Baseline:
		fmt.Fprintf(&b, "first run, indexed %d base episode%s\n", s.CurrentCount, plural(s.CurrentCount, "", "s"))
	case len(s.NewEpisodes) == 0:
		b.WriteString("no new episodes\n")
	default:
		fmt.Fprintf(&b, "%d new episode%s\n", len(s.NewEpisodes), plural(len(s.NewEpisodes), "", "s"))
	}
	for i := range s.NewEpisodes {
		b.WriteString(formatEpisode(&s.NewEpisodes[i]))
	}
	fmt.Fprintf(&b, "   %d result%s kept, %d filtered out, %d stored in total\n",
		s.Processed, plural(s.Processed, "", "s"), s.Skipped, s.CurrentCount)
	return b.String()
}

// formatEpisode formats one stored episode.
func formatEpisode(ep *model.Episode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "   [%s] %s\n", orDash(ep.ReleaseDate), ep.Name)
	fmt.Fprintf(&b, "         %s", orDash(ep.ShowName))
	if ep.DurationMS > 0 {
		fmt.Fprintf(&b, "  (%s)", formatDuration(ep.DurationMS))
	}
	b.WriteString("\n")
	if ep.ExternalURL != "" {
		fmt.Fprintf(&b, "         %s\n", ep.ExternalURL)
	}
	return b.String()
}

// formatRunTable formats the recent execution history.
func formatRunTable(runs []model.SearchRun) string {
	if len(runs) == 0 {
		return "No runs recorded yet.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d run%s:\n", len(runs), plural(len(runs), "", "s"))
	for _, r := range runs {
		fmt.Fprintf(&b, "%s  #%d %q  ", r.RunAt.Format(displayTime), r.QueryID, r.Term)
		if r.Status == model.RunError {
			fmt.Fprintf(&b, "error: %s\n", r.ErrorMessage)
			continue
		}
		fmt.Fprintf(&b, "%d new of %d results\n", r.NewCount, r.TotalResults)
	}
	return b.String()
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func filterCount(q *model.SearchQuery) int {
	return len(q.ExcludeShows) + len(q.ExcludeTitles) + len(q.ExcludeDescriptions) +
		len(q.IncludeShows) + len(q.IncludeTitles) + len(q.IncludeDescriptions)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
