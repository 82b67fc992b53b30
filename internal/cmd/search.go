package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seguelabs/segue/internal/catalog"
	"github.com/seguelabs/segue/internal/config"
	"github.com/seguelabs/segue/internal/resolver"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank catalog tracks against a track reference",
	Long: `Search scores the catalog exactly the way the engine resolves intent
text, so you can check where "mix in <something>" would land before
sending it live.

Queries take free text plus optional pins and filters:

  segue search blue monday
  segue search title:blue artist:orgy
  segue search techno bpm:120..130
  segue search '"one more time"'

A leading * marks the track an unqualified mix_in would pick. No marker
means the best score is below the selection threshold or too close to
the runner-up, and the intent would be held instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var (
	searchCatalog string
	searchLimit   int
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchCatalog, "catalog", "", "catalog file (overrides SEGUE_CATALOG)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "max results to show")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if searchCatalog != "" {
		cfg.CatalogPath = searchCatalog
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	res := resolver.New(cat, cfg.Threshold)
	out := cmd.OutOrStdout()

	query := strings.Join(args, " ")
	matches := res.Query(query)
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}
	if searchLimit > 0 && len(matches) > searchLimit {
		matches = matches[:searchLimit]
	}

	_, resolveErr := res.Resolve(query)
	for i, m := range matches {
		marker := " "
		if i == 0 && resolveErr == nil {
			marker = "*"
		}
		t := m.Track
		line := fmt.Sprintf("%s %.2f  %s", marker, m.Confidence, t.Title)
		if t.Artist != "" {
			line += " / " + t.Artist
		}
		if t.BPM > 0 {
			line += fmt.Sprintf("  %.0f bpm", t.BPM)
		}
		if t.Key.Known() {
			line += "  " + t.Key.String()
		}
		if t.Energy > 0 {
			line += fmt.Sprintf("  E%d", t.Energy)
		}
		fmt.Fprintln(out, line)
	}
	if resolveErr != nil {
		fmt.Fprintf(out, "\nUnqualified mix_in would hold: %v\n", resolveErr)
	}
	return nil
}
