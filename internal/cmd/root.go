package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "segue",
	Short: "Beat-synchronized mixing engine driven by live intents",
	Long: `Segue runs a two-deck mixing session over a track catalog. Operators
steer it with intents (mix into a track, change energy, move key, bring
vocals in) and the engine quantizes every move to bar and phrase
boundaries so the mix never stumbles.

The serve command runs the engine with an HTTP console, an MP3 stream,
and a WebRTC feed. The search command ranks catalog tracks the same way
the engine resolves intent text, for checking references offline.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
