package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List available presets",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Println()
		for _, name := range presets.Names() {
			p, _ := presets.Get(name)
			quality := "default"
			if p.Quality > 0 {
				quality = fmt.Sprint(p.Quality)
			}
			fmt.Printf("  %-12s %-14s factor %-6s quality %s\n", name, p.Target, p.ShrinkFactor(), quality)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
