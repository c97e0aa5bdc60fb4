package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gotsd/cmd/gotsd/commands"
	"gotsd/internal/errs"
)

var rootCmd = &cobra.Command{
	Use:   "gotsd [files...]",
	Short: "gotsd - TypeScript declarations from WinMD metadata",
	Long: `gotsd renders the public types of WinMD assemblies (or JSON/YAML type model
snapshots) as TypeScript ambient declarations.

Examples:
  gotsd Windows.winmd > windows.d.ts
  gotsd --special-types -o out.d.ts a.winmd b.winmd
  gotsd --filter '^Windows\.Storage\.' Windows.winmd
  gotsd fetch                              # download Windows.winmd from nuget`,
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          commands.Render,
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./gotsd.{yaml,toml,json} if present)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON instead of console text")
	commands.AddRenderFlags(rootCmd.Flags())

	rootCmd.AddCommand(commands.FetchCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errs.Is(err, errs.ErrInputNotFound) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		for _, hint := range errs.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
