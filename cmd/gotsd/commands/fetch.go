package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"gotsd/internal"
	"gotsd/internal/config"
	"gotsd/internal/metadata"
)

var fetchFlagKeys = map[string]string{
	"package":  config.KeyDownloadPackage,
	"log-json": config.KeyLogJSON,
}

// FetchCmd downloads the WinMD shipped in a nuget package.
var FetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download Windows.winmd from the latest Windows SDK contracts package",
	Long: `Download the newest stable release of a nuget package that carries WinMD
metadata and extract the .winmd file, preferring Windows.winmd.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, fetchFlagKeys)
		if err != nil {
			return err
		}
		log, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		downloader := metadata.Downloader{
			IndexURL: internal.Must(cmd.Flags().GetString("index-url")),
			Client:   &http.Client{Timeout: internal.Must(cmd.Flags().GetDuration("timeout"))},
			Log:      log,
		}
		dest := internal.Must(cmd.Flags().GetString("dest"))
		version, err := downloader.DownloadMetadata(cmd.Context(), cfg.DownloadPackage, dest)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s from %s %s\n", dest, cfg.DownloadPackage, version)
		return nil
	},
}

func init() {
	FetchCmd.Flags().String("package", config.Default().DownloadPackage, "Nuget package carrying the metadata")
	FetchCmd.Flags().String("dest", "Windows.winmd", "File to write the metadata to")
	FetchCmd.Flags().String("index-url", "", "Nuget service index (default: nuget.org)")
	FetchCmd.Flags().Duration("timeout", 5*time.Minute, "HTTP timeout per request")
}
