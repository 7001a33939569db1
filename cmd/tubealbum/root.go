package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cc := &commandContext{}
	dl := &downloadOptions{}

	rootCmd := &cobra.Command{
		Use:   "tubealbum [playlist-url]",
		Short: "Download a YouTube album playlist as tagged audio files",
		Long: "tubealbum downloads every video of a YouTube (or YouTube Music) album playlist,\n" +
			"converts it to audio, tags it with the album metadata and cover art,\n" +
			"and writes the tracks to one folder per album. Existing files are kept:\n" +
			"a re-run saves \"<title> (2).mp3\" unless --overwrite is given.\n\n" +
			"For interactive mode, use: tubealbum-tui",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && dl.url == "" {
				return cmd.Help()
			}
			return runDownload(cmd, cc, dl, args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "", "Configuration file path (TOML or JSON)")
	rootCmd.PersistentFlags().StringVar(&cc.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&cc.logFormat, "log-format", "", "Log format: console or json")
	dl.bindFlags(rootCmd)

	rootCmd.AddCommand(newDownloadCommand(cc))
	rootCmd.AddCommand(newHistoryCommand(cc))
	rootCmd.AddCommand(newConfigCommand(cc))

	return rootCmd
}
