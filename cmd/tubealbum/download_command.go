package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/handiism/tubealbum/internal/config"
	"github.com/handiism/tubealbum/internal/download"
	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/pipeline"
	"github.com/handiism/tubealbum/internal/transcode"
	"github.com/handiism/tubealbum/internal/youtube"
)

type downloadOptions struct {
	url          string
	output       string
	concurrency  int
	format       string
	source       string
	playlist     bool
	verbose      bool
	dryRun       bool
	overwrite    bool
	installYTDLP bool
}

func (o *downloadOptions) bindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.url, "url", "", "YouTube playlist URL to download")
	flags.StringVarP(&o.output, "output", "o", "", "Output directory (overrides config; {artist}/{album} is appended)")
	flags.IntVarP(&o.concurrency, "concurrency", "j", 0, "Number of items processed in parallel (overrides config)")
	flags.StringVarP(&o.format, "format", "f", "", "Target audio format: mp3 (tagged), or m4a, aac, opus, ogg, flac, wav with tagging disabled")
	flags.StringVar(&o.source, "source", "", "Media backend: native or ytdlp")
	flags.BoolVar(&o.playlist, "playlist", false, "Create playlist file")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Show verbose output")
	flags.BoolVar(&o.dryRun, "dry-run", false, "List the playlist items without downloading")
	flags.BoolVar(&o.overwrite, "overwrite", false, "Replace tracks from earlier runs instead of saving \"<title> (2)\" copies")
	flags.BoolVar(&o.installYTDLP, "install-ytdlp", false, "Download a yt-dlp binary when the ytdlp backend cannot find one")
}

// apply copies explicitly set flags over settings.
func (o *downloadOptions) apply(cmd *cobra.Command, settings *config.Settings) {
	flags := cmd.Flags()
	if o.output != "" {
		settings.OutputPath = filepath.Join(o.output, "{artist}", "{album}")
	}
	if flags.Changed("concurrency") {
		settings.Concurrency = o.concurrency
	}
	if o.format != "" {
		settings.TargetFormat = strings.ToLower(strings.TrimPrefix(o.format, "."))
	}
	if o.source != "" {
		settings.Source = strings.ToLower(o.source)
	}
	if o.playlist {
		settings.CreatePlaylist = true
	}
	if o.overwrite {
		settings.OverwriteExisting = true
	}
}

func newDownloadCommand(cc *commandContext) *cobra.Command {
	opts := &downloadOptions{}
	cmd := &cobra.Command{
		Use:   "download <playlist-url>",
		Short: "Download an album playlist (default command)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, cc, opts, args)
		},
	}
	opts.bindFlags(cmd)
	return cmd
}

func runDownload(cmd *cobra.Command, cc *commandContext, opts *downloadOptions, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	url := opts.url
	if url == "" && len(args) > 0 {
		url = args[0]
	}
	if strings.TrimSpace(url) == "" {
		return errors.New("a playlist URL is required")
	}

	settings, err := cc.loadSettings()
	if err != nil {
		return err
	}
	opts.apply(cmd, settings)
	if err := settings.Validate(); err != nil {
		return err
	}

	logger, err := cc.newLogger(settings)
	if err != nil {
		return err
	}

	if !opts.dryRun {
		if err := preflight(cmd, settings, opts); err != nil {
			return err
		}
	}

	managerOpts := []download.Option{download.WithLogger(logger)}
	store, err := cc.openHistory(settings)
	if err != nil {
		logger.Warn("history disabled", logging.Error(err))
	} else if store != nil {
		defer store.Close()
		managerOpts = append(managerOpts, download.WithHistory(store))
	}

	printer := newProgressPrinter(out, opts.verbose)
	manager := download.NewManager(settings, printer.print, managerOpts...)

	printer.header("tubealbum")
	if err := manager.Initialize(ctx, url); err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderItems(manager))
		fmt.Fprintf(out, "\n[Dry run - not downloading] Output folder: %s\n", manager.Album().OutputDir)
		return nil
	}

	fmt.Fprintln(out)
	printer.line(download.LevelInfo, "Starting downloads...")
	fmt.Fprintln(out)

	summary, err := manager.StartDownloads(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSummary(summary))
	if len(summary.Failures) > 0 {
		fmt.Fprintln(out, renderFailures(summary.Failures))
	}
	if summary.RunID != "" {
		fmt.Fprintf(out, "Run id: %s\n", summary.RunID)
	}

	if summary.AllFailed() && ctx.Err() == nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("all %d tracks failed", summary.Total)}
	}
	return nil
}

// preflight checks the external tools a download needs.
func preflight(cmd *cobra.Command, settings *config.Settings, opts *downloadOptions) error {
	if err := transcode.NewFFmpeg(settings.FFmpegPath, settings.AudioBitrate, nil).Available(); err != nil {
		return &pipeline.ConfigError{Field: "ffmpeg_path", Reason: err.Error()}
	}
	if settings.Source == config.SourceYTDLP && opts.installYTDLP && settings.YTDLPPath == "" {
		if err := youtube.EnsureYTDLP(cmd.Context()); err != nil {
			return fmt.Errorf("install yt-dlp: %w", err)
		}
	}
	return nil
}

// progressPrinter writes manager events, one per line. Emoji prefixes are
// used only when out is a terminal.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	emoji   bool
}

func newProgressPrinter(out io.Writer, verbose bool) *progressPrinter {
	return &progressPrinter{out: out, verbose: verbose, emoji: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *progressPrinter) print(event download.ProgressEvent) {
	if event.Level == download.LevelVerbose && !p.verbose {
		return
	}
	msg := event.Message
	if event.Total > 0 {
		width := len(strconv.Itoa(event.Total))
		msg = fmt.Sprintf("[%*d/%d] %s", width, event.Done, event.Total, msg)
	}
	p.line(event.Level, msg)
}

func (p *progressPrinter) line(level download.ProgressLevel, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, p.prefix(level)+msg)
}

func (p *progressPrinter) prefix(level download.ProgressLevel) string {
	if !p.emoji {
		switch level {
		case download.LevelError:
			return "ERROR "
		case download.LevelWarning:
			return "WARN  "
		case download.LevelSuccess:
			return "OK    "
		case download.LevelInfo:
			return "INFO  "
		default:
			return "      "
		}
	}
	switch level {
	case download.LevelError:
		return "❌ "
	case download.LevelWarning:
		return "⚠️  "
	case download.LevelSuccess:
		return "✅ "
	case download.LevelInfo:
		return "ℹ️  "
	default:
		return "   "
	}
}

func (p *progressPrinter) header(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.emoji {
		title = "🎵 " + title
	}
	fmt.Fprintln(p.out, title)
	fmt.Fprintln(p.out, strings.Repeat("━", 40))
	fmt.Fprintln(p.out)
}
