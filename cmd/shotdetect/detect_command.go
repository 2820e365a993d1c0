package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shotdetect/internal/analysis"
	"shotdetect/internal/config"
	"shotdetect/internal/live"
	"shotdetect/internal/logging"
	"shotdetect/internal/preflight"
	"shotdetect/internal/services"
	"shotdetect/internal/shot"
	"shotdetect/internal/store"
)

type detectFlags struct {
	threshold  float64
	firstImage bool
	lastImage  bool
	audio      bool
	windowMs   int
	output     string
	live       bool
	json       bool
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var flags detectFlags

	cmd := &cobra.Command{
		Use:   "detect <file>...",
		Short: "Detect shot boundaries in one or more video files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCfg, err := applyDetectFlags(cmd, *cfg, flags)
			if err != nil {
				return err
			}
			return runDetect(cmd, ctx, &runCfg, flags, args)
		},
	}

	cmd.Flags().Float64VarP(&flags.threshold, "threshold", "t", 0, "Shot boundary threshold (0-100)")
	cmd.Flags().BoolVar(&flags.firstImage, "first-image", false, "Save the first frame of every shot")
	cmd.Flags().BoolVar(&flags.lastImage, "last-image", false, "Save the last frame of every shot")
	cmd.Flags().BoolVar(&flags.audio, "audio", true, "Extract the audio envelope")
	cmd.Flags().IntVar(&flags.windowMs, "window-ms", 0, "Audio envelope window in milliseconds")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output directory for run artifacts")
	cmd.Flags().BoolVar(&flags.live, "live", false, "Serve live scores over WebSocket while detecting")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print run reports as JSON")
	return cmd
}

// applyDetectFlags overlays explicitly set flags on a copy of cfg.
func applyDetectFlags(cmd *cobra.Command, cfg config.Config, flags detectFlags) (config.Config, error) {
	changed := cmd.Flags().Changed
	if changed("threshold") {
		cfg.Detection.Threshold = flags.threshold
	}
	if changed("first-image") {
		cfg.Detection.CaptureBeginImage = flags.firstImage
	}
	if changed("last-image") {
		cfg.Detection.CaptureEndImage = flags.lastImage
	}
	if changed("audio") {
		cfg.Audio.Enabled = flags.audio
	}
	if changed("window-ms") {
		cfg.Detection.AudioWindowMs = flags.windowMs
	}
	if changed("live") {
		cfg.Live.Enabled = flags.live
	}
	if output := strings.TrimSpace(flags.output); output != "" {
		expanded, err := config.ExpandPath(output)
		if err != nil {
			return cfg, fmt.Errorf("resolve output path: %w", err)
		}
		cfg.Paths.OutputDir = expanded
		if err := cfg.EnsureDirectories(); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, services.Wrap(services.ErrConfiguration, "cli", "detect flags", "", err)
	}
	return cfg, nil
}

func runDetect(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, flags detectFlags, inputs []string) error {
	for _, result := range preflight.DirectoryChecks(cfg) {
		if !result.Passed {
			return fmt.Errorf("%s: %s", result.Name, result.Detail)
		}
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := []analysis.Option{analysis.WithStore(st)}
	if cfg.Live.Enabled {
		srv := live.New(logger)
		addr, err := srv.Start(cmd.Context(), cfg.Live.Bind)
		if err != nil {
			return services.Wrap(services.ErrSink, "cli", "start live server", cfg.Live.Bind, err)
		}
		defer srv.Close()
		fmt.Fprintf(cmd.ErrOrStderr(), "Live scores on ws://%s/ws\n", addr)
		opts = append(opts, analysis.WithLive(srv))
	}
	opts = append(opts, ctx.analysisOpts...)

	analyzer, err := analysis.New(cfg, logger, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	started := time.Now()
	var reports []analysis.Report
	processed, failed := 0, 0
	for _, input := range inputs {
		report, runErr := analyzer.Run(cmd.Context(), input)
		processed++
		if runErr != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", input, runErr)
		}
		if report.RunID != "" {
			if flags.json {
				reports = append(reports, report)
			} else if err := printReport(out, report); err != nil {
				return err
			}
		}
		if report.Interrupted || errors.Is(cmd.Context().Err(), context.Canceled) {
			break
		}
	}
	if flags.json {
		if reports == nil {
			reports = []analysis.Report{}
		}
		if err := writeJSON(cmd, reports); err != nil {
			return err
		}
	}

	if len(inputs) > 1 {
		notifyCtx := context.WithoutCancel(cmd.Context())
		if err := analyzer.NotifyBatch(notifyCtx, processed, failed, time.Since(started)); err != nil {
			logging.WarnWithContext(logger, "batch notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "batch summary was not delivered"),
			)
		}
	}

	if failed > 0 {
		if len(inputs) == 1 {
			return fmt.Errorf("detection failed for %s", inputs[0])
		}
		return fmt.Errorf("detection failed for %d of %d inputs", failed, len(inputs))
	}
	return nil
}

func printReport(w io.Writer, report analysis.Report) error {
	fmt.Fprintf(w, "Run %s  %s  %s\n", shortID(report.RunID), statusLabel(report.Status), filepath.Base(report.Input))
	fmt.Fprintf(w, "  %s shots, %s frames at %.3f fps in %s\n",
		formatCount(len(report.Shots)), formatCount(report.Frames), report.FPS, formatElapsed(report.Elapsed))
	if report.AudioWindows > 0 {
		fmt.Fprintf(w, "  %s audio windows\n", formatCount(report.AudioWindows))
	}
	if warnings := report.Warnings(); warnings > 0 {
		fmt.Fprintf(w, "  %s warnings (images %d, sinks %d, audio %d)\n",
			formatCount(warnings), report.ImageFailures, report.SinkFailures, report.AudioErrors)
	}
	if report.Interrupted {
		fmt.Fprintln(w, "  interrupted before end of stream")
	}
	fmt.Fprintf(w, "  output: %s\n", report.OutputDir)
	if len(report.Shots) == 0 {
		return nil
	}
	return writeShotTable(w, report.Shots)
}

func writeShotTable(w io.Writer, shots []shot.Shot) error {
	columns := []column{
		{title: "Shot", numeric: true},
		{title: "Start Frame", numeric: true},
		{title: "Start", numeric: true},
		{title: "Frames", numeric: true},
		{title: "Duration", numeric: true},
		{title: "Begin Image"},
		{title: "End Image"},
	}
	rows := make([][]string, 0, len(shots))
	for _, s := range shots {
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.ID),
			formatCount(s.StartFrame),
			formatTimecode(s.StartMs),
			formatCount(s.DurationFrames),
			formatTimecode(s.DurationMs),
			imageName(s.BeginImage),
			imageName(s.EndImage),
		})
	}
	return writeTable(w, columns, rows)
}

func imageName(path string) string {
	if path == "" {
		return "-"
	}
	return filepath.Base(path)
}
