package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/AnyUserName/pixconv/internal/acquire"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/AnyUserName/pixconv/internal/watch"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	watchOutDir   string
	watchTo       string
	watchFactor   float64
	watchQuality  int
	watchDebounce = watch.DefaultDebounce
)

var watchCmd = &cobra.Command{
	Use:   "watch <input_dir>",
	Short: "Convert images as they are dropped into a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutDir, "out", "o", "./pixconv_out", "output directory")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a file is converted")
	addConvertFlags(watchCmd, &watchTo, &watchFactor, &watchQuality)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd, watchTo, watchFactor, watchQuality)
	if err != nil {
		return err
	}

	conv := pipeline.NewConverter(acquire.NewHTTPFetcher(cfg.HTTPClient(), cfg.Fetch.MaxBytes))
	w, err := watch.New(watch.Config{
		InputDir:   args[0],
		OutputDir:  watchOutDir,
		TargetType: s.target,
		Factor:     s.factor,
		Quality:    s.quality,
		Debounce:   watchDebounce,
	}, conv)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for ev := range w.Events() {
			if ev.Err != nil {
				log.Error().Err(ev.Err).Str("file", ev.Source).Msg("conversion failed")
				continue
			}
			log.Info().Str("file", ev.Source).Str("out", ev.Output).Bool("fallback", ev.FellBack).Msg("converted")
		}
	}()

	log.Info().Str("dir", args[0]).Str("target", s.target).Stringer("factor", s.factor).Msg("watching")
	return w.Run(ctx)
}
