package cmd

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/AnyUserName/pixconv/internal/config"
	"github.com/AnyUserName/pixconv/internal/preset"
	"github.com/AnyUserName/pixconv/internal/shrink"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version    = "0.1.0"
	verbose    bool
	configFile string
	presetName string

	cfg     *config.Config
	presets *preset.Set
)

var rootCmd = &cobra.Command{
	Use:   "pixconv",
	Short: "Convert images between formats with lossy block shrinking",
	Long: `pixconv converts raster images between WebP, PNG, JPEG, GIF, AVIF,
BMP, TIFF, ICO, Farbfeld, PNM, QOI, TGA and Radiance HDR.

Before encoding, low-detail 64x64 blocks are shrunk and scaled back so
they compress better. If the result is larger than the input, the input
is returned unchanged.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./pixconv.{toml,yaml,json})")
	rootCmd.PersistentFlags().StringVarP(&presetName, "preset", "p", "", "named preset (see 'pixconv presets')")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"pixconv %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// setup configures logging, then loads config and presets.
func setup(cmd *cobra.Command, _ []string) error {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	var err error
	cfg, err = config.Load(viper.GetViper(), configFile)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	presets = preset.Builtin()
	if cfg.Presets.File != "" {
		if err := presets.LoadFile(cfg.Presets.File); err != nil {
			return err
		}
		log.Debug().Str("file", cfg.Presets.File).Msg("loaded presets")
	}
	return nil
}

// settings is the conversion setup shared by convert, batch and watch.
type settings struct {
	target  string
	factor  shrink.Factor
	quality int
	preset  string
}

// resolveSettings layers config defaults, then --preset, then explicit
// --to, --factor and --quality flags.
func resolveSettings(cmd *cobra.Command, to string, factor float64, quality int) (settings, error) {
	s := settings{
		target:  to,
		factor:  shrink.ParseFactor(&cfg.Convert.DefaultFactor),
		quality: cfg.Convert.Quality,
	}

	if presetName != "" {
		p, ok := presets.Get(presetName)
		if !ok {
			return s, fmt.Errorf("unknown preset %q", presetName)
		}
		s.preset = p.Name
		if !cmd.Flags().Changed("to") {
			s.target = p.Target
		}
		if p.Factor != nil {
			s.factor = p.ShrinkFactor()
		}
		if p.Quality > 0 {
			s.quality = p.Quality
		}
	}

	if cmd.Flags().Changed("factor") {
		if factor < 0 || factor > 1 {
			return s, fmt.Errorf("--factor must be within [0, 1], got %.2f", factor)
		}
		s.factor = shrink.ParseFactor(&factor)
	}
	if cmd.Flags().Changed("quality") {
		s.quality = quality
	}
	return s, nil
}

// addConvertFlags registers the flags resolveSettings reads.
func addConvertFlags(c *cobra.Command, to *string, factor *float64, quality *int) {
	c.Flags().StringVarP(to, "to", "t", "image/webp", "target MIME type")
	c.Flags().Float64VarP(factor, "factor", "f", shrink.DefaultFactor, "shrink factor 0-1 (1 = no shrink)")
	c.Flags().IntVarP(quality, "quality", "q", 0, "quality 1-100 (0 = encoder default)")
}
