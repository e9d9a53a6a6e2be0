package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnyUserName/pixconv/internal/acquire"
	"github.com/AnyUserName/pixconv/internal/blob"
	"github.com/AnyUserName/pixconv/internal/config"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/AnyUserName/pixconv/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP conversion service",
	Long: `Serves the conversion API over HTTP and websocket.

Routes: POST /api/convert, POST /api/convert/url, GET /api/image,
GET /api/formats, GET|DELETE /blob/:id, GET /ws/convert, GET /metrics,
GET /healthz.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	fetcher := acquire.NewHTTPFetcher(cfg.HTTPClient(), cfg.Fetch.MaxBytes)
	opts := server.Options{
		Converter:     pipeline.NewConverter(fetcher),
		Fetcher:       fetcher,
		BodyLimit:     cfg.Server.BodyLimitMB << 20,
		DefaultFactor: cfg.Convert.DefaultFactor,
		Quality:       cfg.Convert.Quality,
	}

	store, cleanup, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()
	opts.Store = store
	if mem, ok := store.(*blob.MemoryStore); ok {
		opts.Blobs = mem
	}

	log.Info().Str("blob", cfg.Blob.Backend).Stringer("codecs", opts.Converter.Registry()).Msg("starting")
	srv := server.New(opts)
	config.Watch(viper.GetViper(), func(c *config.Config) {
		zerolog.SetGlobalLevel(c.LogLevel())
		srv.SetDefaults(c.Convert.DefaultFactor, c.Convert.Quality)
	})

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
