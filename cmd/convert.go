package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnyUserName/pixconv/internal/acquire"
	"github.com/AnyUserName/pixconv/internal/blob"
	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	convertFrom    string
	convertTo      string
	convertFactor  float64
	convertQuality int
	convertOut     string
	convertURL     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file|url>",
	Short: "Convert a single image",
	Long: `Converts one image file or http(s) URL to the target type.

The source type is taken from --from, else from the file extension,
else detected from the bytes. With --url the result is stored in the
configured local or s3 blob backend and its URL is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertFrom, "from", "", "source MIME type hint")
	addConvertFlags(convertCmd, &convertTo, &convertFactor, &convertQuality)
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "output file (default <input>.<ext>)")
	convertCmd.Flags().BoolVar(&convertURL, "url", false, "store the result and print its URL")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd, convertTo, convertFactor, convertQuality)
	if err != nil {
		return err
	}

	if convertURL && cfg.Blob.Backend == "memory" {
		return errors.New("--url needs a persistent blob backend: the memory store is discarded when convert exits, set blob.backend to local or s3")
	}

	src := args[0]
	req := pipeline.Request{
		SourceType: convertFrom,
		TargetType: s.target,
		Factor:     s.factor,
	}
	isURL := strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
	if isURL {
		req.Input = acquire.FromURL(src)
	} else {
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		req.Input = acquire.FromBytes(data)
		if req.SourceType == "" {
			if f, ok := format.FromExtension(filepath.Ext(src)); ok {
				req.SourceType = f.ContentType()
			}
		}
	}

	ctx := cmd.Context()
	conv := pipeline.NewConverter(acquire.NewHTTPFetcher(cfg.HTTPClient(), cfg.Fetch.MaxBytes))
	opts := []pipeline.Option{
		pipeline.WithQuality(s.quality),
		pipeline.WithReporter(progressLogger{}),
	}
	start := time.Now()

	if convertURL {
		store, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		url, err := conv.ConvertToURL(ctx, req, store, opts...)
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	}

	res, err := conv.Convert(ctx, req, opts...)
	if err != nil {
		return err
	}

	out := convertOut
	if out == "" {
		out = defaultOutputPath(src, isURL, res)
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	log.Info().
		Str("out", out).
		Str("format", res.MIMEType).
		Str("input", formatBytes(int64(res.InputSize))).
		Str("output", formatBytes(int64(len(res.Data)))).
		Bool("fallback", res.FellBack).
		Dur("took", time.Since(start).Round(time.Millisecond)).
		Msg("converted")
	return nil
}

// defaultOutputPath swaps the input extension for the output's. A
// fallback keeps the source format's extension since the bytes are the
// source's.
func defaultOutputPath(src string, isURL bool, res *pipeline.Result) string {
	ext := res.Format.Extension()
	if res.FellBack {
		ext = res.SourceFormat.Extension()
	}
	base := src
	if isURL {
		base = filepath.Base(strings.SplitN(src, "?", 2)[0])
		if base == "" || base == "." || base == "/" {
			base = "image"
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + ext
}

// openStore builds the configured blob backend. The returned func
// releases it.
func openStore(ctx context.Context) (blob.Store, func(), error) {
	switch cfg.Blob.Backend {
	case "local":
		s, err := blob.NewLocalStore(cfg.Blob.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "s3":
		s, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:   cfg.S3.Bucket,
			Prefix:   cfg.S3.Prefix,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		s := blob.NewMemoryStore(cfg.Blob.BaseURL, cfg.Blob.TTL)
		if err := s.StartSweeper(cfg.Blob.Sweep); err != nil {
			return nil, nil, err
		}
		return s, s.Stop, nil
	}
}

// progressLogger logs conversion milestones at debug level.
type progressLogger struct{}

func (progressLogger) Report(percent int, message string) error {
	log.Debug().Int("percent", percent).Msg(message)
	return nil
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
