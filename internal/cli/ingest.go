package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RishiKendai/veritas/internal/extract"
	"github.com/caarlos0/env/v10"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// streamConfig is the part of the service configuration the ingest command needs
type streamConfig struct {
	RedisHost       string `env:"REDIS_HOST" envDefault:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	IngestStreamKey string `env:"REDIS_INGEST_STREAM_KEY" envDefault:"veritas:ingest"`
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest PATH...",
		Short: "Queue files for corpus ingestion",
		Long: `Ingest publishes each supported file, or every supported file of a directory,
to the Redis ingest stream read by the Veritas server.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := streamConfig{}
			if err := env.Parse(&cfg); err != nil {
				return fmt.Errorf("failed to parse environment: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			client := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisHost,
				Password: cfg.RedisPassword,
			})
			defer client.Close()

			files, err := collectFiles(args)
			if err != nil {
				return err
			}

			queued := 0
			for _, path := range files {
				id, err := publishFile(ctx, client, cfg.IngestStreamKey, path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", color.RedString("failed"), path, err)
					continue
				}
				queued++
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", color.GreenString("queued"), path, id)
			}

			if queued < len(files) {
				return fmt.Errorf("%d of %d files could not be queued", len(files)-queued, len(files))
			}
			return nil
		},
	}
}

// collectFiles expands directories into their supported files
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && extract.IsSupported(extract.FormatFromFilename(entry.Name())) {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	}

	return files, nil
}

// publishFile adds one ingestion entry to the stream
func publishFile(ctx context.Context, client redis.Cmdable, streamKey, path string) (string, error) {
	name := filepath.Base(path)
	format := extract.FormatFromFilename(name)
	if !extract.IsSupported(format) {
		return "", extract.ErrUnsupportedFormat
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"name":     name,
			"format":   format,
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString(data),
		},
	}).Result()
}
