// Command import-categories loads a category tree document into the
// database. The document is read from a local path or an s3://bucket/key
// URI; categories that already exist are skipped, so reruns are safe.
//
// Usage:
//
//	import-categories [-file data/categories.json]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"marketplace/internal/catalog"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/storage"
	"marketplace/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("category import failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	flags := flag.NewFlagSet("import-categories", flag.ContinueOnError)
	file := flags.String("file", cfg.CategoryImportFile, "import document: local path or s3://bucket/key")
	if err := flags.Parse(args); err != nil {
		return err
	}

	s3Client, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
	if err != nil {
		return fmt.Errorf("initialize S3 storage: %w", err)
	}
	var opener objectOpener
	if s3Client != nil {
		opener = s3Client
	}

	src, err := openSource(ctx, *file, opener)
	if err != nil {
		return err
	}
	entries, err := catalog.DecodeImport(src)
	src.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", *file, err)
	}

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return err
	}

	svc := catalog.NewService(store.NewCategoryStore(db))
	res, err := svc.Import(ctx, entries)
	if err != nil {
		return err
	}

	slog.Info("category import finished", "file", *file, "created", res.Created, "skipped", res.Skipped)
	fmt.Fprintf(stdout, "created %d, skipped %d\n", res.Created, res.Skipped)
	return nil
}

// objectOpener reads objects from S3. *storage.Client satisfies it.
type objectOpener interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// openSource opens path, which is either a local file or an s3:// URI.
// opener may be nil when S3 is not configured.
func openSource(ctx context.Context, path string, opener objectOpener) (io.ReadCloser, error) {
	if bucket, key, ok := storage.ParseURI(path); ok {
		if opener == nil {
			return nil, fmt.Errorf("%s: S3 storage is not configured", path)
		}
		return opener.Open(ctx, bucket, key)
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("category import file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
