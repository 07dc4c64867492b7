package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reoring/statecodec/internal/bounds"
	"github.com/reoring/statecodec/internal/config"
	"github.com/reoring/statecodec/internal/gen"
	"github.com/reoring/statecodec/internal/load"
	"github.com/reoring/statecodec/internal/resolve"
	"github.com/reoring/statecodec/internal/schema"
)

func generateCmd(args []string) {
	cfg, log := setup("generate", args, true)
	defer log.Sync() //nolint:errcheck
	if err := generateAll(context.Background(), cfg, cfg.Dirs, log); err != nil {
		fatalf("generate: %v", err)
	}
}

// generateAll runs the pipeline for dirs concurrently, at most cfg.Workers
// at a time. The first failure cancels directories not yet started.
func generateAll(ctx context.Context, cfg *config.Config, dirs []string, log *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := generateDir(cfg, dir)
			if err != nil {
				return fmt.Errorf("%s: %w", dir, err)
			}
			if out == "" {
				log.Info("nothing to generate", zap.String("dir", dir))
			} else {
				log.Info("generated", zap.String("file", out))
			}
			return nil
		})
	}
	return g.Wait()
}

// analysis is the pipeline output up to rendering.
type analysis struct {
	catalog *schema.Catalog
	bounds  *bounds.Set
}

func analyze(cfg *config.Config, dir string) (*analysis, error) {
	cat, err := load.Dir(dir, load.Options{Types: cfg.Types, Tag: cfg.Tag, Exclude: []string{cfg.Output}})
	if err != nil {
		return nil, err
	}
	resolved, err := resolve.Catalog(cat)
	if err != nil {
		return nil, err
	}
	set, err := bounds.Infer(resolved)
	if err != nil {
		return nil, err
	}
	return &analysis{catalog: resolved, bounds: set}, nil
}

// generateDir writes the output file of dir and returns its path, or ""
// when dir has no containers.
func generateDir(cfg *config.Config, dir string) (string, error) {
	a, err := analyze(cfg, dir)
	if err != nil {
		return "", err
	}
	if len(a.catalog.Containers) == 0 {
		return "", nil
	}
	code, err := gen.RenderFile(gen.File{
		Package:   a.catalog.Package,
		BuildTags: cfg.BuildTags,
		Catalog:   a.catalog,
		Bounds:    a.bounds,
	})
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, cfg.Output)
	if err := os.WriteFile(out, code, 0o644); err != nil {
		return "", fmt.Errorf("writing output: %w", err)
	}
	return out, nil
}
