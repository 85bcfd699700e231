// Package app wires configuration into the running components shared by the
// server and the export command.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/youruser/creativeworkshop/internal/cache"
	"github.com/youruser/creativeworkshop/internal/config"
	"github.com/youruser/creativeworkshop/internal/export"
	imagepkg "github.com/youruser/creativeworkshop/internal/image"
	"github.com/youruser/creativeworkshop/internal/util"
	"github.com/youruser/creativeworkshop/internal/workshop"
)

type App struct {
	Config     *config.Config
	Log        *logrus.Logger
	Loader     workshop.Loader
	Registry   *workshop.Registry
	Resolver   *imagepkg.Resolver
	Fetcher    *imagepkg.Resolver
	Compositor *imagepkg.Compositor
	Exporter   *export.Exporter
	Batch      *export.Batch
	Sink       export.Sink

	closers []func() error
}

// NewLogger returns a JSON logrus logger at the configured level.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(new(logrus.JSONFormatter))
	log.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	if cfg.API.BaseURL == "" && cfg.API.DataDir == "" {
		return nil, fmt.Errorf("api.base_url or api.data_dir is required")
	}
	a := &App{Config: cfg, Log: log}

	var opts []imagepkg.ResolverOption
	opts = append(opts, imagepkg.WithLogger(log))
	var sourceCache imagepkg.Cache = cache.NewMemory(cache.DefaultMemoryEntries)
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedis(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, log)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pingCtx)
		cancel()
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using in-memory image cache")
			rc.Close()
		} else {
			sourceCache = rc
			a.closers = append(a.closers, rc.Close)
		}
	}
	opts = append(opts, imagepkg.WithCache(sourceCache))

	a.Resolver = imagepkg.NewResolver(cfg.API.ProxyURL, cfg.API.Timeout, opts...)
	// The proxy endpoint fetches upstream directly, public addresses only.
	fetchOpts := append([]imagepkg.ResolverOption{}, opts...)
	fetchOpts = append(fetchOpts, imagepkg.WithHTTPClient(util.NewPublicClient(cfg.API.Timeout)))
	a.Fetcher = imagepkg.NewResolver("", cfg.API.Timeout, fetchOpts...)

	fonts, err := imagepkg.NewFontBook()
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	if cfg.Fonts.Dir != "" {
		n, err := fonts.LoadDir(cfg.Fonts.Dir)
		if err != nil {
			return nil, fmt.Errorf("load fonts from %s: %w", cfg.Fonts.Dir, err)
		}
		log.WithField("count", n).Info("registered font files")
	}

	a.Sink, err = newSink(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.API.DataDir != "" {
		a.Loader = workshop.NewDirLoader(cfg.API.DataDir)
	} else {
		a.Loader = workshop.NewClient(cfg.API.BaseURL, cfg.API.Timeout, log)
	}
	a.Registry = workshop.NewRegistry(a.Loader)
	a.Compositor = imagepkg.NewCompositor(a.Resolver, fonts, log)
	a.Exporter = export.NewExporter(a.Compositor)
	a.Batch = export.NewBatch(a.Exporter, a.Sink, export.Options{
		Pause:        cfg.Export.Pause,
		WaitCeiling:  cfg.Export.WaitCeiling,
		PollInterval: cfg.Export.PollInterval,
	}, log)
	return a, nil
}

func newSink(ctx context.Context, cfg *config.Config) (export.Sink, error) {
	switch cfg.Export.Sink {
	case config.SinkS3:
		return export.NewBucketSink(ctx, export.BucketConfig{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Prefix:    "exports",
		})
	default:
		return export.NewDirSink(cfg.Export.Dir)
	}
}

// Preload reads every image header of the session and reports its natural
// size to the tracker, standing in for the browser's load events. The fetched
// bytes stay in the source cache for the export that follows.
func (a *App) Preload(ctx context.Context, s *workshop.Session) {
	for i, img := range s.Composition.Images {
		w, h, err := a.Resolver.Size(ctx, img.Source())
		if err != nil {
			a.Log.WithError(err).WithFields(logrus.Fields{
				"composition": s.Composition.ID,
				"image":       i + 1,
			}).Warn("image failed to load")
			s.Tracker.MarkFailed(i)
			continue
		}
		s.Tracker.MarkLoaded(i, float64(w), float64(h))
	}
}

// Close releases external clients. It is safe to call more than once.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.Log.WithError(err).Warn("close failed")
		}
	}
	a.closers = nil
}
