package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"bijbelzoek/api/internal/app"
	"bijbelzoek/api/internal/archive"
	"bijbelzoek/api/internal/chart"
	"bijbelzoek/api/internal/config"
	"bijbelzoek/api/internal/export"
	"bijbelzoek/api/internal/store"
)

// pipeline is the assembled export stack plus what serve needs around it.
type pipeline struct {
	exports *export.Service
	queue   *export.Queue
	appOpts []app.Option
	closers []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		_ = p.closers[i]()
	}
}

// buildPipeline wires the chart cache, renderers and, when online is set,
// the export log and archive.
func buildPipeline(ctx context.Context, cfg config.Config, logger *log.Logger, online bool) (*pipeline, error) {
	p := &pipeline{}

	var charts chart.Store
	if cfg.RedisURL != "" {
		redisStore, err := chart.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		charts = redisStore
		p.appOpts = append(p.appOpts, app.WithCheck("redis", redisStore.Ping))
		logger.Info("chart cache", "backend", "redis")
	} else {
		charts = chart.NewMemoryStore(cfg.ChartCacheSize)
		logger.Info("chart cache", "backend", "memory", "size", cfg.ChartCacheSize)
	}
	p.closers = append(p.closers, charts.Close)

	// Without a stats service only client-rendered charts have images.
	var renderer export.ChartRenderer
	if cfg.StatsBaseURL != "" {
		renderer = chart.NewRenderer(
			chart.NewStatsClient(cfg.StatsBaseURL, cfg.StatsTimeout),
			charts,
			chart.WithTTL(cfg.ChartCacheTTL),
		)
	}

	browser := export.NewBrowser(cfg.ChromePath)
	p.closers = append(p.closers, browser.Close)
	p.queue = export.NewQueue(cfg.PDFQueueWait, cfg.PDFJobTimeout)
	p.appOpts = append(p.appOpts, app.WithQueue(p.queue))

	var opts []export.Option
	if online && cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, db.Close)
		if err := store.ApplyMigrations(ctx, db, store.Migrations); err != nil {
			p.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		exportLog := store.NewExportLog(db)
		opts = append(opts, export.WithRecorder(exportLog))
		p.appOpts = append(p.appOpts, app.WithHistory(exportLog), app.WithCheck("database", exportLog.Ping))
		logger.Info("export log enabled")
	}
	if online && cfg.S3Endpoint != "" {
		bucket, err := archive.New(ctx, archive.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			p.Close()
			return nil, err
		}
		opts = append(opts, export.WithArchiver(bucket))
		p.appOpts = append(p.appOpts, app.WithCheck("archive", bucket.Ping))
		logger.Info("export archive enabled", "bucket", cfg.S3Bucket)
	}

	p.exports = export.NewService(
		export.NewBuilder(renderer),
		export.NewPDFRenderer(browser, p.queue, cfg.PDFMinBytes),
		export.NewDOCXRenderer(),
		opts...,
	)
	return p, nil
}
