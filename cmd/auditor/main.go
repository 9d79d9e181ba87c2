package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"siteauditor/internal/config"
	"siteauditor/internal/engine"
	"siteauditor/internal/model"
	"siteauditor/internal/storage"
	"siteauditor/internal/version"
)

func main() {
	configPath := flag.String("config", "config.json", "path to configuration file")
	targetURL := flag.String("url", "", "URL of the site to audit")
	flag.Parse()

	// Configure logging
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logrus.Infof("Site Auditor v%s starting...", version.Version)

	if *targetURL == "" {
		logrus.Fatal("No target URL provided, use -url")
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logrus.Infof("No config file at %s, using defaults", *configPath)
			cfg = config.Default()
		} else {
			logrus.Fatalf("Failed to load config: %v", err)
		}
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	logrus.Infof("Configuration loaded: maxPages=%d, maxDepth=%d, workers=%d",
		cfg.MaxPages, cfg.MaxDepth, cfg.WorkerConcurrency)

	// Initialize storage
	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	logrus.Infof("Database initialized: %s", cfg.DBPath)

	eng, err := engine.New(cfg, nil)
	if err != nil {
		logrus.Fatalf("Failed to initialize engine: %v", err)
	}

	// Cancel the audit on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audit, err := eng.StartAudit(ctx, *targetURL, nil)
	if err != nil {
		logrus.Fatalf("Failed to start audit: %v", err)
	}

	logrus.Infof("Audit %s started for %s", audit.ID, *targetURL)

	var report *model.AuditReport
	lastLogged := -1.0

	for ev := range audit.Events() {
		switch ev.Kind {
		case model.EventCrawlProgress:
			// Progress arrives per page, only log every 10%
			if ev.Fraction-lastLogged >= 0.10 || ev.Fraction == 1.0 {
				logrus.Infof("Crawl progress: %.0f%%", ev.Fraction*100)
				lastLogged = ev.Fraction
			}
		case model.EventStatus:
			logrus.Info(ev.Status)
		case model.EventError:
			logrus.Fatalf("Audit failed: %s", ev.Err)
		case model.EventFinished:
			report = ev.Report
		}
	}

	if report == nil {
		logrus.Fatal("Audit ended without a report")
	}

	if err := store.SaveReport(audit.ID, report); err != nil {
		logrus.Errorf("Failed to persist report: %v", err)
	} else {
		logrus.Infof("Report persisted: audit_id=%s", audit.ID)
	}

	logrus.Infof("Audit complete: score=%d grade=%s confidence=%d%% pages=%d findings=%d",
		report.OverallScore, report.Grade, report.Confidence, report.PagesCrawled, len(report.Findings))

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logrus.Fatalf("Failed to encode report: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))
}
