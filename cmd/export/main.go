// Command export renders every image of a workshop composition at its
// original resolution and saves the results to the configured sink.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/youruser/creativeworkshop/internal/app"
	"github.com/youruser/creativeworkshop/internal/config"
	"github.com/youruser/creativeworkshop/internal/workshop"
)

func main() {
	var (
		id         = pflag.StringP("id", "i", "", "composition id")
		name       = pflag.String("name", "", "viewer name for {{username}}")
		phone      = pflag.String("phone", "", "viewer phone number for {{usernumber}}")
		logo       = pflag.String("logo", "", "viewer logo URL or data URI for {{userLogo}}")
		viewerFile = pflag.String("viewer", "", "JSON file holding the viewer object")
		out        = pflag.StringP("out", "o", "", "write PNGs to this directory instead of the configured sink")
		dataDir    = pflag.String("data", "", "read compositions from this directory of <id>.json files")
		all        = pflag.Bool("all", false, "export every composition found in --data")
	)
	pflag.Parse()

	if *id == "" && !(*all && *dataDir != "") {
		fmt.Fprintln(os.Stderr, "export: --id, or --all with --data, is required")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %s", err)
	}
	if *out != "" {
		cfg.Export.Sink = config.SinkDir
		cfg.Export.Dir = *out
	}
	if *dataDir != "" {
		cfg.API.DataDir = *dataDir
	}
	log := app.NewLogger(cfg.Log.Level)

	v, err := loadViewer(*viewerFile, *name, *phone, *logo)
	if err != nil {
		log.Fatalf("viewer: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("startup: %s", err)
	}
	defer a.Close()

	ids := []string{*id}
	if *all {
		if ids, err = workshop.NewDirLoader(cfg.API.DataDir).IDs(); err != nil {
			log.Fatalf("list compositions: %s", err)
		}
	}

	failed := false
	for _, cid := range ids {
		if ctx.Err() != nil {
			failed = true
			break
		}
		if !exportComposition(ctx, a, cid, v) {
			failed = true
		}
	}
	if failed {
		a.Close()
		stop()
		os.Exit(1)
	}
}

// exportComposition preloads and exports one composition, reporting whether
// every image was saved.
func exportComposition(ctx context.Context, a *app.App, id string, v workshop.Viewer) bool {
	log := a.Log.WithField("composition", id)
	s, err := a.Registry.Session(ctx, id)
	if err != nil {
		log.WithError(err).Error("load composition")
		return false
	}
	a.Preload(ctx, s)

	report := a.Batch.ExportAll(ctx, s, v)
	for _, r := range report.Results {
		entry := log.WithField("image", r.Index+1)
		if r.Err != nil {
			entry.WithError(r.Err).Error("export failed")
			continue
		}
		entry.WithField("location", r.Location).Info("exported")
	}
	return report.Completed && report.Failed == 0
}

// loadViewer reads the optional viewer file, then applies flag overrides.
func loadViewer(path, name, phone, logo string) (workshop.Viewer, error) {
	v := workshop.DefaultViewer()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return v, err
		}
		if v, err = workshop.ParseViewer(data); err != nil {
			return v, err
		}
	}
	if name != "" {
		v.Name = name
	}
	if phone != "" {
		v.PhoneNumber = phone
	}
	if logo != "" {
		v.ProfileImage = &logo
	}
	return v, nil
}
