package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/robfig/cron/v3"

	"uav_planner/internal/airspace"
	"uav_planner/internal/api"
	"uav_planner/internal/config"
	"uav_planner/internal/mission"
	"uav_planner/internal/planner"
	"uav_planner/internal/risk"
	"uav_planner/internal/sim"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	region := cfg.Region.BBox()
	surface := airspace.NewSurface(
		region,
		&airspace.StaticZoneProvider{Zones: airspace.DefaultZones()},
		&airspace.SyntheticWeatherProvider{WindDirection: 270},
		airspace.DefaultTerrain(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := surface.Refresh(ctx); err != nil {
		log.Fatalf("initial airspace refresh failed: %v", err)
	}
	cancel()

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.RefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := surface.Refresh(ctx); err != nil {
			log.Warnf("scheduled airspace refresh failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid refresh schedule %q: %v", cfg.RefreshSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	engine := risk.NewEngine(cfg.Risk, nil)
	optimizer := planner.New(cfg.Optimizer, engine, surface)
	simulator := sim.New(cfg.Sim, engine, surface)

	store := mission.NewStore(cfg.SavePath)
	if err := store.Load(""); err == nil {
		log.Infof("loaded %d saved missions", store.Len())
	} else if !os.IsNotExist(err) {
		log.Warnf("could not load saved missions: %v", err)
	}

	handler := api.New(store, optimizer, simulator, engine, surface)

	log.Infof("server listening on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}
