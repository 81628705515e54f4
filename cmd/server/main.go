package main

import (
	"github.com/KaiserRuben/AI-Website-Workshop/internal/ai"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/config"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/cost"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/db"
	applog "github.com/KaiserRuben/AI-Website-Workshop/internal/log"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/server"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/service"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/ws"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	applog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	users := service.NewUserService(gdb)
	projects := service.NewProjectService(gdb)
	likes := service.NewLikeService(gdb)
	gov := cost.NewGovernor(gdb, cfg.MaxCostPerUser, cfg.MaxAPICallsPerMinute)

	registry := ws.NewRegistry()
	scheduler := ws.NewGalleryScheduler(registry, cfg.GalleryBatchInterval)

	llm := ai.NewAzureClient(cfg)
	orchestrator := ai.NewOrchestrator(llm, gov, registry, scheduler, projects, users)

	wsHandler := ws.NewHandler(registry, scheduler, orchestrator, projects, likes)
	h := server.NewHandler(cfg, gdb, users, projects, likes, gov)
	r := server.SetupRouter(cfg, gdb, h, wsHandler)

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
