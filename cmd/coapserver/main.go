package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/edgecoap/internal/admin"
	"github.com/danmuck/edgecoap/internal/config"
	"github.com/danmuck/edgecoap/internal/observability"
	"github.com/danmuck/edgecoap/internal/resources"
	"github.com/danmuck/edgecoap/internal/server"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "cmd/coapserver/config.toml", "server config path")
	flag.Parse()

	observability.InitLogger("coapserver")
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	cfg, err := loadFileConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load server config")
	}
	log.Info().Str("path", *configPath).Str("addr", cfg.Addr).Msg("loaded server config")

	srv := newServer(cfg)
	adminSrv := admin.New(cfg.Name, cfg.AdminAddr, cfg.CorsOrigins,
		func() any { return srv.Stats() },
		func() bool { return srv.LocalAddr().IsValid() },
		admin.WithToken(cfg.AdminToken),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	g.Go(func() error {
		return adminSrv.ListenAndServe(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("coapserver terminated with error")
		os.Exit(1)
	}
	log.Info().Msg("coapserver stopped")
}

// newServer registers discovery first, then the example resources.
func newServer(cfg config.ServerConfig) *server.Server {
	router := server.NewRouter()
	router.Register(server.DiscoveryEndpoint(router))
	for _, ep := range resources.NewExampleData(cfg.ExampleData).Endpoints() {
		router.Register(ep)
	}
	log.Info().Str("links", string(router.Discovery())).Msg("endpoints registered")
	return server.New(config.ServerRuntime(cfg), router)
}
