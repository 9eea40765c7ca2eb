package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quickmail/internal/api"
	"quickmail/internal/auth"
	"quickmail/internal/biz"
	"quickmail/internal/conf"
	"quickmail/internal/data"
	"quickmail/internal/sanitize"
	"quickmail/internal/server"
)

var flagconf string

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// load config
	cfg, err := conf.Load(flagconf)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 手动依赖注入
	// data 层
	db, err := data.OpenDB(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	sessionRepo := data.NewSQLiteSessionRepo(db)
	fragmentRepo := data.NewSQLiteFragmentRepo(db)

	// auth 层
	redirectURL := cfg.Auth.GetRedirectURL(cfg.Server.BaseURL)
	oauthClient, err := auth.NewClient(ctx, &cfg.Auth, redirectURL)
	if err != nil {
		logger.Error("failed to init OAuth client", "error", err)
		os.Exit(1)
	}
	logger.Info("OAuth client ready", "redirect_url", redirectURL, "oidc", cfg.Auth.Issuer != "")

	// biz 层
	sessionUsecase := biz.NewSessionUsecase(sessionRepo, oauthClient)
	sessionMiddleware := auth.NewSessionMiddleware(sessionUsecase)
	fragmentUsecase := biz.NewFragmentUsecase(fragmentRepo, sanitize.Default())

	// api 层
	flows := api.NewFlowStore(cfg.Auth.FlowTTL, cfg.Auth.StateTTL)
	defer flows.Close()
	authHandler := api.NewAuthHandler(oauthClient, oauthClient.EmailFetcher(), flows, sessionUsecase, cfg.Server.SecureCookies, logger)
	fragmentHandler := api.NewFragmentHandler(fragmentUsecase, logger)
	router := api.NewRouter(authHandler, fragmentHandler, sessionMiddleware, logger)

	// serve until SIGINT/SIGTERM
	srv := server.NewHTTPServer(cfg.Server, router)
	if err := server.Run(ctx, srv, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
