package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/bibclean/pkg/api"
	"github.com/hazyhaar/bibclean/pkg/repair"
)

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	addr := fs.String("addr", "", "listen address (overrides config)")
	stdio := fs.Bool("mcp", false, "serve MCP over stdio instead of HTTP")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	cfg, logger := loadConfig(*cfgPath, *verbose)
	if *addr != "" {
		cfg.Addr = *addr
	}

	policy, err := cfg.Policy()
	if err != nil {
		fatal(logger, "invalid settings", err)
	}
	rules := repair.DefaultRules()
	if cfg.Repair.RulesFile != "" {
		if rules, err = repair.LoadRules(cfg.Repair.RulesFile); err != nil {
			fatal(logger, "load repair rules", err)
		}
	}
	svc := api.NewService(policy, rules, logger)

	mcpSrv := server.NewMCPServer("bibclean", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	api.RegisterMCPTools(mcpSrv, svc)

	if *stdio {
		logger.Info("serving MCP on stdio")
		if err := server.ServeStdio(mcpSrv); err != nil {
			fatal(logger, "mcp stdio", err)
		}
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpSrv))
	mux.Handle("/", api.NewRouter(svc))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("bibclean listening", "addr", cfg.Addr, "form", policy.Form.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "server error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
