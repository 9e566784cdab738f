package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"adoptiq/internal/agent"
	"adoptiq/internal/api"
	"adoptiq/internal/audit"
	"adoptiq/internal/cache"
	"adoptiq/internal/catalog"
	"adoptiq/internal/config"
	"adoptiq/internal/docs"
	"adoptiq/internal/executor"
	"adoptiq/internal/fault"
	"adoptiq/internal/format"
	"adoptiq/internal/generator"
	"adoptiq/internal/llm"
	"adoptiq/internal/metric"
	"adoptiq/internal/rbac"
	"adoptiq/internal/storage"
	"adoptiq/internal/template"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the adoptiq server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running adoptiq server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show adoptiq system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "adoptiq.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// newProvider picks the LLM backend from config. Without an API key
// the deterministic mock keeps template matching and docs answers
// working offline.
func newProvider(cfg config.Config, log *slog.Logger) llm.Provider {
	if cfg.LLM.APIKey == "" {
		log.Warn("no LLM API key configured, using offline mock provider")
		return &llm.Mock{}
	}
	return llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, log)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "adoptiq version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	// Refuse to double-start: probe the health endpoint first.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("adoptiq is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("adoptiq is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat := catalog.New()

	store, err := storage.Open(cfg.Storage.DataDir, cat, log)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	if cfg.Storage.Seed {
		if err := store.Seed(ctx); err != nil {
			return fmt.Errorf("seeding storage: %w", err)
		}
	}

	provider := newProvider(cfg, log)

	var docService *docs.Service
	if cfg.Docs.Dir != "" {
		docService = docs.New(provider, log)
		if err := docService.Load(cfg.Docs.Dir); err != nil {
			log.Warn("documentation index unavailable", "dir", cfg.Docs.Dir, "error", err)
			docService = nil
		} else {
			log.Info("documentation indexed", "documents", docService.Count())
		}
	}

	matcher := template.NewMatcher(log)
	gen := generator.New(provider, cat, store.Counts, cfg.Engine.MaxRows, log)
	filter := rbac.NewFilter(store, log)
	exec := executor.New(store, cat, cfg.Engine.MaxRows, cfg.QueryTimeout(), log)
	formatter := format.New(format.DefaultOptions(), log)
	faults := fault.NewHandler(2, 200*time.Millisecond, log)
	answerCache := cache.New(cache.Config{
		TTL:         cfg.CacheTTL(),
		MaxEntries:  cfg.Engine.CacheMaxEntries,
		CacheErrors: cfg.Engine.CacheErrors,
		Enabled:     true,
	}, log)
	auditor := audit.NewLogger(log)
	defer auditor.Close()
	metrics := metric.New()

	service := agent.New(agent.Deps{
		Matcher:   matcher,
		Generator: gen,
		Filter:    filter,
		Executor:  exec,
		Formatter: formatter,
		Faults:    faults,
		Cache:     answerCache,
		Docs:      docService,
		Audit:     auditor,
		Metrics:   metrics,
		Provider:  provider.Name(),
		Log:       log,
	})

	apiDeps := api.Deps{
		Service: service,
		Matcher: matcher,
		Cache:   answerCache,
		Audit:   auditor,
		Faults:  faults,
		Docs:    docService,
		Metrics: metrics,
		Token:   cfg.Server.Token,
		Limiter: api.NewLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		Log:     log,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(apiDeps),
	}

	// MCP server on stdio so agent clients can attach directly.
	mcpSrv := api.NewMCPServer(apiDeps)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("MCP stdio server error", "error", err)
		}
	}()
	log.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "adoptiq listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("adoptiq is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop adoptiq (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to adoptiq (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.LLM.APIKey == "" {
		printStatus("LLM", "offline mock (no API key)")
	} else {
		printStatus("LLM", "%s (%s)", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.Docs.Dir != "" {
		printStatus("Docs dir", "%s", cfg.Docs.Dir)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
