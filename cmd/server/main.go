package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/nowatermark-go/api"
	"github.com/yourusername/nowatermark-go/api/handlers"
	"github.com/yourusername/nowatermark-go/internal/app"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"github.com/yourusername/nowatermark-go/internal/infrastructure"
	"github.com/yourusername/nowatermark-go/pkg/logger"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	daemon     = flag.Bool("daemon", false, "Detach and run the server in the background")
)

func main() {
	flag.Parse()

	if *daemon {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the current binary without -daemon in a new session
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	setSysProcAttr(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	if err := createDirectories(config); err != nil {
		return err
	}

	// Categorized files: pipeline transitions and application errors
	events, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Storage.LogsDir(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize event logger: %w", err)
	}
	defer events.Close()

	log.Info("Starting nowatermark server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("parser_endpoint", config.Parser.Endpoint),
		zap.String("media_dir", config.Storage.MediaDir()))

	repo, err := infrastructure.NewSQLiteHistoryRepository(config.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize history repository: %w", err)
	}
	defer repo.Close()

	parser := infrastructure.NewParseClient(&config.Parser, log)
	prober := infrastructure.NewHTTPMediaProbe(&config.Probe, log)
	materializer := infrastructure.NewLocalMaterializer(config.Storage.MediaDir(), &config.Download, log)
	library := infrastructure.NewDirectoryMediaLibrary(config.Storage.LibraryDir, log)

	pipeline := app.NewExtractionPipeline(
		parser,
		prober,
		materializer,
		library,
		app.NewHistorySync(repo, log),
		config,
		log,
	)
	pipeline.SetEventLogger(events)

	history := app.NewHistoryService(repo, materializer, library, &config.Download, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsubscribe := pipeline.Subscribe()
	defer unsubscribe()
	notifier := app.NewProgressNotifier(infrastructure.NewNotificationService(&config.Notification, log), log)
	go notifier.Run(ctx, updates)

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(pipeline, history, log, events, config.Storage.LogsDir())

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case err := <-serveErr:
		log.Error("HTTP server failed", zap.Error(err))
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	pipeline.Close()

	log.Info("Server exited")
	return nil
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Storage.BaseDir,
		config.Storage.MediaDir(),
		config.Storage.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
