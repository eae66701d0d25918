package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adiprasetyo/biolock/internal/biolock/acquire"
	"github.com/adiprasetyo/biolock/internal/biolock/device"
	"github.com/adiprasetyo/biolock/internal/biolock/embeddings"
	"github.com/adiprasetyo/biolock/internal/biolock/evidence"
	"github.com/adiprasetyo/biolock/internal/biolock/session"
	"github.com/adiprasetyo/biolock/internal/biolock/types"
	"github.com/adiprasetyo/biolock/internal/httpapi"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the door controller",
	Long:  "Starts the session controller, the fingerprint and camera pollers, the evidence pruner, and the local admin API. Blocks until SIGINT or SIGTERM.",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "biolock ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	embStore, err := embeddings.OpenFile(cfg.EmbeddingsPath)
	if err != nil {
		return fmt.Errorf("open embeddings: %w", err)
	}
	reloader, err := embeddings.NewReloader(embStore, logger)
	if err != nil {
		return fmt.Errorf("watch embeddings: %w", err)
	}

	saver, err := evidence.NewDir(cfg.UnknownDir)
	if err != nil {
		return fmt.Errorf("open evidence dir: %w", err)
	}

	// Peripherals degrade to no-ops when absent so the controller and
	// admin API stay up on partial hardware.
	lock := device.DegradeLock(nil, logger)
	display := device.DegradeDisplay(device.LogDisplay{Logger: logger}, logger)
	sensor := device.DegradeSensor(nil, logger)
	camera := device.DegradeCamera(nil, logger)
	embedder := device.DegradeEmbedder(nil, logger)
	defer sensor.Close()
	defer camera.Close()

	ctrl := session.New(session.Config{
		FaceTimeout:    cfg.FaceTimeout(),
		UnknownGrace:   cfg.UnknownGrace(),
		UnlockDuration: cfg.UnlockDuration(),
		MatchThreshold: cfg.FaceMatchThreshold,
	}, session.Deps{
		Identities: st.Identities,
		Embeddings: embStore,
		Embedder:   embedder,
		Lock:       lock,
		Display:    display,
		Events:     st.Events,
		Captures:   st.Captures,
		Evidence:   saver,
		Logger:     logger,
	})

	fingerPoller := &acquire.FingerprintPoller{
		Sensor:   sensor,
		Interval: cfg.ScanInterval(),
		Logger:   logger,
		OnResult: func(res device.ScanResult, at time.Time) {
			ctrl.Submit(session.FingerprintEvent{TemplateID: res.TemplateID, OK: res.OK, At: at})
		},
	}
	framePoller := &acquire.FramePoller{
		Camera:   camera,
		Interval: cfg.FrameInterval(),
		Logger:   logger,
		OnFrame: func(frame types.Frame) {
			ctrl.Submit(session.FrameEvent{Frame: frame})
		},
	}

	pruner := evidence.NewPruner(st.Captures, evidence.PrunerConfig{
		RetentionDays: cfg.CaptureRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Identities: st.Identities,
		Events:     st.Events,
		Captures:   st.Captures,
		Abort: func(reason string) {
			ctrl.Submit(session.AbortEvent{Reason: reason, At: time.Now().UTC()})
		},
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("controller error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		fingerPoller.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		framePoller.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reloader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("embeddings reloader error: %v", err)
		}
	}()

	pruner.Start(ctx)

	go func() {
		logger.Printf("admin api listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("admin api error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	pruner.Stop()
	wg.Wait()
	return nil
}
