package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonicscribe/sonicscribe/internal/config"
	"github.com/sonicscribe/sonicscribe/internal/httpapi"
	"github.com/sonicscribe/sonicscribe/internal/logging"
	"github.com/sonicscribe/sonicscribe/internal/metrics"
	"github.com/sonicscribe/sonicscribe/internal/wsserver"
	"github.com/sonicscribe/sonicscribe/pkg/asrengine"
	"github.com/sonicscribe/sonicscribe/pkg/session"
	"github.com/sonicscribe/sonicscribe/pkg/vadengine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m, err = metrics.New()
		if err != nil {
			log.Fatalf("failed to init metrics: %v", err)
		}
	}

	vadEngine, err := buildVADEngine(cfg)
	if err != nil {
		log.Fatalf("failed to build VAD engine: %v", err)
	}

	asrEngine, err := buildASREngine(cfg)
	if err != nil {
		log.Fatalf("failed to build ASR engine: %v", err)
	}

	logger.Info("configured engines", "vad_provider", vadEngine.Name(), "asr_provider", asrEngine.Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newSession := func(parentCtx context.Context, clientID string, emit session.Emitter) *session.Session {
		sess := session.New(parentCtx, clientID, cfg.Audio, vadEngine, asrEngine, emit, logger)
		if m != nil {
			m.ConnectionOpened(parentCtx)
			sess.SetMetrics(m)
		}
		return sess
	}

	wsHandler := wsserver.New(
		cfg.Audio,
		logger,
		newSession,
		time.Duration(cfg.IdleTimeoutSeconds)*time.Second,
		time.Duration(cfg.ReadTimeoutSeconds)*time.Second,
	)

	router := httpapi.NewRouter(cfg.Audio, vadEngine, asrEngine, logger, httpapi.EngineStatus{
		VADProvider: vadEngine.Name(),
		ASRProvider: asrEngine.Name(),
	}, nil)

	mux := router.Mux()
	mux.Handle("/ws", wsHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr, "https", cfg.UseHTTPS)
		var serveErr error
		if cfg.UseHTTPS {
			serveErr = httpServer.ListenAndServeTLS(cfg.SSLCert, cfg.SSLKey)
		} else {
			serveErr = httpServer.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("server stopped", "error", serveErr)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	if m != nil {
		if err := m.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown failed", "error", err)
		}
	}
}

func buildVADEngine(cfg *config.Config) (session.VADEngine, error) {
	switch cfg.VADProvider {
	case "remote":
		if cfg.VADRemoteURL == "" {
			return nil, fmt.Errorf("VAD_REMOTE_URL must be set for remote VAD provider")
		}
		return vadengine.NewRemoteEngine(cfg.VADRemoteURL), nil
	case "energy":
		fallthrough
	default:
		return vadengine.NewEnergyEngine(), nil
	}
}

func buildASREngine(cfg *config.Config) (session.ASREngine, error) {
	if cfg.ASRAPIKey == "" {
		return nil, fmt.Errorf("no API key configured for ASR provider %q", cfg.ASRProvider)
	}

	switch cfg.ASRProvider {
	case "openai":
		return asrengine.NewOpenAIEngine(cfg.ASRAPIKey, cfg.ASRModel), nil
	case "deepgram":
		return asrengine.NewDeepgramEngine(cfg.ASRAPIKey), nil
	case "assemblyai":
		return asrengine.NewAssemblyAIEngine(cfg.ASRAPIKey), nil
	case "groq":
		fallthrough
	default:
		return asrengine.NewGroqEngine(cfg.ASRAPIKey, cfg.ASRModel), nil
	}
}
