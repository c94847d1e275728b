package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/agent"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/brain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/config"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/images"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/ingest"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/poller"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/search"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/sites/arena"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/storage"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/tools"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/ui/telegram"
)

func main() {
	godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil && err != context.Canceled {
		log.Fatal("agent exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer store.Close()
	log.Info("storage connected")

	platform := arena.NewClient(cfg.ArenaJWT, log)
	platform.PartnerKey = cfg.ArenaPartnerKey
	searcher := search.NewTavilyClient(cfg.TavilyAPIKey, log)

	imgClient, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		return fmt.Errorf("genai: %w", err)
	}
	generator := images.NewGenerator(imgClient, cfg.ImageModel, cfg.ImageFallbackModel,
		cfg.ImageRetryAttempts, cfg.ImageRetryBase, cfg.TempImageDir, log)

	pipeline := images.NewPipeline(images.Config{
		QueueCap:         cfg.ImageQueueMax,
		SaveDir:          cfg.ImageSaveDir,
		TempDir:          cfg.TempImageDir,
		GladiusImagePath: cfg.GladiusImagePath,
	}, platform, store, generator, log)

	registry := tools.NewCatalog(tools.Deps{
		Store:    store,
		Platform: platform,
		Searcher: searcher,
		Queue:    pipeline,
		Log:      log,
	})

	gemini, err := brain.NewGeminiBrain(ctx, cfg.GeminiAPIKey, nil, registry.Declarations(), log)
	if err != nil {
		return fmt.Errorf("brain: %w", err)
	}

	orchestrator := agent.NewOrchestrator(gemini, registry, log)

	var notifier ports.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		tg, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn("telegram notifier unavailable", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	pipeline.Start(ctx)

	// one-shot mode: `gladius-agent ask <question...>` answers on stdout
	// and exits without polling.
	if len(os.Args) > 2 && os.Args[1] == "ask" {
		question := strings.Join(os.Args[2:], " ")
		answer, err := orchestrator.Ask(ctx, question, nil)
		if err != nil {
			return err
		}
		if answer == "" {
			// a queued image job must finish before the process exits
			fmt.Println("(image job queued)")
			pipeline.Drain()
			return nil
		}
		fmt.Println(answer)
		return nil
	}

	p := poller.New(poller.Config{
		PollInterval: cfg.PollInterval,
		MaxPerPoll:   cfg.MaxNotifsPerPoll,
		BotHandle:    cfg.BotHandle,
		BotUserID:    cfg.BotUserID,
	}, platform, store, orchestrator, notifier, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	if cfg.ArenaPartnerKey != "" {
		ing := ingest.New(ingest.Config{
			PollInterval: cfg.IngestInterval,
			BatchLimit:   cfg.IngestBatchLimit,
		}, platform, store, log)
		g.Go(func() error { return ing.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		pipeline.Wait()
		return nil
	})
	return g.Wait()
}
