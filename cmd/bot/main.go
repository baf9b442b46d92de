package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coah80/yoinkgram/internal/alerts"
	"github.com/coah80/yoinkgram/internal/bot"
	"github.com/coah80/yoinkgram/internal/config"
	"github.com/coah80/yoinkgram/internal/logger"
	"github.com/coah80/yoinkgram/internal/middleware"
	"github.com/coah80/yoinkgram/internal/server"
	"github.com/coah80/yoinkgram/internal/services"
	"github.com/coah80/yoinkgram/internal/util"
)

var (
	configPath string
	usersFile  string
)

var rootCmd = &cobra.Command{
	Use:   "yoinkgram",
	Short: "Telegram bot that fetches media with yt-dlp",
	Long: `yoinkgram relays links sent to a Telegram bot to yt-dlp and uploads
the resulting file back to the chat.

Configuration comes from the environment (and .env). --config additionally
reads a YAML file; environment values win.`,
	SilenceUsage: true,
	RunE:         runBot,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print user registry statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := services.OpenRegistry(usersFile, 0, zap.NewNop())
		if err != nil {
			return err
		}
		s := reg.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total users:     %d\n", s.TotalUsers)
		fmt.Fprintf(out, "New users today: %d\n", s.NewUsersToday)
		fmt.Fprintf(out, "Total downloads: %d\n", s.TotalDownloads)
		for i, u := range reg.RecentUsers(config.RecentUsersShown) {
			fmt.Fprintf(out, "%2d. %s (ID: %d)\n", i+1, u.DisplayName(), u.ID)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "yoinkgram", config.Version)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Optional YAML config file")
	statsCmd.Flags().StringVar(&usersFile, "file", "users.json", "Users file to read")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	server.PrintBanner()

	if err := util.CheckDependencies(cfg.YtdlpPath, log); err != nil {
		return err
	}
	if err := util.EnsureScratchDir(cfg.ScratchDir, log); err != nil {
		return err
	}
	registry, err := services.OpenRegistry(cfg.UsersFile, cfg.AdminID, log)
	if err != nil {
		return err
	}
	notifier, err := alerts.New(cfg, log)
	if err != nil {
		return err
	}
	// Each call is also bound to its own context. The client timeout only
	// backstops calls made outside the messenger, such as long polling.
	httpClient := &http.Client{Timeout: config.MessagingMaxTimeout + time.Minute}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug
	log.Info("Authorized", zap.String("username", api.Self.UserName))

	sessions := services.NewSessionStore(cfg.SessionTTL, log)
	limiter := middleware.NewRateLimiter(config.RateLimitWindow, config.RateLimitMax)
	b := bot.New(bot.Options{
		Config:   cfg,
		Logger:   log,
		API:      api,
		Fetcher:  services.NewFetcher(cfg, log, nil),
		Sessions: sessions,
		Registry: registry,
		Alerts:   notifier,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	util.StartCleanupInterval(ctx, cfg.ScratchDir, config.CleanupInterval, config.FileRetention, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessions.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return b.Run(gctx)
	})
	if cfg.HTTPAddr != "" {
		srv := server.New(cfg, log, server.Deps{Registry: registry, Sessions: sessions, Limiter: limiter})
		g.Go(func() error {
			limiter.Run(gctx)
			return nil
		})
		g.Go(func() error {
			log.Info("Operator HTTP listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	notifier.BotStarted(api.Self.UserName)
	err = g.Wait()

	log.Info("Shutting down")
	notifier.BotStopping()
	notifier.Wait()
	return err
}
