package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"chat-widget/internal/app"
	"chat-widget/internal/config"
	"chat-widget/internal/integrations/paramstore"
	"chat-widget/internal/usecase"
	"chat-widget/internal/widget"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}
	logger, err := app.NewLogger(cfg, os.Stdout)
	if err != nil {
		fatal("failed to create logger", err)
	}
	slog.SetDefault(logger)

	// SSM is only needed when the key is not in the environment.
	var getter paramstore.Getter
	if cfg.ParamPrefix != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			fatal("failed to load AWS config", err)
		}
		ssmReader, err := paramstore.NewReader(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			fatal("failed to create SSM reader", err)
		}
		getter = ssmReader
	}
	creds, err := app.Credentials(cfg, getter, logger)
	if err != nil {
		fatal("failed to create credential source", err)
	}
	completer, err := app.NewCompleter(cfg)
	if err != nil {
		fatal("failed to create OpenAI client", err)
	}
	if _, ok := creds.Credential(ctx); !ok {
		logger.Warn("no API key configured; replies will report a missing credential")
	}

	settings := app.Settings(cfg)
	factory := func(view usecase.Presenter, l *slog.Logger) (*usecase.Controller, error) {
		return usecase.NewController(settings.NewTranscript(), completer, creds, settings,
			usecase.WithPresenter(view),
			usecase.WithLogger(l),
		)
	}

	srv, err := widget.NewServer(cfg.ListenAddr, factory, logger)
	if err != nil {
		fatal("failed to create widget server", err)
	}
	// Stopped explicitly below so shutdown finishes before main returns.
	if err := srv.Start(context.Background()); err != nil {
		fatal("failed to start widget server", err)
	}

	<-ctx.Done()
	if err := srv.Stop(context.Background()); err != nil {
		logger.Warn("widget server stop", "err", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
