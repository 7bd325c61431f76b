package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"chat-widget/handler"
	"chat-widget/internal/app"
	"chat-widget/internal/config"
	"chat-widget/internal/integrations/paramstore"
	"chat-widget/internal/repository"
	"chat-widget/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}
	if err := cfg.RequireStateTable(); err != nil {
		fatal("invalid config", err)
	}
	logger, err := app.NewLogger(cfg, os.Stdout)
	if err != nil {
		fatal("failed to create logger", err)
	}
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmReader, err := paramstore.NewReader(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		fatal("failed to create SSM reader", err)
	}
	creds, err := app.Credentials(cfg, ssmReader, logger)
	if err != nil {
		fatal("failed to create credential source", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable, cfg.SessionTTL)
	if err != nil {
		fatal("failed to create session store", err)
	}
	completer, err := app.NewCompleter(cfg)
	if err != nil {
		fatal("failed to create OpenAI client", err)
	}

	// ---- Handler ----
	sessions, err := usecase.NewSessionService(store, completer, creds, app.Settings(cfg), logger)
	if err != nil {
		fatal("failed to create session service", err)
	}
	h, err := handler.NewHandler(sessions)
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
