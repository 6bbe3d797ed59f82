package main

import (
	"net/http"

	"myrhythm/ai"
	"myrhythm/api"
	"myrhythm/config"
	"myrhythm/db"
	"myrhythm/reminder"
	"myrhythm/tgbot"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// getLogger creates a logger in the given namespace
func getLogger(ns string) (*zap.SugaredLogger, func() error) {
	logger, _ := zap.NewDevelopment(zap.Fields(zap.String("ns", ns)))
	return logger.Sugar(), logger.Sync
}

func main() {
	logger, syncLogs := getLogger("Global")
	defer syncLogs()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("failed reading configuration", "err", err)
	}

	database, err := db.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("failed to initialize database", "err", err)
	}
	defer database.Close()

	botAPI, err := tg.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Fatalw("failed to initialize Telegram Bot", "err", err)
	}
	botAPI.Debug = false
	logger.Infof("authorized on account %q", botAPI.Self.UserName)

	var assistant tgbot.Assistant
	if cfg.AIAPIKey != "" {
		aiLog, syncAI := getLogger("AI")
		defer syncAI()
		assistant = ai.NewAgent(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel, aiLog)
	} else {
		logger.Warn("AI_API_KEY isn't set, the AI agent mode is disabled")
	}

	remLog, syncRem := getLogger("Reminder")
	defer syncRem()

	// the bot and the scheduler reference each other: the scheduler notifies
	// through the bot, the bot synchronizes the scheduler on every mutation
	var tb *tgbot.TBot
	manager := reminder.NewManager(database, func(usr int64, text string) error {
		return tb.Notify(usr, text)
	}, remLog)

	botLog, syncBot := getLogger("Bot")
	defer syncBot()
	tb = tgbot.NewTBot(botAPI, database, manager, assistant, botLog)

	manager.Run()

	if cfg.APIAddr != "" {
		apiLog, syncAPI := getLogger("API")
		defer syncAPI()
		srv := api.NewServer(database, manager, assistant, apiLog)

		go func() {
			logger.Infof("mini-app API listening on %s", cfg.APIAddr)
			if err := http.ListenAndServe(cfg.APIAddr, srv.Router()); err != nil {
				logger.Errorw("mini-app API stopped", "err", err)
			}
		}()
	}

	uCfg := tg.NewUpdate(0)
	uCfg.Timeout = 60

	tb.Run(botAPI.GetUpdatesChan(uCfg))
}
