package cli

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cafeteria/internal/config"
	"cafeteria/internal/database"
	"cafeteria/internal/events"
	"cafeteria/internal/google"
	"cafeteria/internal/importer"
	"cafeteria/internal/metrics"
	"cafeteria/internal/models"
	"cafeteria/internal/notify"
	"cafeteria/internal/ratelimit"
	"cafeteria/internal/repository"
	"cafeteria/internal/repository/memstore"
	"cafeteria/internal/service"
)

// App holds everything built from one configuration.
type App struct {
	Config       *config.Config
	Logger       *zerolog.Logger
	Rules        service.Rules
	Store        repository.Store
	DB           *database.DB // set for the sqlite backend only
	Redis        *redis.Client
	Limiter      ratelimit.Limiter
	Bus          *events.EventBus
	Catalog      *service.Catalog
	Reservations *service.ReservationService
	DailyClose   *service.DailyClose
	Till         *service.TillService
	Importer     *importer.Importer
}

// Rules converts the rules section of cfg.
func Rules(cfg *config.Config) (service.Rules, error) {
	loc, err := cfg.Location()
	if err != nil {
		return service.Rules{}, err
	}
	return service.Rules{
		MaxReservations: cfg.Rules.MaxReservations,
		MaxMenus:        cfg.Rules.MaxMenus,
		CashFloat:       config.Amount(cfg.Rules.CashFloat),
		Weekdays:        cfg.Rules.Weekdays,
		Location:        loc,
		PublicURL:       cfg.Server.PublicURL,
	}, nil
}

// Pricing converts the pricing section of cfg.
func Pricing(cfg *config.Config) service.Pricing {
	return service.Pricing{
		StudentMenu: config.Amount(cfg.Pricing.StudentMenu),
		StaffMenu:   config.Amount(cfg.Pricing.StaffMenu),
		Sandwich:    config.Amount(cfg.Pricing.Sandwich),
		Beverage:    config.Amount(cfg.Pricing.Beverage),
		Chocolate:   config.Amount(cfg.Pricing.Chocolate),
	}
}

// NewApp opens the store and wires the services.
func NewApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	rules, err := Rules(cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, Rules: rules, Bus: events.NewEventBus()}

	if err := app.openStore(ctx); err != nil {
		return nil, err
	}
	app.openLimiter()

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	metrics.Subscribe(app.Bus)
	app.Catalog = service.NewCatalog(app.Store, rules, logger)
	app.Reservations = service.NewReservationService(app.Store, app.Store, rules, app.Bus, logger)
	app.DailyClose = service.NewDailyClose(app.Store, app.Store, rules, notifier, cfg.Mail.ListRecipients, app.Bus, logger)
	app.Till = service.NewTillService(app.Store, app.Store, rules, Pricing(cfg), notifier, cfg.Mail.AccountingRecipients, app.Bus, logger)
	app.Importer = importer.New(app.Store, app.Store, rules.Location)
	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Backend {
	case config.BackendSheets:
		store, err := google.NewSheetsStore(ctx, google.Config{
			SpreadsheetID:     cfg.Sheets.SpreadsheetID,
			CredentialsFile:   cfg.Sheets.CredentialsFile,
			CredentialsJSON:   []byte(cfg.Sheets.CredentialsJSON),
			DaysSheet:         cfg.Sheets.DaysSheet,
			ReservationsSheet: cfg.Sheets.ReservationsSheet,
			TillSheet:         cfg.Sheets.TillSheet,
			RequestsPerMinute: cfg.Sheets.RequestsPerMinute,
			Location:          a.Rules.Location,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("open spreadsheet: %w", err)
		}
		a.Store = store
	case config.BackendSQLite:
		db, err := database.NewDB(cfg.Database.Path, a.Rules.Location, a.Logger)
		if err != nil {
			return err
		}
		a.Store, a.DB = db, db
	default:
		a.Logger.Warn().Msg("using in-memory storage, data is lost on exit")
		a.Store = memstore.New()
	}
	a.Logger.Info().Str("backend", cfg.Storage.Backend).Msg("storage ready")
	return nil
}

// openLimiter prefers Redis and falls back to process memory while Redis is down.
func (a *App) openLimiter() {
	cfg := a.Config
	if !cfg.RateLimit.Enabled {
		return
	}
	memory := ratelimit.NewMemoryLimiter()
	if cfg.Redis.Address == "" {
		a.Limiter = memory
		return
	}
	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.Limiter = ratelimit.NewFailover(ratelimit.NewRedisLimiter(a.Redis), memory, a.Logger)
}

func newNotifier(cfg *config.Config, logger *zerolog.Logger) (notify.Sender, error) {
	var senders notify.Multi
	if cfg.MailEnabled() {
		smtp, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			StartTLS: cfg.Mail.StartTLS,
			Timeout:  cfg.MailTimeout(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("mail: %w", err)
		}
		senders = append(senders, smtp)
	}
	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.ChatIDs) > 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		senders = append(senders, notify.NewTelegramNotifier(bot, cfg.Telegram.ChatIDs, logger))
	}
	if len(senders) == 0 {
		logger.Warn().Msg("no mail or telegram configured, reports are only logged")
		return notify.NewLogSender(logger), nil
	}
	return senders, nil
}

// ScheduledWeekdays maps the configured labels to weekdays, skipping unknown ones.
func ScheduledWeekdays(labels []string) []time.Weekday {
	out := make([]time.Weekday, 0, len(labels))
	for _, l := range labels {
		if wd, ok := models.WeekdayLabels[l]; ok {
			out = append(out, wd)
		}
	}
	return out
}

// Close releases the store and Redis.
func (a *App) Close() error {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
