package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/liftcare/field-bot/internal/access"
	"github.com/liftcare/field-bot/internal/bot"
	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/checkin"
	"github.com/liftcare/field-bot/internal/config"
	"github.com/liftcare/field-bot/internal/dashboard"
	"github.com/liftcare/field-bot/internal/db"
	"github.com/liftcare/field-bot/internal/digest"
	"github.com/liftcare/field-bot/internal/gazetteer"
	"github.com/liftcare/field-bot/internal/geocode"
	"github.com/liftcare/field-bot/internal/intake"
	"github.com/liftcare/field-bot/internal/logging"
	"github.com/liftcare/field-bot/internal/ocr"
	"github.com/liftcare/field-bot/internal/schedule"
	"github.com/liftcare/field-bot/internal/scheduler"
	"github.com/liftcare/field-bot/internal/sessions"
	"github.com/liftcare/field-bot/internal/staff"
	"github.com/liftcare/field-bot/internal/statussync"
	"github.com/liftcare/field-bot/internal/store"
)

const sweepSpec = "@every 10m"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bots, the dashboard API and the background jobs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// app holds the shared state both bots and the dashboard work on.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	dir       *config.Directory
	database  *db.DB
	requests  *store.Requests
	logs      *store.Logs
	book      *schedule.Book
	access    *access.Registry
	gazetteer *gazetteer.Gazetteer
	sync      *statussync.Syncer
	jobs      *scheduler.Scheduler
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.database.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var runner dashboard.Runner
	if cfg.RequestsBotToken != "" {
		requestsBot, err := a.requestsBot()
		if err != nil {
			return err
		}
		runner = requestsBot.Executor()
		handler := a.requestsHandler()
		g.Go(func() error { return requestsBot.Run(ctx, handler) })
	}
	if cfg.MaintenanceBotToken != "" {
		maintenanceBot, handler, err := a.maintenanceBot()
		if err != nil {
			return err
		}
		g.Go(func() error { return maintenanceBot.Run(ctx, handler) })
	}

	dash := dashboard.New(dashboard.Deps{
		Requests:    a.requests,
		Logs:        a.logs,
		Sync:        a.sync,
		Access:      a.access,
		Gazetteer:   a.gazetteer,
		Runner:      runner,
		CORSOrigins: cfg.CORSOrigins,
		Location:    cfg.Location,
		Logger:      logger,
	})
	g.Go(func() error { return dash.Run(ctx, cfg.HTTPAddr) })
	g.Go(func() error { return a.gazetteer.Watch(ctx) })
	g.Go(func() error { return a.jobs.Run(ctx) })

	logger.Info("service running", zap.String("http_addr", cfg.HTTPAddr))
	err = g.Wait()
	logger.Info("service stopped")
	return err
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	dir, err := config.LoadDirectory(cfg.DistrictsPath)
	if err != nil {
		return nil, err
	}

	database, err := db.New(cfg.DBPath, cfg.Location)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, dir: dir, database: database}
	if err := a.load(); err != nil {
		database.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) load() error {
	savedRequests, err := a.database.LoadRequests()
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}
	a.requests = store.NewRequests(savedRequests, a.database, a.logger)

	savedLogs, err := a.database.LoadLogs()
	if err != nil {
		return fmt.Errorf("load maintenance logs: %w", err)
	}
	a.logs = store.NewLogs(savedLogs, a.database, a.logger)

	rows, err := a.database.LoadSchedule()
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	a.book = schedule.NewBook(schedule.Entries(rows))

	a.access, err = access.Load(a.dir, a.database, a.logger)
	if err != nil {
		return err
	}
	a.gazetteer, err = gazetteer.Open(a.cfg.GazetteerPath, a.cfg.AliasesPath, a.logger)
	if err != nil {
		return err
	}

	a.sync = statussync.New(a.requests, a.dir, a.access, a.now, a.logger)
	a.jobs = scheduler.New(a.cfg.Location, a.logger)

	a.logger.Info("state loaded",
		zap.Int("requests", len(savedRequests)),
		zap.Int("maintenance_logs", len(savedLogs)),
		zap.Int("schedule_rows", len(rows)),
		zap.Int("address_points", a.gazetteer.Snapshot().Len()),
	)
	return nil
}

func (a *app) now() time.Time {
	return time.Now().In(a.cfg.Location)
}

func (a *app) requestsBot() (*bot.Bot, error) {
	requestsBot, err := bot.New(bot.Config{
		Token:    a.cfg.RequestsBotToken,
		Name:     "requests",
		SendRate: a.cfg.SendRate,
		Linker:   a.requests,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	hour, minute, err := config.ParseClock(a.cfg.DigestAt)
	if err != nil {
		return nil, err
	}
	daily := digest.New(a.requests, a.dir, requestsBot.Executor(), a.database, digest.Config{
		Hour:     hour,
		Minute:   minute,
		Location: a.cfg.Location,
	}, a.logger)
	if err := a.jobs.Add("@every 1m", digest.JobName, daily.Tick); err != nil {
		return nil, err
	}
	return requestsBot, nil
}

// requestsHandler routes resident chats to intake and staff chats to the
// staff dispatcher.
func (a *app) requestsHandler() chat.Handler {
	intakeSessions := sessions.New[intake.Session](a.cfg.SessionTTL)
	a.sweep("intake_sessions", intakeSessions)

	deps := intake.Deps{
		Sessions:  intakeSessions,
		Gazetteer: a.gazetteer,
		Requests:  a.requests,
		Directory: a.dir,
		Now:       a.now,
		Logger:    a.logger,
	}
	if a.cfg.GeocoderURL != "" {
		deps.Geocoder = geocode.NewClient(a.cfg.GeocoderURL, a.cfg.GeocoderTimeout, a.logger)
	}

	return chat.Router{
		Private: intake.New(deps),
		Group: staff.New(staff.Deps{
			Requests:  a.requests,
			Sync:      a.sync,
			Access:    a.access,
			Directory: a.dir,
			Gazetteer: a.gazetteer,
			Logger:    a.logger,
		}),
	}
}

func (a *app) maintenanceBot() (*bot.Bot, chat.Handler, error) {
	maintenanceBot, err := bot.New(bot.Config{
		Token:    a.cfg.MaintenanceBotToken,
		Name:     "maintenance",
		SendRate: a.cfg.SendRate,
	}, a.logger)
	if err != nil {
		return nil, nil, err
	}

	checkinSessions := sessions.New[checkin.Session](a.cfg.SessionTTL)
	a.sweep("checkin_sessions", checkinSessions)

	engine := checkin.New(checkin.Deps{
		Sessions:   checkinSessions,
		Gazetteer:  a.gazetteer,
		Schedule:   a.book,
		Logs:       a.logs,
		Photos:     maintenanceBot,
		Recognizer: ocr.NewClient(a.cfg.OCRURL, a.cfg.OCRTimeout, a.cfg.Location, a.logger),
		Now:        a.now,
		Logger:     a.logger,
	})
	return maintenanceBot, engine, nil
}

type sweeper interface {
	Sweep() int
}

func (a *app) sweep(name string, s sweeper) {
	err := a.jobs.Add(sweepSpec, name+"_sweep", func(context.Context) {
		if n := s.Sweep(); n > 0 {
			a.logger.Debug("idle sessions dropped", zap.String("store", name), zap.Int("count", n))
		}
	})
	if err != nil {
		a.logger.Error("could not schedule session sweep", zap.String("store", name), zap.Error(err))
	}
}
