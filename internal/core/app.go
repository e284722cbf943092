package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/EmmettHwang/ssirn/internal/archive"
	"github.com/EmmettHwang/ssirn/internal/config"
	"github.com/EmmettHwang/ssirn/internal/db"
	"github.com/EmmettHwang/ssirn/internal/encoder"
	"github.com/EmmettHwang/ssirn/internal/jobs"
	"github.com/EmmettHwang/ssirn/internal/logging"
	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/EmmettHwang/ssirn/internal/remote"
	"github.com/EmmettHwang/ssirn/internal/store"
	"github.com/EmmettHwang/ssirn/internal/util"
	"github.com/EmmettHwang/ssirn/internal/websocket"
	"go.uber.org/zap"
)

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	config   *config.Config
	db       *sql.DB
	logger   *zap.Logger
	hub      *websocket.Hub
	registry *jobs.Registry
	manager  *jobs.Manager
	engine   *archive.Engine
	store    *store.Store
	version  string
}

// Deps are the pieces New assembles from configuration. Tests pass fakes.
type Deps struct {
	Config  *config.Config
	DB      *sql.DB
	Logger  *zap.Logger
	Dialer  remote.Dialer
	Encoder encoder.Encoder
	Version string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running migrations.
func New(version string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	workDir, err := util.PrepareWorkspace(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}
	cfg.Workspace.Path = workDir

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(database); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	dialer, err := remote.New(cfg.Remote)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to configure remote storage: %w", err)
	}

	probe, err := encoder.CheckVersion(context.Background(), cfg.Encoder.Binary, cfg.Encoder.MinVersion)
	if err != nil {
		// Jobs will fail at the encode step; the API and history stay usable.
		logger.Warn("Encoder check failed", zap.Error(err))
	} else {
		logger.Info("Encoder found", zap.String("path", probe.Path), zap.String("version", probe.Version))
	}

	logger.Info("Core application setup complete.",
		zap.String("remote", cfg.Remote.Driver),
		zap.Int("cameras", len(cfg.Cameras)))
	return Build(Deps{
		Config:  cfg,
		DB:      database,
		Logger:  logger,
		Dialer:  dialer,
		Encoder: encoder.NewFFmpeg(cfg.Encoder.Binary),
		Version: version,
	}), nil
}

// Build wires an App from ready dependencies. The websocket hub is started.
func Build(d Deps) *App {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hub := websocket.NewHub(logger)
	go hub.Run()

	registry := jobs.NewRegistry(
		jobs.WithLogLimit(cfg.Jobs.LogLimit),
		jobs.WithRetention(time.Duration(cfg.Jobs.RetentionMinutes)*time.Minute),
		jobs.WithNotifier(hub),
	)
	manager := jobs.NewManager(registry, cfg.Jobs.MaxWorkers, logger)

	a := &App{
		config:   cfg,
		db:       d.DB,
		logger:   logger,
		hub:      hub,
		registry: registry,
		manager:  manager,
		version:  d.Version,
		engine: archive.NewEngine(archive.Options{
			Cameras: cfg.Cameras,
			Dialer:  d.Dialer,
			Encoder: d.Encoder,
			Policy:  encoder.PolicyFromConfig(cfg.Encoder),
			WorkDir: cfg.Workspace.Path,
			Poster:  cfg.Convert.Poster,
			Logger:  logger,
		}),
	}
	if d.DB != nil {
		a.store = store.New(d.DB)
		manager.SetArchiver(a.store)
	}
	return a
}

func (a *App) Config() *config.Config { return a.config }
func (a *App) DB() *sql.DB { return a.db }
func (a *App) Logger() *zap.Logger { return a.logger }
func (a *App) WsHub() *websocket.Hub { return a.hub }
func (a *App) JobManager() *jobs.Manager { return a.manager }
func (a *App) Registry() *jobs.Registry { return a.registry }
func (a *App) Engine() *archive.Engine { return a.engine }
func (a *App) Store() *store.Store { return a.store }
func (a *App) Version() string { return a.version }
func (a *App) Cameras() []models.Camera { return a.engine.Cameras() }

// StartConvert validates the unit and launches a conversion job.
func (a *App) StartConvert(cameraID, date string, deleteOriginals bool) (string, error) {
	if _, err := a.engine.ValidateUnit(cameraID, date); err != nil {
		return "", err
	}
	desc := cameraID + " " + date
	return a.manager.Run(models.KindConvert, desc, func(ctx context.Context, t *jobs.Tracker) error {
		t.SetCurrent(date)
		res, err := a.engine.Convert(ctx, cameraID, date, deleteOriginals, t)
		if err != nil {
			return err
		}
		if res.Uploaded {
			t.Logf("Done: %d frames, %d bytes", res.Frames, res.VideoSize)
		}
		return nil
	}), nil
}

// StartResize validates the unit and launches a resize job.
func (a *App) StartResize(cameraID, date string) (string, error) {
	if _, err := a.engine.ValidateUnit(cameraID, date); err != nil {
		return "", err
	}
	desc := cameraID + " " + date
	return a.manager.Run(models.KindResize, desc, func(ctx context.Context, t *jobs.Tracker) error {
		t.SetTotal(1)
		t.SetCurrent(date)
		if _, err := a.engine.Resize(ctx, cameraID, date, t); err != nil {
			return err
		}
		t.SetProgress(1)
		return nil
	}), nil
}

// StartResizeAll launches a resize of every archived video of a camera.
func (a *App) StartResizeAll(cameraID string) (string, error) {
	if _, err := a.engine.Camera(cameraID); err != nil {
		return "", err
	}
	desc := cameraID + " all videos"
	return a.manager.Run(models.KindResizeAll, desc, func(ctx context.Context, t *jobs.Tracker) error {
		_, err := a.engine.ResizeAll(ctx, cameraID, t)
		return err
	}), nil
}

// StartConvertRange validates the range and launches a batch conversion.
func (a *App) StartConvertRange(cameraID, from, to string, deleteOriginals bool) (string, error) {
	if err := a.engine.ValidateRange(cameraID, from, to); err != nil {
		return "", err
	}
	desc := fmt.Sprintf("%s %s..%s", cameraID, from, to)
	return a.manager.Run(models.KindConvertRange, desc, func(ctx context.Context, t *jobs.Tracker) error {
		_, err := a.engine.ConvertRange(ctx, cameraID, from, to, deleteOriginals, t)
		return err
	}), nil
}

// ConvertPreviousDay converts yesterday's images of every camera.
func (a *App) ConvertPreviousDay() []string {
	date := time.Now().AddDate(0, 0, -1).Format(archive.DateLayout)
	var ids []string
	for _, cam := range a.engine.Cameras() {
		id, err := a.StartConvert(cam.ID, date, a.config.Schedule.DeleteOriginals)
		if err != nil {
			a.logger.Error("Could not start nightly conversion", zap.String("camera", cam.ID), zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	a.hub.Stop()
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}
