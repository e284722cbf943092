// Command ssirn-cli runs one archive unit or batch in the foreground,
// without the HTTP server or job registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/EmmettHwang/ssirn/internal/archive"
	"github.com/EmmettHwang/ssirn/internal/config"
	"github.com/EmmettHwang/ssirn/internal/encoder"
	"github.com/EmmettHwang/ssirn/internal/logging"
	"github.com/EmmettHwang/ssirn/internal/remote"
	"github.com/EmmettHwang/ssirn/internal/util"
	"go.uber.org/zap"
)

type options struct {
	camera string
	date   string
	to     string
	resize bool
	all    bool
	delete bool
}

func main() {
	var o options
	flag.StringVar(&o.camera, "camera", "", "camera id (defaults to the first configured camera)")
	flag.StringVar(&o.date, "date", "", "date to process, YYYYMMDD")
	flag.StringVar(&o.to, "to", "", "last date of an inclusive range, YYYYMMDD")
	flag.BoolVar(&o.resize, "resize", false, "re-encode existing videos instead of converting images")
	flag.BoolVar(&o.all, "all", false, "with -resize, process every archived video")
	flag.BoolVar(&o.delete, "delete", false, "delete original images after a successful conversion")
	flag.Parse()

	os.Exit(run(o))
}

func run(o options) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 2
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 2
	}
	defer logger.Sync()

	if o.camera == "" && len(cfg.Cameras) > 0 {
		o.camera = cfg.Cameras[0].ID
	}
	if err := validate(o); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		return 2
	}

	workDir, err := util.PrepareWorkspace(cfg.Workspace.Path)
	if err != nil {
		logger.Error("Invalid workspace", zap.Error(err))
		return 2
	}
	dialer, err := remote.New(cfg.Remote)
	if err != nil {
		logger.Error("Failed to configure remote storage", zap.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := encoder.CheckVersion(ctx, cfg.Encoder.Binary, cfg.Encoder.MinVersion); err != nil {
		logger.Error("Encoder check failed", zap.Error(err))
		return 2
	}

	engine := archive.NewEngine(archive.Options{
		Cameras: cfg.Cameras,
		Dialer:  dialer,
		Encoder: encoder.NewFFmpeg(cfg.Encoder.Binary),
		Policy:  encoder.PolicyFromConfig(cfg.Encoder),
		WorkDir: workDir,
		Poster:  cfg.Convert.Poster,
		Logger:  logger,
	})
	reporter := archive.LogReporter{Logger: logger.Named("cli").With(zap.String("camera", o.camera))}

	var failed int
	switch {
	case o.resize && o.all:
		var res archive.BatchResult
		res, err = engine.ResizeAll(ctx, o.camera, reporter)
		failed = res.Failed
	case o.resize:
		_, err = engine.Resize(ctx, o.camera, o.date, reporter)
	case o.to != "":
		var res archive.BatchResult
		res, err = engine.ConvertRange(ctx, o.camera, o.date, o.to, o.delete, reporter)
		failed = res.Failed
	default:
		_, err = engine.Convert(ctx, o.camera, o.date, o.delete, reporter)
	}

	if err != nil {
		logger.Error("Failed", zap.Error(err))
		return 1
	}
	if failed > 0 {
		logger.Warn("Some units failed", zap.Int("failed", failed))
		return 1
	}
	return 0
}

func validate(o options) error {
	if o.camera == "" {
		return fmt.Errorf("no camera configured; pass -camera")
	}
	if o.all && !o.resize {
		return fmt.Errorf("-all is only valid with -resize")
	}
	if o.resize && o.to != "" {
		return fmt.Errorf("-to is not valid with -resize")
	}
	if !(o.resize && o.all) && o.date == "" {
		return fmt.Errorf("-date is required")
	}
	return nil
}
