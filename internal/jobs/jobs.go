package jobs

import (
	"time"

	"github.com/EmmettHwang/ssirn/internal/config"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// JobContext provides what the scheduled jobs need. core.App implements it.
type JobContext interface {
	Config() *config.Config
	Logger() *zap.Logger
	JobManager() *Manager
	// ConvertPreviousDay launches a conversion of yesterday's images for
	// every registered camera and returns the job ids.
	ConvertPreviousDay() []string
}

// StartJobs starts the background scheduler and returns it so the caller
// can stop it on shutdown.
func StartJobs(app JobContext) *gocron.Scheduler {
	s := gocron.NewScheduler(time.Local)
	s.SingletonModeAll()

	startSweepJob(s, app)
	startNightlyConvertJob(s, app)

	app.Logger().Info("Starting background job scheduler...")
	s.StartAsync()
	return s
}

func startSweepJob(s *gocron.Scheduler, app JobContext) {
	log := app.Logger().Named("scheduler")
	interval := app.Config().Jobs.SweepInterval
	if interval <= 0 {
		log.Info("Job sweep interval is 0, scheduled sweep is disabled.")
		return
	}

	log.Info("Scheduling job sweep", zap.Int("every_minutes", interval))
	_, err := s.Every(interval).Minutes().Do(func() {
		evicted := app.JobManager().Registry().Sweep()
		if len(evicted) > 0 {
			log.Info("Evicted finished jobs", zap.Int("count", len(evicted)))
		}
	})
	if err != nil {
		log.Error("Error scheduling job sweep", zap.Error(err))
	}
}

func startNightlyConvertJob(s *gocron.Scheduler, app JobContext) {
	log := app.Logger().Named("scheduler")
	at := app.Config().Schedule.NightlyConvert
	if at == "" {
		log.Info("Nightly conversion is not configured.")
		return
	}

	log.Info("Scheduling nightly conversion", zap.String("at", at))
	_, err := s.Every(1).Day().At(at).Do(func() {
		ids := app.ConvertPreviousDay()
		log.Info("Nightly conversion launched", zap.Strings("job_ids", ids))
	})
	if err != nil {
		log.Error("Error scheduling nightly conversion", zap.Error(err))
	}
}
