package jobs

import (
	"sync"
	"testing"

	"github.com/EmmettHwang/ssirn/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeJobContext struct {
	cfg    *config.Config
	logger *zap.Logger
	mgr    *Manager

	mu      sync.Mutex
	nightly int
}

func (f *fakeJobContext) Config() *config.Config { return f.cfg }
func (f *fakeJobContext) Logger() *zap.Logger    { return f.logger }
func (f *fakeJobContext) JobManager() *Manager   { return f.mgr }
func (f *fakeJobContext) ConvertPreviousDay() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nightly++
	return nil
}

func newFakeJobContext(t *testing.T) *fakeJobContext {
	logger := zaptest.NewLogger(t)
	return &fakeJobContext{
		cfg:    &config.Config{},
		logger: logger,
		mgr:    NewManager(NewRegistry(), 1, logger),
	}
}

func TestStartJobs_SchedulesConfiguredJobs(t *testing.T) {
	app := newFakeJobContext(t)
	app.cfg.Jobs.SweepInterval = 10
	app.cfg.Schedule.NightlyConvert = "02:00"

	s := StartJobs(app)
	defer s.Stop()

	assert.Len(t, s.Jobs(), 2)
}

func TestStartJobs_DisabledJobsAreSkipped(t *testing.T) {
	app := newFakeJobContext(t)

	s := StartJobs(app)
	defer s.Stop()

	assert.Empty(t, s.Jobs())
}
