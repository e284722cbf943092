package archive

import (
	"fmt"

	"go.uber.org/zap"
)

// Reporter receives progress from a running unit or batch. The job
// tracker implements it.
type Reporter interface {
	Logf(format string, args ...any)
	SetTotal(n int)
	SetCurrent(item string)
	SetProgress(done int)
}

// LogReporter writes progress to a zap logger. It is used when the engine
// runs outside the job manager.
type LogReporter struct {
	Logger *zap.Logger
}

func (r LogReporter) Logf(format string, args ...any) {
	r.Logger.Info(fmt.Sprintf(format, args...))
}

func (r LogReporter) SetTotal(n int) {
	r.Logger.Debug("Total", zap.Int("total", n))
}

func (r LogReporter) SetCurrent(item string) {
	r.Logger.Debug("Current item", zap.String("item", item))
}

func (r LogReporter) SetProgress(done int) {
	r.Logger.Debug("Progress", zap.Int("done", done))
}

// prefixed forwards only log lines, tagged with the unit label. Batches hand
// it to units so that the batch alone drives total and progress.
type prefixed struct {
	Reporter
	label string
}

func (p prefixed) Logf(format string, args ...any) {
	p.Reporter.Logf("[%s] %s", p.label, fmt.Sprintf(format, args...))
}

func (p prefixed) SetTotal(int)      {}
func (p prefixed) SetCurrent(string) {}
func (p prefixed) SetProgress(int)   {}
