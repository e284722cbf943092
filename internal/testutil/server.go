// Shared test server setup, which simplifies all API tests.

package testutil

import (
	"testing"

	"github.com/EmmettHwang/ssirn/internal/api"
	"github.com/EmmettHwang/ssirn/internal/config"
	"github.com/EmmettHwang/ssirn/internal/core"
	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/EmmettHwang/ssirn/internal/remote"
	"go.uber.org/zap/zaptest"
)

// TestEnv is a fully wired application backed by a local remote root.
type TestEnv struct {
	App        *core.App
	RemoteRoot string
	Encoder    *FakeEncoder
}

// TestConfig returns a configuration with one camera "cam1" rooted at
// /feed and a workspace inside the test's temp dir.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Workspace.Path = t.TempDir()
	cfg.Remote.Driver = "local"
	cfg.Cameras = []models.Camera{{ID: "cam1", Name: "Camera 1", Root: "/feed"}}
	cfg.Jobs.MaxWorkers = 2
	cfg.Jobs.LogLimit = 100
	cfg.Jobs.RetentionMinutes = 60
	return cfg
}

// SetupTestApp builds a core.App with an in-memory database, a local remote
// and a fake encoder writing outputSize bytes.
func SetupTestApp(t *testing.T, outputSize int) *TestEnv {
	t.Helper()
	env := &TestEnv{
		RemoteRoot: t.TempDir(),
		Encoder:    &FakeEncoder{OutputSize: outputSize},
	}
	env.App = core.Build(core.Deps{
		Config:  TestConfig(t),
		DB:      SetupTestDB(t),
		Logger:  zaptest.NewLogger(t),
		Dialer:  remote.NewLocal(env.RemoteRoot),
		Encoder: env.Encoder,
		Version: "test",
	})
	t.Cleanup(func() {
		// Let jobs finish before their temp dirs disappear.
		env.App.JobManager().Wait()
		env.App.WsHub().Stop()
	})
	return env
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T, outputSize int) (*api.Server, *TestEnv) {
	t.Helper()
	env := SetupTestApp(t, outputSize)
	return api.NewServer(env.App), env
}
