package swarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLifecycle_RemovesExpiredEntities(t *testing.T) {
	app := NewAppBuilder().UseModule(LifecycleModule{}).Build()
	cmd := app.Commands()
	cmd.AddResources(&Time{Dt: time.Second})
	short := cmd.AddEntity(LifetimeComponent{TimeLeft: 0.5})
	long := cmd.AddEntity(LifetimeComponent{TimeLeft: 1.5})
	app.FlushCommands()

	app.Update()
	assert.False(t, app.ecs.hasEntity(short))
	assert.True(t, app.ecs.hasEntity(long))

	app.Update()
	assert.False(t, app.ecs.hasEntity(long))
	assert.Zero(t, cmd.EntityCount())
}

func TestTime_SystemAdvancesFrames(t *testing.T) {
	app := NewAppBuilder().UseModule(TimeModule{}).Build()
	app.Update()
	app.Update()

	clock := resource[Time](app)
	assert.Equal(t, uint64(2), clock.Frame)
	assert.GreaterOrEqual(t, clock.Dt, time.Duration(0))
}
