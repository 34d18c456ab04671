package task

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/junction"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/roaduser"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/stats"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/feed"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/output"
)

func newContext(t *testing.T, mutate func(*config.Config)) *Context {
	c := config.Default()
	if mutate != nil {
		mutate(&c)
	}
	ctx, err := NewContext(c)
	require.NoError(t, err)
	return ctx
}

func seconds(s float64) int32 {
	return int32(s * 60)
}

func TestNewContextErrors(t *testing.T) {
	c := config.Default()
	c.Spawners[0].Routes = append(c.Spawners[0].Routes, config.RouteWeight{Name: "nope"})
	_, err := NewContext(c)
	assert.True(t, errors.Is(err, ErrUnknownRoute))

	c = config.Default()
	c.Spawners[1].Gate = "cars_diagonal"
	_, err = NewContext(c)
	assert.True(t, errors.Is(err, junction.ErrUnknownGate))

	c = config.Default()
	c.Control.Step.Interval = 0
	_, err = NewContext(c)
	assert.True(t, errors.Is(err, config.ErrInvalidStep))
}

func TestRunAccounting(t *testing.T) {
	ctx := newContext(t, func(c *config.Config) {
		c.Control.Step.Total = seconds(90)
	})
	s := ctx.Run()
	assert.Equal(t, seconds(90), s.Steps)
	assert.InDelta(t, 90, s.SimTime, 1e-6)
	assert.Greater(t, s.Total(), 0)
	assert.Greater(t, s.PhaseChanges, 0)
	// 生成总数 = 存活 + 已结束
	assert.Equal(t, s.Total(), s.Live+lo.Sum(lo.Values(s.DoneByReason)))
	assert.LessOrEqual(t, s.Live, 30)
	assert.Greater(t, s.DoneByReason["frame_exit"], 0)
}

func TestLongRunWithoutOverlaps(t *testing.T) {
	if testing.Short() {
		t.Skip("long run")
	}
	for _, seed := range []uint64{0, 1} {
		ctx := newContext(t, func(c *config.Config) {
			c.Control.Step.Total = seconds(600)
			c.Control.Seed = seed
		})
		s := ctx.Run()
		assert.Zero(t, s.Collisions, "seed %d", seed)
		assert.Greater(t, s.DoneByReason["frame_exit"], 0, "seed %d", seed)
	}
}

func TestNewContextClosesNotifierOnError(t *testing.T) {
	defer func(f func(config.MQTT, string) (*output.Notifier, error)) { openNotifier = f }(openNotifier)
	var opened []*output.Notifier
	openNotifier = func(c config.MQTT, runID string) (*output.Notifier, error) {
		n, err := output.NewNotifier(c, runID)
		opened = append(opened, n)
		return n, err
	}

	c := config.Default()
	c.Spawners[0].Routes = append(c.Spawners[0].Routes, config.RouteWeight{Name: "nope"})
	_, err := NewContext(c)
	require.ErrorIs(t, err, ErrUnknownRoute)

	c = config.Default()
	c.Output.URI = "mongodb://localhost:27017"
	_, err = NewContext(c)
	require.Error(t, err)

	ctx, err := NewContext(config.Default())
	require.NoError(t, err)

	require.Len(t, opened, 3)
	assert.True(t, opened[0].Closed())
	assert.True(t, opened[1].Closed())
	assert.False(t, opened[2].Closed())
	ctx.Close()
	assert.True(t, opened[2].Closed())
}

func TestRunDeterministic(t *testing.T) {
	run := func() stats.Summary {
		ctx := newContext(t, func(c *config.Config) {
			c.Control.Step.Total = seconds(40)
			c.Control.Seed = 7
		})
		s := ctx.Run()
		s.RunID = ""
		return s
	}
	assert.Equal(t, run(), run())
}

func TestStepUntilFinished(t *testing.T) {
	ctx := newContext(t, func(c *config.Config) {
		c.Control.Step.Total = 3
	})
	assert.False(t, ctx.Step())
	assert.False(t, ctx.Step())
	assert.True(t, ctx.Step())
	assert.True(t, ctx.Step())
	assert.Equal(t, int32(3), ctx.Clock().InternalStep)
}

func TestMaxTotalAgents(t *testing.T) {
	ctx := newContext(t, func(c *config.Config) {
		c.Control.Step.Total = seconds(60)
		c.Control.MaxTotalAgents = 4
	})
	for !ctx.Step() {
		require.LessOrEqual(t, len(ctx.Users()), 4)
	}
	s := ctx.Summary()
	assert.Greater(t, s.Rejected[stats.RejectAdmission], 0)
}

func TestAdmissionHeldCountedOnce(t *testing.T) {
	ctx := newContext(t, func(c *config.Config) {
		c.Control.Step.Total = seconds(8)
		c.Control.MaxTotalAgents = 1
		c.Spawners = []config.Spawner{{
			Name: "held", Class: config.ClassCar, Gate: junction.GateAlways,
			Routes: []config.RouteWeight{{Name: "cars_ew_right"}}, Interval: 1,
		}}
	})
	held := int32(0)
	for !ctx.Step() {
		if ctx.slots[0].held {
			held++
		}
	}
	s := ctx.Summary()
	assert.Equal(t, 1, s.Total())
	assert.Equal(t, 1, s.Live)
	// 第一辆车存活期间一直到期被挡，只计一次
	assert.Greater(t, held, seconds(5))
	assert.Equal(t, 1, s.Rejected[stats.RejectAdmission])
}

func TestAdmissionNearStart(t *testing.T) {
	ctx := newContext(t, func(c *config.Config) {
		c.Admission.MaxNearby = 1
	})
	slot := ctx.slots[3] // bike_ns，单一路线
	require.Equal(t, "bike_ns", slot.cfg.Name)
	assert.True(t, ctx.admit(slot))

	u := roaduser.New(ctx, 100, config.ClassCyclist, slot.routes[0], 0, nil)
	ctx.users.Add(u)
	ctx.users.Prepare()
	assert.False(t, ctx.admit(slot))
	// 其它起点不受影响
	assert.True(t, ctx.admit(ctx.slots[4]))
}

func TestSafeToSpawn(t *testing.T) {
	ctx := newContext(t, nil)
	p := ctx.paths["cars_ns_up"]
	a := roaduser.New(ctx, 1, config.ClassCar, p, 0, nil)
	assert.True(t, ctx.safeToSpawn(a))
	ctx.users.Add(a)
	ctx.users.Prepare()

	b := roaduser.New(ctx, 2, config.ClassCar, p, 0, nil)
	assert.False(t, ctx.safeToSpawn(b))
	// 不同起点
	c := roaduser.New(ctx, 3, config.ClassPedestrian, ctx.paths["peds_ew_right"], 0, nil)
	assert.True(t, ctx.safeToSpawn(c))
}

func TestDegenerateRouteRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - name: dot\n    points: [[0.5, 0.5]]\n"), 0o644))
	ctx := newContext(t, func(c *config.Config) {
		c.Input.Routes = &config.InputPath{File: path}
		c.Control.Step.Total = seconds(5)
		c.Spawners = []config.Spawner{{
			Name: "dot", Class: config.ClassCar, Gate: junction.GateAlways,
			Routes: []config.RouteWeight{{Name: "dot"}}, Interval: 1,
		}}
	})
	s := ctx.Run()
	assert.Zero(t, s.Total())
	assert.Greater(t, s.Rejected[stats.RejectFactory], 0)
}

func TestFeedFrames(t *testing.T) {
	ctx := newContext(t, func(c *config.Config) {
		c.Control.Step.Total = seconds(10)
	})
	hub := feed.NewHub()
	defer hub.Close()
	ctx.SetFeed(hub, 30)
	ctx.Run()

	var f feed.Frame
	require.NoError(t, json.Unmarshal(hub.Last(), &f))
	assert.Equal(t, ctx.RunID(), f.RunID)
	assert.Zero(t, f.Step%30)
	assert.Len(t, f.Lights, 4)
	assert.NotEmpty(t, f.Users)
}
