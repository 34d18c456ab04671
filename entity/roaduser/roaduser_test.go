package roaduser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/clock"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/collision"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/route"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
	"gonum.org/v1/gonum/spatial/r2"
)

const dt = 1.0 / 60

type testCtx struct {
	clock  *clock.Clock
	rc     *config.RuntimeConfig
	engine *collision.Engine
}

func (c *testCtx) Clock() *clock.Clock                  { return c.clock }
func (c *testCtx) RuntimeConfig() *config.RuntimeConfig { return c.rc }
func (c *testCtx) Collision() entity.ICollisionEngine   { return c.engine }

func newTestCtx(t *testing.T, mutate func(*config.Config)) *testCtx {
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	rc, err := config.NewRuntimeConfig(cfg)
	require.NoError(t, err)
	return &testCtx{clock: clock.New(rc.C.Step), rc: rc, engine: collision.NewEngine(rc)}
}

func newPath(t *testing.T, points ...r2.Vec) *route.Path {
	p, err := route.New("test", points)
	require.NoError(t, err)
	return p
}

func v(x, y float64) r2.Vec {
	return r2.Vec{X: x, Y: y}
}

// tick 按仿真循环的顺序逐个更新对象，每个对象更新后立即写入快照
func tick(users ...*RoadUser) {
	snapshot := make([]entity.IRoadUser, len(users))
	for i, u := range users {
		snapshot[i] = u
	}
	for _, u := range users {
		u.Update(dt, snapshot)
		u.Prepare()
	}
}

func examplePath(t *testing.T, startY float64) *route.Path {
	return newPath(t, v(0, startY), v(0, 400), v(0, -50))
}

func TestWaypointConvergence(t *testing.T) {
	ctx := newTestCtx(t, nil)
	u := New(ctx, 1, config.ClassCar, examplePath(t, 500), 100, nil)
	n := 0
	for ; n < 1000 && !u.Done(); n++ {
		tick(u)
	}
	assert.True(t, u.Done())
	assert.Equal(t, entity.DoneReasonFrameExit, u.DoneReason())
	// 路线550px，驶离到画面外约85px
	assert.Less(t, n, 400)
	assert.Greater(t, n, 360)
}

func TestConvergenceWithoutFrameDespawn(t *testing.T) {
	ctx := newTestCtx(t, func(c *config.Config) {
		disabled := false
		c.World.FrameDespawnEnabled = &disabled
	})
	u := New(ctx, 1, config.ClassCar, newPath(t, v(100, 100), v(200, 100), v(300, 100)), 100, nil)
	for i := 0; i < 1000 && !u.Done(); i++ {
		tick(u)
	}
	assert.Equal(t, entity.DoneReasonPathCompleted, u.DoneReason())
	assert.InDelta(t, 400, u.Position().X, 10)
}

func TestStopLineObedience(t *testing.T) {
	ctx := newTestCtx(t, nil)
	red := func() bool { return false }
	u := New(ctx, 1, config.ClassCar, examplePath(t, 500), 100, red)
	for i := 0; i < 120; i++ {
		tick(u)
	}
	// 红灯时对齐到停止线
	assert.Equal(t, v(0, 400), u.Position())
	assert.Equal(t, StatusWaitingAtLight, u.Status())
	assert.Equal(t, 1, u.WaypointIndex())

	for i := 0; i < 1000; i++ {
		tick(u)
	}
	assert.Equal(t, v(0, 400), u.Position())
	assert.False(t, u.Done())
	assert.Greater(t, u.WaitingTime(), 1000*dt)
}

func TestStopLineObediencePlaced(t *testing.T) {
	ctx := newTestCtx(t, nil)
	u := New(ctx, 1, config.ClassCar, examplePath(t, 500), 100, func() bool { return false })
	u.runtime.Pos = v(0, 400)
	u.runtime.Index = 1
	u.Prepare()
	for i := 0; i < 1000; i++ {
		tick(u)
		require.Equal(t, v(0, 400), u.Position())
	}
}

func TestCommitmentIrreversible(t *testing.T) {
	ctx := newTestCtx(t, nil)
	green := true
	u := New(ctx, 1, config.ClassCar, examplePath(t, 500), 100, func() bool { return green })
	for i := 0; i < 1000 && u.Position().Y > 365; i++ {
		tick(u)
	}
	require.LessOrEqual(t, u.Position().Y, 365.0)
	assert.True(t, u.Committed())

	green = false
	y := u.Position().Y
	for i := 0; i < 10; i++ {
		tick(u)
	}
	assert.Less(t, u.Position().Y, y-10)
	assert.Equal(t, StatusMoving, u.Status())
}

func TestRedInsideCommitmentZone(t *testing.T) {
	ctx := newTestCtx(t, nil)
	green := true
	u := New(ctx, 1, config.ClassCar, examplePath(t, 500), 100, func() bool { return green })
	for i := 0; i < 1000 && u.Position().Y > 380; i++ {
		tick(u)
	}
	require.False(t, u.Committed())

	green = false
	p := u.Position()
	for i := 0; i < 100; i++ {
		tick(u)
	}
	assert.Equal(t, p, u.Position())
	assert.Equal(t, StatusWaitingAtLight, u.Status())

	green = true
	tick(u)
	assert.Less(t, u.Position().Y, p.Y)
}

// 绿灯持续到2s，之后红灯直到5s
func runExample(t *testing.T, startY float64) (*RoadUser, []r2.Vec) {
	ctx := newTestCtx(t, nil)
	var now float64
	u := New(ctx, 1, config.ClassCar, examplePath(t, startY), 100, func() bool { return now < 2 })
	positions := make([]r2.Vec, 301)
	for k := 0; k <= 300; k++ {
		now = float64(k) * dt
		tick(u)
		positions[k] = u.Position()
	}
	return u, positions
}

func TestExampleScenarioPassesBeforeRed(t *testing.T) {
	u, positions := runExample(t, 500)
	assert.True(t, u.Committed())
	assert.Less(t, positions[120].Y, 370.0)
	assert.Less(t, positions[300].Y, positions[120].Y-250)
}

func TestExampleScenarioHaltsAtStopLine(t *testing.T) {
	_, positions := runExample(t, 600)
	for k := 120; k <= 300; k++ {
		assert.Equal(t, positions[120], positions[k], "tick %d", k)
	}
	assert.InDelta(t, 400, positions[120].Y, 5)

	_, positions = runExample(t, 700)
	assert.InDelta(t, 500, positions[120].Y, 2)
	for k := 200; k <= 300; k++ {
		assert.Equal(t, v(0, 400), positions[k], "tick %d", k)
	}
}

func TestDegeneratePath(t *testing.T) {
	ctx := newTestCtx(t, nil)
	u := New(ctx, 1, config.ClassCar, nil, 0, nil)
	assert.Equal(t, v(0, 0), u.Position())
	assert.Equal(t, 100.0, u.Speed())
	tick(u)
	assert.True(t, u.Done())
	assert.Equal(t, entity.DoneReasonPathCompleted, u.DoneReason())

	single := New(ctx, 2, config.ClassPedestrian, newPath(t, v(10, 10)), 0, nil)
	tick(single)
	assert.Equal(t, entity.DoneReasonPathCompleted, single.DoneReason())

	// 结束后不再变化
	tick(single)
	assert.Equal(t, entity.DoneReasonPathCompleted, single.DoneReason())
}

func TestOffscreenSpawnNotRetired(t *testing.T) {
	ctx := newTestCtx(t, nil)
	p, err := route.DefaultTable().Build("trucks_ew_right", 1024, 768)
	require.NoError(t, err)
	u := New(ctx, 1, config.ClassTruck, p, 100, nil)
	tick(u)
	assert.False(t, u.Done())
	assert.Greater(t, u.Position().X, -204.0)
}

func TestHeading(t *testing.T) {
	ctx := newTestCtx(t, nil)
	up := New(ctx, 1, config.ClassCar, examplePath(t, 500), 100, nil)
	assert.InDelta(t, 0, up.Heading(), 1e-9)
	right := New(ctx, 2, config.ClassCar, newPath(t, v(0, 0), v(100, 0), v(200, 0)), 100, nil)
	assert.InDelta(t, -90, right.Heading(), 1e-9)
}

func TestQueueBehindWaitingCar(t *testing.T) {
	ctx := newTestCtx(t, nil)
	red := func() bool { return false }
	leader := New(ctx, 1, config.ClassCar, examplePath(t, 500), 100, red)
	for i := 0; i < 100; i++ {
		tick(leader)
	}
	follower := New(ctx, 2, config.ClassCar, examplePath(t, 500), 100, red)
	for i := 0; i < 600; i++ {
		tick(leader, follower)
		require.False(t, ctx.engine.Collides(leader, follower))
	}
	gap := follower.Position().Y - leader.Position().Y
	assert.LessOrEqual(t, gap, 44.0)
	assert.Greater(t, gap, 40.0)
	assert.False(t, follower.Done())
	assert.Greater(t, follower.StoppedTime(), 5.0)
}

// runChecked 推进直到全部结束，每步检查任意两个未结束对象的碰撞外形不重叠
func runChecked(t *testing.T, ctx *testCtx, limit int, users ...*RoadUser) {
	t.Helper()
	for n := 0; n < limit; n++ {
		tick(users...)
		live := 0
		for i, a := range users {
			if a.Done() {
				continue
			}
			live++
			for _, b := range users[i+1:] {
				if !b.Done() {
					require.False(t, ctx.engine.Collides(a, b), "tick %d: %v overlaps %v", n, a, b)
				}
			}
		}
		if live == 0 {
			return
		}
	}
}

func TestCrossingTrafficNeverOverlaps(t *testing.T) {
	for _, reversed := range []bool{false, true} {
		ctx := newTestCtx(t, nil)
		a := New(ctx, 1, config.ClassCar, newPath(t, v(0, 300), v(400, 300)), 100, nil)
		b := New(ctx, 2, config.ClassCar, newPath(t, v(300, 0), v(300, 400)), 100, nil)
		order := []*RoadUser{a, b}
		if reversed {
			order = []*RoadUser{b, a}
		}
		runChecked(t, ctx, 3000, order...)
		for _, u := range order {
			assert.True(t, u.Done(), "%v", u)
			assert.Equal(t, entity.DoneReasonFrameExit, u.DoneReason(), "%v", u)
		}
	}
}

func TestMixedClassCrossing(t *testing.T) {
	ctx := newTestCtx(t, nil)
	bike := New(ctx, 1, config.ClassCyclist, newPath(t, v(300, 520), v(300, 0)), 60, nil)
	ped := New(ctx, 2, config.ClassPedestrian, newPath(t, v(400, 520), v(400, 0)), 40, nil)
	truck := New(ctx, 3, config.ClassTruck, newPath(t, v(0, 300), v(700, 300)), 80, nil)
	runChecked(t, ctx, 6000, bike, ped, truck)
	for _, u := range []*RoadUser{bike, ped, truck} {
		assert.True(t, u.Done(), "%v", u)
		assert.Equal(t, entity.DoneReasonFrameExit, u.DoneReason(), "%v", u)
	}
}
