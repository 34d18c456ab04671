package task

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/clock"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/collision"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/junction"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/roaduser"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/route"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/spawner"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/stats"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/container"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/feed"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/input"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/output"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/randengine"
	"gonum.org/v1/gonum/spatial/r2"
)

var log = logrus.WithField("module", "task")

// openNotifier 连接MQTT broker，测试中可替换
var openNotifier = output.NewNotifier

var (
	ErrUnknownRoute    = errors.New("task: spawner refers to unknown route")
	ErrDegenerateRoute = errors.New("task: route has fewer than two waypoints")
)

// spawnSlot 一个生成器及其路线、闸门
type spawnSlot struct {
	cfg      config.Spawner
	spawner  *spawner.Spawner[roaduser.RoadUser]
	routes   []*route.Path
	weights  []float64
	starts   []r2.Vec // 各路线起点（去重）
	canCross entity.CrossingPredicate
	held     bool // 到期的生成正被准入条件挡住
}

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态
// 说明：持有时钟、信号控制器、碰撞引擎、生成器与交通参与者集合；只在单线程中按固定顺序驱动
type Context struct {
	// 运行ID，写入统计结果
	runID string

	// 时钟
	clock *clock.Clock
	// 运行时配置
	runtimeConfig *config.RuntimeConfig

	// 信号控制器
	controller *junction.Controller
	// 碰撞引擎
	engine *collision.Engine
	// 像素坐标路线
	paths map[string]*route.Path
	// 生成器
	slots []*spawnSlot
	// 交通参与者
	users *container.IncrementalArray[*roaduser.RoadUser]
	// 本步新生成、尚未写入users的交通参与者
	pending []*roaduser.RoadUser
	// 下一个ID
	nextID int32

	// 统计
	stats    *stats.Recorder
	sink     *output.Sink
	notifier *output.Notifier

	// 画面数据推送（可选）
	feed      *feed.Hub
	feedEvery int32
}

// NewContext 创建新的仿真任务上下文
// 功能：初始化仿真系统的所有组件
// 参数：c-配置对象
// 返回：初始化完成的Context，配置或输入数据非法时返回错误
// 算法说明：
// 1. 构造运行时配置（填充默认值并校验）
// 2. 加载路线表并按画面尺寸缩放
// 3. 创建信号控制器与碰撞引擎
// 4. 为每个生成器解析路线、权重与信号灯闸门
// 5. 创建统计记录与输出（MongoDB、MQTT）
func NewContext(c config.Config) (_ *Context, err error) {
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		return nil, err
	}
	in, err := input.Init(c)
	if err != nil {
		return nil, err
	}
	log.Infof("routes: %d from %s", len(in.Routes), in.Source)
	paths, err := in.Routes.BuildAll(rc.W.Width, rc.W.Height)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		runID:         uuid.NewString(),
		clock:         clock.New(rc.C.Step),
		runtimeConfig: rc,
		controller:    junction.NewController(rc.Lights),
		engine:        collision.NewEngine(rc),
		paths:         paths,
		users:         container.NewIncrementalArray[*roaduser.RoadUser](),
		stats:         stats.NewRecorder(),
		nextID:        1,
	}
	if ctx.notifier, err = openNotifier(c.Output.MQTT, ctx.runID); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			ctx.notifier.Close()
		}
	}()
	ctx.controller.OnPhase(func(p junction.Phase) {
		ctx.stats.PhaseChanged()
		ctx.notifier.PhaseChanged(output.PhaseEvent{
			RunID: ctx.runID,
			Step:  ctx.clock.InternalStep,
			T:     ctx.clock.T,
			Phase: p.String(),
		})
	})

	for i, sc := range rc.Spawners {
		slot, err := ctx.newSpawnSlot(sc, randengine.New(rc.C.Seed+uint64(i)))
		if err != nil {
			return nil, err
		}
		ctx.slots = append(ctx.slots, slot)
	}

	if ctx.sink, err = output.NewSink(c.Output); err != nil {
		return nil, err
	}
	return ctx, nil
}

// newSpawnSlot 创建生成器
func (ctx *Context) newSpawnSlot(sc config.Spawner, generator *randengine.Engine) (*spawnSlot, error) {
	names := make([]string, len(sc.Routes))
	slot := &spawnSlot{cfg: sc}
	for i, rw := range sc.Routes {
		names[i] = rw.Name
		w := rw.Weight
		if w <= 0 {
			w = 1
		}
		slot.weights = append(slot.weights, w)
	}
	routes, failed := utils.Find(ctx.paths, names)
	if len(failed) > 0 {
		return nil, fmt.Errorf("%w: spawner %q: %v", ErrUnknownRoute, sc.Name, failed)
	}
	slot.routes = routes
	slot.starts = lo.Uniq(lo.FilterMap(routes, func(p *route.Path, _ int) (r2.Vec, bool) { return p.Start() }))
	pred, err := ctx.controller.Predicate(sc.Gate)
	if err != nil {
		return nil, fmt.Errorf("spawner %q: %w", sc.Name, err)
	}
	slot.canCross = pred
	slot.spawner = spawner.New(spawner.Params{
		Name:         sc.Name,
		Interval:     sc.Interval,
		Jitter:       sc.Jitter,
		MaxCount:     sc.MaxCount,
		RerollJitter: sc.RerollJitter,
	}, func() (*roaduser.RoadUser, error) {
		p := slot.routes[generator.DiscreteDistribution(slot.weights)]
		if p.Len() < 2 {
			return nil, fmt.Errorf("%w: %s", ErrDegenerateRoute, p.Name())
		}
		u := roaduser.New(ctx, ctx.nextID, sc.Class, p, sc.Speed, slot.canCross)
		ctx.nextID++
		return u, nil
	}, generator)
	log.Infof("spawner %s: class=%s gate=%s routes=%v interval=%.1fs offset=%.2fs",
		sc.Name, sc.Class, sc.Gate, names, sc.Interval, slot.spawner.Offset())
	return slot, nil
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Collision() entity.ICollisionEngine {
	return ctx.engine
}

func (ctx *Context) Controller() *junction.Controller {
	return ctx.controller
}

func (ctx *Context) RunID() string {
	return ctx.runID
}

// Users 当前存活的交通参与者（供绘制使用）
func (ctx *Context) Users() []*roaduser.RoadUser {
	return ctx.users.Data()
}

// Summary 当前统计摘要
func (ctx *Context) Summary() stats.Summary {
	return ctx.stats.Summary(ctx.runID, ctx.clock.InternalStep-ctx.clock.START_STEP, ctx.clock.T, ctx.users.Len())
}

// SetFeed 设置画面数据推送
// 参数：hub-广播中心，every-每隔多少步推送一帧（<=0时每步推送）
func (ctx *Context) SetFeed(hub *feed.Hub, every int32) {
	ctx.feed = hub
	ctx.feedEvery = max(every, 1)
}

// Frame 当前画面数据
func (ctx *Context) Frame() feed.Frame {
	return feed.NewFrame(ctx.runID, ctx.clock.InternalStep, ctx.clock.T, ctx.controller, ctx.users.Data())
}

// Close 关闭输出
func (ctx *Context) Close() {
	ctx.sink.Close()
	ctx.notifier.Close()
}
