package task

import (
	"context"
	"flag"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/roaduser"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/stats"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：推进时钟并输出心跳日志
func (ctx *Context) prepare() {
	ctx.clock.Advance()

	if interval := int32(*heartBeatInterval); interval > 0 && ctx.clock.InternalStep%interval == 0 {
		log.Infof("STEP: %d(%s) live=%d phase=%v",
			ctx.clock.InternalStep, ctx.clock, ctx.users.Len(), ctx.controller.Phase())
	}
}

// update 更新阶段，每步执行一次
// 功能：按固定顺序推进一个时间步
// 算法说明：
// 1. 信号控制器推进
// 2. 生成器推进：通过准入与安全检查后加入新对象
// 3. 交通参与者按加入顺序逐个更新，每个对象更新后立即写入快照，后更新的对象能看到先更新对象本步的位置
// 4. 重叠检查：只用于统计与日志，不影响运动
// 5. 移除已结束的对象并记录统计
func (ctx *Context) update() {
	dt := ctx.clock.DT

	ctx.controller.Update(dt)

	ctx.pending = ctx.pending[:0]
	for _, slot := range ctx.slots {
		ctx.updateSpawner(slot, dt)
	}
	for _, u := range ctx.pending {
		ctx.users.Add(u)
	}
	ctx.users.Prepare()

	users := ctx.users.Data()
	snapshot := lo.Map(users, func(u *roaduser.RoadUser, _ int) entity.IRoadUser { return u })
	for _, u := range users {
		u.Update(dt, snapshot)
		u.Prepare()
	}

	if fresh := ctx.stats.ObserveOverlaps(ctx.engine.Overlapping(snapshot)); len(fresh) > 0 {
		log.Warnf("step %d: overlapping pairs %v", ctx.clock.InternalStep, fresh)
	}

	removed := 0
	for _, u := range users {
		if u.Done() {
			ctx.stats.Finished(u.ClassName(), u.DoneReason(), u.TotalTime(), u.WaitingTime())
			ctx.users.Remove(u)
			removed++
		}
	}
	if removed > 0 {
		ctx.users.Prepare()
	}
}

// updateSpawner 推进一个生成器
// 说明：准入条件不满足时生成器仍然累计时间，满足后立即补发；
// 一次到期的生成被准入条件挡住时只计入一次拒绝统计，直到该次生成发出或不再到期
func (ctx *Context) updateSpawner(slot *spawnSlot, dt float64) {
	admit := ctx.admit(slot)
	u, err := slot.spawner.Update(dt, admit)
	if !admit && !slot.spawner.Capped() && slot.spawner.Due() {
		if !slot.held {
			slot.held = true
			ctx.stats.Rejected(stats.RejectAdmission)
		}
	} else {
		slot.held = false
	}
	if err != nil {
		log.Errorf("step %d: %v", ctx.clock.InternalStep, err)
		ctx.stats.Rejected(stats.RejectFactory)
		return
	}
	if u == nil {
		return
	}
	if !ctx.safeToSpawn(u) {
		log.Debugf("step %d: spawner %s: %v too close to existing road users, dropped",
			ctx.clock.InternalStep, slot.cfg.Name, u)
		ctx.stats.Rejected(stats.RejectUnsafe)
		return
	}
	ctx.pending = append(ctx.pending, u)
	ctx.stats.Spawned(u.ClassName())
	log.Debugf("step %d: spawner %s: new %v", ctx.clock.InternalStep, slot.cfg.Name, u)
}

// live 存活对象与本步待加入对象
func (ctx *Context) live() []*roaduser.RoadUser {
	live := lo.Filter(ctx.users.Data(), func(u *roaduser.RoadUser, _ int) bool { return !u.Done() })
	return append(live, ctx.pending...)
}

// admit 准入判断
// 算法说明：
// 1. 存活对象总数（含本步待加入）不超过上限
// 2. 该生成器的每个路线起点附近半径内，起点相同的存活对象数少于上限
func (ctx *Context) admit(slot *spawnSlot) bool {
	live := ctx.live()
	if len(live) >= ctx.runtimeConfig.C.MaxTotalAgents {
		return false
	}
	a := ctx.runtimeConfig.Admission
	for _, start := range slot.starts {
		nearby := lo.CountBy(live, func(u *roaduser.RoadUser) bool {
			s, ok := u.PathStart()
			return ok && s == start && r2.Norm(r2.Sub(u.Position(), start)) < a.Radius
		})
		if nearby >= a.MaxNearby {
			return false
		}
	}
	return true
}

// safeToSpawn 生成位置安全检查
// 算法说明：
// 1. 与任意存活对象的距离需不小于max(最小生成距离, 新对象碰撞半径*跟车距离倍率+已有对象碰撞半径)
// 2. 碰撞外形不得与任意存活对象重叠
func (ctx *Context) safeToSpawn(u *roaduser.RoadUser) bool {
	minDist := ctx.runtimeConfig.Admission.MinSpawnDistance
	p := u.Params()
	reach := p.CollisionRadius * p.FollowingDistanceMultiplier
	pos := u.Position()
	for _, other := range ctx.live() {
		required := max(minDist, reach+other.Params().CollisionRadius)
		if r2.Norm(r2.Sub(pos, other.Position())) < required || ctx.engine.Collides(u, other) {
			return false
		}
	}
	return true
}

// Step 推进一个时间步
// 返回：是否已到达结束步
func (ctx *Context) Step() bool {
	if ctx.clock.Finished() {
		return true
	}
	ctx.update()
	if ctx.feed != nil && ctx.clock.InternalStep%ctx.feedEvery == 0 {
		if err := ctx.feed.Broadcast(ctx.Frame()); err != nil {
			log.Errorf("step %d: broadcast frame: %v", ctx.clock.InternalStep, err)
		}
	}
	ctx.prepare()
	return ctx.clock.Finished()
}

// Run 运行
// 功能：推进仿真直到结束步，写出统计摘要
// 返回：统计摘要
func (ctx *Context) Run() stats.Summary {
	log.Infof("run %s: steps [%d, %d) dt=%.3fs, %d spawners",
		ctx.runID, ctx.clock.START_STEP, ctx.clock.END_STEP, ctx.clock.DT, len(ctx.slots))
	for !ctx.Step() {
	}
	summary := ctx.Summary()
	log.Infof("engine complete")
	if err := ctx.sink.Write(context.Background(), summary); err != nil {
		log.Errorf("write summary failed: %v", err)
	}
	if err := ctx.notifier.Summary(summary); err != nil {
		log.Errorf("publish summary failed: %v", err)
	}
	ctx.Close()
	return summary
}
