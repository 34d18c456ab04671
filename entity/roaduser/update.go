package roaduser

import (
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
	"gonum.org/v1/gonum/spatial/r2"
)

// Update 更新阶段，推进一个时间步
// 功能：执行出画检查、停止线检查、路点推进与带避撞的运动
// 参数：dt-时间步长，others-所有对象的快照（可以包含自身）
// 算法说明：
// 1. 已结束则直接返回
// 2. 出画检查：进入过画面（或处于驶离阶段）后离开扩展画面则以FrameExit结束
// 3. 停止线检查：未承诺且红灯时，在停止线上保持静止，接近停止线时不越过停止线
// 4. 路点推进：距离下一路点小于容差时推进下标，同一步内继续向新目标运动；转向后的外形与其他对象重叠时暂不推进
// 5. 路点耗尽后沿驶离方向全速行驶
// 6. 运动：跟车速度系数为0时停车；否则候选位置需同时通过严格重叠检查与紧急停车检查
func (u *RoadUser) Update(dt float64, others []entity.IRoadUser) {
	rt := &u.runtime
	if rt.Status == StatusDone {
		return
	}
	rt.TotalTime += dt

	if u.path.Len() == 0 {
		log.Warnf("road user %d: degenerate path, retired", u.id)
		u.finish(entity.DoneReasonPathCompleted)
		return
	}
	if u.checkFrameExit() {
		return
	}
	u.checkIndex()

	before := rt.Pos
	u.step(dt, others)
	if rt.Status == StatusDone {
		return
	}

	if r2.Norm(r2.Sub(rt.Pos, before)) > minMoveDistance {
		rt.StoppedTime = 0
		if dir, ok := u.direction(rt); ok {
			rt.Heading = headingOf(dir)
		}
	} else {
		rt.StoppedTime += dt
	}
	if timeout := u.ctx.RuntimeConfig().W.StuckTimeout; timeout > 0 && rt.BlockedTime >= timeout {
		log.Warnf("road user %d: blocked for %.1fs at (%.1f,%.1f), retired", u.id, rt.BlockedTime, rt.Pos.X, rt.Pos.Y)
		u.finish(entity.DoneReasonCollision)
	}
}

// finish 结束，结束原因只在第一次结束时记录
func (u *RoadUser) finish(reason entity.DoneReason) {
	rt := &u.runtime
	if rt.Status == StatusDone {
		return
	}
	rt.Status = StatusDone
	rt.DoneReason = reason
	log.Debugf("road user %d done: %v after %.2fs", u.id, reason, rt.TotalTime)
}

// checkFrameExit 出画检查
// 返回：是否已因出画结束
func (u *RoadUser) checkFrameExit() bool {
	rc := u.ctx.RuntimeConfig()
	if !rc.FrameDespawnEnabled() {
		return false
	}
	rt := &u.runtime
	m := rc.W.DespawnBuffer + u.class.Size()
	inside := rt.Pos.X >= -m && rt.Pos.X <= rc.W.Width+m &&
		rt.Pos.Y >= -m && rt.Pos.Y <= rc.W.Height+m
	if inside {
		rt.EnteredFrame = true
		return false
	}
	if rt.EnteredFrame || rt.Status == StatusExiting {
		u.finish(entity.DoneReasonFrameExit)
		return true
	}
	return false
}

// checkIndex 路点下标越界检查
func (u *RoadUser) checkIndex() {
	rt := &u.runtime
	if rt.Index >= 0 && rt.Index < u.path.Len() {
		return
	}
	if *debugAssert {
		log.Panicf("road user %d: waypoint index %d out of range [0,%d)", u.id, rt.Index, u.path.Len())
	}
	log.Errorf("road user %d: waypoint index %d out of range [0,%d), clamped", u.id, rt.Index, u.path.Len())
	rt.Index = max(0, min(rt.Index, u.path.Len()-1))
}

// step 停止线检查、路点推进与运动
func (u *RoadUser) step(dt float64, others []entity.IRoadUser) {
	rt := &u.runtime
	w := u.ctx.RuntimeConfig().W
	last := u.path.Len() - 1

	// 停止线检查
	hold := false
	ci, hasCross := u.path.CrossIndex()
	if hasCross && !rt.Committed {
		switch {
		case rt.Index > ci || u.path.DistancePastStopLine(rt.Pos) > w.CommitmentDistance:
			rt.Committed = true
		case !u.canCross():
			if rt.Index == ci {
				u.setStatus(StatusWaitingAtLight)
				rt.WaitingTime += dt
				rt.BlockedTime = 0
				return
			}
			hold = true
		}
	}

	// 路点推进
	for rt.Index < last && r2.Norm(r2.Sub(u.path.Point(rt.Index+1), rt.Pos)) < w.WaypointTolerance {
		if hold && rt.Index+1 == ci {
			u.arriveAtStopLine(dt, others)
			return
		}
		if u.overlapsAfter(rt.Pos, rt.Index+1, others) {
			rt.BlockedTime += dt
			return
		}
		rt.Index++
		if rt.Index == last {
			rt.ExitDir, rt.ExitDirOk = u.path.ExitDirection()
			rt.ExitTraveled = 0
		}
	}
	if rt.Index >= last {
		u.exit(dt, others)
		return
	}
	u.setStatus(StatusMoving)

	// 运动
	engine := u.ctx.Collision()
	view := liveView{u}
	target := u.path.Point(rt.Index + 1)
	toTarget := r2.Sub(target, rt.Pos)
	dist := r2.Norm(toTarget)
	if dist <= minMoveDistance {
		return
	}
	dir := r2.Scale(1/dist, toTarget)
	factor := engine.FollowingSpeedFactor(view, others)
	if factor == 0 {
		rt.BlockedTime = 0
		return
	}
	v := u.speed * factor
	candidate := target
	if s := v * dt; s < dist {
		candidate = r2.Add(rt.Pos, r2.Scale(s, dir))
	}
	index := rt.Index
	if hold && candidate == target && rt.Index+1 == ci {
		index = ci
	}
	if u.overlapsAfter(candidate, index, others) || engine.EmergencyBlocked(view, candidate, v, others) {
		rt.BlockedTime += dt
		return
	}
	rt.BlockedTime = 0
	rt.Pos = candidate
	if index != rt.Index {
		rt.Index = index
		u.setStatus(StatusWaitingAtLight)
	}
}

// arriveAtStopLine 红灯时到达停止线容差范围内，对齐到停止线并等待
func (u *RoadUser) arriveAtStopLine(dt float64, others []entity.IRoadUser) {
	rt := &u.runtime
	ci, _ := u.path.CrossIndex()
	stop := u.path.Point(ci)
	if u.overlapsAfter(stop, ci, others) {
		rt.BlockedTime += dt
		return
	}
	rt.Pos = stop
	rt.BlockedTime = 0
	rt.Index = ci
	u.setStatus(StatusWaitingAtLight)
	rt.WaitingTime += dt
}

// exit 路点耗尽后沿驶离方向行驶
// 说明：驶离阶段不做跟车与紧急停车检查，只做严格重叠检查；
// 不启用出画删除时，驶离超过exit_distance后以PathCompleted结束
func (u *RoadUser) exit(dt float64, others []entity.IRoadUser) {
	rt := &u.runtime
	if !rt.ExitDirOk {
		u.finish(entity.DoneReasonPathCompleted)
		return
	}
	u.setStatus(StatusExiting)
	s := u.speed * dt
	candidate := r2.Add(rt.Pos, r2.Scale(s, rt.ExitDir))
	if u.ctx.Collision().OverlapBlocked(liveView{u}, candidate, rt.ExitDir, others) {
		rt.BlockedTime += dt
		return
	}
	rt.BlockedTime = 0
	rt.Pos = candidate
	rt.ExitTraveled += s
	rc := u.ctx.RuntimeConfig()
	if !rc.FrameDespawnEnabled() && rt.ExitTraveled > rc.W.ExitDistance {
		u.finish(entity.DoneReasonPathCompleted)
	}
}

// overlapsAfter 以移动后的位置与路点下标做严格重叠检查
// 说明：外形朝向取移动后Direction的返回值，保证检查的外形与其他对象随后看到的外形一致
func (u *RoadUser) overlapsAfter(pos r2.Vec, index int, others []entity.IRoadUser) bool {
	next := u.runtime
	next.Pos, next.Index = pos, index
	if index >= u.path.Len()-1 && next.Status != StatusExiting {
		next.ExitDir, next.ExitDirOk = u.path.ExitDirection()
	}
	heading, ok := u.direction(&next)
	if !ok {
		heading, _ = u.direction(&u.runtime)
	}
	return u.ctx.Collision().OverlapBlocked(liveView{u}, pos, heading, others)
}

func (u *RoadUser) setStatus(s Status) {
	u.runtime.Status = s
}
