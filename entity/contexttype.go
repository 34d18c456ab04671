package entity

import (
	"github.com/tsinghua-fib-lab/crossing-sim-oss/clock"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
	"gonum.org/v1/gonum/spatial/r2"
)

// entity/collision的依赖倒置
type ICollisionEngine interface {
	// 跟车速度系数，只有0（停车）与1（全速）两种取值
	FollowingSpeedFactor(self IRoadUser, others []IRoadUser) float64
	// 在candidate位置、heading朝向下是否与其他对象的碰撞矩形重叠
	OverlapBlocked(self IRoadUser, candidate, heading r2.Vec, others []IRoadUser) bool
	// 紧急停车距离检查，speed为本步实际速度
	EmergencyBlocked(self IRoadUser, candidate r2.Vec, speed float64, others []IRoadUser) bool
}

type ITaskContext interface {
	Clock() *clock.Clock
	RuntimeConfig() *config.RuntimeConfig
	Collision() ICollisionEngine
}
