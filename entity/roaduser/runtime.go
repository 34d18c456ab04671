package roaduser

import (
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
	"gonum.org/v1/gonum/spatial/r2"
)

// Status 交通参与者状态
type Status int32

const (
	StatusMoving         Status = iota // 沿路点行驶（含因避撞停止）
	StatusWaitingAtLight               // 停止线前等待信号灯
	StatusExiting                      // 已到达最后路点，沿驶离方向行驶
	StatusDone                         // 已结束
)

func (s Status) String() string {
	switch s {
	case StatusMoving:
		return "moving"
	case StatusWaitingAtLight:
		return "waiting_at_light"
	case StatusExiting:
		return "exiting"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// runtime 交通参与者运行时数据结构
// 说明：该数据结构需要可以被直接复制，不应产生浅拷贝带来的副作用
type runtime struct {
	Status     Status
	DoneReason entity.DoneReason

	Index int    // 当前所在路点下标（已到达的最后一个路点）
	Pos   r2.Vec // 位置

	Committed    bool    // 已越过停止线承诺距离，不再检查信号灯
	EnteredFrame bool    // 是否进入过画面（含缓冲区）
	ExitDir      r2.Vec  // 驶离方向
	ExitDirOk    bool    // 驶离方向是否有效
	ExitTraveled float64 // 驶离最后路点后行驶的距离
	Heading      float64 // 最近一次有效朝向（角度）

	TotalTime   float64 // 存在时间
	StoppedTime float64 // 连续停止时间
	WaitingTime float64 // 累计等灯时间
	BlockedTime float64 // 因避撞检查连续停止的时间
}
