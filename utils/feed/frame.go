package feed

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/junction"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/roaduser"
)

// LightView 信号灯状态
type LightView struct {
	Name    string  `json:"name"`
	State   string  `json:"state"`
	Elapsed float64 `json:"elapsed"`
}

// UserView 交通参与者的绘制数据
type UserView struct {
	ID      int32   `json:"id"`
	Class   string  `json:"class"`
	Route   string  `json:"route"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"` // 度，屏幕坐标系
	Width   float64 `json:"width"`
	Length  float64 `json:"length"`
	Status  string  `json:"status"`
}

// Frame 一帧画面数据
// 说明：只包含绘制所需的只读数据，在步末（快照写入之后）构造
type Frame struct {
	Type   string      `json:"type"`
	RunID  string      `json:"run_id"`
	Step   int32       `json:"step"`
	T      float64     `json:"t"`
	Phase  string      `json:"phase"`
	Lights []LightView `json:"lights"`
	Users  []UserView  `json:"users"`
}

// NewFrame 构造一帧画面数据
// 参数：runID-运行ID，step-步数，t-仿真时间，controller-信号控制器，users-存活的交通参与者
func NewFrame(runID string, step int32, t float64, controller *junction.Controller, users []*roaduser.RoadUser) Frame {
	return Frame{
		Type:  "frame",
		RunID: runID,
		Step:  step,
		T:     t,
		Phase: controller.Phase().String(),
		Lights: lo.Map(controller.Lights(), func(l junction.ITrafficLightGetter, _ int) LightView {
			return LightView{Name: l.Name(), State: l.State().String(), Elapsed: l.Elapsed()}
		}),
		Users: lo.FilterMap(users, func(u *roaduser.RoadUser, _ int) (UserView, bool) {
			if u.Done() {
				return UserView{}, false
			}
			pos := u.Position()
			c := u.Class()
			return UserView{
				ID:      u.ID(),
				Class:   u.ClassName(),
				Route:   u.Path().Name(),
				X:       pos.X,
				Y:       pos.Y,
				Heading: u.Heading(),
				Width:   c.Width,
				Length:  c.Length,
				Status:  u.Status().String(),
			}, true
		}),
	}
}
