// 仿真统计：生成、拒绝、结束原因、碰撞与等待时间
package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
)

// 拒绝生成的原因
const (
	RejectAdmission = "admission" // 总量或起点附近数量超限，每次被挡住的到期生成计一次
	RejectUnsafe    = "unsafe"    // 生成点附近有对象
	RejectFactory   = "factory"   // 生成函数失败
)

type finished struct {
	class   string
	reason  entity.DoneReason
	total   float64
	waiting float64
}

// Recorder 统计记录器
// 说明：只由仿真循环在单线程中调用
type Recorder struct {
	spawned      map[string]int
	rejected     map[string]int
	finished     []finished
	collisions   int
	phaseChanges int
	overlapping  map[[2]int32]struct{} // 上一步仍处于重叠的对象对
}

func NewRecorder() *Recorder {
	return &Recorder{
		spawned:     make(map[string]int),
		rejected:    make(map[string]int),
		overlapping: make(map[[2]int32]struct{}),
	}
}

// Spawned 记录一次生成
func (r *Recorder) Spawned(class string) {
	r.spawned[class]++
}

// Rejected 记录一次被拒绝的生成
func (r *Recorder) Rejected(reason string) {
	r.rejected[reason]++
}

// Finished 记录一个对象结束
func (r *Recorder) Finished(class string, reason entity.DoneReason, totalTime, waitingTime float64) {
	r.finished = append(r.finished, finished{class: class, reason: reason, total: totalTime, waiting: waitingTime})
}

// PhaseChanged 记录一次相位切换
func (r *Recorder) PhaseChanged() {
	r.phaseChanges++
}

// ObserveOverlaps 记录本步的重叠对象对
// 功能：与上一步比较，只把新出现的重叠对记为一次碰撞
// 返回：新出现的重叠对
func (r *Recorder) ObserveOverlaps(pairs [][2]int32) [][2]int32 {
	current := make(map[[2]int32]struct{}, len(pairs))
	var fresh [][2]int32
	for _, p := range pairs {
		current[p] = struct{}{}
		if _, ok := r.overlapping[p]; !ok {
			fresh = append(fresh, p)
		}
	}
	r.overlapping = current
	r.collisions += len(fresh)
	return fresh
}

// Summary 统计摘要
type Summary struct {
	RunID          string         `bson:"run_id" yaml:"run_id" json:"run_id"`
	Steps          int32          `bson:"steps" yaml:"steps" json:"steps"`
	SimTime        float64        `bson:"sim_time" yaml:"sim_time" json:"sim_time"`
	Live           int            `bson:"live" yaml:"live" json:"live"`
	SpawnedByClass map[string]int `bson:"spawned_by_class" yaml:"spawned_by_class" json:"spawned_by_class"`
	Rejected       map[string]int `bson:"rejected" yaml:"rejected" json:"rejected"`
	DoneByReason   map[string]int `bson:"done_by_reason" yaml:"done_by_reason" json:"done_by_reason"`
	Collisions     int            `bson:"collisions" yaml:"collisions" json:"collisions"`
	PhaseChanges   int            `bson:"phase_changes" yaml:"phase_changes" json:"phase_changes"`
	AvgTotalTime   float64        `bson:"avg_total_time" yaml:"avg_total_time" json:"avg_total_time"`
	AvgWaitingTime float64        `bson:"avg_waiting_time" yaml:"avg_waiting_time" json:"avg_waiting_time"`
}

// Summary 生成统计摘要
// 参数：runID-运行ID，steps-已执行步数，simTime-仿真时间，live-仍存活的对象数
func (r *Recorder) Summary(runID string, steps int32, simTime float64, live int) Summary {
	s := Summary{
		RunID:          runID,
		Steps:          steps,
		SimTime:        simTime,
		Live:           live,
		SpawnedByClass: lo.Assign(r.spawned),
		Rejected:       lo.Assign(r.rejected),
		DoneByReason: lo.MapValues(
			lo.GroupBy(r.finished, func(f finished) string { return f.reason.String() }),
			func(fs []finished, _ string) int { return len(fs) },
		),
		Collisions:   r.collisions,
		PhaseChanges: r.phaseChanges,
	}
	if n := len(r.finished); n > 0 {
		s.AvgTotalTime = lo.SumBy(r.finished, func(f finished) float64 { return f.total }) / float64(n)
		s.AvgWaitingTime = lo.SumBy(r.finished, func(f finished) float64 { return f.waiting }) / float64(n)
	}
	return s
}

// Total 生成总数
func (s Summary) Total() int {
	return lo.Sum(lo.Values(s.SpawnedByClass))
}

func formatCounts(m map[string]int) string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return strings.Join(lo.Map(keys, func(k string, _ int) string { return fmt.Sprintf("%s=%d", k, m[k]) }), ",")
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"run %s: steps=%d t=%.1fs live=%d spawned=%d[%s] rejected=[%s] done=[%s] collisions=%d phases=%d avg_time=%.2fs avg_wait=%.2fs",
		s.RunID, s.Steps, s.SimTime, s.Live, s.Total(), formatCounts(s.SpawnedByClass),
		formatCounts(s.Rejected), formatCounts(s.DoneByReason), s.Collisions, s.PhaseChanges,
		s.AvgTotalTime, s.AvgWaitingTime,
	)
}
