// 按时间间隔生成交通参与者的生成器
package spawner

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/randengine"
)

var log = logrus.WithField("module", "spawner")

var (
	ErrFactory = errors.New("spawner: factory failed")
)

// Factory 生成函数
type Factory[T any] func() (*T, error)

// Params 生成器参数
type Params struct {
	Name         string
	Interval     float64 // 生成间隔（秒）
	Jitter       float64 // 抖动上限，偏移量取自[0, Jitter)
	MaxCount     int32   // 生成上限，<=0表示不限
	RerollJitter bool    // 每次生成后重新抽取偏移量
}

// Spawner 生成器
// 功能：累加时间，累计时间加偏移量达到间隔时调用生成函数
// 说明：生成后累计时间减去一个间隔，余量保留；调用方不允许生成时时间照常累计
type Spawner[T any] struct {
	params    Params
	factory   Factory[T]
	generator *randengine.Engine

	offset  float64 // 当前偏移量
	acc     float64 // 累计时间
	spawned int32   // 已生成数量（含生成函数失败的次数）
}

// New 创建生成器
// 参数：params-生成器参数，factory-生成函数，generator-随机数引擎（用于抽取偏移量）
func New[T any](params Params, factory Factory[T], generator *randengine.Engine) *Spawner[T] {
	s := &Spawner[T]{
		params:    params,
		factory:   factory,
		generator: generator,
	}
	s.offset = s.drawOffset()
	return s
}

func (s *Spawner[T]) drawOffset() float64 {
	if s.params.Jitter <= 0 || s.generator == nil {
		return 0
	}
	return s.generator.Uniform(0, s.params.Jitter)
}

// Update 推进时间并在需要时生成
// 参数：dt-时间步长，admit-调用方是否允许生成
// 返回：新生成的对象；不生成时为nil；生成函数失败时返回包装了ErrFactory的错误
// 算法说明：
// 1. 总是累加dt
// 2. 不允许生成或已达上限时返回nil
// 3. 累计时间加偏移量达到间隔时，累计时间减去间隔，计数加一，调用生成函数
func (s *Spawner[T]) Update(dt float64, admit bool) (*T, error) {
	s.acc += dt
	if !admit || s.Capped() {
		return nil, nil
	}
	if !s.Due() {
		return nil, nil
	}
	s.acc -= s.params.Interval
	s.spawned++
	if s.params.RerollJitter {
		s.offset = s.drawOffset()
	}
	v, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFactory, s.params.Name, err)
	}
	if s.Capped() {
		log.Debugf("spawner %s reached max count %d", s.params.Name, s.params.MaxCount)
	}
	return v, nil
}

// Due 累计时间加偏移量是否已达到间隔
func (s *Spawner[T]) Due() bool {
	return s.acc+s.offset >= s.params.Interval
}

// Capped 是否已达生成上限
func (s *Spawner[T]) Capped() bool {
	return s.params.MaxCount > 0 && s.spawned >= s.params.MaxCount
}

func (s *Spawner[T]) Name() string {
	return s.params.Name
}

func (s *Spawner[T]) Spawned() int32 {
	return s.spawned
}

// Accumulator 累计时间
func (s *Spawner[T]) Accumulator() float64 {
	return s.acc
}

// Offset 当前偏移量
func (s *Spawner[T]) Offset() float64 {
	return s.offset
}
