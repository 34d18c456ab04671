// 随机数引擎，包装了golang.org/x/exp/rand，为生成器的抖动与路线选择提供可复现的随机数
package randengine

import (
	"flag"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于在不改配置的情况下得到另一组随机序列
)

var log = logrus.WithField("module", "randengine")

// Engine 随机数引擎
// 说明：仿真循环是单线程的，引擎不加锁；每个生成器持有独立的引擎，互不影响随机序列
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 参数：seed-随机数种子，实际种子为seed加上-rand.seed_offset
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// DiscreteDistribution 按给定权重生成随机下标
// 参数：weight-权重数组，元素须非负且总和为正
// 返回：[0, len(weight))范围内的下标
// 算法说明：在[0, 总权重)上取随机数，返回累积权重第一次超过该随机数的下标
func (e *Engine) DiscreteDistribution(weight []float64) int32 {
	random := .0
	for _, w := range weight {
		random += w
	}
	if random <= 0 {
		log.Panicf("randengine: DiscreteDistribution: non-positive total weight %v", weight)
	}
	random *= e.Float64()
	sum := 0.
	for i, w := range weight {
		sum += w
		if sum > random {
			return int32(i)
		}
	}
	log.Panicf("randengine: DiscreteDistribution: sum: %f random: %f", sum, random)
	return -1
}

// PTrue 以概率p返回true
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Uniform 生成[lo, hi)范围内均匀分布的浮点数，hi<=lo时返回lo
func (e *Engine) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + e.Float64()*(hi-lo)
}
