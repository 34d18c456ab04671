package container

import (
	"sync"
)

// IIncrementalItem 支持增量更新的元素接口
// 功能：定义支持增量更新的元素必须实现的方法
// 说明：用于增量数组中元素的索引管理，确保元素能够正确跟踪自己在数组中的位置
type IIncrementalItem interface {
	Index() int         // 获取元素的索引
	SetIndex(index int) // 设置元素的索引
}

// IncrementalItemBase 增量元素基类
// 功能：提供增量元素的基础实现，包含索引管理功能
// 说明：可以作为其他结构体的嵌入字段，快速实现IIncrementalItem接口
type IncrementalItemBase struct {
	index int // 元素在数组中的索引
}

// Index 元素在数组中的索引
func (b *IncrementalItemBase) Index() int {
	return b.index
}

// SetIndex 由IncrementalArray在Prepare时调用
func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 增量数组，支持增量维护元素的数组
// 功能：保存仿真中存活的交通参与者，新生成与已结束的对象在步末统一生效
// 说明：更新阶段内Data()保持不变，Add/Remove只记录，在Prepare时统一执行
type IncrementalArray[T IIncrementalItem] struct {
	data        []T        // 主数据数组
	add         []T        // 待添加的元素列表
	remove      []T        // 待删除的元素列表
	addMutex    sync.Mutex // 添加操作的互斥锁
	removeMutex sync.Mutex // 删除操作的互斥锁
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

// Len 已生效的元素个数（不含待添加）
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 获取原始数据
// 说明：返回内部数组本身，调用方不得修改；下一次Prepare后可能失效
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Add 增加元素（等到Prepare时才会真正增加）
// 功能：将元素添加到待添加列表中
// 参数：value-要添加的元素
// 说明：元素不会立即添加到主数组中
func (a *IncrementalArray[T]) Add(value T) {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
// 功能：将元素添加到待删除列表中
// 参数：value-要删除的元素
// 说明：元素不会立即从主数组中删除；同一元素重复删除只生效一次
func (a *IncrementalArray[T]) Remove(value T) {
	a.removeMutex.Lock()
	defer a.removeMutex.Unlock()
	a.remove = append(a.remove, value)
}

// Prepare 执行增量操作
// 功能：统一执行所有待处理的添加和删除操作
// 算法说明：
// 1. 按元素索引标记待删除位置（重复删除只生效一次）
// 2. 保持原有顺序压缩主数组，跳过被标记的位置
// 3. 将待添加元素按添加顺序追加到末尾
// 4. 重新设置所有元素的索引，清空待处理列表
// 说明：元素的相对顺序不变，仿真中的更新顺序因此只取决于加入顺序
func (a *IncrementalArray[T]) Prepare() {
	if len(a.add) == 0 && len(a.remove) == 0 {
		return
	}
	if len(a.remove) > 0 {
		removed := make(map[int]struct{}, len(a.remove))
		for _, x := range a.remove {
			removed[x.Index()] = struct{}{}
		}
		kept := a.data[:0]
		for i, x := range a.data {
			if _, ok := removed[i]; !ok {
				kept = append(kept, x)
			}
		}
		clear(a.data[len(kept):])
		a.data = kept
	}
	a.data = append(a.data, a.add...)
	for i, x := range a.data {
		x.SetIndex(i)
	}

	a.add = []T{}
	a.remove = []T{}
}
