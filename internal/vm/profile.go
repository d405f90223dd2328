package vm

import (
	"sort"
	"sync"

	"go.uber.org/atomic"
)

// ============================================================================
// 分支 Profile
// ============================================================================

// BranchProfile 条件跳转统计
type BranchProfile struct {
	Taken    atomic.Int64 // 跳转次数
	NotTaken atomic.Int64 // 不跳转次数
}

// Total 返回总次数
func (bp *BranchProfile) Total() int64 {
	return bp.Taken.Load() + bp.NotTaken.Load()
}

// TakenRate 返回跳转率
func (bp *BranchProfile) TakenRate() float64 {
	total := bp.Total()
	if total == 0 {
		return 0.5
	}
	return float64(bp.Taken.Load()) / float64(total)
}

// IsBiased 是否有偏向 (90%+ 偏向一边)
func (bp *BranchProfile) IsBiased() bool {
	rate := bp.TakenRate()
	return rate > 0.9 || rate < 0.1
}

// RecordBranch 记录分支
func (bp *BranchProfile) RecordBranch(taken bool) {
	if taken {
		bp.Taken.Inc()
	} else {
		bp.NotTaken.Inc()
	}
}

// ============================================================================
// 方法 Profile
// ============================================================================

// MethodProfile 方法级别的 Profile
type MethodProfile struct {
	Class      string
	Method     string
	Descriptor string

	Calls        atomic.Int64 // 调用次数
	Instructions atomic.Int64 // 执行的指令数

	mu       sync.RWMutex
	branches map[int]*BranchProfile // 跳转指令位置 -> 统计
}

// Branch 获取指定位置的分支 Profile
func (mp *MethodProfile) Branch(pc int) *BranchProfile {
	mp.mu.RLock()
	bp := mp.branches[pc]
	mp.mu.RUnlock()
	if bp != nil {
		return bp
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()
	if bp = mp.branches[pc]; bp == nil {
		bp = &BranchProfile{}
		mp.branches[pc] = bp
	}
	return bp
}

// Branches 按位置排序的全部分支 Profile
func (mp *MethodProfile) Branches() []int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	pcs := make([]int, 0, len(mp.branches))
	for pc := range mp.branches {
		pcs = append(pcs, pc)
	}
	sort.Ints(pcs)
	return pcs
}

// ============================================================================
// Profiler
// ============================================================================

// Profiler 收集方法调用与分支统计；统计值可在执行期间从其他 goroutine 读取
type Profiler struct {
	mu      sync.RWMutex
	methods map[*Method]*MethodProfile
}

// NewProfiler 创建 Profiler
func NewProfiler() *Profiler {
	return &Profiler{methods: make(map[*Method]*MethodProfile)}
}

func (p *Profiler) method(m *Method) *MethodProfile {
	p.mu.RLock()
	mp := p.methods[m]
	p.mu.RUnlock()
	if mp != nil {
		return mp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if mp = p.methods[m]; mp == nil {
		mp = &MethodProfile{
			Class:      dotted(m.Class.Name),
			Method:     m.Name,
			Descriptor: m.Desc,
			branches:   make(map[int]*BranchProfile),
		}
		p.methods[m] = mp
	}
	return mp
}

// Snapshot 按调用次数降序返回全部方法 Profile
func (p *Profiler) Snapshot() []*MethodProfile {
	p.mu.RLock()
	out := make([]*MethodProfile, 0, len(p.methods))
	for _, mp := range p.methods {
		out = append(out, mp)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].Calls.Load(), out[j].Calls.Load()
		if ci != cj {
			return ci > cj
		}
		return out[i].Class+"."+out[i].Method < out[j].Class+"."+out[j].Method
	})
	return out
}

// recordCall 记录一次字节码方法调用
func (vm *VM) recordCall(f *Frame) {
	if vm.profiler == nil {
		return
	}
	f.profile = vm.profiler.method(f.method)
	f.profile.Calls.Inc()
}

// recordBranch 记录条件跳转的结果
func (f *Frame) recordBranch(pc int, taken bool) {
	if f.profile != nil {
		f.profile.Branch(pc).RecordBranch(taken)
	}
}
