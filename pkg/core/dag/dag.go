// Package dag 提供依赖批次构建器：将平铺的Task列表与依赖边
// 转换为可按序执行的并发批次序列，并在执行前拒绝循环或缺失依赖。
package dag

import (
	"crypto/sha256"
	"fmt"
	"strings"

	godag "github.com/begmaroman/go-dag"

	"github.com/LENAX/workflow-engine/pkg/core/task"
)

// DependencyCycleError 循环或缺失依赖错误（对外导出）
// 在任何Task开始执行之前抛出，整个Workflow被拒绝（快速失败，无部分副作用）
type DependencyCycleError struct {
	CyclePath []string // 检测到的循环路径（若存在循环）
	Missing   []string // 引用了但不存在的Task ID（若存在缺失依赖）
}

// Error 实现error接口
func (e *DependencyCycleError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("存在缺失依赖: %s", strings.Join(e.Missing, ", "))
	}
	if len(e.CyclePath) > 0 {
		return fmt.Sprintf("检测到循环依赖: %s", strings.Join(e.CyclePath, " -> "))
	}
	return "检测到循环或缺失依赖"
}

// vertex go-dag节点适配器（内部结构），实现Identifiable与Hashable接口
type vertex struct {
	t *task.Task
}

// ID 实现 Identifiable 接口
func (v *vertex) ID() string {
	return v.t.ID
}

// Hash 实现 Hashable 接口
// go-dag按节点哈希去重；默认哈希对无导出字段的结构体会退化为
// 对空JSON取哈希，所有节点同值，必须按Task ID显式计算
func (v *vertex) Hash() (godag.VHash, error) {
	return sha256.Sum256([]byte(v.t.ID)), nil
}

var _ godag.Hashable = (*vertex)(nil)

// Graph 基于go-dag的依赖图（对外导出）
// go-dag 库本身是线程安全的，无需额外加锁
type Graph struct {
	dag   *godag.DAG[*vertex]
	tasks map[string]*task.Task
	order []string // Task插入顺序，保证批次内顺序确定
}

// BuildGraph 从Task列表构建依赖图（对外导出）
// 校验：重复ID、自依赖/缺失依赖、循环依赖；任一失败都在执行前返回错误
func BuildGraph(tasks []*task.Task) (*Graph, error) {
	g := &Graph{
		dag:   godag.NewDAG[*vertex](),
		tasks: make(map[string]*task.Task, len(tasks)),
		order: make([]string, 0, len(tasks)),
	}

	for _, t := range tasks {
		if _, exists := g.tasks[t.ID]; exists {
			return nil, fmt.Errorf("Task ID重复: %s", t.ID)
		}
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)
	}

	// 1. 缺失依赖检查（自依赖属于长度为1的循环，交由循环检测报告）
	missing := make([]string, 0)
	for _, t := range tasks {
		for _, depID := range t.Dependencies {
			if _, ok := g.tasks[depID]; !ok {
				missing = append(missing, depID)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &DependencyCycleError{Missing: missing}
	}

	// 2. 构建邻接表并一次性检测循环（避免逐边添加时的重复检查）
	adj := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		adj[t.ID] = make([]string, 0)
	}
	for _, t := range tasks {
		for _, depID := range t.Dependencies {
			// 边方向：前置Task -> 后置Task
			adj[depID] = append(adj[depID], t.ID)
		}
	}
	if hasCycle, path := detectCycleDFS(adj); hasCycle {
		return nil, &DependencyCycleError{CyclePath: path}
	}

	// 3. 写入go-dag存储（已确认无环，AddEdge不会失败）
	for _, t := range tasks {
		if _, err := g.dag.AddVertex(&vertex{t: t}); err != nil {
			return nil, fmt.Errorf("添加节点失败: Task ID=%s, Error=%w", t.ID, err)
		}
	}
	for _, t := range tasks {
		for _, depID := range t.Dependencies {
			if err := g.dag.AddEdge(depID, t.ID); err != nil {
				return nil, fmt.Errorf("添加边失败: %s -> %s, Error=%w", depID, t.ID, err)
			}
		}
	}

	return g, nil
}

// Parents 获取节点的前置Task ID列表（对外导出）
func (g *Graph) Parents(taskID string) []string {
	parents, err := g.dag.GetParents(taskID)
	if err != nil {
		return nil
	}
	result := make([]string, 0, len(parents))
	for id := range parents {
		result = append(result, id)
	}
	return result
}

// Roots 获取所有根节点（无前置依赖的Task）ID列表（对外导出）
func (g *Graph) Roots() []string {
	roots := g.dag.GetRoots()
	result := make([]string, 0, len(roots))
	for id := range roots {
		result = append(result, id)
	}
	return result
}

// Task 按ID获取Task（对外导出）
func (g *Graph) Task(taskID string) *task.Task {
	return g.tasks[taskID]
}

// BuildBatches 构建依赖批次计划（对外导出）
// 返回的每个批次是一个极大集合：其中所有Task的依赖都已被更早的批次覆盖。
// 依赖在"放入批次"时即视为满足，而非执行成功时（见引擎的失败语义）。
func BuildBatches(tasks []*task.Task) ([][]*task.Task, error) {
	return BuildBatchesExcluding(tasks, nil)
}

// BuildBatchesExcluding 构建批次计划，预先排除已完成的Task（对外导出）
// done中的Task ID被视为依赖已满足且不再进入任何批次；用于暂停后的恢复，
// 保证已完成的工作不会被重复执行。
func BuildBatchesExcluding(tasks []*task.Task, done map[string]bool) ([][]*task.Task, error) {
	g, err := BuildGraph(tasks)
	if err != nil {
		return nil, err
	}

	satisfied := make(map[string]bool, len(done))
	remaining := make(map[string]bool, len(tasks))
	remainingCount := 0
	for _, id := range g.order {
		if done[id] {
			satisfied[id] = true
			continue
		}
		remaining[id] = true
		remainingCount++
	}

	batches := make([][]*task.Task, 0)
	for remainingCount > 0 {
		batch := make([]*task.Task, 0)
		for _, id := range g.order {
			if !remaining[id] {
				continue
			}
			ready := true
			for _, parentID := range g.Parents(id) {
				if !satisfied[parentID] {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, g.Task(id))
			}
		}

		// 一轮扫描没有产出任何Task，说明剩余Task之间互相等待
		if len(batch) == 0 {
			stuck := make([]string, 0, remainingCount)
			for _, id := range g.order {
				if remaining[id] {
					stuck = append(stuck, id)
				}
			}
			return nil, &DependencyCycleError{CyclePath: stuck}
		}

		for _, t := range batch {
			satisfied[t.ID] = true
			delete(remaining, t.ID)
			remainingCount--
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

// detectCycleDFS 使用DFS三色标记法检测循环（内部方法）
// adj: 邻接表，key是节点ID，value是该节点的所有子节点ID列表
// 返回是否存在循环及循环路径
func detectCycleDFS(adj map[string][]string) (bool, []string) {
	// 0=白色（未访问），1=灰色（正在访问），2=黑色（已访问）
	color := make(map[string]int, len(adj))
	parent := make(map[string]string)
	cyclePath := make([]string, 0)

	var dfs func(nodeID string) bool
	dfs = func(nodeID string) bool {
		color[nodeID] = 1
		for _, childID := range adj[nodeID] {
			if color[childID] == 0 {
				parent[childID] = nodeID
				if dfs(childID) {
					return true
				}
			} else if color[childID] == 1 {
				// 灰色节点，存在后向边，构建循环路径
				cyclePath = append(cyclePath, childID)
				cur := nodeID
				for cur != childID && cur != "" {
					cyclePath = append(cyclePath, cur)
					cur = parent[cur]
				}
				cyclePath = append(cyclePath, childID)
				return true
			}
		}
		color[nodeID] = 2
		return false
	}

	for nodeID := range adj {
		if color[nodeID] == 0 {
			if dfs(nodeID) {
				return true, cyclePath
			}
		}
	}
	return false, nil
}
