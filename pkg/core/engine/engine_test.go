package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LENAX/workflow-engine/pkg/config"
	"github.com/LENAX/workflow-engine/pkg/core/dag"
	"github.com/LENAX/workflow-engine/pkg/core/task"
	"github.com/LENAX/workflow-engine/pkg/core/workflow"
)

func testEngine() *Engine {
	return New(&config.EngineConfig{
		MaxWorkers:        4,
		DefaultTimeoutMs:  2000,
		DefaultMaxRetries: 2,
		RetryDelayMs:      10,
		HistorySize:       10,
	})
}

// recorder 记录Task执行顺序
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) mark(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

func (r *recorder) indexOf(id string) int {
	for i, v := range r.list() {
		if v == id {
			return i
		}
	}
	return -1
}

func newTask(id string, work task.WorkFunc, deps ...string) *task.Task {
	return &task.Task{
		ID:           id,
		Name:         id,
		Status:       task.StatusPending,
		Priority:     task.PriorityNormal,
		Dependencies: deps,
		Work:         work,
	}
}

func noopWork(ctx *task.ExecutionContext) error { return nil }

func TestRun_DependencyBatchOrdering(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	rec := &recorder{}
	work := func(id string) task.WorkFunc {
		return func(ctx *task.ExecutionContext) error {
			rec.mark(id)
			return nil
		}
	}

	wf := workflow.New("批次顺序", "")
	wf.AddTask(newTask("t1", work("t1")))
	wf.AddTask(newTask("t2", work("t2"), "t1"))
	wf.AddTask(newTask("t3", work("t3"), "t1"))
	wf.AddTask(newTask("t4", work("t4"), "t2", "t3"))

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	result := h.Wait()

	if !result.Success {
		t.Fatalf("执行应成功: %+v", result)
	}
	if wf.Status != workflow.StatusCompleted {
		t.Errorf("Workflow状态错误: 期望completed, 实际%s", wf.Status)
	}
	if wf.Progress != 100 {
		t.Errorf("进度错误: 期望100, 实际%d", wf.Progress)
	}
	if result.TasksCompleted != 4 || result.TasksTotal != 4 {
		t.Errorf("完成计数错误: %d/%d", result.TasksCompleted, result.TasksTotal)
	}

	// t1先于t2/t3，t4最后
	if rec.indexOf("t1") != 0 {
		t.Errorf("t1应最先执行: %v", rec.list())
	}
	if rec.indexOf("t4") != 3 {
		t.Errorf("t4应最后执行: %v", rec.list())
	}
}

func TestRun_DependencyFailureStillRunsDownstream(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	rec := &recorder{}
	wf := workflow.New("失败不阻断", "")
	wf.AddTask(newTask("t1", func(ctx *task.ExecutionContext) error {
		return fmt.Errorf("模拟失败")
	}))
	wf.AddTask(newTask("t2", func(ctx *task.ExecutionContext) error {
		rec.mark("t2")
		return nil
	}, "t1"))

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	result := h.Wait()

	// 依赖失败不阻止后置Task执行
	if rec.indexOf("t2") < 0 {
		t.Fatal("t1失败后t2仍应执行")
	}
	if wf.TaskByID("t1").Status != task.StatusFailed {
		t.Errorf("t1状态错误: 期望failed, 实际%s", wf.TaskByID("t1").Status)
	}
	if wf.TaskByID("t2").Status != task.StatusCompleted {
		t.Errorf("t2状态错误: 期望completed, 实际%s", wf.TaskByID("t2").Status)
	}
	if result.Success {
		t.Error("存在失败Task时整体结果应为失败")
	}
	if wf.Status != workflow.StatusFailed {
		t.Errorf("Workflow状态错误: 期望failed, 实际%s", wf.Status)
	}
	if result.TasksCompleted != 1 || result.TasksTotal != 2 {
		t.Errorf("完成计数错误: %d/%d", result.TasksCompleted, result.TasksTotal)
	}
}

func TestRun_EmptyWorkflowCompletes(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	wf := workflow.New("空流程", "")
	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("空Workflow应可执行: %v", err)
	}
	result := h.Wait()

	if !result.Success {
		t.Errorf("空Workflow应成功: %+v", result)
	}
	if wf.Status != workflow.StatusCompleted || wf.Progress != 100 {
		t.Errorf("空Workflow终态错误: status=%s, progress=%d", wf.Status, wf.Progress)
	}
}

func TestRun_CycleFailsFastWithoutSideEffects(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	executed := false
	wf := workflow.New("循环依赖", "")
	wf.AddTask(newTask("t1", func(ctx *task.ExecutionContext) error {
		executed = true
		return nil
	}, "t2"))
	wf.AddTask(newTask("t2", noopWork, "t1"))

	_, err := eng.Run(wf, nil)
	if err == nil {
		t.Fatal("循环依赖应在执行前被拒绝")
	}
	var cycleErr *dag.DependencyCycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("错误类型错误: 期望*dag.DependencyCycleError, 实际%T", err)
	}
	if executed {
		t.Error("快速失败时不应执行任何Task")
	}
	if wf.TaskByID("t1").Status != task.StatusPending {
		t.Error("快速失败时Task状态不应被触碰")
	}
	if wf.Status != workflow.StatusFailed {
		t.Errorf("Workflow应标记为failed, 实际%s", wf.Status)
	}

	// 失败也记入历史
	entries := eng.History()
	if len(entries) != 1 || entries[0].Success {
		t.Errorf("快速失败应记录一条失败历史: %+v", entries)
	}
}

func TestRun_EngineBusy(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	release := make(chan struct{})
	wf1 := workflow.New("占用引擎", "")
	wf1.AddTask(newTask("block", func(ctx *task.ExecutionContext) error {
		<-release
		return nil
	}))

	h, err := eng.Run(wf1, nil)
	if err != nil {
		t.Fatalf("首次提交应成功: %v", err)
	}
	if !eng.IsExecuting() {
		t.Error("执行中IsExecuting应为true")
	}

	wf2 := workflow.New("被拒绝", "")
	wf2.AddTask(newTask("t1", noopWork))
	if _, err := eng.Run(wf2, nil); !errors.Is(err, ErrEngineBusy) {
		t.Errorf("引擎正忙时应返回ErrEngineBusy, 实际%v", err)
	}

	close(release)
	h.Wait()
	if eng.IsExecuting() {
		t.Error("执行结束后IsExecuting应为false")
	}
}

func TestRun_TimeoutIsolation(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	wf := workflow.New("超时隔离", "")
	slow := newTask("slow", func(ctx *task.ExecutionContext) error {
		time.Sleep(300 * time.Millisecond)
		return nil
	})
	slow.TimeoutMs = 50
	wf.AddTask(slow)
	wf.AddTask(newTask("fast", noopWork))

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	result := h.Wait()

	if wf.TaskByID("slow").Status != task.StatusFailed {
		t.Errorf("超时Task应为failed, 实际%s", wf.TaskByID("slow").Status)
	}
	if wf.TaskByID("fast").Status != task.StatusCompleted {
		t.Errorf("同批次其他Task不应受超时影响, 实际%s", wf.TaskByID("fast").Status)
	}
	if result.Success {
		t.Error("存在超时Task时整体结果应为失败")
	}

	// 软超时：底层工作函数稍后返回，迟到结果必须被丢弃
	time.Sleep(350 * time.Millisecond)
	if wf.TaskByID("slow").Status != task.StatusFailed {
		t.Errorf("迟到的完成结果不应覆盖超时失败, 实际%s", wf.TaskByID("slow").Status)
	}
}

func TestPauseResume(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	var startedOnce sync.Once
	started := make(chan struct{})
	release := make(chan struct{})

	wf := workflow.New("暂停恢复", "")
	wf.AddTask(newTask("t1", noopWork))
	wf.AddTask(newTask("t2", func(ctx *task.ExecutionContext) error {
		startedOnce.Do(func() { close(started) })
		<-release
		return nil
	}, "t1"))
	wf.AddTask(newTask("t3", noopWork, "t2"))

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}

	<-started
	if err := eng.Pause(); err != nil {
		t.Fatalf("暂停失败: %v", err)
	}
	if h.Status() != workflow.StatusPaused {
		t.Fatalf("暂停后状态错误: %s", h.Status())
	}
	// 进行中的Task回退为pending
	if wf.TaskByID("t2").Status != task.StatusPending {
		t.Errorf("暂停后进行中的Task应回退为pending, 实际%s", wf.TaskByID("t2").Status)
	}
	// 已完成的Task保持completed
	if wf.TaskByID("t1").Status != task.StatusCompleted {
		t.Errorf("已完成的Task不应被暂停改变, 实际%s", wf.TaskByID("t1").Status)
	}

	// 重复暂停报错
	if err := eng.Pause(); err == nil {
		t.Error("paused状态再次暂停应报错")
	}

	// 释放旧的工作函数：其迟到结果必须被丢弃
	close(release)
	time.Sleep(50 * time.Millisecond)
	if wf.TaskByID("t2").Status != task.StatusPending {
		t.Errorf("暂停期间迟到的完成结果应被丢弃, 实际%s", wf.TaskByID("t2").Status)
	}

	if err := eng.Resume(); err != nil {
		t.Fatalf("恢复失败: %v", err)
	}
	result := h.Wait()

	if !result.Success {
		t.Fatalf("恢复后执行应成功: %+v", result)
	}
	if wf.Status != workflow.StatusCompleted || wf.Progress != 100 {
		t.Errorf("终态错误: status=%s, progress=%d", wf.Status, wf.Progress)
	}
}

func TestResume_NotPaused(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	wf := workflow.New("非暂停恢复", "")
	wf.AddTask(newTask("t1", noopWork))

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	h.Wait()

	if err := eng.Resume(); err == nil {
		t.Error("非paused状态恢复应报错")
	}
}

func TestCancel_MarksTasksByCancellability(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	started := make(chan struct{})
	release := make(chan struct{})

	wf := workflow.New("取消", "")
	blocking := newTask("blocking", func(ctx *task.ExecutionContext) error {
		close(started)
		<-release
		return nil
	})
	wf.AddTask(blocking)
	cancellable := newTask("cancellable", noopWork, "blocking")
	cancellable.Cancellable = true
	wf.AddTask(cancellable)
	stubborn := newTask("stubborn", noopWork, "blocking")
	wf.AddTask(stubborn)

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}

	<-started
	if err := eng.Cancel(); err != nil {
		t.Fatalf("取消失败: %v", err)
	}
	close(release)
	result := h.Wait()

	if result.Success {
		t.Error("取消后整体结果应为失败")
	}
	if wf.Status != workflow.StatusFailed {
		t.Errorf("取消后Workflow应为failed, 实际%s", wf.Status)
	}
	if wf.TaskByID("cancellable").Status != task.StatusCancelled {
		t.Errorf("可取消Task应为cancelled, 实际%s", wf.TaskByID("cancellable").Status)
	}
	if wf.TaskByID("stubborn").Status != task.StatusFailed {
		t.Errorf("不可取消Task应为failed, 实际%s", wf.TaskByID("stubborn").Status)
	}

	// 终态后再次取消报错
	if err := eng.Cancel(); err == nil {
		t.Error("终态Workflow再次取消应报错")
	}
}

func TestCancel_WhilePaused(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	wf := workflow.New("暂停后取消", "")
	wf.AddTask(newTask("t1", func(ctx *task.ExecutionContext) error {
		close(started)
		<-release
		return nil
	}))

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}

	<-started
	if err := eng.Pause(); err != nil {
		t.Fatalf("暂停失败: %v", err)
	}
	if err := eng.Cancel(); err != nil {
		t.Fatalf("暂停态取消失败: %v", err)
	}

	result := h.Wait()
	if result.Success {
		t.Error("取消后整体结果应为失败")
	}
	if wf.TaskByID("t1").Status != task.StatusFailed {
		t.Errorf("不可取消Task应为failed, 实际%s", wf.TaskByID("t1").Status)
	}
}

func TestRetryTask_NotEligible(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	wf := workflow.New("不可重试", "")
	t1 := newTask("t1", func(ctx *task.ExecutionContext) error {
		return fmt.Errorf("模拟失败")
	})
	t1.Retryable = false
	wf.AddTask(t1)

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	h.Wait()

	err = eng.RetryTask("t1")
	var notEligible *RetryNotEligibleError
	if !errors.As(err, &notEligible) {
		t.Fatalf("不可重试Task应返回*RetryNotEligibleError, 实际%v", err)
	}
	if wf.TaskByID("t1").Status != task.StatusFailed {
		t.Errorf("拒绝重试后Task状态不应改变, 实际%s", wf.TaskByID("t1").Status)
	}
}

func TestRetryTask_SucceedsAndCompletesWorkflow(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	var mu sync.Mutex
	calls := 0
	wf := workflow.New("重试成功", "")
	t1 := newTask("t1", func(ctx *task.ExecutionContext) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return fmt.Errorf("首次失败")
		}
		// 终态后的重试必须拿到未取消的context
		if err := ctx.Context().Err(); err != nil {
			return fmt.Errorf("重试拿到了已取消的context: %w", err)
		}
		return nil
	})
	t1.Retryable = true
	t1.MaxRetries = 3
	wf.AddTask(t1)

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	result := h.Wait()
	if result.Success {
		t.Fatal("首次执行应失败")
	}

	if err := eng.RetryTask("t1"); err != nil {
		t.Fatalf("重试失败: %v", err)
	}

	if wf.TaskByID("t1").Status != task.StatusCompleted {
		t.Errorf("重试后Task应为completed, 实际%s", wf.TaskByID("t1").Status)
	}
	if wf.TaskByID("t1").RetryCount != 1 {
		t.Errorf("重试计数错误: 期望1, 实际%d", wf.TaskByID("t1").RetryCount)
	}
	// 最后一个失败Task被补齐后，Workflow转为完成
	if wf.Status != workflow.StatusCompleted {
		t.Errorf("重试补齐后Workflow应为completed, 实际%s", wf.Status)
	}
	if wf.Progress != 100 {
		t.Errorf("进度错误: 期望100, 实际%d", wf.Progress)
	}
}

func TestRetryTask_Exhausted(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	wf := workflow.New("重试耗尽", "")
	t1 := newTask("t1", func(ctx *task.ExecutionContext) error {
		return fmt.Errorf("始终失败")
	})
	t1.Retryable = true
	t1.MaxRetries = 2
	wf.AddTask(t1)

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	h.Wait()

	for i := 0; i < 2; i++ {
		if err := eng.RetryTask("t1"); err != nil {
			t.Fatalf("第%d次重试应被接受: %v", i+1, err)
		}
	}

	err = eng.RetryTask("t1")
	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("重试耗尽应返回*RetriesExhaustedError, 实际%v", err)
	}
}

func TestRetryTask_NotFound(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	// 从未执行过
	if err := eng.RetryTask("ghost"); !errors.Is(err, ErrNoActiveWorkflow) {
		t.Errorf("无活跃Workflow时应返回ErrNoActiveWorkflow, 实际%v", err)
	}

	wf := workflow.New("查无此Task", "")
	wf.AddTask(newTask("t1", noopWork))
	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	h.Wait()

	err = eng.RetryTask("ghost")
	var notFound *TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("未知TaskID应返回*TaskNotFoundError, 实际%v", err)
	}
}

func TestRun_PanicInWorkIsContained(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	wf := workflow.New("panic隔离", "")
	wf.AddTask(newTask("boom", func(ctx *task.ExecutionContext) error {
		panic("炸了")
	}))
	wf.AddTask(newTask("calm", noopWork))

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	result := h.Wait()

	if result.Success {
		t.Error("panic的Task应记为失败")
	}
	if wf.TaskByID("boom").Status != task.StatusFailed {
		t.Errorf("panic Task应为failed, 实际%s", wf.TaskByID("boom").Status)
	}
	if wf.TaskByID("calm").Status != task.StatusCompleted {
		t.Errorf("同批次其他Task不应受panic影响, 实际%s", wf.TaskByID("calm").Status)
	}
}

func TestEngine_HistoryAcrossRuns(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	for i := 0; i < 3; i++ {
		wf := workflow.New(fmt.Sprintf("第%d次", i), "")
		wf.AddTask(newTask("t1", noopWork))
		h, err := eng.Run(wf, nil)
		if err != nil {
			t.Fatalf("提交执行失败: %v", err)
		}
		h.Wait()
	}

	entries := eng.History()
	if len(entries) != 3 {
		t.Fatalf("历史条数错误: 期望3, 实际%d", len(entries))
	}
	for _, e := range entries {
		if !e.Success {
			t.Errorf("成功执行的历史条目应为Success: %+v", e)
		}
	}

	eng.ClearHistory()
	if len(eng.History()) != 0 {
		t.Error("清空后历史应为空")
	}
}

func TestRun_WorkerPoolBoundsConcurrency(t *testing.T) {
	eng := New(&config.EngineConfig{
		MaxWorkers:       2,
		DefaultTimeoutMs: 2000,
		RetryDelayMs:     10,
		HistorySize:      10,
	})
	defer eng.Close()

	var mu sync.Mutex
	running, peak := 0, 0

	wf := workflow.New("并发上限", "")
	for i := 0; i < 6; i++ {
		wf.AddTask(newTask(fmt.Sprintf("t%d", i), func(ctx *task.ExecutionContext) error {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(30 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return nil
		}))
	}

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	result := h.Wait()

	if !result.Success {
		t.Fatalf("执行应成功: %+v", result)
	}
	if peak > 2 {
		t.Errorf("并发峰值超过Worker池上限: peak=%d", peak)
	}
}

func TestRun_ContextReleasedAfterFinish(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	wf := workflow.New("资源释放", "")
	wf.AddTask(newTask("t1", noopWork))

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	h.Wait()

	select {
	case <-wf.Context.Done():
	default:
		t.Error("正常结束后本次执行的context应被取消释放")
	}
	select {
	case <-h.ctx.Done():
	default:
		t.Error("句柄持有的context应在终态时被取消")
	}
}

func TestSnapshot_ConcurrentWithExecution(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	if eng.Snapshot() != nil {
		t.Error("从未执行过时Snapshot应返回nil")
	}

	wf := workflow.New("并发快照", "")
	for i := 0; i < 4; i++ {
		wf.AddTask(newTask(fmt.Sprintf("t%d", i), func(ctx *task.ExecutionContext) error {
			time.Sleep(20 * time.Millisecond)
			return nil
		}))
	}

	h, err := eng.Run(wf, nil)
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}

	// 执行期间持续读取快照：与runTask的就地写入并发（race探测依赖-race运行）
	stop := make(chan struct{})
	var readerWg sync.WaitGroup
	readerWg.Add(1)
	go func() {
		defer readerWg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := eng.Snapshot()
			if snap == nil {
				t.Error("执行期间Snapshot不应返回nil")
				return
			}
			if snap.Progress < 0 || snap.Progress > 100 {
				t.Errorf("快照进度越界: %d", snap.Progress)
				return
			}
			for _, ts := range snap.Tasks {
				_ = ts.Status
				_ = ts.Error
			}
		}
	}()

	result := h.Wait()
	close(stop)
	readerWg.Wait()

	if !result.Success {
		t.Fatalf("执行应成功: %+v", result)
	}
	snap := eng.Snapshot()
	if snap.Executing {
		t.Error("终态后快照的Executing应为false")
	}
	if snap.Progress != 100 || len(snap.Tasks) != 4 {
		t.Errorf("终态快照错误: progress=%d, tasks=%d", snap.Progress, len(snap.Tasks))
	}
	for _, ts := range snap.Tasks {
		if ts.Status != task.StatusCompleted {
			t.Errorf("终态快照中Task状态错误: %s=%s", ts.ID, ts.Status)
		}
	}
}

func TestRun_ContextOverrides(t *testing.T) {
	eng := testEngine()
	defer eng.Close()

	var gotWorkDir, gotEnv string
	wf := workflow.New("上下文覆盖", "")
	wf.AddTask(newTask("t1", func(ctx *task.ExecutionContext) error {
		gotWorkDir = ctx.WorkDir
		gotEnv = ctx.Env["MODE"]
		return nil
	}))

	h, err := eng.Run(wf, &task.ContextOverrides{
		WorkDir: "/tmp/override",
		Env:     map[string]string{"MODE": "test"},
	})
	if err != nil {
		t.Fatalf("提交执行失败: %v", err)
	}
	h.Wait()

	if gotWorkDir != "/tmp/override" {
		t.Errorf("WorkDir覆盖未生效: %s", gotWorkDir)
	}
	if gotEnv != "test" {
		t.Errorf("Env覆盖未生效: %s", gotEnv)
	}
}
