package workflow

import (
	"testing"

	"github.com/LENAX/workflow-engine/pkg/core/task"
)

func TestWorkflow_ProgressAggregation(t *testing.T) {
	wf := New("进度", "")
	wf.AddTask(&task.Task{ID: "t1", Status: task.StatusCompleted})
	wf.AddTask(&task.Task{ID: "t2", Status: task.StatusCompleted})
	wf.AddTask(&task.Task{ID: "t3", Status: task.StatusFailed})
	wf.AddTask(&task.Task{ID: "t4", Status: task.StatusPending})

	wf.RefreshProgress()
	if wf.Progress != 50 {
		t.Errorf("进度错误: 期望50, 实际%d", wf.Progress)
	}
	if wf.CompletedCount() != 2 {
		t.Errorf("完成计数错误: %d", wf.CompletedCount())
	}
}

func TestWorkflow_EmptyProgressIs100(t *testing.T) {
	wf := New("空", "")
	wf.RefreshProgress()
	if wf.Progress != 100 {
		t.Errorf("空Workflow进度应为100, 实际%d", wf.Progress)
	}
}

func TestWorkflow_TaskByID(t *testing.T) {
	wf := New("查找", "")
	wf.AddTask(&task.Task{ID: "t1"})

	if wf.TaskByID("t1") == nil {
		t.Error("存在的Task未找到")
	}
	if wf.TaskByID("ghost") != nil {
		t.Error("不存在的Task不应返回")
	}
}

func TestWorkflow_Reset(t *testing.T) {
	wf := New("重置", "")
	wf.AddTask(&task.Task{
		ID:         "t1",
		Status:     task.StatusFailed,
		Progress:   100,
		RetryCount: 2,
		Result:     &task.Result{Success: false, Error: "x"},
	})
	wf.Status = StatusFailed
	wf.Progress = 100

	wf.Reset()

	if wf.Status != StatusIdle || wf.Progress != 0 {
		t.Errorf("Workflow重置后状态错误: %s/%d", wf.Status, wf.Progress)
	}
	t1 := wf.TaskByID("t1")
	if t1.Status != task.StatusPending || t1.Progress != 0 || t1.RetryCount != 0 || t1.Result != nil {
		t.Errorf("Task重置不彻底: %+v", t1)
	}
}

func TestWorkflow_IsTerminal(t *testing.T) {
	wf := New("终态", "")
	for status, want := range map[Status]bool{
		StatusIdle:      false,
		StatusRunning:   false,
		StatusPaused:    false,
		StatusCompleted: true,
		StatusFailed:    true,
	} {
		wf.Status = status
		if wf.IsTerminal() != want {
			t.Errorf("IsTerminal(%s)错误: 期望%v", status, want)
		}
	}
}
