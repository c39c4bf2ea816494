package server

import (
	"fmt"
	"sync"
)

const (
	rebuildTaskPrefix          = "task-"
	rebuildStatusRunning       = rebuildStatus("running")
	rebuildStatusCompleted     = rebuildStatus("completed")
	rebuildStatusFailed        = rebuildStatus("failed")
	rebuildTaskNotFoundMessage = "rebuild task not found"
)

// rebuildStatus represents the lifecycle state of a dataset rebuild task.
type rebuildStatus string

// rebuildTask captures state for one upload-triggered dataset rebuild.
type rebuildTask struct {
	identifier    string
	snapshotCount int
	status        rebuildStatus
	failure       string
}

// rebuildTaskSnapshot copies the public portions of a task for serialization.
type rebuildTaskSnapshot struct {
	Identifier    string        `json:"taskID"`
	SnapshotCount int           `json:"snapshotCount"`
	Status        rebuildStatus `json:"status"`
	Failure       string        `json:"failure,omitempty"`
}

// rebuildTracker tracks active and completed rebuild tasks.
type rebuildTracker struct {
	mutex        sync.Mutex
	tasks        map[string]*rebuildTask
	nextSequence int
}

func newRebuildTracker() *rebuildTracker {
	return &rebuildTracker{tasks: make(map[string]*rebuildTask)}
}

// CreateTask registers a new rebuild task and returns its snapshot.
func (tracker *rebuildTracker) CreateTask(snapshotCount int) rebuildTaskSnapshot {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	tracker.nextSequence++
	identifier := fmt.Sprintf("%s%d", rebuildTaskPrefix, tracker.nextSequence)
	task := &rebuildTask{
		identifier:    identifier,
		snapshotCount: snapshotCount,
		status:        rebuildStatusRunning,
	}
	tracker.tasks[identifier] = task
	return snapshotRebuildTask(task)
}

// CompleteTask transitions a task to its terminal status.
func (tracker *rebuildTracker) CompleteTask(taskIdentifier string, failure error) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	task, exists := tracker.tasks[taskIdentifier]
	if !exists {
		return
	}
	if failure != nil {
		task.status = rebuildStatusFailed
		task.failure = failure.Error()
		return
	}
	task.status = rebuildStatusCompleted
}

// TaskSnapshot returns a copy of the task state for external observers.
func (tracker *rebuildTracker) TaskSnapshot(taskIdentifier string) (rebuildTaskSnapshot, bool) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	task, exists := tracker.tasks[taskIdentifier]
	if !exists {
		return rebuildTaskSnapshot{}, false
	}
	return snapshotRebuildTask(task), true
}

func snapshotRebuildTask(task *rebuildTask) rebuildTaskSnapshot {
	return rebuildTaskSnapshot{
		Identifier:    task.identifier,
		SnapshotCount: task.snapshotCount,
		Status:        task.status,
		Failure:       task.failure,
	}
}
