package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/storage"
	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// Submitter enqueues a task id for execution
type Submitter func(taskID string) error

// Recover reconciles tasks left behind by a previous process. PENDING tasks
// are submitted again; tasks caught mid-pipeline cannot be resumed and are
// moved to FAILED.
func Recover(ctx context.Context, store storage.TaskStore, submit Submitter, log logrus.FieldLogger) (resubmitted, failed int, err error) {
	tasks, err := store.ListTasks(ctx, 0)
	if err != nil {
		return 0, 0, err
	}

	// oldest first so resubmission keeps the original order
	for i := len(tasks) - 1; i >= 0; i-- {
		task := tasks[i]
		tlog := log.WithFields(logrus.Fields{"task_id": task.ID, "status": task.Status})

		switch {
		case task.Status == types.StatusPending:
			if err := submit(task.ID); err != nil {
				tlog.WithError(err).Warn("Cannot resubmit pending task")
				continue
			}
			resubmitted++
		case !task.Status.IsTerminal():
			if err := store.UpdateStatus(ctx, task.ID, types.StatusFailed); err != nil {
				tlog.WithError(err).Error("Cannot fail interrupted task")
				continue
			}
			tlog.Warn("Interrupted task marked as failed")
			failed++
		}
	}

	if resubmitted > 0 || failed > 0 {
		log.WithFields(logrus.Fields{"resubmitted": resubmitted, "failed": failed}).Info("Recovered tasks from previous run")
	}
	return resubmitted, failed, nil
}
