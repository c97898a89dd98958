// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"github.com/amcolab/sell-bot/internal/common/logger"
)

// JobHandler is implemented by every task handler under internal/workers.
type JobHandler interface {
	GetTaskType() string
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerOptions mirrors the per-handler Config each worker package exposes.
type WorkerOptions struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for handler, or returns nil when disabled.
func NewWorker(client zbc.Client, handler JobHandler, opts WorkerOptions, log logger.Logger) *Worker {
	taskType := handler.GetTaskType()
	fields := map[string]interface{}{"taskType": taskType}
	if !opts.Enabled {
		log.Info("worker disabled", fields)
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Open()

	fields["maxJobsActive"] = opts.MaxJobsActive
	fields["timeout"] = opts.Timeout.String()
	log.Info("worker started", fields)

	return &Worker{worker: jobWorker, logger: log, taskType: taskType}
}

// Stop closes the worker and waits for in-flight jobs. Safe on nil.
func (w *Worker) Stop() {
	if w == nil {
		return
	}
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}
