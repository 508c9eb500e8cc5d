package tasks

import (
	"context"
	"sync"

	"billops/internal/log"
	"billops/internal/queue"
)

// Dispatcher hands a created task to whatever will run it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg queue.JobMessage) error
}

// LocalDispatcher runs collection tasks in goroutines of the API process.
// Tasks outlive the request that created them and stop with base.
type LocalDispatcher struct {
	runner *Runner
	base   context.Context
	wg     sync.WaitGroup
}

func NewLocalDispatcher(base context.Context, runner *Runner) *LocalDispatcher {
	return &LocalDispatcher{runner: runner, base: base}
}

func (d *LocalDispatcher) Dispatch(_ context.Context, msg queue.JobMessage) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.runner.Run(d.base, msg.TaskID); err != nil {
			d.runner.logger.ErrorContext(d.base, "task runner failed", log.FieldTaskID, msg.TaskID, log.FieldError, err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched task returned.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

type publisher interface {
	PublishJob(ctx context.Context, msg queue.JobMessage) error
}

// AMQPDispatcher publishes jobs for billops worker.
type AMQPDispatcher struct {
	pub publisher
}

func NewAMQPDispatcher(pub publisher) *AMQPDispatcher {
	return &AMQPDispatcher{pub: pub}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, msg queue.JobMessage) error {
	return d.pub.PublishJob(ctx, msg)
}
