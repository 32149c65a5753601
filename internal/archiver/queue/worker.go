// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"ticketarchiver/internal/archiver/classify"
)

// Processor runs one delivery through the archival pipeline. It is
// satisfied by *core.Pipeline.
type Processor interface {
	Process(ctx context.Context, deliveryID string, payload map[string]any) error
}

// HistoryRecorder records a permanent, terminal outcome for a malformed
// entry that never reached the pipeline. It is satisfied by
// *history.Log.
type HistoryRecorder interface {
	RecordInvalidMessage(ctx context.Context, reason string)
}

// WorkerConfig controls retry, backoff, and batch-size behavior.
type WorkerConfig struct {
	RetryMaxAttempts int
	BackoffBase      time.Duration
	StaleIdle        time.Duration
	ReadCount        int64
	BlockTimeout     time.Duration
}

// Metrics is the subset of counters the worker loop reports into.
type Metrics interface {
	IncQueueProcessed()
	IncQueueRetried()
	IncQueueDLQ()
}

type noopWorkerMetrics struct{}

func (noopWorkerMetrics) IncQueueProcessed() {}
func (noopWorkerMetrics) IncQueueRetried()   {}
func (noopWorkerMetrics) IncQueueDLQ()       {}

// Worker drives the consumer-group loop: claim stale entries, read own
// pending entries, read new messages, and dispatch each to Processor,
// routing outcomes to ack, delayed redelivery, or the dead-letter
// stream per the classified error.
type Worker struct {
	Queue     *Queue
	Processor Processor
	History   HistoryRecorder
	Metrics   Metrics
	Config    WorkerConfig
	Now       func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) metrics() Metrics {
	if w.Metrics != nil {
		return w.Metrics
	}
	return noopWorkerMetrics{}
}

// Start launches the worker loop in a background goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.stopChan = make(chan struct{})
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop signals the worker loop to exit and waits for it to finish.
func (w *Worker) Stop() {
	if !atomic.CompareAndSwapUint32(&w.stopped, 0, 1) {
		return
	}
	close(w.stopChan)
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		delay, err := w.RunOnce(ctx)
		if err != nil {
			log.WithError(err).Error("queue: worker iteration failed")
			delay = time.Second
		}
		if delay > 0 {
			w.cancellableSleep(delay)
		}
	}
}

// cancellableSleep sleeps for d in chunks of at most one second, so a
// Stop() call is noticed promptly instead of blocking for the full
// backoff window.
func (w *Worker) cancellableSleep(d time.Duration) {
	for d > 0 {
		chunk := d
		if chunk > time.Second {
			chunk = time.Second
		}
		timer := time.NewTimer(chunk)
		select {
		case <-w.stopChan:
			timer.Stop()
			return
		case <-timer.C:
		}
		d -= chunk
	}
}

// RunOnce performs one iteration of the worker loop and returns a
// suggested sleep before the next iteration: the shortest wait among
// messages seen that were not yet due, or zero if there were none.
func (w *Worker) RunOnce(ctx context.Context) (time.Duration, error) {
	stale, err := w.Queue.ClaimStale(ctx, w.Config.StaleIdle, w.Config.ReadCount)
	if err != nil {
		return 0, err
	}
	ownPending, err := w.Queue.ReadOwnPending(ctx, w.Config.ReadCount)
	if err != nil {
		return 0, err
	}
	fresh, err := w.Queue.ReadNew(ctx, w.Config.ReadCount, w.Config.BlockTimeout)
	if err != nil {
		return 0, err
	}

	messages := append(append(stale, ownPending...), fresh...)
	if len(messages) == 0 {
		return 0, nil
	}

	var suggestedDelay time.Duration
	for _, msg := range messages {
		delay := w.handle(ctx, msg)
		if delay > 0 && (suggestedDelay == 0 || delay < suggestedDelay) {
			suggestedDelay = delay
		}
	}
	return suggestedDelay, nil
}

// handle dispatches one stream message and returns a nonzero delay
// only when the message's not_before_ts is still in the future.
func (w *Worker) handle(ctx context.Context, msg redis.XMessage) time.Duration {
	env, err := EnvelopeFromFields(msg.Values)
	if err != nil {
		log.WithField("id", msg.ID).WithError(err).Warn("queue: dropping malformed entry")
		_ = w.Queue.DeadLetter(ctx, env, "invalid_message")
		if w.History != nil {
			w.History.RecordInvalidMessage(ctx, err.Error())
		}
		w.ackByID(ctx, msg.ID)
		return 0
	}

	if env.NotBeforeTS > w.now().Unix() {
		return time.Duration(env.NotBeforeTS-w.now().Unix()) * time.Second
	}

	payload, err := env.Payload()
	if err != nil {
		log.WithField("id", msg.ID).WithError(err).Warn("queue: dropping entry with undecodable payload")
		_ = w.Queue.DeadLetter(ctx, env, "invalid_message")
		w.ackByID(ctx, msg.ID)
		return 0
	}

	runErr := w.Processor.Process(ctx, env.DeliveryID, payload)
	if runErr == nil {
		w.metrics().IncQueueProcessed()
		w.ackByID(ctx, msg.ID)
		return 0
	}

	classified := classify.Classify(runErr)
	if classified.IsTransient() && env.Attempt < w.Config.RetryMaxAttempts {
		next := Envelope{
			PayloadJSON: env.PayloadJSON,
			DeliveryID:  env.DeliveryID,
			Attempt:     env.Attempt + 1,
			NotBeforeTS: w.now().Add(w.backoffFor(env.Attempt)).Unix(),
			EnqueuedAt:  w.now().Unix(),
			LastError:   runErr.Error(),
		}
		if err := w.Queue.Enqueue(ctx, next); err != nil {
			log.WithError(err).Error("queue: failed to enqueue retry")
		} else {
			w.metrics().IncQueueRetried()
		}
		w.ackByID(ctx, msg.ID)
		return 0
	}

	reason := "permanent_error"
	if classified.IsTransient() {
		reason = "retry_exhausted"
	}
	env.LastError = runErr.Error()
	if err := w.Queue.DeadLetter(ctx, env, reason); err != nil {
		log.WithError(err).Error("queue: failed to dead-letter entry")
	} else {
		w.metrics().IncQueueDLQ()
	}
	w.ackByID(ctx, msg.ID)
	return 0
}

func (w *Worker) backoffFor(attempt int) time.Duration {
	return w.Config.BackoffBase * time.Duration(1<<uint(attempt))
}

func (w *Worker) ackByID(ctx context.Context, id string) {
	if err := w.Queue.Ack(ctx, id); err != nil {
		log.WithField("id", id).WithError(err).Error("queue: ack failed")
	}
}
