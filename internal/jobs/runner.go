// Package jobs connects the batch orchestrator to the background task
// runner. Chunk jobs travel as JSON messages over NATS subjects and are
// consumed by a queue-group worker.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Subjects carrying chunk jobs
const (
	SubjectBatchUpdate   = "bulkpricer.batch.update"
	SubjectBatchRevert   = "bulkpricer.batch.revert"
	SubjectBatchDefaults = "bulkpricer.batch.defaults"
)

// Runner enqueues deferred jobs. Enqueue publishes immediately
// (fire-and-run-soon); ScheduleAt delays the publish until the given time.
type Runner interface {
	Enqueue(subject string, payload interface{}) error
	ScheduleAt(at time.Time, subject string, payload interface{}) error
}

// NATSRunner publishes chunk jobs to NATS
type NATSRunner struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

var _ Runner = (*NATSRunner)(nil)

// NewNATSRunner connects to NATS for job publishing
func NewNATSRunner(natsURL string, logger *logrus.Logger) (*NATSRunner, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("bulk-pricer-runner"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSRunner{
		conn:   conn,
		logger: logger.WithField("component", "jobs.runner"),
	}, nil
}

// Enqueue publishes a job immediately
func (r *NATSRunner) Enqueue(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}
	if err := r.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// ScheduleAt publishes a job at the given time. Core NATS has no delayed
// delivery, so the delay runs in-process; once this returns, the chunk is
// committed and cannot be cancelled.
func (r *NATSRunner) ScheduleAt(at time.Time, subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	delay := time.Until(at)
	if delay <= 0 {
		if err := r.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish job: %w", err)
		}
		return nil
	}

	time.AfterFunc(delay, func() {
		if err := r.conn.Publish(subject, data); err != nil {
			r.logger.WithError(err).WithField("subject", subject).Error("Failed to publish scheduled job")
		}
	})
	return nil
}

// Close drains the NATS connection
func (r *NATSRunner) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
}
