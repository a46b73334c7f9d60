// Package subscribers consumes deferred chunk jobs from NATS and feeds
// them to the batch orchestrator.
package subscribers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/jobs"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/services"
)

const workerQueueGroup = "bulk-pricer-workers"

// chunkTimeout bounds how long one chunk may run before its context is
// cancelled
const chunkTimeout = 5 * time.Minute

// BatchSubscriber listens on the batch subjects in a queue group so that
// co-running instances split the chunks between them
type BatchSubscriber struct {
	conn    *nats.Conn
	service services.BulkServiceInterface
	logger  *logrus.Entry
	subs    []*nats.Subscription
}

// NewBatchSubscriber connects to NATS for job consumption
func NewBatchSubscriber(natsURL string, service services.BulkServiceInterface, logger *logrus.Logger) (*BatchSubscriber, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("bulk-pricer-worker"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}

	return &BatchSubscriber{
		conn:    conn,
		service: service,
		logger:  logger.WithField("component", "subscribers.batch"),
	}, nil
}

// Start subscribes to all batch subjects. Handlers run until ctx is
// cancelled or Stop is called.
func (s *BatchSubscriber) Start(ctx context.Context) error {
	handlers := map[string]nats.MsgHandler{
		jobs.SubjectBatchUpdate:   s.handleUpdate(ctx),
		jobs.SubjectBatchRevert:   s.handleRevert(ctx),
		jobs.SubjectBatchDefaults: s.handleDefaults(ctx),
	}

	for subject, handler := range handlers {
		sub, err := s.conn.QueueSubscribe(subject, workerQueueGroup, handler)
		if err != nil {
			s.Stop()
			return err
		}
		s.subs = append(s.subs, sub)
	}

	s.logger.Info("Batch worker listening for chunk jobs")
	return nil
}

func (s *BatchSubscriber) handleUpdate(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var job services.UpdateJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			s.logger.WithError(err).Error("Malformed update job payload")
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, chunkTimeout)
		defer cancel()

		if err := s.service.ProcessBatch(jobCtx, job); err != nil {
			s.logger.WithError(err).WithField("operationId", job.OperationID).Error("Update chunk failed")
		}
	}
}

func (s *BatchSubscriber) handleRevert(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var job services.RevertJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			s.logger.WithError(err).Error("Malformed revert job payload")
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, chunkTimeout)
		defer cancel()

		if err := s.service.ProcessRevertBatch(jobCtx, job); err != nil {
			s.logger.WithError(err).WithField("operationId", job.OperationID).Error("Revert chunk failed")
		}
	}
}

func (s *BatchSubscriber) handleDefaults(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var job services.DefaultsJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			s.logger.WithError(err).Error("Malformed defaults job payload")
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, chunkTimeout)
		defer cancel()

		if err := s.service.ProcessDefaultsBatch(jobCtx, job); err != nil {
			s.logger.WithError(err).WithField("operationId", job.OperationID).Error("Defaults chunk failed")
		}
	}
}

// Stop unsubscribes and closes the worker connection
func (s *BatchSubscriber) Stop() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.WithError(err).Warn("Failed to unsubscribe")
		}
	}
	s.subs = nil
	if s.conn != nil {
		s.conn.Close()
	}
}
