// Package services holds the batch orchestration core: it resolves a
// submitted target set into either an immediate synchronous apply or a
// series of deferred chunk jobs, drives the price/attribute writes, and
// records every mutation in the change log so it can be undone.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/jobs"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/pricing"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/repository"
)

var (
	ErrNoVariations      = errors.New("no variation ids provided")
	ErrNoProducts        = errors.New("no product ids provided")
	ErrNoDefaults        = errors.New("no default attributes provided")
	ErrInvalidTarget     = errors.New("invalid price target")
	ErrOperationNotFound = errors.New("operation not found")
)

// CapacityError rejects a synchronous batch that exceeds the safe limit
// while background processing is disabled. Nothing is written.
type CapacityError struct {
	Total int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("batch contains %d targets which exceeds the safe synchronous limit (%d); enable background processing or reduce the selection", e.Total, e.Limit)
}

// Statuses reported to callers
const (
	StatusCompleted = "completed"
	StatusScheduled = "scheduled"
)

// Options is the orchestration policy configuration
type Options struct {
	ChunkSize              int
	AsyncEnabled           bool
	MaxSynchronous         int
	DefaultsAsyncThreshold int
	PreviewLimit           int
	ChunkStagger           time.Duration
}

// UpdateInput is a validated bulk price update request
type UpdateInput struct {
	VariationIDs []uuid.UUID
	Mode         models.PriceMode
	Value        float64
	Target       models.PriceTarget
	Label        string
	UserID       string
}

// PreviewEntry is one row of a dry-run price preview
type PreviewEntry struct {
	VariationID uuid.UUID `json:"variation_id"`
	OldPrice    string    `json:"old_price,omitempty"`
	NewPrice    string    `json:"new_price,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// PreviewResult is the outcome of a dry run; nothing was written
type PreviewResult struct {
	OperationID string         `json:"operation_id"`
	Preview     []PreviewEntry `json:"preview"`
	Total       int            `json:"total"`
}

// AppliedEntry is one successfully written price change
type AppliedEntry struct {
	VariationID uuid.UUID `json:"variation_id"`
	OldPrice    string    `json:"old_price"`
	NewPrice    string    `json:"new_price"`
}

// ApplyErrorEntry is one per-target failure; it never aborts siblings
type ApplyErrorEntry struct {
	VariationID *uuid.UUID `json:"variation_id,omitempty"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Error       string     `json:"error"`
}

// UpdateResult describes what an apply did or scheduled
type UpdateResult struct {
	OperationID string            `json:"operation_id"`
	Status      string            `json:"status"`
	Applied     []AppliedEntry    `json:"applied,omitempty"`
	Errors      []ApplyErrorEntry `json:"errors"`
	Chunks      int               `json:"chunks,omitempty"`
	Total       int               `json:"total"`
}

// UpdateJob is the payload of one deferred price update chunk
type UpdateJob struct {
	OperationID string             `json:"operation_id"`
	Items       []uuid.UUID        `json:"items"`
	Mode        models.PriceMode   `json:"mode"`
	Value       float64            `json:"value"`
	Target      models.PriceTarget `json:"target"`
	Label       string             `json:"label"`
	UserID      string             `json:"user_id"`
}

// RevertJob is the payload of one deferred revert chunk
type RevertJob struct {
	OperationID       string      `json:"operation_id"`
	RevertOperationID string      `json:"revert_operation_id"`
	Items             []uuid.UUID `json:"items"`
	Label             string      `json:"label"`
	UserID            string      `json:"user_id"`
}

// DefaultsJob is the payload of one deferred default-attributes chunk.
// Products maps product id to the attribute defaults to apply.
type DefaultsJob struct {
	OperationID string                       `json:"operation_id"`
	Products    map[string]map[string]string `json:"products"`
	Label       string                       `json:"label"`
	UserID      string                       `json:"user_id"`
}

// DefaultsInput is a validated bulk default-attributes request
type DefaultsInput struct {
	ProductIDs []uuid.UUID
	Defaults   map[uuid.UUID]map[string]string
	Label      string
	UserID     string
}

// DefaultsPreviewEntry is one row of a defaults dry-run preview
type DefaultsPreviewEntry struct {
	ProductID   uuid.UUID         `json:"product_id"`
	ProductName string            `json:"product_name"`
	OldDefaults map[string]string `json:"old_defaults"`
	NewDefaults map[string]string `json:"new_defaults"`
}

// DefaultsPreviewResult truncates large selections to the preview limit
type DefaultsPreviewResult struct {
	Preview       []DefaultsPreviewEntry `json:"preview"`
	Total         int                    `json:"total"`
	TotalSelected int                    `json:"total_selected"`
	PreviewLimit  int                    `json:"preview_limit"`
}

// DefaultsAppliedEntry is one successfully applied defaults change
type DefaultsAppliedEntry struct {
	ProductID   uuid.UUID         `json:"product_id"`
	ProductName string            `json:"product_name"`
	OldDefaults map[string]string `json:"old_defaults"`
	NewDefaults map[string]string `json:"new_defaults"`
}

// DefaultsResult describes what a defaults apply did or scheduled
type DefaultsResult struct {
	OperationID string                 `json:"operation_id"`
	Status      string                 `json:"status"`
	Applied     []DefaultsAppliedEntry `json:"applied,omitempty"`
	Errors      []ApplyErrorEntry      `json:"errors"`
	Chunks      int                    `json:"chunks,omitempty"`
	Total       int                    `json:"total"`
}

// UndoInput identifies the operation to revert. Items optionally restricts
// the revert to a subset of its variations.
type UndoInput struct {
	OperationID string
	Items       []uuid.UUID
	UserID      string
}

// UndoPreviewEntry shows what a revert would restore
type UndoPreviewEntry struct {
	VariationID  uuid.UUID `json:"variation_id"`
	CurrentPrice *string   `json:"current_price"`
	WillRestore  *string   `json:"will_restore"`
}

// UndoPreviewResult is the outcome of an undo dry run
type UndoPreviewResult struct {
	OperationID string             `json:"operation_id"`
	Preview     []UndoPreviewEntry `json:"preview"`
}

// UndoResult describes what an undo did or scheduled
type UndoResult struct {
	Status            string            `json:"status"`
	RevertOperationID string            `json:"revert_operation_id"`
	Errors            []ApplyErrorEntry `json:"errors"`
	Chunks            int               `json:"chunks,omitempty"`
	Total             int               `json:"total"`
}

// BulkServiceInterface is the orchestrator surface consumed by handlers
// and the background worker
type BulkServiceInterface interface {
	PreviewUpdate(ctx context.Context, input UpdateInput) (*PreviewResult, error)
	ApplyUpdate(ctx context.Context, input UpdateInput) (*UpdateResult, error)
	ProcessBatch(ctx context.Context, job UpdateJob) error
	PreviewDefaults(ctx context.Context, input DefaultsInput) (*DefaultsPreviewResult, error)
	ApplyDefaults(ctx context.Context, input DefaultsInput) (*DefaultsResult, error)
	ProcessDefaultsBatch(ctx context.Context, job DefaultsJob) error
	PreviewUndo(ctx context.Context, operationID string) (*UndoPreviewResult, error)
	Undo(ctx context.Context, input UndoInput) (*UndoResult, error)
	ProcessRevertBatch(ctx context.Context, job RevertJob) error
}

// BulkService decides between synchronous and deferred execution, chunks
// large batches, and drives the transformer and change log
type BulkService struct {
	catalog     repository.CatalogRepositoryInterface
	changelog   repository.ChangeLogRepositoryInterface
	transformer *pricing.Transformer
	runner      jobs.Runner
	opts        Options
	logger      *logrus.Entry
}

var _ BulkServiceInterface = (*BulkService)(nil)

// NewBulkService creates the orchestrator. A nil runner disables deferred
// execution regardless of the async option (the task runner is an
// optional collaborator).
func NewBulkService(
	catalog repository.CatalogRepositoryInterface,
	changelog repository.ChangeLogRepositoryInterface,
	transformer *pricing.Transformer,
	runner jobs.Runner,
	opts Options,
	logger *logrus.Logger,
) *BulkService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 100
	}
	if opts.MaxSynchronous <= 0 {
		opts.MaxSynchronous = 200
	}
	if opts.DefaultsAsyncThreshold <= 0 {
		opts.DefaultsAsyncThreshold = 300
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = 50
	}
	if opts.ChunkStagger <= 0 {
		opts.ChunkStagger = 3 * time.Second
	}

	return &BulkService{
		catalog:     catalog,
		changelog:   changelog,
		transformer: transformer,
		runner:      runner,
		opts:        opts,
		logger:      logger.WithField("component", "services.bulk"),
	}
}

func (s *BulkService) asyncAvailable() bool {
	return s.opts.AsyncEnabled && s.runner != nil
}

// normalizeMode coerces unknown modes to percent, mirroring the lenient
// input handling of the admin UI
func normalizeMode(mode models.PriceMode) models.PriceMode {
	switch mode {
	case models.ModeAmount, models.ModeFixed, models.ModePercent:
		return mode
	default:
		return models.ModePercent
	}
}

func validateTarget(target models.PriceTarget) error {
	if target != models.TargetRegular && target != models.TargetSale {
		return ErrInvalidTarget
	}
	return nil
}

// PreviewUpdate computes the would-be prices for a transform without
// writing anything
func (s *BulkService) PreviewUpdate(ctx context.Context, input UpdateInput) (*PreviewResult, error) {
	if len(input.VariationIDs) == 0 {
		return nil, ErrNoVariations
	}
	if err := validateTarget(input.Target); err != nil {
		return nil, err
	}

	mode := normalizeMode(input.Mode)
	value := pricing.ClampValue(mode, input.Value)

	preview := make([]PreviewEntry, 0, len(input.VariationIDs))
	for _, vid := range input.VariationIDs {
		variation, err := s.catalog.GetVariation(ctx, vid)
		if err != nil {
			preview = append(preview, PreviewEntry{VariationID: vid, Error: "Variation not found"})
			continue
		}

		old := variation.Price(input.Target)
		preview = append(preview, PreviewEntry{
			VariationID: vid,
			OldPrice:    old,
			NewPrice:    s.transformer.ComputeNewPrice(old, mode, value),
		})
	}

	return &PreviewResult{
		OperationID: uuid.New().String(),
		Preview:     preview,
		Total:       len(input.VariationIDs),
	}, nil
}

// ApplyUpdate validates the request, applies the capacity policy and
// either applies the transform synchronously or schedules chunk jobs
func (s *BulkService) ApplyUpdate(ctx context.Context, input UpdateInput) (*UpdateResult, error) {
	ids := dedupeIDs(input.VariationIDs)
	if len(ids) == 0 {
		return nil, ErrNoVariations
	}
	if err := validateTarget(input.Target); err != nil {
		return nil, err
	}

	mode := normalizeMode(input.Mode)
	value := pricing.ClampValue(mode, input.Value)
	total := len(ids)
	operationID := uuid.New().String()

	if !s.asyncAvailable() && total > s.opts.MaxSynchronous {
		return nil, &CapacityError{Total: total, Limit: s.opts.MaxSynchronous}
	}

	if s.asyncAvailable() && total > s.opts.ChunkSize {
		chunks := chunkIDs(ids, s.opts.ChunkSize)
		for i, chunk := range chunks {
			job := UpdateJob{
				OperationID: operationID,
				Items:       chunk,
				Mode:        mode,
				Value:       value,
				Target:      input.Target,
				Label:       input.Label,
				UserID:      input.UserID,
			}
			s.schedule(i, jobs.SubjectBatchUpdate, job)
		}

		s.logger.WithFields(logrus.Fields{
			"operationId": operationID,
			"chunks":      len(chunks),
			"total":       total,
		}).Info("Scheduled bulk price update")

		return &UpdateResult{
			OperationID: operationID,
			Status:      StatusScheduled,
			Errors:      []ApplyErrorEntry{},
			Chunks:      len(chunks),
			Total:       total,
		}, nil
	}

	applied, applyErrors, rows := s.applyPriceChunk(ctx, ids, mode, value, input.Target)
	if err := s.changelog.Append(ctx, operationID, input.Label, input.UserID, rows); err != nil {
		return nil, fmt.Errorf("failed to log changes: %w", err)
	}

	return &UpdateResult{
		OperationID: operationID,
		Status:      StatusCompleted,
		Applied:     applied,
		Errors:      applyErrors,
		Total:       total,
	}, nil
}

// ProcessBatch is the deferred-job entry point for one price update
// chunk. It shares the apply path with synchronous execution; its rows
// accumulate under the operation id independently of sibling chunks.
func (s *BulkService) ProcessBatch(ctx context.Context, job UpdateJob) error {
	if job.OperationID == "" || len(job.Items) == 0 {
		return fmt.Errorf("invalid batch job payload")
	}

	mode := normalizeMode(job.Mode)
	value := pricing.ClampValue(mode, job.Value)
	if err := validateTarget(job.Target); err != nil {
		return err
	}

	applied, applyErrors, rows := s.applyPriceChunk(ctx, job.Items, mode, value, job.Target)
	if err := s.changelog.Append(ctx, job.OperationID, job.Label, job.UserID, rows); err != nil {
		return fmt.Errorf("failed to log chunk changes: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"operationId": job.OperationID,
		"applied":     len(applied),
		"errors":      len(applyErrors),
	}).Info("Processed price update chunk")
	return nil
}

// applyPriceChunk makes at most one write attempt per target: a failed
// write is logged with a nil new value and never retried, and no failure
// aborts the remaining targets.
func (s *BulkService) applyPriceChunk(ctx context.Context, ids []uuid.UUID, mode models.PriceMode, value float64, target models.PriceTarget) ([]AppliedEntry, []ApplyErrorEntry, []models.PriceChange) {
	applied := make([]AppliedEntry, 0, len(ids))
	applyErrors := make([]ApplyErrorEntry, 0)
	rows := make([]models.PriceChange, 0, len(ids))
	valueStr := strconv.FormatFloat(value, 'f', -1, 64)

	for _, vid := range ids {
		vid := vid
		variation, err := s.catalog.GetVariation(ctx, vid)
		if err != nil {
			applyErrors = append(applyErrors, ApplyErrorEntry{VariationID: &vid, Error: "Variation not found"})
			continue
		}

		old := variation.Price(target)
		newPrice := s.transformer.ComputeNewPrice(old, mode, value)

		if err := s.transformer.WritePrice(ctx, vid, target, newPrice); err != nil {
			s.logger.WithError(err).WithField("variationId", vid).Error("Price write failed")
			applyErrors = append(applyErrors, ApplyErrorEntry{VariationID: &vid, Error: err.Error()})
			rows = append(rows, models.PriceChange{
				VariationID: vid,
				ProductID:   variation.ProductID,
				ChangeType:  models.ChangeTypePrice,
				OldValue:    strPtr(old),
				NewValue:    nil,
				Mode:        string(mode),
				Value:       valueStr,
				Target:      string(target),
			})
			continue
		}

		applied = append(applied, AppliedEntry{VariationID: vid, OldPrice: old, NewPrice: newPrice})
		rows = append(rows, models.PriceChange{
			VariationID: vid,
			ProductID:   variation.ProductID,
			ChangeType:  models.ChangeTypePrice,
			OldValue:    strPtr(old),
			NewValue:    strPtr(newPrice),
			Mode:        string(mode),
			Value:       valueStr,
			Target:      string(target),
		})
	}

	return applied, applyErrors, rows
}

// PreviewDefaults computes a defaults dry run, truncated to the preview
// limit for large selections
func (s *BulkService) PreviewDefaults(ctx context.Context, input DefaultsInput) (*DefaultsPreviewResult, error) {
	if len(input.ProductIDs) == 0 {
		return nil, ErrNoProducts
	}
	if len(input.Defaults) == 0 {
		return nil, ErrNoDefaults
	}

	previewIDs := input.ProductIDs
	if len(previewIDs) > s.opts.PreviewLimit {
		previewIDs = previewIDs[:s.opts.PreviewLimit]
	}

	preview := make([]DefaultsPreviewEntry, 0, len(previewIDs))
	for _, pid := range previewIDs {
		newDefaults := sanitizeDefaults(input.Defaults[pid])
		if len(newDefaults) == 0 {
			continue
		}

		product, err := s.catalog.GetProduct(ctx, pid)
		if err != nil || product.Type != models.ProductTypeVariable {
			continue
		}

		preview = append(preview, DefaultsPreviewEntry{
			ProductID:   pid,
			ProductName: product.Name,
			OldDefaults: defaultsToStrings(product.DefaultAttributes),
			NewDefaults: newDefaults,
		})
	}

	return &DefaultsPreviewResult{
		Preview:       preview,
		Total:         len(preview),
		TotalSelected: len(input.ProductIDs),
		PreviewLimit:  s.opts.PreviewLimit,
	}, nil
}

// ApplyDefaults applies or schedules a bulk default-attributes change
func (s *BulkService) ApplyDefaults(ctx context.Context, input DefaultsInput) (*DefaultsResult, error) {
	if len(input.ProductIDs) == 0 {
		return nil, ErrNoProducts
	}
	if len(input.Defaults) == 0 {
		return nil, ErrNoDefaults
	}

	// Keep only selected products that carry usable defaults
	orderedIDs := make([]uuid.UUID, 0, len(input.ProductIDs))
	data := make(map[uuid.UUID]map[string]string, len(input.ProductIDs))
	for _, pid := range dedupeIDs(input.ProductIDs) {
		sanitized := sanitizeDefaults(input.Defaults[pid])
		if len(sanitized) == 0 {
			continue
		}
		orderedIDs = append(orderedIDs, pid)
		data[pid] = sanitized
	}

	if len(orderedIDs) == 0 {
		return nil, ErrNoDefaults
	}

	total := len(orderedIDs)
	operationID := uuid.New().String()

	if !s.asyncAvailable() && total > s.opts.MaxSynchronous {
		return nil, &CapacityError{Total: total, Limit: s.opts.MaxSynchronous}
	}

	if s.asyncAvailable() && total > s.opts.DefaultsAsyncThreshold {
		chunks := chunkIDs(orderedIDs, s.opts.ChunkSize)
		for i, chunk := range chunks {
			products := make(map[string]map[string]string, len(chunk))
			for _, pid := range chunk {
				products[pid.String()] = data[pid]
			}
			job := DefaultsJob{
				OperationID: operationID,
				Products:    products,
				Label:       input.Label,
				UserID:      input.UserID,
			}
			s.schedule(i, jobs.SubjectBatchDefaults, job)
		}

		s.logger.WithFields(logrus.Fields{
			"operationId": operationID,
			"chunks":      len(chunks),
			"total":       total,
		}).Info("Scheduled bulk defaults update")

		return &DefaultsResult{
			OperationID: operationID,
			Status:      StatusScheduled,
			Errors:      []ApplyErrorEntry{},
			Chunks:      len(chunks),
			Total:       total,
		}, nil
	}

	applied, applyErrors, rows := s.applyDefaultsChunk(ctx, orderedIDs, data)
	if err := s.changelog.Append(ctx, operationID, input.Label, input.UserID, rows); err != nil {
		return nil, fmt.Errorf("failed to log changes: %w", err)
	}

	return &DefaultsResult{
		OperationID: operationID,
		Status:      StatusCompleted,
		Applied:     applied,
		Errors:      applyErrors,
		Total:       len(applied),
	}, nil
}

// ProcessDefaultsBatch is the deferred-job entry point for one defaults
// chunk
func (s *BulkService) ProcessDefaultsBatch(ctx context.Context, job DefaultsJob) error {
	if job.OperationID == "" || len(job.Products) == 0 {
		return fmt.Errorf("invalid defaults job payload")
	}

	orderedIDs := make([]uuid.UUID, 0, len(job.Products))
	data := make(map[uuid.UUID]map[string]string, len(job.Products))
	for rawID, defaults := range job.Products {
		pid, err := uuid.Parse(rawID)
		if err != nil {
			s.logger.WithField("productId", rawID).Warn("Skipping malformed product id in defaults job")
			continue
		}
		orderedIDs = append(orderedIDs, pid)
		data[pid] = defaults
	}

	applied, applyErrors, rows := s.applyDefaultsChunk(ctx, orderedIDs, data)
	if err := s.changelog.Append(ctx, job.OperationID, job.Label, job.UserID, rows); err != nil {
		return fmt.Errorf("failed to log chunk changes: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"operationId": job.OperationID,
		"applied":     len(applied),
		"errors":      len(applyErrors),
	}).Info("Processed defaults chunk")
	return nil
}

func (s *BulkService) applyDefaultsChunk(ctx context.Context, ids []uuid.UUID, data map[uuid.UUID]map[string]string) ([]DefaultsAppliedEntry, []ApplyErrorEntry, []models.PriceChange) {
	applied := make([]DefaultsAppliedEntry, 0, len(ids))
	applyErrors := make([]ApplyErrorEntry, 0)
	rows := make([]models.PriceChange, 0, len(ids))

	for _, pid := range ids {
		pid := pid
		product, err := s.catalog.GetProduct(ctx, pid)
		if err != nil {
			applyErrors = append(applyErrors, ApplyErrorEntry{ProductID: &pid, Error: "Product not found"})
			continue
		}

		oldDefaults := defaultsToStrings(product.DefaultAttributes)
		accepted, err := s.transformer.SetDefaultAttributes(ctx, pid, data[pid])
		if err != nil {
			applyErrors = append(applyErrors, ApplyErrorEntry{ProductID: &pid, Error: err.Error()})
			continue
		}

		applied = append(applied, DefaultsAppliedEntry{
			ProductID:   pid,
			ProductName: product.Name,
			OldDefaults: oldDefaults,
			NewDefaults: accepted,
		})
		rows = append(rows, models.PriceChange{
			ProductID:  pid,
			ChangeType: models.ChangeTypeDefaultAttributes,
			OldValue:   strPtr(encodeDefaults(oldDefaults)),
			NewValue:   strPtr(encodeDefaults(accepted)),
		})
	}

	return applied, applyErrors, rows
}

// PreviewUndo shows the current price and the restoration target for each
// row of an operation without writing anything
func (s *BulkService) PreviewUndo(ctx context.Context, operationID string) (*UndoPreviewResult, error) {
	origRows, err := s.changelog.OperationRows(ctx, operationID)
	if err != nil {
		return nil, err
	}
	priceRows := filterPriceRows(origRows)
	if len(priceRows) == 0 {
		return nil, ErrOperationNotFound
	}

	preview := make([]UndoPreviewEntry, 0, len(priceRows))
	for _, row := range priceRows {
		var current *string
		if variation, err := s.catalog.GetVariation(ctx, row.VariationID); err == nil {
			current = strPtr(variation.Price(models.PriceTarget(row.Target)))
		}
		preview = append(preview, UndoPreviewEntry{
			VariationID:  row.VariationID,
			CurrentPrice: current,
			WillRestore:  row.OldValue,
		})
	}

	return &UndoPreviewResult{OperationID: operationID, Preview: preview}, nil
}

// Undo reverts an operation by restoring each row's recorded old price.
// The revert is logged under a fresh operation id so that it can itself
// be undone; the chain is forward-only, never a stack.
func (s *BulkService) Undo(ctx context.Context, input UndoInput) (*UndoResult, error) {
	origRows, err := s.changelog.OperationRows(ctx, input.OperationID)
	if err != nil {
		return nil, err
	}
	priceRows := filterPriceRows(origRows)
	if len(priceRows) == 0 {
		return nil, ErrOperationNotFound
	}

	targetIDs := make([]uuid.UUID, 0, len(priceRows))
	for _, row := range priceRows {
		if len(input.Items) > 0 && !containsID(input.Items, row.VariationID) {
			continue
		}
		targetIDs = append(targetIDs, row.VariationID)
	}

	total := len(targetIDs)
	revertOperationID := uuid.New().String()
	label := fmt.Sprintf("Revert of %s", input.OperationID)

	if !s.asyncAvailable() && total > s.opts.MaxSynchronous {
		return nil, &CapacityError{Total: total, Limit: s.opts.MaxSynchronous}
	}

	if s.asyncAvailable() && total > s.opts.ChunkSize {
		chunks := chunkIDs(targetIDs, s.opts.ChunkSize)
		for i, chunk := range chunks {
			job := RevertJob{
				OperationID:       input.OperationID,
				RevertOperationID: revertOperationID,
				Items:             chunk,
				Label:             label,
				UserID:            input.UserID,
			}
			s.schedule(i, jobs.SubjectBatchRevert, job)
		}

		s.logger.WithFields(logrus.Fields{
			"operationId":       input.OperationID,
			"revertOperationId": revertOperationID,
			"chunks":            len(chunks),
			"total":             total,
		}).Info("Scheduled revert")

		return &UndoResult{
			Status:            StatusScheduled,
			RevertOperationID: revertOperationID,
			Errors:            []ApplyErrorEntry{},
			Chunks:            len(chunks),
			Total:             total,
		}, nil
	}

	applyErrors, err := s.processRevert(ctx, RevertJob{
		OperationID:       input.OperationID,
		RevertOperationID: revertOperationID,
		Items:             targetIDs,
		Label:             label,
		UserID:            input.UserID,
	})
	if err != nil {
		return nil, err
	}

	return &UndoResult{
		Status:            StatusCompleted,
		RevertOperationID: revertOperationID,
		Errors:            applyErrors,
		Total:             total,
	}, nil
}

// ProcessRevertBatch is the deferred-job entry point for one revert chunk
func (s *BulkService) ProcessRevertBatch(ctx context.Context, job RevertJob) error {
	if job.OperationID == "" || job.RevertOperationID == "" {
		return fmt.Errorf("invalid revert job payload")
	}

	applyErrors, err := s.processRevert(ctx, job)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"operationId":       job.OperationID,
		"revertOperationId": job.RevertOperationID,
		"errors":            len(applyErrors),
	}).Info("Processed revert chunk")
	return nil
}

// processRevert restores old prices for the given subset of an
// operation's rows. Each restored row's current price becomes the "old"
// value of the revert's own log entries, and the original row is flagged
// reverted.
func (s *BulkService) processRevert(ctx context.Context, job RevertJob) ([]ApplyErrorEntry, error) {
	var origRows []models.PriceChange
	if len(job.Items) == 0 {
		all, err := s.changelog.OperationRows(ctx, job.OperationID)
		if err != nil {
			return nil, err
		}
		origRows = filterPriceRows(all)
	} else {
		for _, vid := range job.Items {
			row, err := s.changelog.OperationRow(ctx, job.OperationID, vid)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if row.ChangeType == models.ChangeTypePrice {
				origRows = append(origRows, *row)
			}
		}
	}

	applyErrors := make([]ApplyErrorEntry, 0)
	rows := make([]models.PriceChange, 0, len(origRows))

	for _, orig := range origRows {
		orig := orig
		variation, err := s.catalog.GetVariation(ctx, orig.VariationID)
		if err != nil {
			applyErrors = append(applyErrors, ApplyErrorEntry{VariationID: &orig.VariationID, Error: "Variation not found"})
			continue
		}

		target := models.PriceTarget(orig.Target)
		current := variation.Price(target)
		restore := ""
		if orig.OldValue != nil {
			restore = *orig.OldValue
		}

		if err := s.transformer.WritePrice(ctx, orig.VariationID, target, restore); err != nil {
			s.logger.WithError(err).WithField("variationId", orig.VariationID).Error("Revert write failed")
			applyErrors = append(applyErrors, ApplyErrorEntry{VariationID: &orig.VariationID, Error: err.Error()})
			rows = append(rows, models.PriceChange{
				VariationID: orig.VariationID,
				ProductID:   orig.ProductID,
				ChangeType:  models.ChangeTypePrice,
				OldValue:    strPtr(current),
				NewValue:    nil,
				Mode:        string(models.ModeRevert),
				Value:       "0",
				Target:      orig.Target,
			})
			continue
		}

		rows = append(rows, models.PriceChange{
			VariationID: orig.VariationID,
			ProductID:   orig.ProductID,
			ChangeType:  models.ChangeTypePrice,
			OldValue:    strPtr(current),
			NewValue:    strPtr(restore),
			Mode:        string(models.ModeRevert),
			Value:       "0",
			Target:      orig.Target,
		})

		if err := s.changelog.MarkRowReverted(ctx, orig.ID); err != nil {
			s.logger.WithError(err).WithField("rowId", orig.ID).Error("Failed to flag row reverted")
		}
	}

	if err := s.changelog.Append(ctx, job.RevertOperationID, job.Label, job.UserID, rows); err != nil {
		return nil, fmt.Errorf("failed to log revert changes: %w", err)
	}
	return applyErrors, nil
}

// schedule publishes one chunk job, staggered by index to smooth load.
// Publish failures are logged, not propagated: sibling chunks are already
// committed and the caller can observe the gap via row counts.
func (s *BulkService) schedule(index int, subject string, payload interface{}) {
	var err error
	if index == 0 {
		err = s.runner.Enqueue(subject, payload)
	} else {
		at := time.Now().Add(time.Duration(index) * s.opts.ChunkStagger)
		err = s.runner.ScheduleAt(at, subject, payload)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"subject": subject,
			"chunk":   index,
		}).Error("Failed to enqueue chunk")
	}
}

func filterPriceRows(rows []models.PriceChange) []models.PriceChange {
	out := make([]models.PriceChange, 0, len(rows))
	for _, row := range rows {
		if row.ChangeType == models.ChangeTypePrice {
			out = append(out, row)
		}
	}
	return out
}

func sanitizeDefaults(defaults map[string]string) map[string]string {
	out := make(map[string]string, len(defaults))
	for key, value := range defaults {
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func defaultsToStrings(defaults models.JSON) map[string]string {
	out := make(map[string]string, len(defaults))
	for key, value := range defaults {
		if s, ok := value.(string); ok {
			out[key] = s
		}
	}
	return out
}

func encodeDefaults(defaults map[string]string) string {
	data, err := json.Marshal(defaults)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func chunkIDs(ids []uuid.UUID, size int) [][]uuid.UUID {
	chunks := make([][]uuid.UUID, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func strPtr(s string) *string {
	return &s
}
