// Package task implements the owner-scoped task operations.
package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "taskmanager/contracts/mq"
	"taskmanager/internal/apperr"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"
	"taskmanager/pkg/trace"
)

const notFoundMessage = "task not found"

// Store is the part of the task repository the service needs. Every call is
// scoped to an owner.
type Store interface {
	Insert(ctx context.Context, t *model.Task) error
	List(ctx context.Context, f model.TaskFilter) ([]model.Task, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// EventPublisher sends task events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Service struct {
	store     Store
	publisher EventPublisher
	logger    *zap.Logger
}

// NewService builds the task service. publisher may be nil to disable events.
func NewService(store Store, publisher EventPublisher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, q ListQuery) ([]model.Task, error) {
	f, err := q.toFilter()
	if err != nil {
		metrics.IncrementTaskOperation("list", "invalid")
		return nil, err
	}
	f.UserID = userID

	tasks, err := s.store.List(ctx, f)
	if err != nil {
		metrics.IncrementTaskOperation("list", "error")
		return nil, apperr.Internal("failed to list tasks", err)
	}
	metrics.IncrementTaskOperation("list", "success")
	return tasks, nil
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, in Input) (*model.Task, error) {
	patch, err := in.toPatch(true)
	if err != nil {
		metrics.IncrementTaskOperation("create", "invalid")
		return nil, err
	}

	t := &model.Task{
		UserID:      userID,
		Title:       *patch.Title,
		Description: *patch.Description,
		DueDate:     patch.DueDate,
		Priority:    *patch.Priority,
		Status:      *patch.Status,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		metrics.IncrementTaskOperation("create", "error")
		return nil, apperr.Internal("failed to create task", err)
	}

	metrics.IncrementTaskOperation("create", "success")
	logger.WithTrace(ctx, s.logger).Info("Task created",
		zap.String("task_id", t.ID.String()),
		zap.String("user_id", userID.String()),
	)
	s.publish(ctx, mqcontracts.RoutingKeyTaskCreated, eventFor(ctx, t, nil))
	return t, nil
}

// Get returns a single task. Tasks of other owners and malformed ids are
// reported as not found.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, rawID string) (*model.Task, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperr.NotFound(notFoundMessage)
	}
	t, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load task")
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, userID uuid.UUID, rawID string, in Input) (*model.Task, error) {
	patch, err := in.toPatch(false)
	if err != nil {
		metrics.IncrementTaskOperation("update", "invalid")
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		metrics.IncrementTaskOperation("update", "not_found")
		return nil, apperr.NotFound(notFoundMessage)
	}

	t, err := s.store.Update(ctx, userID, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.IncrementTaskOperation("update", "not_found")
		} else {
			metrics.IncrementTaskOperation("update", "error")
		}
		return nil, s.storeError(err, "failed to update task")
	}

	metrics.IncrementTaskOperation("update", "success")
	logger.WithTrace(ctx, s.logger).Info("Task updated",
		zap.String("task_id", t.ID.String()),
		zap.Strings("fields", patchFields(patch)),
	)
	s.publish(ctx, mqcontracts.RoutingKeyTaskUpdated, eventFor(ctx, t, patchFields(patch)))
	return t, nil
}

func (s *Service) Delete(ctx context.Context, userID uuid.UUID, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		metrics.IncrementTaskOperation("delete", "not_found")
		return apperr.NotFound(notFoundMessage)
	}

	if err := s.store.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.IncrementTaskOperation("delete", "not_found")
		} else {
			metrics.IncrementTaskOperation("delete", "error")
		}
		return s.storeError(err, "failed to delete task")
	}

	metrics.IncrementTaskOperation("delete", "success")
	logger.WithTrace(ctx, s.logger).Info("Task deleted", zap.String("task_id", id.String()))
	s.publish(ctx, mqcontracts.RoutingKeyTaskDeleted, mqcontracts.TaskEventPayload{
		TaskID:     id.String(),
		UserID:     userID.String(),
		TraceID:    trace.FromContext(ctx),
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

func (s *Service) storeError(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(notFoundMessage)
	}
	return apperr.Internal(message, err)
}

// publish never fails the request; the mutation is already committed.
func (s *Service) publish(ctx context.Context, routingKey string, payload mqcontracts.TaskEventPayload) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		metrics.IncrementEventPublish(routingKey, "error")
		logger.WithTrace(ctx, s.logger).Warn("Failed to publish task event",
			zap.String("routing_key", routingKey),
			zap.String("task_id", payload.TaskID),
			zap.Error(err),
		)
		return
	}
	metrics.IncrementEventPublish(routingKey, "success")
}

func eventFor(ctx context.Context, t *model.Task, fields []string) mqcontracts.TaskEventPayload {
	p := mqcontracts.TaskEventPayload{
		TaskID:     t.ID.String(),
		UserID:     t.UserID.String(),
		Title:      t.Title,
		Status:     string(t.Status),
		Priority:   string(t.Priority),
		Fields:     fields,
		TraceID:    trace.FromContext(ctx),
		OccurredAt: time.Now().UTC(),
	}
	if t.DueDate != nil {
		p.DueDate = *t.DueDate
	}
	return p
}

// patchFields lists the wire names of the fields a patch touches.
func patchFields(p model.TaskPatch) []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "titulo")
	}
	if p.Description != nil {
		fields = append(fields, "descricao")
	}
	if p.DueDate != nil || p.ClearDueDate {
		fields = append(fields, "prazo")
	}
	if p.Priority != nil {
		fields = append(fields, "prioridade")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	return fields
}
