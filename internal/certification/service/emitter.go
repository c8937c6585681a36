package service

import (
	"context"
	"log/slog"

	"ecocert/internal/certification/models"
	"ecocert/internal/notification"
	"ecocert/pkg/requestcontext"
)

// workflowEmitter fans workflow events out to the notifier and the
// structured log. Delivery is best effort: failures are logged and never
// surface to the caller, so a broker outage cannot block a transition.
type workflowEmitter struct {
	logger   *slog.Logger
	notifier Notifier
}

func newWorkflowEmitter(logger *slog.Logger, notifier Notifier) *workflowEmitter {
	return &workflowEmitter{logger: logger, notifier: notifier}
}

func (e *workflowEmitter) emit(ctx context.Context, event notification.WorkflowEvent, r *models.Request, reason string) {
	actorID := ""
	if actor := requestcontext.Actor(ctx); !actor.AccountID.IsNil() {
		actorID = actor.AccountID.String()
	}
	if e.logger != nil {
		e.logger.InfoContext(ctx, string(event),
			"request_id", r.ID,
			"company_id", r.CompanyID,
			"status", r.Status,
			"actor_id", actorID,
			"request_trace_id", requestcontext.RequestID(ctx),
		)
	}
	if e.notifier == nil {
		return
	}
	err := e.notifier.Emit(ctx, notification.Event{
		Category:      event.Category(),
		RequestID:     r.ID,
		CompanyID:     r.CompanyID,
		Action:        string(event),
		Reason:        reason,
		ActorID:       actorID,
		CorrelationID: requestcontext.RequestID(ctx),
	})
	if err != nil && e.logger != nil {
		e.logger.WarnContext(ctx, "workflow event dropped",
			"event", string(event), "request_id", r.ID, "error", err)
	}
}
