package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "hoaportal/contexts/governance/review-workflow/application"
	"hoaportal/contexts/governance/review-workflow/application/commands"
	"hoaportal/contexts/governance/review-workflow/application/notifications"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	"hoaportal/contexts/governance/review-workflow/domain/services"
	"hoaportal/contexts/governance/review-workflow/ports"
)

// DefaultWarningLeadTimes are the 7-day and 3-day deadline reminders.
var DefaultWarningLeadTimes = []time.Duration{7 * 24 * time.Hour, 3 * 24 * time.Hour}

// SweepReport counts one sweep. NoRecipients are warnings nobody could be
// addressed for; they are recorded as handled so later sweeps skip them.
type SweepReport struct {
	Scanned         int
	AutoApproved    int
	AlreadyResolved int
	Advanced        int
	Warned          int
	NoRecipients    int
	Failed          int
}

// DeadlineScheduler auto-approves reviews whose deadline elapsed and sends
// lead-time warnings. It never schedules itself; an external trigger calls
// RunOnce. Every step is guarded per request, so reruns and concurrent
// instances only repeat work that has not landed yet.
type DeadlineScheduler struct {
	Requests    ports.RequestRepository
	Validator   *services.Validator
	Transitions commands.TransitionUseCase
	Dispatcher  commands.EventDispatcher
	Debounce    ports.DebounceStore
	Metrics     ports.Metrics
	Clock       ports.Clock
	LeadTimes   []time.Duration
	BatchSize   int
	Disabled    bool
	Logger      *slog.Logger
}

func (s DeadlineScheduler) RunOnce(ctx context.Context) (SweepReport, error) {
	logger := application.ResolveLogger(s.Logger)
	report := SweepReport{}
	if s.Disabled {
		logger.Debug("deadline sweep disabled",
			"event", "review_deadline_sweep_disabled",
			"module", "governance/review-workflow",
			"layer", "worker",
		)
		return report, nil
	}
	now := s.now()

	// A failed listing skips only its own phase; the rest of the sweep runs.
	var errs []error
	for _, version := range s.Validator.Versions() {
		workflow, _ := s.Validator.Workflow(version)
		errs = append(errs,
			s.advanceStalled(ctx, workflow, &report),
			s.autoApprove(ctx, workflow, now, &report),
		)
		errs = append(errs, s.warn(ctx, workflow, now, &report)...)
	}

	ports.ResolveMetrics(s.Metrics).SweepCompleted(report.AutoApproved, report.Warned, report.Failed)
	logger.Info("deadline sweep completed",
		"event", "review_deadline_sweep_completed",
		"module", "governance/review-workflow",
		"layer", "worker",
		"scanned_count", report.Scanned,
		"auto_approved_count", report.AutoApproved,
		"already_resolved_count", report.AlreadyResolved,
		"advanced_count", report.Advanced,
		"warned_count", report.Warned,
		"no_recipients_count", report.NoRecipients,
		"failed_count", report.Failed,
	)
	return report, errors.Join(errs...)
}

// advanceStalled finishes automatic advancement that a crash interrupted
// between the resolving write and the follow-up system write.
func (s DeadlineScheduler) advanceStalled(
	ctx context.Context,
	workflow services.Workflow,
	report *SweepReport,
) error {
	statuses := workflow.AutoAdvanceStatuses()
	if len(statuses) == 0 {
		return nil
	}
	stalled, err := s.Requests.ListByStatus(ctx, workflow.Version(), statuses, s.batchSize())
	if err != nil {
		return s.listFailed("stalled", workflow.Version(), err, report)
	}
	for _, request := range stalled {
		report.Scanned++
		target, _ := workflow.AutoAdvanceTarget(request.Status)
		result, err := s.Transitions.Apply(ctx, entities.SystemActor, request, target, commands.TransitionOptions{})
		switch {
		case err != nil:
			report.Failed++
			s.itemFailed("advance", request, err.Error())
		case result.Applied:
			report.Advanced++
		case result.AlreadyResolved:
			report.AlreadyResolved++
		default:
			report.Failed++
			s.itemFailed("advance", request, result.Decision.Reason)
		}
	}
	return nil
}

func (s DeadlineScheduler) autoApprove(
	ctx context.Context,
	workflow services.Workflow,
	now time.Time,
	report *SweepReport,
) error {
	statuses := workflow.AutoApprovalStatuses()
	if len(statuses) == 0 {
		return nil
	}
	expired, err := s.Requests.ListExpiredReviews(ctx, workflow.Version(), statuses, now, s.batchSize())
	if err != nil {
		return s.listFailed("expired", workflow.Version(), err, report)
	}
	for _, request := range expired {
		report.Scanned++
		target, ok := workflow.AutoApprovalTarget(request.Status)
		if !ok {
			continue
		}
		result, err := s.Transitions.Apply(ctx, entities.SystemActor, request, target, commands.TransitionOptions{
			AutoApprovedReason: "review_deadline_elapsed:" + string(request.Status),
		})
		switch {
		case err != nil:
			report.Failed++
			s.itemFailed("auto_approve", request, err.Error())
		case result.Applied:
			report.AutoApproved++
		case result.AlreadyResolved:
			report.AlreadyResolved++
		default:
			report.Failed++
			s.itemFailed("auto_approve", request, result.Decision.Reason)
		}
	}
	return nil
}

// warn sends each lead-time reminder once per review cycle. Windows do not
// overlap: the warning for lead L covers deadlines in (now+previous, now+L],
// so a short review period gets only the nearest reminder.
func (s DeadlineScheduler) warn(
	ctx context.Context,
	workflow services.Workflow,
	now time.Time,
	report *SweepReport,
) []error {
	statuses := workflow.ReviewStatuses()
	if len(statuses) == 0 {
		return nil
	}
	var errs []error
	previous := time.Duration(0)
	for _, lead := range s.leadTimes() {
		from := previous
		previous = lead
		due, err := s.Requests.ListDeadlinesWithin(ctx, workflow.Version(), statuses, now.Add(from), now.Add(lead), s.batchSize())
		if err != nil {
			errs = append(errs, s.listFailed("warning_"+leadLabel(lead), workflow.Version(), err, report))
			continue
		}
		key := string(entities.NotificationDeadlineWarning) + ":" + leadLabel(lead)
		for _, request := range due {
			report.Scanned++
			if request.ReviewDeadline == nil {
				continue
			}
			if s.Debounce != nil {
				lastSent, found, err := s.Debounce.LastSent(ctx, request.RequestID, key)
				if err != nil {
					report.Failed++
					s.itemFailed("warning_lookup", request, err.Error())
					continue
				}
				if found && !lastSent.Before(request.ReviewDeadline.Add(-lead)) {
					continue
				}
			}
			result := s.dispatch(ctx, notifications.WorkflowEvent{
				Type:    entities.NotificationDeadlineWarning,
				Request: request,
				Context: map[string]string{"lead_time": leadLabel(lead)},
			})
			switch {
			case result.Recipients == 0 && result.Failed == 0:
				report.NoRecipients++
				application.ResolveLogger(s.Logger).Info("deadline warning has no recipients",
					"event", "review_deadline_warning_unaddressed",
					"module", "governance/review-workflow",
					"layer", "worker",
					"request_id", request.RequestID,
					"status", string(request.Status),
					"lead_time", leadLabel(lead),
				)
			case result.Delivered == 0:
				report.Failed++
				s.itemFailed("warning_delivery", request, "no notification delivered")
				continue
			default:
				report.Warned++
			}
			if s.Debounce == nil {
				continue
			}
			if err := s.Debounce.RecordSent(ctx, entities.DebounceRecord{
				RequestID:        request.RequestID,
				NotificationType: key,
				LastSentAt:       now,
			}); err != nil {
				report.Failed++
				s.itemFailed("warning_record", request, err.Error())
			}
		}
	}
	return errs
}

func (s DeadlineScheduler) dispatch(ctx context.Context, event notifications.WorkflowEvent) notifications.DispatchResult {
	if s.Dispatcher == nil {
		return notifications.DispatchResult{Type: event.Type}
	}
	return s.Dispatcher.Dispatch(ctx, event)
}

func (s DeadlineScheduler) listFailed(
	phase string,
	version entities.WorkflowVersion,
	err error,
	report *SweepReport,
) error {
	report.Failed++
	application.ResolveLogger(s.Logger).Error("deadline sweep listing failed",
		"event", "review_deadline_sweep_list_failed",
		"module", "governance/review-workflow",
		"layer", "worker",
		"phase", phase,
		"workflow_version", int(version),
		"error", err.Error(),
	)
	return fmt.Errorf("list %s requests for workflow v%d: %w", phase, version, err)
}

func (s DeadlineScheduler) itemFailed(phase string, request entities.Request, reason string) {
	application.ResolveLogger(s.Logger).Warn("deadline sweep item failed",
		"event", "review_deadline_sweep_item_failed",
		"module", "governance/review-workflow",
		"layer", "worker",
		"phase", phase,
		"request_id", request.RequestID,
		"status", string(request.Status),
		"reason", reason,
	)
}

func (s DeadlineScheduler) leadTimes() []time.Duration {
	source := s.LeadTimes
	if len(source) == 0 {
		source = DefaultWarningLeadTimes
	}
	items := make([]time.Duration, 0, len(source))
	for _, lead := range source {
		if lead > 0 {
			items = append(items, lead)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items
}

func (s DeadlineScheduler) batchSize() int {
	if s.BatchSize <= 0 {
		return 100
	}
	return s.BatchSize
}

func (s DeadlineScheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// leadLabel renders 168h0m0s as 168h.
func leadLabel(lead time.Duration) string {
	label := lead.String()
	if strings.HasSuffix(label, "m0s") {
		label = strings.TrimSuffix(label, "0s")
	}
	if strings.HasSuffix(label, "h0m") {
		label = strings.TrimSuffix(label, "0m")
	}
	return label
}
