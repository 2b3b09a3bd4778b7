package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giahuylhoang/dental-api/internal/calendar"
)

// RunSyncTasks drains due calendar mirror retries and reports how many tasks
// it processed. Intended to be called periodically by the sync worker; each
// task is retried independently and a failure only bumps that task's attempt
// counter.
func (e *Engine) RunSyncTasks(ctx context.Context, batchSize int) (int, error) {
	if e.cal == nil {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 50
	}

	tasks, err := e.repo.DueSyncTasks(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due sync tasks: %w", err)
	}

	for _, task := range tasks {
		if err := e.runSyncTask(ctx, task); err != nil {
			e.metrics.SyncAttempt("failed")
			e.log.Warn().Err(err).
				Int64("task_id", task.ID).
				Str("action", string(task.Action)).
				Int("attempts", task.Attempts+1).
				Msg("sync task retry failed")
			if merr := e.repo.MarkSyncTaskFailed(ctx, task.ID, err.Error()); merr != nil {
				e.log.Error().Err(merr).Int64("task_id", task.ID).Msg("record sync task failure")
			}
			continue
		}

		e.metrics.SyncAttempt("done")
		if merr := e.repo.MarkSyncTaskDone(ctx, task.ID); merr != nil {
			e.log.Error().Err(merr).Int64("task_id", task.ID).Msg("mark sync task done")
		}
	}

	return len(tasks), nil
}

func (e *Engine) runSyncTask(ctx context.Context, task SyncTask) error {
	switch task.Action {
	case SyncCreate:
		return e.retryCreate(ctx, task)
	case SyncDelete:
		return e.retryDelete(ctx, task)
	default:
		// Unknown actions are marked done rather than retried forever.
		e.log.Error().Str("action", string(task.Action)).Int64("task_id", task.ID).Msg("unknown sync action, dropping")
		return nil
	}
}

func (e *Engine) retryCreate(ctx context.Context, task SyncTask) error {
	appt, err := e.repo.GetAppointmentByID(ctx, task.AppointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Hard-deleted since; nothing left to mirror.
			return nil
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	// Only active appointments belong on the calendar; a cancellation that
	// raced the retry wins.
	if appt.Status != StatusScheduled && appt.Status != StatusConfirmed {
		return nil
	}
	if appt.CalendarEventRef != nil {
		return nil
	}

	doctor, err := e.repo.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil {
		return fmt.Errorf("load doctor: %w", err)
	}
	patient, err := e.repo.GetPatientByID(ctx, appt.PatientID)
	if err != nil {
		return fmt.Errorf("load patient: %w", err)
	}
	service, err := e.repo.GetServiceByID(ctx, appt.ServiceID)
	if err != nil {
		return fmt.Errorf("load service: %w", err)
	}

	reason := ""
	if appt.ReasonNote != nil {
		reason = *appt.ReasonNote
	}

	ev := calendar.Event{
		Summary: calendar.FormatSummary(patient.FullName(), service.Name),
		Description: calendar.FormatDescription(calendar.EventInfo{
			AppointmentID: appt.ID,
			PatientID:     patient.ID,
			DoctorID:      doctor.ID,
			ServiceID:     service.ID,
			PatientName:   patient.FullName(),
			ServiceName:   service.Name,
			Reason:        reason,
		}),
		Start: appt.Start,
		End:   appt.End,
	}

	calCtx, cancel := context.WithTimeout(ctx, e.calTimeout)
	eventRef, err := e.cal.CreateEvent(calCtx, e.calendarRef(doctor), ev)
	cancel()
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	if err := e.repo.SetCalendarEventRef(ctx, appt.ID, eventRef); err != nil {
		return fmt.Errorf("persist event ref: %w", err)
	}
	return nil
}

func (e *Engine) retryDelete(ctx context.Context, task SyncTask) error {
	if task.EventRef == nil {
		return nil
	}

	ref := calendar.DefaultRef
	if task.CalendarRef != nil {
		ref = *task.CalendarRef
	}

	calCtx, cancel := context.WithTimeout(ctx, e.calTimeout)
	err := e.cal.DeleteEvent(calCtx, ref, *task.EventRef)
	cancel()
	if err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
