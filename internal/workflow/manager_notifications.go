package workflow

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"hopper/internal/logging"
	"hopper/internal/notifications"
	"hopper/internal/pipeline"
	"hopper/internal/queue"
)

func (m *Manager) notifyQueueStarted(ctx context.Context, pending int) {
	m.publish(ctx, notifications.EventQueueStarted, notifications.Payload{
		"count": strconv.Itoa(pending),
	})
}

func (m *Manager) notifyQueueCompleted(ctx context.Context, summary Summary) {
	m.publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"completed": strconv.Itoa(summary.TotalCompleted()),
		"failed":    strconv.Itoa(summary.Failed),
		"deferred":  strconv.Itoa(summary.Deferred),
		"duration":  summary.Duration().Truncate(time.Second).String(),
	})
}

func (m *Manager) notifyResult(ctx context.Context, result pipeline.Result) {
	switch result.Outcome {
	case pipeline.OutcomeCompleted, pipeline.OutcomeShortCircuited:
		payload := notifications.Payload{"title": result.Item.DisplayTitle()}
		if count := m.completedArtifactCount(result.Item); count > 0 {
			payload["artifacts"] = strconv.Itoa(count)
		}
		m.publish(ctx, notifications.EventItemCompleted, payload)
	case pipeline.OutcomeFailed:
		m.publish(ctx, notifications.EventItemFailed, notifications.Payload{
			"title":  result.Item.DisplayTitle(),
			"phase":  result.Phase.String(),
			"reason": result.Reason,
		})
	case pipeline.OutcomeDeferred:
		payload := notifications.Payload{
			"title":  result.Item.DisplayTitle(),
			"reason": result.Reason,
		}
		if minutes := int(result.Wait / time.Minute); minutes > 0 {
			payload["wait"] = strconv.Itoa(minutes) + "m"
		}
		m.publish(ctx, notifications.EventItemDeferred, payload)
	}
}

// publish sends the event and logs delivery problems without surfacing them;
// notification failures never affect processing.
func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("shutting down, could not send notification",
				logging.String("event", string(event)))
			return
		}
		m.logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err))
	}
}

func (m *Manager) completedArtifactCount(item queue.Item) int {
	entries, err := os.ReadDir(m.pipe.LayoutFor(item).CompletedDir())
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			count++
		}
	}
	return count
}
