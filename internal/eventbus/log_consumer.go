package eventbus

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	logger logrus.FieldLogger
}

func NewLogConsumer(logger logrus.FieldLogger) *LogConsumer {
	return &LogConsumer{logger: logger}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	clientIDs := make([]string, len(evt.Operations))
	for i, ref := range evt.Operations {
		clientIDs[i] = string(ref.EntityType) + ":" + ref.ClientID
	}
	c.logger.WithFields(logrus.Fields{
		"event_type":    evt.EventType,
		"event_id":      evt.ID,
		"platform":      evt.Platform,
		"advertiser_id": evt.AdvertiserID,
		"operations":    clientIDs,
	}).Info(evt.Summary)
	return nil
}
