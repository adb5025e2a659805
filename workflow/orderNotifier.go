package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/sirupsen/logrus"
)

// AsyncNotifier is the fire-and-forget models.OrderNotifier: each event is
// published on its own goroutine under Timeout and failures are only logged.
type AsyncNotifier struct {
	Publisher OrderEventPublisher
	Timeout   time.Duration
	Logger    *logrus.Logger

	wg sync.WaitGroup
}

func NewAsyncNotifier(publisher OrderEventPublisher) *AsyncNotifier {
	return &AsyncNotifier{
		Publisher: publisher,
		Timeout:   config.LoadSettings().NotifyTimeout,
		Logger:    config.GetLogger(),
	}
}

func (n *AsyncNotifier) Notify(ctx context.Context, role string, event models.OrderEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		config.LogError(n.Logger, "workflow", "Notify", "marshal order event", event, err)
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.OrderEventMessage{
		EventId:       uuid.NewString(),
		Role:          role,
		OrderId:       event.OrderId,
		EventType:     event.Type,
		Payload:       payload,
		OccurredAt:    event.Timestamp,
		CorrelationId: cid,
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		timeout := n.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if _, err := n.Publisher.Publish(pubCtx, msg); err != nil {
			config.LogError(n.Logger, "workflow", "Notify", "publish order event", msg.OrderId, utils.DeliveryFailure(err))
		}
	}()
}

// Wait blocks until every in-flight notification finished.
func (n *AsyncNotifier) Wait() {
	n.wg.Wait()
}
