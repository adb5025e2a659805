package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/workflow"
	"github.com/sirupsen/logrus"
)

const orderEventsPushHandlerName = "order-events-push"

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func (a *app) realtimeStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":       a.registry.Stats(),
		"activeUsers": a.registry.ActiveUsers(),
	})
}

// orderEventsPushHandler receives order events relayed through Pub/Sub and
// broadcasts them to the sockets connected to this instance.
func (a *app) orderEventsPushHandler(c *gin.Context) {
	logger := config.GetLogger()

	// Env: PUBSUB_PUSH_TOKEN, compared with ?token= on the push subscription url.
	if want := os.Getenv("PUBSUB_PUSH_TOKEN"); want != "" && c.Query("token") != want {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(logger, "realtimeHandlers.go", "orderEventsPushHandler", "io.ReadAll", nil, err)
		// ack so Pub/Sub does not retry a body we cannot read
		c.Status(http.StatusNoContent)
		return
	}

	// byte slice unmarshalling handles base64 decoding.
	var msg PubSubMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		config.LogError(logger, "realtimeHandlers.go", "orderEventsPushHandler", "Unmarshal body", string(body), err)
		c.Status(http.StatusNoContent)
		return
	}
	var event config.OrderEventMessage
	if err := json.Unmarshal(msg.Message.Data, &event); err != nil {
		config.LogError(logger, "realtimeHandlers.go", "orderEventsPushHandler", "Unmarshal order event", msg.Message.ID, err)
		c.Status(http.StatusNoContent)
		return
	}
	if event.Role == "" || !json.Valid(event.Payload) {
		config.LogError(logger, "realtimeHandlers.go", "orderEventsPushHandler", "Invalid order event", event,
			errors.New("role and payload are required"))
		c.Status(http.StatusNoContent)
		return
	}

	// Pub/Sub delivers at least once; a redelivered message must not
	// reach the sockets twice.
	db := config.GetDB().WithContext(c.Request.Context())
	if msg.Message.ID != "" {
		skip, err := workflow.BeginIdempotency(db, a.instanceId, orderEventsPushHandlerName, msg.Message.ID)
		if errors.Is(err, workflow.ErrIdempotencyInProgress) {
			c.Status(http.StatusConflict)
			return
		}
		if err != nil {
			config.LogError(logger, "realtimeHandlers.go", "orderEventsPushHandler", "BeginIdempotency", msg.Message.ID, err)
			c.Status(http.StatusInternalServerError)
			return
		}
		if skip {
			c.Status(http.StatusNoContent)
			return
		}
	}

	result := a.registry.BroadcastToRole(event.Role, event.Payload)
	logger.WithFields(logrus.Fields{
		"field":          "orderEventsPushHandler",
		"event_id":       event.EventId,
		"order_id":       event.OrderId,
		"message_id":     msg.Message.ID,
		"correlation_id": event.CorrelationId,
		"delivered":      result.Delivered,
		"failed":         result.Failed,
	}).Info("order event relayed")

	if msg.Message.ID != "" {
		if err := workflow.MarkIdempotencySucceeded(db, a.instanceId, orderEventsPushHandlerName, msg.Message.ID); err != nil {
			config.LogError(logger, "realtimeHandlers.go", "orderEventsPushHandler", "MarkIdempotencySucceeded", msg.Message.ID, err)
		}
	}
	c.Status(http.StatusNoContent)
}

type orderEventReplayRequest struct {
	RecordId int `json:"record_id"`
}

// orderEventReplayHandler re-queues a DEAD or FAILED outbox row.
func orderEventReplayHandler(c *gin.Context) {
	var req orderEventReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RecordId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record_id is required"})
		return
	}
	status, err := models.ReplayOrderEvent(c.Request.Context(), req.RecordId)
	if err != nil {
		respondError(c, "orderEventReplayHandler", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func orderEventStatusHandler(c *gin.Context) {
	status, err := models.GetOrderEventStatus(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, "orderEventStatusHandler", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func orderEventBacklogHandler(c *gin.Context) {
	backlog, err := models.OrderEventBacklog(c.Request.Context())
	if err != nil {
		respondError(c, "orderEventBacklogHandler", err)
		return
	}
	c.JSON(http.StatusOK, backlog)
}
