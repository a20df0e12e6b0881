package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ootdcast/pushhub/internal/dispatch"
	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
	"github.com/ootdcast/pushhub/internal/infrastructure/storage"
	"github.com/ootdcast/pushhub/internal/infrastructure/uow"
	"github.com/ootdcast/pushhub/internal/interfaces/middleware"
)

// NotificationHandler serves the persisted notification list and deletion,
// plus the operator announcement endpoint that feeds the commit-gated
// dispatcher.
type NotificationHandler struct {
	db         *sql.DB
	store      *storage.NotificationStore
	dispatcher *dispatch.Dispatcher
	logger     logger.Logger
}

func NewNotificationHandler(
	db *sql.DB,
	store *storage.NotificationStore,
	dispatcher *dispatch.Dispatcher,
	log logger.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		db:         db,
		store:      store,
		dispatcher: dispatcher,
		logger:     log.WithField("handler", "notification"),
	}
}

// List returns the authenticated receiver's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	receiverID := middleware.UserID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := h.store.ListByReceiver(c.Request.Context(), receiverID, limit)
	if err != nil {
		h.logger.Errorf("failed to list notifications: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}

	if notifications == nil {
		notifications = []storage.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// Delete removes one of the receiver's own notifications.
func (h *NotificationHandler) Delete(c *gin.Context) {
	receiverID := middleware.UserID(c)
	id := c.Param("id")

	if err := h.store.Delete(c.Request.Context(), id, receiverID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		h.logger.Errorf("failed to delete notification %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete notification"})
		return
	}

	c.Status(http.StatusNoContent)
}

type announceRequest struct {
	Message string `json:"message" binding:"required"`
}

// Announce raises a broadcast announcement. The domain event is gated on the
// transaction: it reaches the dispatcher only after the commit succeeds.
func (h *NotificationHandler) Announce(c *gin.Context) {
	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	actorID := middleware.UserID(c)
	err := uow.RunInTx(c.Request.Context(), h.db, func(tx *uow.Tx) error {
		h.dispatcher.Gate(tx, dispatch.Event{
			Kind:    dispatch.KindAnnouncement,
			ActorID: actorID,
			Detail:  req.Message,
		})
		return nil
	})
	if err != nil {
		h.logger.Errorf("failed to publish announcement: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish announcement"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
