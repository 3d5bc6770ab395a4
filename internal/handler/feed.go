package handler

import (
	"errors"
	"net/http"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/efreitasn/basketexec/internal/live"
	"github.com/efreitasn/basketexec/internal/service"
)

// FeedHandler accepts broker postbacks over HTTP.
type FeedHandler struct {
	feedSvc *service.FeedService
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(feedSvc *service.FeedService) *FeedHandler {
	return &FeedHandler{feedSvc: feedSvc}
}

// PostOrderUpdate handles POST /feed/order-updates. The body is the broker's
// postback payload; fields the engine does not read are ignored.
func (h *FeedHandler) PostOrderUpdate(w http.ResponseWriter, r *http.Request) {
	var frame live.OrderUpdateFrame
	if err := ParseLenientJSON(r, &frame); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.feedSvc.Inject(frame.ToDomain()); err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
