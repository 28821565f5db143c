package notification

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/walletwise/walletwise/internal/rest"
)

type NotificationDTO struct {
	Id                string    `json:"id"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	RelatedEntityId   *int      `json:"relatedEntityId,omitempty"`
	RelatedEntityType string    `json:"relatedEntityType,omitempty"`
	Read              bool      `json:"read"`
	CreatedAt         time.Time `json:"createdAt"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.service.List(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	dtos := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, NotificationDTO{
			Id:                n.Id.String(),
			Title:             n.Title,
			Message:           n.Message,
			RelatedEntityId:   n.RelatedEntityId,
			RelatedEntityType: string(n.RelatedEntityType),
			Read:              n.Read,
			CreatedAt:         n.CreatedAt,
		})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid notification id", http.StatusBadRequest)
		return
	}
	ok, err := h.service.MarkRead(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
