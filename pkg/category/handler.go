package category

import (
	"encoding/json"
	"net/http"

	"github.com/walletwise/walletwise/internal/rest"
)

type CategoryDTO struct {
	Id         int    `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	IsTransfer bool   `json:"isTransfer"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto CategoryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	categoryType, err := ParseType(dto.Type)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	created, err := h.service.CreateCategory(r.Context(), Category{Name: dto.Name, Type: categoryType})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	dtos := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		dtos = append(dtos, toDTO(c))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func toDTO(c Category) CategoryDTO {
	return CategoryDTO{Id: c.Id, Name: c.Name, Type: string(c.Type), IsTransfer: c.IsTransfer}
}
