package recurring

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/walletwise/walletwise/internal/rest"
	"github.com/walletwise/walletwise/pkg/category"
)

type RuleDTO struct {
	Id          int             `json:"id"`
	WalletId    int             `json:"walletId"`
	CategoryId  int             `json:"categoryId"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Frequency   string          `json:"frequency"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate,omitempty"`
	NextRunDate string          `json:"nextRunDate,omitempty"`
	Note        string          `json:"note,omitempty"`
	Active      bool            `json:"active"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto RuleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rule, err := dtoToRule(dto)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	created, err := h.service.CreateRule(r.Context(), rule)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	dtos := make([]RuleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, toDTO(rule))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rule, err := h.service.GetRule(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(rule))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rule, err := h.service.DeactivateRule(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(rule))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	ok, err := h.service.DeleteRule(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Recurring rule not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func dtoToRule(dto RuleDTO) (Rule, error) {
	start, err := rest.ParseDate(dto.StartDate)
	if err != nil {
		return Rule{}, err
	}
	rule := Rule{
		WalletId:   dto.WalletId,
		CategoryId: dto.CategoryId,
		Type:       category.Type(dto.Type),
		Amount:     dto.Amount,
		Frequency:  Frequency(dto.Frequency),
		StartDate:  start,
		Note:       dto.Note,
	}
	if dto.EndDate != "" {
		end, err := rest.ParseDate(dto.EndDate)
		if err != nil {
			return Rule{}, err
		}
		rule.EndDate = &end
	}
	return rule, nil
}

func toDTO(rule Rule) RuleDTO {
	dto := RuleDTO{
		Id:          rule.Id,
		WalletId:    rule.WalletId,
		CategoryId:  rule.CategoryId,
		Type:        string(rule.Type),
		Amount:      rule.Amount,
		Frequency:   string(rule.Frequency),
		StartDate:   rule.StartDate.Format(rest.DateLayout),
		NextRunDate: rule.NextRunDate.Format(rest.DateLayout),
		Note:        rule.Note,
		Active:      rule.Active,
	}
	if rule.EndDate != nil {
		dto.EndDate = rule.EndDate.Format(rest.DateLayout)
	}
	return dto
}
