package budget

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/rest"
)

type BudgetDTO struct {
	Id             int             `json:"id"`
	CategoryId     int             `json:"categoryId"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	Period         string          `json:"period,omitempty"`
	LimitAmount    decimal.Decimal `json:"limitAmount"`
	UsedAmount     decimal.Decimal `json:"usedAmount"`
	AlertThreshold decimal.Decimal `json:"alertThreshold"`
	Percentage     decimal.Decimal `json:"percentage"`
	AlertSent50    bool            `json:"alertSent50"`
	AlertSent80    bool            `json:"alertSent80"`
	AlertSent95    bool            `json:"alertSent95"`
	AlertSent100   bool            `json:"alertSent100"`
}

type BudgetHandler struct {
	budgetService BudgetService
}

func NewBudgetHandler(budgetService BudgetService) *BudgetHandler {
	return &BudgetHandler{budgetService}
}

func (handler *BudgetHandler) Register(w http.ResponseWriter, r *http.Request) {
	log.Debug("Registering new budget")
	var budgetDTO BudgetDTO
	if err := json.NewDecoder(r.Body).Decode(&budgetDTO); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	budget, err := DTOToBudget(budgetDTO)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	created, err := handler.budgetService.Create(r.Context(), budget)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, BudgetToDTO(created))
}

func (handler *BudgetHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	var budgets []Budget
	var err error
	if r.URL.Query().Has("inAlert") {
		budgets, err = handler.budgetService.GetInAlert(r.Context())
	} else {
		budgets, err = handler.budgetService.GetAll(r.Context())
	}
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	budgetsDTO := make([]BudgetDTO, 0, len(budgets))
	for _, budget := range budgets {
		budgetsDTO = append(budgetsDTO, BudgetToDTO(budget))
	}
	rest.WriteJSON(w, http.StatusOK, budgetsDTO)
}

func (handler *BudgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	budgetId, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	budget, err := handler.budgetService.Get(r.Context(), budgetId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, BudgetToDTO(budget))
}

func (handler *BudgetHandler) Update(w http.ResponseWriter, r *http.Request) {
	budgetId, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	var budgetDTO BudgetDTO
	if err := json.NewDecoder(r.Body).Decode(&budgetDTO); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if budgetDTO.Id != 0 && budgetDTO.Id != budgetId {
		http.Error(w, "Invalid budget id in request body", http.StatusBadRequest)
		return
	}
	budget, err := DTOToBudget(budgetDTO)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	budget.Id = budgetId

	updated, err := handler.budgetService.Update(r.Context(), budget)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, BudgetToDTO(updated))
}

func (handler *BudgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	budgetId, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	ok, err := handler.budgetService.Delete(r.Context(), budgetId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Budget not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (handler *BudgetHandler) ResetAlerts(w http.ResponseWriter, r *http.Request) {
	budgetId, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	budget, err := handler.budgetService.ResetAlertFlags(r.Context(), budgetId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, BudgetToDTO(budget))
}

func (handler *BudgetHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	budgetId, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	budget, err := handler.budgetService.Recalculate(r.Context(), budgetId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, BudgetToDTO(budget))
}

func BudgetToDTO(budget Budget) BudgetDTO {
	return BudgetDTO{
		Id:             budget.Id,
		CategoryId:     budget.CategoryId,
		StartDate:      budget.StartDate.Format(rest.DateLayout),
		EndDate:        budget.EndDate.Format(rest.DateLayout),
		Period:         string(budget.Period),
		LimitAmount:    budget.LimitAmount,
		UsedAmount:     budget.UsedAmount,
		AlertThreshold: budget.AlertThreshold,
		Percentage:     budget.Ratio().Mul(decimal.NewFromInt(100)).Round(2),
		AlertSent50:    budget.Alerts.Sent50,
		AlertSent80:    budget.Alerts.Sent80,
		AlertSent95:    budget.Alerts.Sent95,
		AlertSent100:   budget.Alerts.Sent100,
	}
}

// DTOToBudget converts the user editable fields; usage and flags are ignored.
func DTOToBudget(budgetDTO BudgetDTO) (Budget, error) {
	startDate, err := rest.ParseDate(budgetDTO.StartDate)
	if err != nil {
		return Budget{}, err
	}
	endDate, err := rest.ParseDate(budgetDTO.EndDate)
	if err != nil {
		return Budget{}, err
	}
	period := Period(budgetDTO.Period)
	if period != "" && !period.Valid() {
		return Budget{}, fmt.Errorf("period %q: %w", budgetDTO.Period, ErrInvalidBudget)
	}
	return Budget{
		Id:             budgetDTO.Id,
		CategoryId:     budgetDTO.CategoryId,
		StartDate:      startDate,
		EndDate:        endDate,
		Period:         period,
		LimitAmount:    budgetDTO.LimitAmount,
		AlertThreshold: budgetDTO.AlertThreshold,
	}, nil
}
