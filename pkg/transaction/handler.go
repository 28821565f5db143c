package transaction

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/rest"
)

type TransactionDTO struct {
	Id            int             `json:"id"`
	WalletId      int             `json:"walletId"`
	CategoryId    int             `json:"categoryId"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    *time.Time      `json:"occurredAt,omitempty"`
	Note          string          `json:"note,omitempty"`
	AttachmentRef string          `json:"attachmentRef,omitempty"`
}

type CreateTransactionResponse struct {
	Transaction        TransactionDTO   `json:"transaction"`
	PossibleDuplicates []TransactionDTO `json:"possibleDuplicates"`
}

type TransferDTO struct {
	FromWalletId int             `json:"fromWalletId"`
	ToWalletId   int             `json:"toWalletId"`
	Amount       decimal.Decimal `json:"amount"`
	OccurredAt   *time.Time      `json:"occurredAt,omitempty"`
	Note         string          `json:"note,omitempty"`
}

type TransferResponse struct {
	Expense TransactionDTO `json:"expense"`
	Income  TransactionDTO `json:"income"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto TransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.service.CreateTransaction(r.Context(), dtoToInput(dto))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, CreateTransactionResponse{
		Transaction:        toDTO(result.Transaction),
		PossibleDuplicates: toDTOs(result.PossibleDuplicates),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	t, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(t))
}

// List serves GET /api/wallets/{walletId}/transactions?from=yyyy-mm-dd&to=yyyy-mm-dd, both dates inclusive.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	walletId, err := rest.PathInt(r, "walletId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	from, err := rest.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	to, err := rest.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}

	transactions, err := h.service.ListTransactions(r.Context(), walletId, from, to)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTOs(transactions))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	var dto TransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	updated, err := h.service.UpdateTransaction(r.Context(), id, dtoToInput(dto))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(updated))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	if err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Duplicates runs the duplicate heuristic for a transaction the client is about to submit.
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	var dto TransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	found, err := h.service.FindDuplicates(r.Context(), dtoToInput(dto))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTOs(found))
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var dto TransferDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	in := TransferInput{
		FromWalletId: dto.FromWalletId,
		ToWalletId:   dto.ToWalletId,
		Amount:       dto.Amount,
		Note:         dto.Note,
	}
	if dto.OccurredAt != nil {
		in.OccurredAt = *dto.OccurredAt
	}
	log.Debugf("transfer requested from wallet %d to wallet %d", in.FromWalletId, in.ToWalletId)

	result, err := h.service.Transfer(r.Context(), in)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/transactions/"+strconv.Itoa(result.Expense.Id))
	rest.WriteJSON(w, http.StatusCreated, TransferResponse{Expense: toDTO(result.Expense), Income: toDTO(result.Income)})
}

func dtoToInput(dto TransactionDTO) Input {
	in := Input{
		WalletId:      dto.WalletId,
		CategoryId:    dto.CategoryId,
		Type:          Type(dto.Type),
		Amount:        dto.Amount,
		Note:          dto.Note,
		AttachmentRef: dto.AttachmentRef,
	}
	if dto.OccurredAt != nil {
		in.OccurredAt = *dto.OccurredAt
	}
	return in
}

func toDTO(t Transaction) TransactionDTO {
	occurredAt := t.OccurredAt
	return TransactionDTO{
		Id:            t.Id,
		WalletId:      t.WalletId,
		CategoryId:    t.CategoryId,
		Type:          string(t.Type),
		Amount:        t.Amount,
		OccurredAt:    &occurredAt,
		Note:          t.Note,
		AttachmentRef: t.AttachmentRef,
	}
}

func toDTOs(transactions []Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(transactions))
	for _, t := range transactions {
		dtos = append(dtos, toDTO(t))
	}
	return dtos
}
