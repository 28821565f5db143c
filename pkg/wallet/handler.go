package wallet

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/walletwise/walletwise/internal/rest"
	"github.com/walletwise/walletwise/pkg/user"
)

type WalletDTO struct {
	Id        int             `json:"id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	IsDefault bool            `json:"isDefault"`
	Owned     bool            `json:"owned"`
}

type ShareDTO struct {
	UserId     int    `json:"userId"`
	Permission string `json:"permission"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto WalletDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.service.CreateWallet(r.Context(), Wallet{Name: dto.Name, Currency: dto.Currency, IsDefault: dto.IsDefault})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created, created.UserId))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.service.ListWallets(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	userId := currentUserId(r)
	dtos := make([]WalletDTO, 0, len(wallets))
	for _, wallet := range wallets {
		dtos = append(dtos, toDTO(wallet, userId))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	wallet, err := h.service.GetWallet(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(wallet, currentUserId(r)))
}

func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	if err := h.service.SetDefault(r.Context(), id); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	id, err := rest.PathInt(r, "id")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	var dto ShareDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	permission, err := ParsePermission(dto.Permission)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	if err := h.service.ShareWallet(r.Context(), id, dto.UserId, permission); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func currentUserId(r *http.Request) int {
	userId, _ := user.CurrentId(r.Context())
	return userId
}

func toDTO(wallet Wallet, userId int) WalletDTO {
	return WalletDTO{
		Id:        wallet.Id,
		Name:      wallet.Name,
		Currency:  wallet.Currency,
		Balance:   wallet.Balance,
		IsDefault: wallet.IsDefault,
		Owned:     wallet.UserId == userId,
	}
}
