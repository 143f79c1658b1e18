package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"autotrader/internal/models"
	"autotrader/internal/service"
	"autotrader/pkg/utils"
)

// SubscriberHandler - команды подписчика
//
// Endpoints:
// - GET    /api/v1/subscribers/{id}/status - лимиты, счётчики, кулдауны
// - GET    /api/v1/subscribers/{id}/pairs - список пар
// - POST   /api/v1/subscribers/{id}/pairs - добавить пару
// - DELETE /api/v1/subscribers/{id}/pairs/{base}/{quote} - удалить пару
// - POST   /api/v1/subscribers/{id}/autotrade - переключить/задать автоторговлю
// - PATCH  /api/v1/subscribers/{id}/settings - размер ордера и плечо
// - GET    /api/v1/subscribers/{id}/trades?limit=20 - журнал сделок
// - GET    /api/v1/trades/{trade_id} - сделка из БД
type SubscriberHandler struct {
	subscriberService service.SubscriberServiceInterface
}

// NewSubscriberHandler создает новый SubscriberHandler с внедрением зависимости
func NewSubscriberHandler(subscriberService service.SubscriberServiceInterface) *SubscriberHandler {
	return &SubscriberHandler{subscriberService: subscriberService}
}

// SubscriberResponse - настройки подписчика после изменения
type SubscriberResponse struct {
	ID            int64           `json:"id"`
	Autotrade     bool            `json:"autotrade"`
	Pairs         []string        `json:"pairs"`
	OrderNotional decimal.Decimal `json:"order_notional"`
	Leverage      int             `json:"leverage"`
}

func newSubscriberResponse(sub *models.Subscriber) SubscriberResponse {
	return SubscriberResponse{
		ID:            sub.ID,
		Autotrade:     sub.Autotrade,
		Pairs:         sub.Pairs,
		OrderNotional: sub.OrderNotional,
		Leverage:      sub.Leverage,
	}
}

// PairsResponse - список пар подписчика
type PairsResponse struct {
	Pairs []string `json:"pairs"`
}

// AddPairRequest - тело POST /pairs
type AddPairRequest struct {
	Symbol string `json:"symbol"`
}

// AutotradeRequest - тело POST /autotrade. Без тела - переключение.
type AutotradeRequest struct {
	Enabled *bool `json:"enabled"`
}

// UpdateSettingsRequest - тело PATCH /settings (поля необязательные)
type UpdateSettingsRequest struct {
	OrderNotional *decimal.Decimal `json:"order_notional"`
	Leverage      *int             `json:"leverage"`
}

// TradesResponse - журнал сделок (новые в конце)
type TradesResponse struct {
	Trades []models.Trade `json:"trades"`
	Total  int            `json:"total"`
}

// GetStatus возвращает состояние подписчика
//
// GET /api/v1/subscribers/{id}/status
func (h *SubscriberHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := subscriberIDFromPath(r)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	status, err := h.subscriberService.GetStatus(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// GetPairs возвращает пары подписчика
//
// GET /api/v1/subscribers/{id}/pairs
func (h *SubscriberHandler) GetPairs(w http.ResponseWriter, r *http.Request) {
	id, err := subscriberIDFromPath(r)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	pairs, err := h.subscriberService.ListPairs(id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PairsResponse{Pairs: pairs})
}

// AddPair добавляет пару
//
// POST /api/v1/subscribers/{id}/pairs
//
// Тело: {"symbol": "sol/usdt"}. Пара сохраняется в верхнем регистре.
func (h *SubscriberHandler) AddPair(w http.ResponseWriter, r *http.Request) {
	id, err := subscriberIDFromPath(r)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	var req AddPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Symbol == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "symbol is required")
		return
	}

	sub, err := h.subscriberService.AddPair(id, req.Symbol)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PairsResponse{Pairs: sub.Pairs})
}

// RemovePair удаляет пару
//
// DELETE /api/v1/subscribers/{id}/pairs/{base}/{quote}
func (h *SubscriberHandler) RemovePair(w http.ResponseWriter, r *http.Request) {
	id, err := subscriberIDFromPath(r)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	vars := mux.Vars(r)
	sub, err := h.subscriberService.RemovePair(id, vars["base"]+"/"+vars["quote"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PairsResponse{Pairs: sub.Pairs})
}

// SetAutotrade переключает автоторговлю
//
// POST /api/v1/subscribers/{id}/autotrade
//
// Тело {"enabled": true|false} задаёт значение явно, пустое тело - переключение.
func (h *SubscriberHandler) SetAutotrade(w http.ResponseWriter, r *http.Request) {
	id, err := subscriberIDFromPath(r)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	var req AutotradeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}

	var sub *models.Subscriber
	if req.Enabled != nil {
		sub, err = h.subscriberService.SetAutotrade(id, *req.Enabled)
	} else {
		sub, err = h.subscriberService.ToggleAutotrade(id)
	}
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newSubscriberResponse(sub))
}

// UpdateSettings меняет размер ордера и/или плечо
//
// PATCH /api/v1/subscribers/{id}/settings
//
// Тело: {"order_notional": "25", "leverage": 10}
func (h *SubscriberHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, err := subscriberIDFromPath(r)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.OrderNotional == nil && req.Leverage == nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "order_notional or leverage is required")
		return
	}
	// проверяем оба поля до изменений, чтобы не применить запрос частично
	if req.OrderNotional != nil {
		if err := utils.ValidateNotional(*req.OrderNotional); err != nil {
			respondWithServiceError(w, err)
			return
		}
	}
	if req.Leverage != nil {
		if err := utils.ValidateLeverage(*req.Leverage); err != nil {
			respondWithServiceError(w, err)
			return
		}
	}

	var sub *models.Subscriber
	if req.OrderNotional != nil {
		if sub, err = h.subscriberService.SetOrderNotional(id, *req.OrderNotional); err != nil {
			respondWithServiceError(w, err)
			return
		}
	}
	if req.Leverage != nil {
		if sub, err = h.subscriberService.SetLeverage(id, *req.Leverage); err != nil {
			respondWithServiceError(w, err)
			return
		}
	}
	respondWithJSON(w, http.StatusOK, newSubscriberResponse(sub))
}

// GetTrades возвращает последние сделки подписчика
//
// GET /api/v1/subscribers/{id}/trades?limit=20
func (h *SubscriberHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	id, err := subscriberIDFromPath(r)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	trades, err := h.subscriberService.ListTrades(id, queryLimit(r))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, TradesResponse{Trades: trades, Total: len(trades)})
}

// GetTrade возвращает сделку по ID
//
// GET /api/v1/trades/{trade_id}
func (h *SubscriberHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := h.subscriberService.GetTrade(r.Context(), mux.Vars(r)["trade_id"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, trade)
}
