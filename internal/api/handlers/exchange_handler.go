package handlers

import (
	"net/http"

	"autotrader/internal/service"
)

// ExchangeHandler - баланс и состояние биржи
//
// Endpoints:
// - GET /api/v1/balance - USDT баланс фьючерсного кошелька
// - GET /api/v1/exchange - имя биржи и последний известный баланс
// - GET /api/v1/exchange/paper - исполнения и позиции paper-биржи
type ExchangeHandler struct {
	exchangeService service.ExchangeServiceInterface
}

// NewExchangeHandler создает новый ExchangeHandler
func NewExchangeHandler(exchangeService service.ExchangeServiceInterface) *ExchangeHandler {
	return &ExchangeHandler{exchangeService: exchangeService}
}

// BalanceResponse представляет ответ с балансом
type BalanceResponse struct {
	Exchange string  `json:"exchange"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// GetBalance запрашивает баланс у биржи
//
// GET /api/v1/balance
//
// HTTP коды:
// - 200 OK
// - 502 Bad Gateway: биржа не ответила
func (h *ExchangeHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.exchangeService.GetBalance(r.Context())
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "Failed to get balance from exchange", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, BalanceResponse{
		Exchange: h.exchangeService.GetInfo().Name,
		Balance:  balance,
		Currency: service.QuoteAsset,
	})
}

// GetInfo возвращает сведения о бирже без обращения к ней
//
// GET /api/v1/exchange
func (h *ExchangeHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.exchangeService.GetInfo())
}

// GetPaperState возвращает журнал paper-биржи
//
// GET /api/v1/exchange/paper
//
// HTTP коды:
// - 200 OK
// - 404 Not Found: биржа не в режиме paper
func (h *ExchangeHandler) GetPaperState(w http.ResponseWriter, r *http.Request) {
	state, err := h.exchangeService.GetPaperState()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}
