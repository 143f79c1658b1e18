package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"autotrader/internal/bot"
	"autotrader/internal/repository"
	"autotrader/internal/service"
	"autotrader/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError отправляет ErrorResponse
func respondWithError(w http.ResponseWriter, code int, errText, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: errText, Message: message})
}

// respondWithServiceError подбирает HTTP код по ошибке сервиса
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSubscriber),
		errors.Is(err, utils.ErrInvalidSymbol),
		errors.Is(err, utils.ErrInvalidLeverage),
		errors.Is(err, utils.ErrInvalidNotional):
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, service.ErrPairNotSubscribed),
		errors.Is(err, repository.ErrTradeNotFound),
		errors.Is(err, bot.ErrSubscriberNotFound),
		errors.Is(err, service.ErrNotPaperExchange):
		respondWithError(w, http.StatusNotFound, "Not found", err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

// subscriberIDFromPath читает {id} из маршрута
func subscriberIDFromPath(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, service.ErrInvalidSubscriber
	}
	return id, nil
}

// queryLimit читает ?limit= (0 - значение сервиса по умолчанию)
func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 0
}
