package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autotrader/internal/api/handlers"
	"autotrader/internal/api/middleware"
	"autotrader/internal/service"
	"autotrader/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	SubscriberService   service.SubscriberServiceInterface
	NotificationService service.NotificationServiceInterface
	ExchangeService     service.ExchangeServiceInterface
	Engine              handlers.EngineStatusProvider
	Hub                 *websocket.Hub

	// Проверки для /health (например "postgres", "redis")
	HealthChecks map[string]handlers.HealthCheck

	// bcrypt-хеш API токена; пусто - без авторизации
	APITokenHash   string
	AllowedOrigins []string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /subscribers/{id}/
//	│   ├── GET /status - счётчики, лимиты, кулдауны
//	│   ├── GET /pairs - список пар
//	│   ├── POST /pairs - добавить пару
//	│   ├── DELETE /pairs/{base}/{quote} - удалить пару
//	│   ├── POST /autotrade - переключить автоторговлю
//	│   ├── PATCH /settings - размер ордера и плечо
//	│   └── GET /trades - журнал сделок
//	├── GET /trades/{trade_id} - сделка
//	├── GET /balance - USDT баланс
//	├── GET /exchange - сведения о бирже
//	├── GET /exchange/paper - журнал paper-биржи
//	├── GET /notifications - уведомления
//	└── GET /engine/status - состояние сканера
//
// /ws/stream - WebSocket для уведомлений в реальном времени
// /health, /metrics - без авторизации
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (/api/v1 и /ws)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(deps.AllowedOrigins))

	auth := middleware.Auth(deps.APITokenHash)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth)

	if deps.SubscriberService != nil {
		h := handlers.NewSubscriberHandler(deps.SubscriberService)
		api.HandleFunc("/subscribers/{id}/status", h.GetStatus).Methods("GET")
		api.HandleFunc("/subscribers/{id}/pairs", h.GetPairs).Methods("GET")
		api.HandleFunc("/subscribers/{id}/pairs", h.AddPair).Methods("POST")
		api.HandleFunc("/subscribers/{id}/pairs/{base}/{quote}", h.RemovePair).Methods("DELETE")
		api.HandleFunc("/subscribers/{id}/autotrade", h.SetAutotrade).Methods("POST")
		api.HandleFunc("/subscribers/{id}/settings", h.UpdateSettings).Methods("PATCH")
		api.HandleFunc("/subscribers/{id}/trades", h.GetTrades).Methods("GET")
		api.HandleFunc("/trades/{trade_id}", h.GetTrade).Methods("GET")
	}

	if deps.ExchangeService != nil {
		h := handlers.NewExchangeHandler(deps.ExchangeService)
		api.HandleFunc("/balance", h.GetBalance).Methods("GET")
		api.HandleFunc("/exchange", h.GetInfo).Methods("GET")
		api.HandleFunc("/exchange/paper", h.GetPaperState).Methods("GET")
	}

	if deps.NotificationService != nil {
		h := handlers.NewNotificationHandler(deps.NotificationService)
		api.HandleFunc("/notifications", h.GetNotifications).Methods("GET")
	}

	system := handlers.NewSystemHandler(deps.Engine, deps.HealthChecks)
	api.HandleFunc("/engine/status", system.EngineStatus).Methods("GET")

	// WebSocket route
	if deps.Hub != nil {
		hub := deps.Hub
		router.Handle("/ws/stream", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		}))).Methods("GET")
	}

	router.HandleFunc("/health", system.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
