package websocket

import (
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// broadcastBufferSize - ёмкость очереди broadcast; при переполнении сообщения отбрасываются
const broadcastBufferSize = 256

// envelope - сериализованное сообщение и его адресат (0 - все клиенты)
type envelope struct {
	data         []byte
	subscriberID int64
}

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Центральный менеджер для broadcast сообщений подключенным клиентам.
// Клиент, подключившийся с ?subscriber_id=N, получает только сообщения подписчика N
// и общие сообщения; клиент без фильтра (оператор) получает всё.
//
// Типы сообщений:
// - notification: новое уведомление
// - balanceUpdate: обновление баланса биржи
// - engineStatus: состояние сканера
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.Broadcast(message)
// 4. При завершении: hub.Stop()
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений клиентам
	broadcast chan envelope

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	stop     chan struct{}
	stopOnce sync.Once

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex

	clientCount atomic.Int64
	dropped     atomic.Uint64

	origins *OriginChecker
	log     *utils.Logger
}

// NewHub создает новый Hub. Без SetAllowedOrigins разрешены все Origin.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		origins:    NewOriginChecker(nil),
		log:        utils.L().WithComponent("ws-hub"),
	}
}

// SetAllowedOrigins задаёт список разрешённых Origin (пусто или "*" - все)
func (h *Hub) SetAllowedOrigins(origins []string) {
	h.origins = NewOriginChecker(origins)
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Завершается после Stop(), закрывая каналы всех клиентов.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientCount.Store(0)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := h.clientCount.Add(1)
			h.mu.Unlock()
			h.log.Debug("client connected", utils.Int64("clients", n), utils.Subscriber(client.subscriberID))

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			// копируем список клиентов под коротким RLock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				if client.accepts(msg.subscriberID) {
					clients = append(clients, client)
				}
			}
			h.mu.RUnlock()

			// Отправляем без блокировки, медленных клиентов отключаем
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- msg.data:
				default:
					toRemove = append(toRemove, client)
				}
			}
			for _, client := range toRemove {
				h.remove(client)
			}
			if len(toRemove) > 0 {
				h.log.Warn("removed slow clients", utils.Int("removed", len(toRemove)))
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.clientCount.Add(-1)
	}
}

// Stop останавливает Run. Повторный вызов безопасен.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast отправляет сообщение всем подключенным клиентам
func (h *Hub) Broadcast(message interface{}) {
	h.BroadcastTo(0, message)
}

// BroadcastTo отправляет сообщение клиентам подписчика (и клиентам без фильтра)
func (h *Hub) BroadcastTo(subscriberID int64, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal broadcast message", utils.Err(err))
		return
	}
	h.enqueue(envelope{data: data, subscriberID: subscriberID})
}

// BroadcastRaw отправляет уже сериализованные данные всем клиентам
func (h *Hub) BroadcastRaw(data []byte) {
	h.enqueue(envelope{data: data})
}

// enqueue не блокирует отправителя: при переполненной очереди сообщение отбрасывается
func (h *Hub) enqueue(msg envelope) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastNotification отправляет новое уведомление его подписчику
func (h *Hub) BroadcastNotification(notif *models.Notification) {
	var target int64
	if notif.SubscriberID != nil {
		target = *notif.SubscriberID
	}
	h.BroadcastTo(target, NewNotificationMessage(notif))
}

// BroadcastBalanceUpdate отправляет обновление баланса биржи
func (h *Hub) BroadcastBalanceUpdate(exchange string, balance float64) {
	h.Broadcast(NewBalanceUpdateMessage(exchange, balance))
}

// BroadcastEngineStatus отправляет снимок состояния сканера
func (h *Hub) BroadcastEngineStatus(status models.EngineStatus) {
	h.Broadcast(NewEngineStatusMessage(status))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// DroppedMessages возвращает число сообщений, отброшенных из-за переполненной очереди
func (h *Hub) DroppedMessages() uint64 {
	return h.dropped.Load()
}
