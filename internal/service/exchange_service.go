package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"autotrader/internal/exchange"
	"autotrader/pkg/utils"
)

// Ошибки сервиса
var (
	ErrNotPaperExchange = errors.New("exchange is not in paper mode")
)

// QuoteAsset - актив, в котором ведётся баланс фьючерсного кошелька
const QuoteAsset = "USDT"

// defaultCallTimeout - лимит запроса баланса, если SetCallTimeout не вызывался
const defaultCallTimeout = 10 * time.Second

// BalanceBroadcaster - интерфейс для отправки обновлений балансов через WebSocket
type BalanceBroadcaster interface {
	BroadcastBalanceUpdate(exchange string, balance float64)
}

// ExchangeInfo - сведения о подключенной бирже
type ExchangeInfo struct {
	Name        string     `json:"name"`
	Paper       bool       `json:"paper"`
	LastBalance *float64   `json:"last_balance,omitempty"`
	CheckedAt   *time.Time `json:"checked_at,omitempty"`
}

// PaperPosition - открытая позиция paper-биржи
type PaperPosition struct {
	Symbol string `json:"symbol"`
	Size   string `json:"size"` // отрицательный = short
}

// PaperState - журнал исполнений и позиции paper-биржи
type PaperState struct {
	Fills     []exchange.Order `json:"fills"`
	Positions []PaperPosition  `json:"positions"`
}

// ExchangeService - доступ к единственной бирже движка для API (баланс, состояние paper)
type ExchangeService struct {
	exch        exchange.Exchange
	callTimeout time.Duration

	// Последний известный баланс
	mu          sync.RWMutex
	lastBalance float64
	checkedAt   time.Time

	// WebSocket hub для broadcast балансов
	wsHub BalanceBroadcaster
	log   *utils.Logger
}

// NewExchangeService создает новый экземпляр сервиса
func NewExchangeService(exch exchange.Exchange) *ExchangeService {
	return &ExchangeService{
		exch:        exch,
		callTimeout: defaultCallTimeout,
		log:         utils.L().WithComponent("exchange-service").With(utils.Exchange(exch.GetName())),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast балансов.
//
// Вызывается после инициализации Hub в main.go:
//
//	exchangeService := service.NewExchangeService(exch)
//	exchangeService.SetWebSocketHub(wsHub)
func (s *ExchangeService) SetWebSocketHub(hub BalanceBroadcaster) {
	s.wsHub = hub
}

// SetCallTimeout задаёт лимит на один запрос к бирже (CALL_TIMEOUT)
func (s *ExchangeService) SetCallTimeout(d time.Duration) {
	if d > 0 {
		s.callTimeout = d
	}
}

// GetBalance запрашивает USDT баланс у биржи, запоминает его и рассылает клиентам
func (s *ExchangeService) GetBalance(ctx context.Context) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	balances, err := s.exch.FetchBalance(callCtx)
	if err != nil {
		s.log.Warn("failed to fetch balance", utils.Err(err))
		return 0, err
	}

	balance := balances[QuoteAsset]

	s.mu.Lock()
	s.lastBalance = balance
	s.checkedAt = time.Now()
	s.mu.Unlock()

	if s.wsHub != nil {
		s.wsHub.BroadcastBalanceUpdate(s.exch.GetName(), balance)
	}

	return balance, nil
}

// GetInfo возвращает имя биржи и последний известный баланс
func (s *ExchangeService) GetInfo() ExchangeInfo {
	_, paper := s.exch.(*exchange.Paper)
	info := ExchangeInfo{Name: s.exch.GetName(), Paper: paper}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.checkedAt.IsZero() {
		balance, at := s.lastBalance, s.checkedAt
		info.LastBalance = &balance
		info.CheckedAt = &at
	}
	return info
}

// GetPaperState возвращает исполнения paper-биржи и ненулевые позиции по торговавшимся символам
func (s *ExchangeService) GetPaperState() (*PaperState, error) {
	paper, ok := s.exch.(*exchange.Paper)
	if !ok {
		return nil, ErrNotPaperExchange
	}

	fills := paper.Fills()
	symbols := make(map[string]struct{}, len(fills))
	for _, f := range fills {
		symbols[f.Symbol] = struct{}{}
	}

	positions := make([]PaperPosition, 0, len(symbols))
	for symbol := range symbols {
		size := paper.Position(symbol)
		if size.IsZero() {
			continue
		}
		positions = append(positions, PaperPosition{Symbol: symbol, Size: size.String()})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	return &PaperState{Fills: fills, Positions: positions}, nil
}
