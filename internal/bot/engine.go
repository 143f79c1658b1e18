package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/indicators"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// SignalSource - источник сигналов для сканера (SignalGenerator)
type SignalSource interface {
	Generate(ctx context.Context, symbol string) (*models.SignalInfo, error)
}

// Notifier - получатель событий сканера.
// Реализуется service.NotificationService (сохранение + рассылка по WebSocket).
type Notifier interface {
	NotifyTrade(ctx context.Context, trade *models.Trade)
	NotifyEngine(ctx context.Context, message string)
}

// Engine - периодический сканер автоторговли.
//
// Один тик обходит подписчиков с включённой автоторговлей, по каждой паре вне кулдауна
// считает сигнал, проверяет риск и при разрешении отправляет рыночный ордер.
// Тики выполняются последовательно в одной горутине.
type Engine struct {
	cfg config.BotConfig

	store     *SubscriberStore
	cooldowns *CooldownTracker
	signals   SignalSource
	executor  *OrderExecutor
	limits    RiskLimits
	notifier  Notifier
	version   string

	machine *scanMachine

	statsMu sync.RWMutex
	stats   models.EngineStatus

	log *utils.Logger
}

// NewEngine собирает сканер из компонентов
func NewEngine(
	cfg config.BotConfig,
	ex exchange.Exchange,
	store *SubscriberStore,
	cooldowns *CooldownTracker,
	notifier Notifier,
) *Engine {
	suite := indicators.Default()
	return &Engine{
		cfg:       cfg,
		store:     store,
		cooldowns: cooldowns,
		signals:   NewSignalGenerator(ex, suite, cfg),
		executor:  NewOrderExecutor(ex, store, cfg),
		limits:    NewRiskLimits(cfg),
		notifier:  notifier,
		version:   suite.Version(),
		machine:   newScanMachine(),
		stats: models.EngineStatus{
			State:            models.ScanIdle,
			IndicatorVersion: suite.Version(),
			ScanInterval:     cfg.ScanInterval.String(),
		},
		log: utils.L().WithComponent("engine"),
	}
}

// Run запускает цикл тиков до отмены контекста.
// Контекст проверяется только между тиками и между подписчиками.
func (e *Engine) Run(ctx context.Context) error {
	e.setRunning(true)
	defer e.setRunning(false)

	e.log.Info("autotrade scanner started",
		utils.String("interval", e.cfg.ScanInterval.String()),
		utils.String("indicators", e.version))
	e.notifyEngine(ctx, "autotrade scanner started")

	for {
		wait := e.cfg.ScanInterval
		if err := e.RunOnce(ctx); err != nil {
			e.log.Error("scan tick failed, backing off",
				utils.Err(err), utils.String("backoff", e.cfg.ErrorBackoff.String()))
			wait = e.cfg.ErrorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.log.Info("autotrade scanner stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce выполняет один тик. Паника в теле тика перехватывается и возвращается ошибкой.
func (e *Engine) RunOnce(ctx context.Context) (err error) {
	start := time.Now()
	scanned := 0

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
			e.log.Error("recovered from panic in scan tick",
				utils.Any("panic", r), utils.String("stack", string(debug.Stack())))
			e.machine.reset()
		}
		e.finishTick(start, scanned, err != nil)
	}()

	for _, id := range e.store.IDs() {
		if ctx.Err() != nil {
			break
		}
		if e.scanSubscriber(ctx, id) {
			scanned++
		}
	}

	if e.machine.current() != models.ScanIdle {
		e.machine.transition(models.ScanIdle)
	}
	return nil
}

// scanSubscriber обрабатывает одного подписчика. Паника изолируется в пределах подписчика.
// Возвращает true если у подписчика включена автоторговля.
func (e *Engine) scanSubscriber(ctx context.Context, id int64) (active bool) {
	log := e.log.WithSubscriber(id)

	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered from panic while scanning subscriber",
				utils.Any("panic", r), utils.String("stack", string(debug.Stack())))
			e.machine.reset()
		}
	}()

	e.enter(models.ScanSubscriber)

	sub := e.store.Ensure(id)
	if !sub.Autotrade {
		return false
	}

	if exhausted, reason := e.limits.Exhausted(sub); exhausted {
		log.Info("daily limits reached",
			utils.Reason(reason),
			utils.Int("daily_trades", sub.DailyTrades),
			utils.String("daily_loss", sub.DailyLoss.String()))
		return true
	}

	for _, symbol := range sub.Pairs {
		if !e.scanSymbol(ctx, id, symbol) {
			break
		}
	}
	return true
}

// scanSymbol обрабатывает одну пару. false - прекратить обход пар подписчика (лимиты исчерпаны).
func (e *Engine) scanSymbol(ctx context.Context, id int64, symbol string) bool {
	log := e.log.WithSubscriber(id).With(utils.Symbol(symbol))

	e.enter(models.ScanSymbol)

	if e.cooldowns.Active(ctx, id, symbol) {
		CooldownSkips.Inc()
		e.enter(models.ScanSkipping)
		return true
	}

	e.enter(models.ScanEvaluating)

	sig, err := e.signals.Generate(ctx, symbol)
	if err != nil {
		log.Warn("signal skipped", utils.Reason(string(exchange.ReasonOf(err))), utils.Err(err))
		e.enter(models.ScanSkipping)
		return true
	}
	if !sig.HasVerdict() {
		e.enter(models.ScanSkipping)
		return true
	}

	// Свежий снимок: счётчики могли измениться с начала обхода подписчика
	sub, err := e.store.View(id)
	if err != nil {
		e.enter(models.ScanSkipping)
		return true
	}
	if exhausted, reason := e.limits.Exhausted(sub); exhausted {
		RiskRejections.WithLabelValues(reason).Inc()
		log.Info("daily limits reached, stopping subscriber scan", utils.Reason(reason))
		e.enter(models.ScanSkipping)
		return false
	}

	decision := CheckRisk(sub, sig, e.limits)
	if !decision.Allowed {
		RiskRejections.WithLabelValues(decision.Reason).Inc()
		log.Debug("signal refused by risk gate", utils.Reason(decision.Reason), utils.Score(sig.Score))
		e.enter(models.ScanSkipping)
		return true
	}

	e.enter(models.ScanExecuting)

	result := e.executor.Execute(ctx, ExecuteParams{
		SubscriberID:  id,
		Symbol:        symbol,
		Side:          sig.Side(),
		OrderNotional: sub.OrderNotional,
		Leverage:      sub.Leverage,
	})
	if !result.Success {
		return true
	}

	e.touchCooldown(ctx, id, symbol)
	e.recordTrade()
	e.notifyTrade(ctx, result.Trade)
	return true
}

// enter выполняет переход автомата; недопустимый переход логируется и не выполняется
func (e *Engine) enter(state string) {
	from := e.machine.current()
	if !e.machine.transition(state) {
		e.log.Debug("unexpected scan transition", utils.State(from), utils.String("to", state))
	}
}

// touchCooldown открывает окно после исполненного ордера.
// Ордер уже на бирже, поэтому запись не зависит от отмены тика.
func (e *Engine) touchCooldown(ctx context.Context, id int64, symbol string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CallTimeout)
	defer cancel()
	e.cooldowns.Touch(cctx, id, symbol)
}

// ============ Уведомления ============

func (e *Engine) notifyTrade(ctx context.Context, trade *models.Trade) {
	if e.notifier == nil || trade == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CallTimeout)
	defer cancel()
	e.notifier.NotifyTrade(nctx, trade)
}

func (e *Engine) notifyEngine(ctx context.Context, message string) {
	if e.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CallTimeout)
	defer cancel()
	e.notifier.NotifyEngine(nctx, message)
}

// ============ Статистика ============

func (e *Engine) setRunning(running bool) {
	e.statsMu.Lock()
	e.stats.Running = running
	e.statsMu.Unlock()
}

func (e *Engine) recordTrade() {
	e.statsMu.Lock()
	e.stats.TradesPlaced++
	e.statsMu.Unlock()
}

func (e *Engine) finishTick(start time.Time, scanned int, failed bool) {
	elapsed := time.Since(start)
	RecordTick(float64(elapsed.Milliseconds()), failed)
	SubscribersScanned.Set(float64(scanned))

	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats.Ticks++
	if failed {
		e.stats.FailedTicks++
	}
	e.stats.LastTickAt = start.UTC()
	e.stats.LastTickDurationMs = elapsed.Milliseconds()
	e.stats.SubscribersScanned = scanned
}

// Status возвращает снимок состояния сканера
func (e *Engine) Status() models.EngineStatus {
	e.statsMu.RLock()
	st := e.stats
	e.statsMu.RUnlock()

	st.State = e.machine.current()
	st.StateInfo = StateInfo(st.State)
	return st
}
