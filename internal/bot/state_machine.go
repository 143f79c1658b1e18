package bot

import (
	"sync"

	"autotrader/internal/models"
)

// ValidTransitions определяет допустимые переходы сканера внутри тика
var ValidTransitions = map[string][]string{
	models.ScanIdle:       {models.ScanSubscriber},
	models.ScanSubscriber: {models.ScanSymbol, models.ScanSubscriber, models.ScanIdle},
	models.ScanSymbol:     {models.ScanEvaluating, models.ScanSkipping},
	models.ScanEvaluating: {models.ScanExecuting, models.ScanSkipping},
	models.ScanExecuting:  {models.ScanSymbol, models.ScanSubscriber, models.ScanIdle},
	models.ScanSkipping:   {models.ScanSymbol, models.ScanSubscriber, models.ScanIdle},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для API
func StateInfo(s string) string {
	switch s {
	case models.ScanIdle:
		return "Ожидание следующего тика"
	case models.ScanSubscriber:
		return "Проверка подписчика"
	case models.ScanSymbol:
		return "Проверка пары"
	case models.ScanEvaluating:
		return "Расчёт сигнала"
	case models.ScanExecuting:
		return "Отправка ордера..."
	case models.ScanSkipping:
		return "Пара пропущена"
	default:
		return "Неизвестное состояние"
	}
}

// IsScanning возвращает true если тик в процессе
func IsScanning(s string) bool {
	return s != models.ScanIdle && s != ""
}

// scanMachine - текущее состояние сканера. Читается из HTTP слоя, пишется из цикла тиков.
type scanMachine struct {
	mu    sync.RWMutex
	state string
}

func newScanMachine() *scanMachine {
	RecordScanState(models.ScanIdle)
	return &scanMachine{state: models.ScanIdle}
}

// transition выполняет переход; false если он недопустим (состояние не меняется)
func (m *scanMachine) transition(to string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.state, to) {
		return false
	}
	m.state = to
	RecordScanState(to)
	return true
}

// reset возвращает сканер в IDLE без проверки (после паники в тике)
func (m *scanMachine) reset() {
	m.mu.Lock()
	m.state = models.ScanIdle
	m.mu.Unlock()
	RecordScanState(models.ScanIdle)
}

func (m *scanMachine) current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
