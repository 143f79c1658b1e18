package models

import "time"

// EngineStatus - снимок состояния сканера для /api/v1/engine/status
type EngineStatus struct {
	Running            bool      `json:"running"`
	State              string    `json:"state"`
	StateInfo          string    `json:"state_info"`
	IndicatorVersion   string    `json:"indicator_version"`
	Ticks              int64     `json:"ticks"`
	FailedTicks        int64     `json:"failed_ticks"`
	TradesPlaced       int64     `json:"trades_placed"`
	LastTickAt         time.Time `json:"last_tick_at"`
	LastTickDurationMs int64     `json:"last_tick_duration_ms"`
	SubscribersScanned int       `json:"subscribers_scanned"`
	ScanInterval       string    `json:"scan_interval"`
}

// Состояния сканера внутри тика
const (
	ScanIdle       = "IDLE"
	ScanSubscriber = "SCANNING_SUBSCRIBER"
	ScanSymbol     = "SCANNING_SYMBOL"
	ScanEvaluating = "EVALUATING"
	ScanExecuting  = "EXECUTING"
	ScanSkipping   = "SKIPPING"
)
