package ports

import "time"

// MetricsRecorder receives operational measurements.
type MetricsRecorder interface {
	ObserveTradeExecution(operation string, success bool, d time.Duration)
	SetDispatcherLoad(active, queued int)
	IncOrderRetry(symbol string)
	ObserveRiskScore(score float64, approved bool)
	IncRiskAlert(severity string)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) ObserveTradeExecution(string, bool, time.Duration) {}
func (NopMetrics) SetDispatcherLoad(int, int)                        {}
func (NopMetrics) IncOrderRetry(string)                              {}
func (NopMetrics) ObserveRiskScore(float64, bool)                    {}
func (NopMetrics) IncRiskAlert(string)                               {}
