package execution

import (
	"context"
	"time"

	"sniperBot/internal/ports"
)

// WindowConfig positions the execution window relative to a launch time.
type WindowConfig struct {
	PreLaunchOffset  time.Duration // negative starts before launch
	PostLaunchWindow time.Duration
	PollInterval     time.Duration
}

// DefaultWindowConfig starts 500ms early, ends 700ms after launch and polls every 100ms.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		PreLaunchOffset:  -500 * time.Millisecond,
		PostLaunchWindow: 700 * time.Millisecond,
		PollInterval:     100 * time.Millisecond,
	}
}

// ExecutionWindow is the [Start, End] interval in which orders are placed.
type ExecutionWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w ExecutionWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ComputeExecutionWindow derives the window for launchTime.
func ComputeExecutionWindow(launchTime time.Time, cfg WindowConfig) ExecutionWindow {
	return ExecutionWindow{
		Start: launchTime.Add(cfg.PreLaunchOffset),
		End:   launchTime.Add(cfg.PostLaunchWindow),
	}
}

// WindowTimer waits for execution windows.
type WindowTimer struct {
	cfg    WindowConfig
	logger ports.Logger
	now    func() time.Time
}

// NewWindowTimer creates a timer; a non-positive poll interval falls back to the default.
func NewWindowTimer(cfg WindowConfig, logger ports.Logger) *WindowTimer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultWindowConfig().PollInterval
	}
	return &WindowTimer{cfg: cfg, logger: logger, now: time.Now}
}

// WaitForExecutionWindow polls until the window opens and returns it. It
// returns immediately when the window already started.
func (t *WindowTimer) WaitForExecutionWindow(ctx context.Context, launchTime time.Time) (ExecutionWindow, error) {
	window := ComputeExecutionWindow(launchTime, t.cfg)
	if !t.now().Before(window.Start) {
		return window, nil
	}

	t.logger.Info(ctx, "Waiting for execution window", map[string]interface{}{
		"launchTime":  launchTime.UTC().Format(time.RFC3339Nano),
		"windowStart": window.Start.UTC().Format(time.RFC3339Nano),
		"windowEnd":   window.End.UTC().Format(time.RFC3339Nano),
	})

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return window, ctx.Err()
		case <-ticker.C:
			if !t.now().Before(window.Start) {
				t.logger.Debug(ctx, "Execution window open", map[string]interface{}{"windowStart": window.Start.UTC().Format(time.RFC3339Nano)})
				return window, nil
			}
		}
	}
}
