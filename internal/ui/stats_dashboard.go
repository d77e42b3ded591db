package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/polyinsider/pulse/internal/metrics"
	"github.com/polyinsider/pulse/internal/store"
)

// StatsDashboardView displays system health and effects metrics in two
// columns.
type StatsDashboardView struct {
	flex     *tview.Flex
	system   *tview.TextView
	activity *tview.TextView
}

// NewStatsDashboardView creates a new stats dashboard view.
func NewStatsDashboardView() *StatsDashboardView {
	system := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	activity := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	flex := tview.NewFlex().
		AddItem(system, 0, 1, false).
		AddItem(activity, 0, 1, false)
	flex.SetTitle(" Stats ").SetBorder(true)

	return &StatsDashboardView{
		flex:     flex,
		system:   system,
		activity: activity,
	}
}

// Widget returns the tview primitive.
func (v *StatsDashboardView) Widget() tview.Primitive {
	return v.flex
}

// Update refreshes the stats display.
func (v *StatsDashboardView) Update(snapshot metrics.MetricsSnapshot, activity ActivityCounts, effectsOn, ambientOn bool) {
	v.system.Clear()
	fmt.Fprint(v.system, formatStats(snapshot))
	v.activity.Clear()
	fmt.Fprint(v.activity, formatActivity(snapshot, activity, effectsOn, ambientOn))
}

func formatStats(snapshot metrics.MetricsSnapshot) string {
	rtColor := "red"
	if snapshot.RealtimeStatus == metrics.StatusConnected {
		rtColor = "green"
	}

	return fmt.Sprintf(`[yellow]System Status[-]
Uptime: %s
Realtime: [%s]%s[-]
Last poll: %s
Markets: %d

[yellow]Changes[-]
Total: %d
Rate: %.2f/sec
`,
		formatDuration(snapshot.Uptime),
		rtColor, snapshot.RealtimeStatus,
		formatTimeAgo(snapshot.LastPoll),
		snapshot.MarketCount,
		snapshot.ChangesTotal,
		snapshot.ChangeRate,
	)
}

func formatActivity(snapshot metrics.MetricsSnapshot, activity ActivityCounts, effectsOn, ambientOn bool) string {
	return fmt.Sprintf(`[yellow]Signals[-]
Spike: %d  Drop: %d
Surge: %d  Resolved: %d
Celebrated: %d

[yellow]Effects[-]
Effects: %s  Snow: %s
Engines: %d  Bursts: %d
Particles: %d  Dropped: %d
Refreshes: %d/%d
`,
		snapshot.SignalsByType[store.SignalSpike],
		snapshot.SignalsByType[store.SignalDrop],
		snapshot.SignalsByType[store.SignalSurge],
		snapshot.SignalsByType[store.SignalResolved],
		activity.Celebrated,
		onOff(effectsOn), onOff(ambientOn),
		activity.RunningEngines, activity.Bursts,
		snapshot.LiveParticles, snapshot.DroppedFrames,
		activity.MarketBatches, activity.BreakingBatches,
	)
}

func onOff(b bool) string {
	if b {
		return "[green]on[-]"
	}
	return "[gray]off[-]"
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatTimeAgo formats a time as "X ago".
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	elapsed := time.Since(t)

	if elapsed < time.Minute {
		return fmt.Sprintf("%.0fs ago", elapsed.Seconds())
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%.0fm ago", elapsed.Minutes())
	}
	if elapsed < 24*time.Hour {
		return fmt.Sprintf("%.0fh ago", elapsed.Hours())
	}
	return fmt.Sprintf("%.0fd ago", elapsed.Hours()/24)
}
