package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"CVDMonitor/internal/model"
	"CVDMonitor/internal/monitor"
)

const timeLayout = "01-02 15:04"

var metricLabels = map[model.Metric]string{
	model.MetricPeriodVolume: "成交量",
	model.MetricTradeCount:   "成交笔数",
	model.MetricCVD:          "CVD",
}

// FormatDivergenceReport lists every divergent symbol with its periods.
// Symbols in fresh are marked as new since the previous run. At most
// maxPeriods periods are printed per symbol (newest first); 0 prints all.
func FormatDivergenceReport(r *monitor.Report, fresh []string, maxPeriods int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🔀 <b>CVD 背离监控</b> | %s\n", r.GeneratedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("数据范围: %s → %s | 标的 %d 个\n",
		r.From.Format(timeLayout), r.To.Format(timeLayout), len(r.Symbols)))
	b.WriteString(fmt.Sprintf("策略: %s (窗口 %d)\n\n", r.Strategy, r.WindowSize))

	if len(r.Divergent) == 0 {
		b.WriteString("未检测到背离 ✅\n")
	}

	isNew := make(map[string]bool, len(fresh))
	for _, s := range fresh {
		isNew[s] = true
	}
	for _, symbol := range r.Divergent {
		periods := r.Periods[symbol]
		tag := ""
		if isNew[symbol] {
			tag = " 🆕"
		}
		b.WriteString(fmt.Sprintf("⚠️ <b>%s</b>%s: %d 段背离\n", html.EscapeString(symbol), tag, len(periods)))

		shown := periods
		if maxPeriods > 0 && len(shown) > maxPeriods {
			shown = shown[len(shown)-maxPeriods:]
		}
		for i := len(shown) - 1; i >= 0; i-- {
			b.WriteString("  " + FormatPeriod(shown[i]) + "\n")
		}
	}

	if len(r.Skipped) > 0 {
		b.WriteString(fmt.Sprintf("\n数据不足已跳过: %s\n", html.EscapeString(strings.Join(r.Skipped, ", "))))
	}
	return b.String()
}

// FormatPeriod renders one divergence period on a single line.
func FormatPeriod(p model.DivergencePeriod) string {
	return fmt.Sprintf("%s %s → %s | %d 个点 | 强度 %.3f | CVD趋势 %+.3f | 价格趋势 %+.3f",
		directionIcon(p), p.StartTime.Format(timeLayout), p.EndTime.Format(timeLayout),
		p.Duration, p.Strength, p.CVDTrend, p.PriceTrend)
}

// directionIcon marks bullish (CVD up, price down) and bearish divergence.
func directionIcon(p model.DivergencePeriod) string {
	if p.CVDTrend > 0 {
		return "🟢"
	}
	return "🔴"
}

// FormatRanking renders the top rows of a metric ranking.
func FormatRanking(metric model.Metric, rows []model.RankedRow, at time.Time) string {
	var b strings.Builder
	label := metricLabels[metric]
	if label == "" {
		label = string(metric)
	}
	b.WriteString(fmt.Sprintf("🏆 <b>%s 排行</b> | %s\n\n", label, at.Format("2006-01-02 15:04")))
	if len(rows) == 0 {
		b.WriteString("暂无数据\n")
		return b.String()
	}
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%2d. %s  %s\n", r.Rank, html.EscapeString(r.Symbol), formatValue(metric, r.Value)))
	}
	return b.String()
}

func formatValue(metric model.Metric, v float64) string {
	if metric == model.MetricTradeCount {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatZScores renders the last n z-scored points of a symbol.
func FormatZScores(symbol string, points []model.ZScorePoint, n int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s CVD Z-Score</b>\n\n", html.EscapeString(symbol)))
	if len(points) == 0 {
		b.WriteString("暂无数据\n")
		return b.String()
	}
	if n > 0 && len(points) > n {
		points = points[len(points)-n:]
	}
	b.WriteString("<pre>")
	for _, p := range points {
		b.WriteString(fmt.Sprintf("%s  价格 %-12.4f CVD %-12.2f Z %+.3f\n",
			p.Timestamp.Format(timeLayout), p.Price, p.CVD, p.CVDZScore))
	}
	b.WriteString("</pre>")
	return b.String()
}

// FormatHelp lists the chat commands.
func FormatHelp() string {
	var b strings.Builder
	b.WriteString("🤖 <b>CVD Monitor 命令</b>\n\n")
	b.WriteString("/divergence - 当前背离标的与区间\n")
	b.WriteString("/rank &lt;period_volume|trade_count|cvd&gt; - 指标排行\n")
	b.WriteString("/zscore &lt;symbol&gt; - 最近的 CVD Z-Score\n")
	b.WriteString("/refresh - 清除缓存并重新分析\n")
	return b.String()
}
