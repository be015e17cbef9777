package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"CVDMonitor/internal/collector"
	"CVDMonitor/internal/metrics"
	"CVDMonitor/internal/model"
	"CVDMonitor/internal/monitor"
	"CVDMonitor/internal/notifier"
	"CVDMonitor/internal/recorder"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	sendRetries   = 3
	zscoreRows    = 20
	defaultTopN   = 10
	defaultPeriod = 3
)

// Sender delivers a formatted message.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Options controls what each analysis pass looks at and reports.
type Options struct {
	Hours   int
	Symbols []string
	TopN    int
	// MaxPeriods caps the periods listed per symbol in chat reports.
	MaxPeriods int
}

// Scheduler runs the periodic analysis and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Monitor   *monitor.Monitor
	Notifier  Sender
	Recorder  recorder.Recorder
	Metrics   *metrics.Metrics
	Ctx       context.Context

	opts   Options
	logger *zap.Logger

	// runMu serializes analysis passes so the divergent set stays consistent.
	runMu         sync.Mutex
	last          *monitor.Report
	lastDivergent map[string]bool
	failing       bool

	// runs tracks passes started by Trigger.
	runs sync.WaitGroup
}

// NewScheduler creates a new Scheduler. sender may be nil to disable notifications.
func NewScheduler(ctx context.Context, col *collector.Collector, mon *monitor.Monitor, sender Sender,
	rec recorder.Recorder, m *metrics.Metrics, opts Options, logger *zap.Logger) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}
	if opts.MaxPeriods <= 0 {
		opts.MaxPeriods = defaultPeriod
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Monitor:   mon,
		Notifier:  sender,
		Recorder:  rec,
		Metrics:   m,
		Ctx:       ctx,
		opts:      opts,
		logger:    logger.Named("scheduler"),
	}
}

// Register adds the periodic analysis task.
func (s *Scheduler) Register(analysisCron string) error {
	if _, err := s.Cron.AddFunc(analysisCron, s.analysisTask); err != nil {
		return errors.Wrap(err, "register analysis task")
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running and triggered tasks to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.runs.Wait()
	s.logger.Info("scheduler stopped")
}

// RunNow executes the analysis task and returns when it is done.
func (s *Scheduler) RunNow() {
	s.analysisTask()
}

// Trigger starts the analysis task in the background (for RUN_ON_START).
func (s *Scheduler) Trigger() {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.analysisTask()
	}()
}

// LastReport returns the most recent successful report, if any.
func (s *Scheduler) LastReport() *monitor.Report {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.last
}

func (s *Scheduler) analysisTask() {
	s.logger.Debug("running analysis task")
	report, fresh, err := s.analyze(s.Ctx, false)
	if err != nil {
		s.logger.Error("analysis task failed", zap.Error(err))
		if s.markFailing(true) {
			s.trySend(fmt.Sprintf("❌ CVD 分析失败: %v", err))
		}
		return
	}
	s.markFailing(false)
	if len(fresh) > 0 {
		s.trySend(notifier.FormatDivergenceReport(report, fresh, s.opts.MaxPeriods))
	}
}

// markFailing records the task state and reports whether a failure streak just began.
func (s *Scheduler) markFailing(failed bool) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	began := failed && !s.failing
	s.failing = failed
	return began
}

// analyze runs one pass and returns the report plus the symbols that were not
// divergent on the previous pass.
func (s *Scheduler) analyze(ctx context.Context, refresh bool) (*monitor.Report, []string, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if refresh {
		if _, err := s.Collector.Refresh(ctx); err != nil {
			return nil, nil, errors.Wrap(err, "refresh")
		}
	}
	ds, err := s.Collector.Window(ctx, s.opts.Hours, s.opts.Symbols)
	if err != nil {
		return nil, nil, errors.Wrap(err, "collect")
	}
	report, err := s.Monitor.Analyze(ds)
	if err != nil {
		return nil, nil, errors.Wrap(err, "analyze")
	}

	current := make(map[string]bool, len(report.Divergent))
	var fresh []string
	for _, sym := range report.Divergent {
		current[sym] = true
		if !s.lastDivergent[sym] {
			fresh = append(fresh, sym)
		}
	}
	s.lastDivergent = current
	s.last = report

	s.record(report)
	return report, fresh, nil
}

func (s *Scheduler) record(r *monitor.Report) {
	if err := s.Recorder.RecordRun(&recorder.RunSummary{
		RunID:            r.RunID,
		RecordedAt:       r.GeneratedAt,
		Strategy:         string(r.Strategy),
		WindowSize:       r.WindowSize,
		Hours:            s.opts.Hours,
		Rows:             r.Rows,
		Symbols:          len(r.Symbols),
		Skipped:          len(r.Skipped),
		Periods:          r.PeriodCount(),
		DivergentSymbols: r.Divergent,
	}); err != nil {
		s.logger.Error("record run failed", zap.Error(err))
	}
	for _, metric := range model.Metrics {
		if err := s.Recorder.RecordRanking(&recorder.RankingSnapshot{
			RunID:  r.RunID,
			Metric: metric,
			Rows:   r.Rankings[metric],
		}); err != nil {
			s.logger.Error("record ranking failed", zap.String("metric", string(metric)), zap.Error(err))
		}
	}
}

// report returns the last report, running a pass when there is none yet.
func (s *Scheduler) report(ctx context.Context) (*monitor.Report, error) {
	if r := s.LastReport(); r != nil {
		return r, nil
	}
	r, _, err := s.analyze(ctx, false)
	return r, err
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// Group chats append the bot name: /rank@cvd_bot cvd
	name, _, _ := strings.Cut(fields[0], "@")
	args := fields[1:]

	switch name {
	case "/divergence", "查看背离":
		r, err := s.report(ctx)
		if err != nil {
			return fmt.Sprintf("❌ 分析失败: %v", err)
		}
		return notifier.FormatDivergenceReport(r, nil, s.opts.MaxPeriods)

	case "/rank", "排行":
		metric := model.MetricPeriodVolume
		if len(args) > 0 {
			m, err := model.ParseMetric(args[0])
			if err != nil {
				return "❌ " + err.Error()
			}
			metric = m
		}
		r, err := s.report(ctx)
		if err != nil {
			return fmt.Sprintf("❌ 分析失败: %v", err)
		}
		return notifier.FormatRanking(metric, r.Top(metric, s.opts.TopN), r.GeneratedAt)

	case "/zscore":
		if len(args) == 0 {
			return "用法: /zscore &lt;symbol&gt;"
		}
		symbol := strings.ToUpper(args[0])
		ds, err := s.Collector.Window(ctx, s.opts.Hours, nil)
		if err != nil {
			return fmt.Sprintf("❌ 数据加载失败: %v", err)
		}
		points, err := monitor.SymbolZScores(ds, symbol)
		if err != nil {
			return fmt.Sprintf("❌ 数据校验失败: %v", err)
		}
		return notifier.FormatZScores(symbol, points, zscoreRows)

	case "/refresh", "刷新数据":
		r, _, err := s.analyze(ctx, true)
		if err != nil {
			return fmt.Sprintf("❌ 刷新失败: %v", err)
		}
		return "🔄 已刷新\n\n" + notifier.FormatDivergenceReport(r, nil, s.opts.MaxPeriods)

	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries)
	s.Metrics.Notification(err)
	if err != nil {
		s.logger.Error("send notification failed", zap.Error(err))
	}
}
