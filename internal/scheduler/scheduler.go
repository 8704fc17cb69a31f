package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"DipSentinel/internal/collector"
	"DipSentinel/internal/model"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/strategy"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const sendRetries = 3

// Scheduler re-evaluates one ticker on a cron schedule and notifies the user
// when the live price enters a signal zone.
type Scheduler struct {
	Cron           *cron.Cron
	Collector      *collector.Collector
	Notifier       notifier.Sender
	Ticker         string
	NotifyOnChange bool
	Ctx            context.Context
	log            zerolog.Logger

	mu        sync.Mutex
	last      *collector.Evaluation
	lastClass model.Classification
	lastErr   string
}

// NewScheduler creates a new Scheduler. Cron specs are interpreted in the
// session clock's reference timezone.
func NewScheduler(ctx context.Context, col *collector.Collector, sender notifier.Sender, ticker string, notifyOnChange bool, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:           cron.New(cron.WithSeconds(), cron.WithLocation(col.Clock.Location)),
		Collector:      col,
		Notifier:       sender,
		Ticker:         ticker,
		NotifyOnChange: notifyOnChange,
		Ctx:            ctx,
		log:            log.With().Str("symbol", ticker).Logger(),
	}
}

// Register adds the watch task.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.watchTask); err != nil {
		return fmt.Errorf("register watch task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes the watch task immediately.
func (s *Scheduler) RunNow() {
	s.watchTask()
}

func (s *Scheduler) watchTask() {
	eval, err := s.Collector.Evaluate(s.Ctx, collector.Request{Ticker: s.Ticker, Mode: model.TriggerLive})

	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(err, strategy.ErrMarketClosed) {
		// A new session starts with a clean slate.
		s.lastClass = ""
		s.lastErr = ""
		s.log.Debug().Str("reason", eval.Session.Reason).Msg("watch skipped, market closed")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("watch evaluation failed")
		if msg := err.Error(); msg != s.lastErr {
			s.lastErr = msg
			s.trySend(notifier.FormatError(s.Ticker, err))
		}
		return
	}

	s.lastErr = ""
	s.last = eval
	class := eval.Band.Classification
	changed := class != s.lastClass
	s.lastClass = class

	if changed && (class.Actionable() || s.NotifyOnChange) {
		s.trySend(notifier.FormatBandReport(eval))
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	name := fields[0]
	// Group chats address commands as /check@BotName.
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	switch name {
	case "/check":
		return s.evaluate(ctx, collector.Request{Ticker: s.Ticker, Mode: model.TriggerLive})
	case "/force":
		at, err := ForcedInstant(fields[1:], s.Collector.Clock.Now().In(s.Collector.Clock.Location))
		if err != nil {
			return fmt.Sprintf("❌ %v\n\n%s", err, helpText)
		}
		return s.evaluate(ctx, collector.Request{Ticker: s.Ticker, Mode: model.TriggerForced, At: at})
	case "/session":
		st := s.Collector.Clock.Evaluate(s.Ticker, model.TriggerLive, time.Time{})
		return notifier.FormatSessionStatus(s.Ticker, st)
	case "/status":
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()
		if last == nil {
			return "no evaluation yet"
		}
		return notifier.FormatBandReport(last)
	default:
		return helpText
	}
}

const helpText = "commands:\n• /check  evaluate now\n• /force [HH:MM]  evaluate at a forced time today\n• /session  market session status\n• /status  last watch result"

func (s *Scheduler) evaluate(ctx context.Context, req collector.Request) string {
	eval, err := s.Collector.Evaluate(ctx, req)
	if err != nil {
		return notifier.FormatError(req.Ticker, err)
	}
	return notifier.FormatBandReport(eval)
}

// ForcedInstant builds a synthetic instant on today's date. With no argument
// it is the current time; otherwise args[0] is "HH:MM".
func ForcedInstant(args []string, now time.Time) (time.Time, error) {
	if len(args) == 0 {
		return now, nil
	}
	tod, err := time.Parse("15:04", args[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("expected HH:MM, got %q", args[0])
	}
	return time.Date(now.Year(), now.Month(), now.Day(), tod.Hour(), tod.Minute(), 0, 0, now.Location()), nil
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		s.log.Error().Err(err).Msg("send notification failed")
	}
}
