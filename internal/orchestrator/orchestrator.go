// Package orchestrator runs the per-account reward cycle: daily streak,
// mining, referral points and quests, separated by pacing delays.
package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/AlexKrutoy/SnapsterBot/internal/api"
	"github.com/AlexKrutoy/SnapsterBot/internal/bridge"
	"github.com/AlexKrutoy/SnapsterBot/internal/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const miningLogThreshold = 1.0

// ErrNoCredential is returned when Run is entered before bridging installed
// a credential on the client.
var ErrNoCredential = errors.New("orchestrator: no credential")

var errStatsUnavailable = errors.New("stats unavailable")

// API is the subset of the reward API client the cycle drives.
type API interface {
	HasCredential() bool
	GetStats(ctx context.Context) (*api.Stats, error)
	StartDailyQuest(ctx context.Context) (bool, error)
	ClaimDailyBonus(ctx context.Context, day int) (bool, error)
	ClaimMining(ctx context.Context) (float64, error)
	ReferralPoints(ctx context.Context) (float64, error)
	ClaimReferral(ctx context.Context) (bool, error)
	Quests(ctx context.Context) ([]api.Quest, error)
	StartQuest(ctx context.Context, questID int64) (bool, error)
	ClaimQuest(ctx context.Context, questID int64) (bool, error)
}

type Options struct {
	AutoMining    bool
	ClaimReferral bool
	AutoQuest     bool

	InterActionDelay time.Duration
	QuestStepDelay   time.Duration
	CycleIdleDelay   time.Duration
	CycleJitter      time.Duration
	ErrorBackoff     time.Duration
	StatsRetryDelay  time.Duration
	// DailyClaimWindow is the minimum gap between two streak claims; 0
	// claims on every cycle.
	DailyClaimWindow time.Duration
}

// CycleReport summarizes one finished or abandoned cycle.
type CycleReport struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Stats    *api.Stats
	Lagging  bool

	StreakClaimed   bool
	Mined           float64
	ReferralClaimed float64
	QuestsClaimed   int
	Failures        int
}

// Observer receives every cycle report. It must not block.
type Observer func(CycleReport)

type Orchestrator struct {
	api      API
	opts     Options
	log      zerolog.Logger
	observer Observer

	sleep  clock.SleepFunc
	now    func() time.Time
	jitter func(limit time.Duration) time.Duration

	mu              sync.Mutex
	lastStreakClaim time.Time
}

func New(client API, opts Options, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		api:    client,
		opts:   opts,
		log:    logger,
		sleep:  clock.Sleep,
		now:    time.Now,
		jitter: uniformJitter,
	}
}

// SetObserver installs a callback invoked after every cycle.
func (o *Orchestrator) SetObserver(observer Observer) {
	o.observer = observer
}

// Run loops until ctx is cancelled or a fatal session error surfaces. Soft
// failures never end the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.api.HasCredential() {
		return ErrNoCredential
	}

	for {
		report, err := o.RunCycle(ctx)
		o.notify(report)

		var wait time.Duration
		switch {
		case err == nil:
			wait = o.idleDelay()
			o.log.Info().
				Str("cycle_id", report.ID).
				Dur("sleep", wait).
				Msg("orchestrator: cycle finished")
		case isFatal(err) || ctx.Err() != nil:
			return err
		case errors.Is(err, errStatsUnavailable):
			wait = o.opts.StatsRetryDelay
			o.log.Info().
				Str("cycle_id", report.ID).
				Msg("orchestrator: backend lagging, retrying")
		default:
			wait = o.opts.ErrorBackoff
			o.log.Error().
				Str("cycle_id", report.ID).
				Str("error", Sanitize(err)).
				Msg("orchestrator: unknown error")
		}

		if err := o.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// RunCycle executes one pass. It returns errStatsUnavailable when the
// backend did not report stats, in which case no side effects happened.
func (o *Orchestrator) RunCycle(ctx context.Context) (report CycleReport, err error) {
	report = CycleReport{ID: uuid.NewString(), Started: o.now()}
	log := o.log.With().Str("cycle_id", report.ID).Logger()
	defer func() { report.Finished = o.now() }()

	if !o.api.HasCredential() {
		return report, ErrNoCredential
	}

	stats, statsErr := o.api.GetStats(ctx)
	if statsErr != nil || stats == nil {
		if isFatal(statsErr) {
			return report, statsErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		if statsErr != nil {
			log.Debug().Str("error", Sanitize(statsErr)).Msg("orchestrator: stats request failed")
		}
		report.Lagging = true
		return report, errStatsUnavailable
	}
	report.Stats = stats
	log.Info().
		Float64("points", stats.Points).
		Str("league", stats.League.Title).
		Float64("mining_speed", stats.League.MiningSpeed).
		Msg("orchestrator: balance")

	if err := o.step(ctx, log, &report, "daily streak", o.dailyStreak(stats)); err != nil {
		return report, err
	}
	if o.opts.AutoMining {
		if err := o.step(ctx, log, &report, "mining", o.mining); err != nil {
			return report, err
		}
	}
	if o.opts.ClaimReferral {
		if err := o.step(ctx, log, &report, "referral", o.referral); err != nil {
			return report, err
		}
	}
	if o.opts.AutoQuest {
		if err := o.quests(ctx, log, &report); err != nil {
			return report, err
		}
	}

	return report, nil
}

type action func(ctx context.Context, log zerolog.Logger, report *CycleReport) error

// step runs one action followed by the pacing delay. Soft failures are
// logged and paid for with the error backoff; the cycle goes on and the
// failed action is retried next cycle rather than immediately.
func (o *Orchestrator) step(ctx context.Context, log zerolog.Logger, report *CycleReport, name string, run action) error {
	if err := run(ctx, log, report); err != nil {
		if isFatal(err) || ctx.Err() != nil {
			return err
		}
		report.Failures++
		log.Warn().
			Str("action", name).
			Str("error", Sanitize(err)).
			Msg("orchestrator: action failed")
		if err := o.sleep(ctx, o.opts.ErrorBackoff); err != nil {
			return err
		}
	}
	return o.sleep(ctx, o.opts.InterActionDelay)
}

func (o *Orchestrator) dailyStreak(stats *api.Stats) action {
	return func(ctx context.Context, log zerolog.Logger, report *CycleReport) error {
		started, err := o.api.StartDailyQuest(ctx)
		if err != nil {
			return err
		}
		if started {
			log.Info().Msg("orchestrator: daily streak started")
		}
		if err := o.sleep(ctx, o.opts.InterActionDelay); err != nil {
			return err
		}

		if stats.StreakCount == nil {
			log.Debug().Msg("orchestrator: no streak count, skipping claim")
			return nil
		}
		if !o.claimWindowOpen() {
			log.Debug().Msg("orchestrator: daily claim window not reached")
			return nil
		}

		day := *stats.StreakCount
		claimed, err := o.api.ClaimDailyBonus(ctx, day)
		if err != nil {
			return err
		}
		if claimed {
			o.mu.Lock()
			o.lastStreakClaim = o.now()
			o.mu.Unlock()
			report.StreakClaimed = true
			log.Info().Int("day", day).Msg("orchestrator: daily bonus claimed")
		}
		return nil
	}
}

func (o *Orchestrator) claimWindowOpen() bool {
	if o.opts.DailyClaimWindow <= 0 {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastStreakClaim.IsZero() || o.now().Sub(o.lastStreakClaim) >= o.opts.DailyClaimWindow
}

func (o *Orchestrator) mining(ctx context.Context, log zerolog.Logger, report *CycleReport) error {
	points, err := o.api.ClaimMining(ctx)
	if err != nil {
		return err
	}
	report.Mined = points
	if points > miningLogThreshold {
		log.Info().Float64("points", points).Msg("orchestrator: mining claimed")
	}
	return nil
}

func (o *Orchestrator) referral(ctx context.Context, log zerolog.Logger, report *CycleReport) error {
	points, err := o.api.ReferralPoints(ctx)
	if err != nil {
		return err
	}
	if points <= 0 {
		return nil
	}

	claimed, err := o.api.ClaimReferral(ctx)
	if err != nil {
		return err
	}
	if claimed {
		report.ReferralClaimed = points
		log.Info().Float64("points", points).Msg("orchestrator: referral points claimed")
	}
	return nil
}

// quests walks the active quest list. A failing quest is logged and the
// remaining ones are still attempted.
func (o *Orchestrator) quests(ctx context.Context, log zerolog.Logger, report *CycleReport) error {
	list, err := o.api.Quests(ctx)
	if err != nil {
		if isFatal(err) || ctx.Err() != nil {
			return err
		}
		report.Failures++
		log.Warn().Str("action", "quests").Str("error", Sanitize(err)).Msg("orchestrator: action failed")
		return o.sleep(ctx, o.opts.ErrorBackoff)
	}

	for _, quest := range list {
		qlog := log.With().Int64("quest_id", quest.ID).Str("quest", quest.Title).Logger()
		claimed, err := o.quest(ctx, quest)
		if err != nil {
			if isFatal(err) || ctx.Err() != nil {
				return err
			}
			report.Failures++
			qlog.Warn().Str("error", Sanitize(err)).Msg("orchestrator: quest failed")
			continue
		}
		if claimed {
			report.QuestsClaimed++
			qlog.Info().Float64("reward", quest.BonusPoints).Msg("orchestrator: quest claimed")
		}
	}
	return nil
}

func (o *Orchestrator) quest(ctx context.Context, quest api.Quest) (bool, error) {
	if _, err := o.api.StartQuest(ctx, quest.ID); err != nil {
		return false, err
	}
	if err := o.sleep(ctx, o.opts.QuestStepDelay); err != nil {
		return false, err
	}
	return o.api.ClaimQuest(ctx, quest.ID)
}

func (o *Orchestrator) idleDelay() time.Duration {
	wait := o.opts.CycleIdleDelay
	if o.opts.CycleJitter > 0 {
		wait += o.jitter(o.opts.CycleJitter)
	}
	return wait
}

func (o *Orchestrator) notify(report CycleReport) {
	if o.observer != nil {
		o.observer(report)
	}
}

func isFatal(err error) bool {
	return errors.Is(err, bridge.ErrInvalidSession) || errors.Is(err, ErrNoCredential)
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}
