package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/observability"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 300 * time.Second
	logTailLines        = 10
)

// Clock is the time source the poller sleeps on.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock sleeps on wall time.
func RealClock() Clock { return realClock{} }

type PollConfig struct {
	Interval time.Duration `env:"DEPLOY_POLL_INTERVAL" envDefault:"5s"`
	MaxWait  time.Duration `env:"DEPLOY_MAX_WAIT" envDefault:"300s"`
}

// PollResult is the outcome of waiting on one deployment.
type PollResult struct {
	Success bool
	State   sites.DeployState
	URL     string
	Logs    []string
	Err     error
}

type Poller struct {
	log      *logger.Logger
	reader   DeploymentReader
	clock    Clock
	interval time.Duration
	maxWait  time.Duration
}

func NewPoller(log *logger.Logger, reader DeploymentReader, clock Clock, cfg PollConfig) *Poller {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	return &Poller{
		log:      log.With("service", "DeployPoller"),
		reader:   reader,
		clock:    clock,
		interval: cfg.Interval,
		maxWait:  cfg.MaxWait,
	}
}

// Wait polls id at a fixed interval until it reaches a terminal state or
// the maximum wait elapses. It returns TIMEOUT no later than one interval
// past the deadline. A rejected read aborts; other read failures are retried
// until the deadline.
func (p *Poller) Wait(ctx context.Context, id string) PollResult {
	start := p.clock.Now()
	deadline := start.Add(p.maxWait)
	state := sites.DeployPending
	var lastErr error

	finish := func(res PollResult) PollResult {
		if m := observability.Current(); m != nil {
			m.ObserveDeployWait(string(res.State), p.clock.Now().Sub(start))
		}
		return res
	}

	for {
		dep, err := p.reader.GetDeployment(ctx, id)
		if err != nil {
			if errors.Is(err, apierr.UpstreamRejected) {
				return finish(PollResult{State: state, Err: err})
			}
			lastErr = err
			p.log.Warn("Deployment status read failed", "deployment_id", id, "error", err)
		} else {
			state = dep.State
			if m := observability.Current(); m != nil {
				m.ObserveDeployPoll(string(state))
			}
			switch state {
			case sites.DeployReady:
				return finish(PollResult{Success: true, State: state, URL: dep.URL})
			case sites.DeployError:
				logs := p.errorLogs(ctx, id)
				return finish(PollResult{State: state, URL: dep.URL, Logs: logs,
					Err: apierr.Rejected(apierr.UpstreamVercel, 0, "deployment failed", nil).WithDetail("build_logs", logs)})
			case sites.DeployCanceled:
				return finish(PollResult{State: state, URL: dep.URL,
					Err: apierr.Rejected(apierr.UpstreamVercel, 0, "deployment canceled", nil)})
			}
		}

		remaining := deadline.Sub(p.clock.Now())
		if remaining <= 0 {
			p.log.Warn("Deployment did not finish in time", "deployment_id", id, "last_state", state, "max_wait", p.maxWait)
			return finish(PollResult{State: sites.DeployTimeout,
				Err: apierr.TimedOut(apierr.UpstreamVercel, "deployment did not finish within "+p.maxWait.String(), lastErr)})
		}
		wait := p.interval
		if remaining < wait {
			wait = remaining
		}
		if err := p.clock.Sleep(ctx, wait); err != nil {
			return finish(PollResult{State: state, Err: apierr.TimedOut(apierr.UpstreamVercel, "polling canceled", err)})
		}
	}
}

// errorLogs makes one log fetch and keeps the tail.
func (p *Poller) errorLogs(ctx context.Context, id string) []string {
	lines, err := p.reader.GetDeploymentLogs(ctx, id)
	if err != nil {
		p.log.Warn("Build log fetch failed", "deployment_id", id, "error", err)
		return []string{"build logs unavailable: " + err.Error()}
	}
	if len(lines) == 0 {
		return []string{"build logs unavailable: no log lines returned"}
	}
	if len(lines) > logTailLines {
		lines = lines[len(lines)-logTailLines:]
	}
	return lines
}
