package gamble

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type SweepReport struct {
	Expired int `json:"expired"`
	Retried int `json:"retried"`
	Pruned  int `json:"pruned"`
	Failed  int `json:"failed"`
}

// StartJanitor sweeps sessions every interval until ctx is done.
func (e *Engine) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rep := e.Sweep(ctx, e.now().UTC())
				if rep != (SweepReport{}) {
					log.Info().
						Int("expired", rep.Expired).
						Int("retried", rep.Retried).
						Int("pruned", rep.Pruned).
						Int("failed", rep.Failed).
						Msg("session sweep")
				}
			}
		}
	}()
}

// Sweep expires or resolves sessions past their deadline, retries pending
// settlements and drops finished sessions older than the retention.
func (e *Engine) Sweep(ctx context.Context, now time.Time) SweepReport {
	var rep SweepReport
	for _, ent := range e.sessions.entries() {
		if ctx.Err() != nil {
			return rep
		}
		switch e.sweepOne(ctx, ent, now) {
		case sweepExpired:
			rep.Expired++
		case sweepRetried:
			rep.Retried++
		case sweepPruned:
			rep.Pruned++
		case sweepFailed:
			rep.Failed++
		}
	}
	for _, r := range []struct {
		label string
		n     int
	}{{"expired", rep.Expired}, {"retried", rep.Retried}, {"pruned", rep.Pruned}, {"failed", rep.Failed}} {
		if r.n > 0 {
			sweepsTotal.WithLabelValues(r.label).Add(float64(r.n))
		}
	}
	return rep
}

type sweepResult int

const (
	sweepNone sweepResult = iota
	sweepExpired
	sweepRetried
	sweepPruned
	sweepFailed
)

func (e *Engine) sweepOne(ctx context.Context, ent *entry, now time.Time) (res sweepResult) {
	ent.mu.Lock()
	var prune string
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("session_id", ent.s.ID).Str("panic", fmt.Sprint(r)).Msg("session sweep panicked")
			res = sweepFailed
		}
		ent.mu.Unlock()
		if prune != "" {
			e.sessions.remove(prune)
		}
	}()

	s := &ent.s
	switch {
	case s.State == StateResolving && ent.pending != nil:
		if err := e.commitPending(ctx, ent); err != nil {
			return sweepFailed
		}
		return sweepRetried
	case s.State == StateOpen:
		acted, err := e.expireLocked(ctx, ent, now)
		if err != nil {
			return sweepFailed
		}
		if acted {
			return sweepExpired
		}
	case s.State.Terminal() && e.retention > 0 && now.Sub(s.SettledAt) > e.retention:
		prune = s.ID
		return sweepPruned
	}
	return sweepNone
}
