package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Validator is an extra check run before a snapshot becomes current, e.g. the
// slot house-edge check that lives with the games.
type Validator func(*Economy) error

// EconomyHolder publishes the current Economy snapshot. Readers call Load once
// per operation and pass the snapshot down; Store swaps it atomically.
type EconomyHolder struct {
	current    atomic.Pointer[Economy]
	validators []Validator
	reloads    atomic.Int64
}

func NewEconomyHolder(initial *Economy, validators ...Validator) (*EconomyHolder, error) {
	h := &EconomyHolder{validators: validators}
	if initial == nil {
		initial = DefaultEconomy()
	}
	if err := h.Store(initial); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *EconomyHolder) Load() *Economy {
	return h.current.Load()
}

// Store validates next and makes it current. The previous snapshot stays
// intact for readers that already hold it.
func (h *EconomyHolder) Store(next *Economy) error {
	if err := next.Validate(); err != nil {
		return err
	}
	for _, v := range h.validators {
		if err := v(next); err != nil {
			return err
		}
	}
	h.current.Store(next)
	return nil
}

// Reloads counts snapshots accepted by Watch.
func (h *EconomyHolder) Reloads() int64 {
	return h.reloads.Load()
}

func LoadEconomyFile(path string) (*Economy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultEconomy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read economy config path %q: %w", path, err)
	}
	return ParseEconomyJSON(raw)
}

// Watch polls path and swaps in every changed snapshot that validates. A bad
// file is logged and the current snapshot stays in place.
func (h *EconomyHolder) Watch(ctx context.Context, path string, interval time.Duration) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	lastRaw := ""
	if raw, err := os.ReadFile(path); err == nil {
		lastRaw = strings.TrimSpace(string(raw))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			raw, err := os.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("economy config read failed")
				continue
			}
			nextRaw := strings.TrimSpace(string(raw))
			if nextRaw == lastRaw {
				continue
			}
			next, err := ParseEconomyJSON([]byte(nextRaw))
			if err == nil {
				err = h.Store(next)
			}
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("economy config rejected")
				lastRaw = nextRaw
				continue
			}
			lastRaw = nextRaw
			h.reloads.Add(1)
			log.Info().Str("path", path).Msg("economy config reloaded")
		}
	}
}
