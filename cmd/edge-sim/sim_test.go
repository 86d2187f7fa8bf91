package main

import (
	"context"
	"math"
	"testing"

	"zcoin/internal/config"
)

func TestSimulateSlotsTracksExpectedReturn(t *testing.T) {
	rep, err := simulate(context.Background(), config.SimConfig{Game: "slots", Rounds: 100_000, Seed: 7, Wager: 10}, config.DefaultEconomy())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if math.Abs(rep.Observed-rep.Expected) > 0.08 {
		t.Fatalf("observed RTP %.4f too far from expected %.4f", rep.Observed, rep.Expected)
	}
	if rep.Wagered != 1_000_000 {
		t.Fatalf("wagered=%d", rep.Wagered)
	}
}

func TestSimulateFlip(t *testing.T) {
	rep, err := simulate(context.Background(), config.SimConfig{Game: "flip", Rounds: 20_000, Seed: 3, Wager: 10}, config.DefaultEconomy())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if math.Abs(rep.Observed-0.98) > 0.03 {
		t.Fatalf("observed flip RTP %.4f", rep.Observed)
	}
}

func TestSimulateHeist(t *testing.T) {
	rep, err := simulate(context.Background(), config.SimConfig{Game: "heist", Rounds: 2_000, Seed: 11, Wager: 100, Crew: 3}, config.DefaultEconomy())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if rep.Expected != 0.7 {
		t.Fatalf("expected success=%v", rep.Expected)
	}
	if math.Abs(rep.Observed-rep.Expected) > 0.05 {
		t.Fatalf("observed success %.4f", rep.Observed)
	}
}

func TestSimulateRejectsUnknownGame(t *testing.T) {
	if _, err := simulate(context.Background(), config.SimConfig{Game: "poker", Rounds: 1}, config.DefaultEconomy()); err == nil {
		t.Fatal("expected unsupported game error")
	}
}
