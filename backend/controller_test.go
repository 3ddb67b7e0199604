package main

import (
	"testing"
	"time"

	"github.com/zinnin/QuatroBot/quatro"
)

func humanSettings() MatchSettings {
	return MatchSettings{Player1Type: SeatHuman, Player2Type: SeatHuman}
}

func TestControllerHumanGiveAndPlaceFlow(t *testing.T) {
	controller := NewMatchController(humanSettings())
	controller.StartMatch(humanSettings())

	if applied, errMsg := controller.TryGive(quatro.Piece(5)); !applied {
		t.Fatalf("give rejected: %s", errMsg)
	}
	state := controller.State()
	pending, ok := state.PendingPiece()
	if !ok || pending != 5 {
		t.Fatalf("pending piece after give = (%v,%v), want (5,true)", pending, ok)
	}
	if got := state.ActivePlayer(); got != 2 {
		t.Fatalf("active player after give = %d, want 2", got)
	}

	if applied, errMsg := controller.TryPlace(1, 2); !applied {
		t.Fatalf("place rejected: %s", errMsg)
	}
	state = controller.State()
	if state.Board.IsEmpty(1, 2) {
		t.Fatalf("cell (1,2) still empty after placement")
	}
	if got := state.PlacedCount(); got != 1 {
		t.Fatalf("placed count = %d, want 1", got)
	}
	if got := state.ActivePlayer(); got != 2 {
		t.Fatalf("active player after place = %d, want 2 (placer keeps the turn)", got)
	}
	if got := controller.History().Size(); got != 2 {
		t.Fatalf("history size = %d, want 2", got)
	}

	if applied, errMsg := controller.TryGive(quatro.Piece(5)); applied || errMsg != "piece not available" {
		t.Fatalf("re-giving a placed piece = (%v,%q), want rejection", applied, errMsg)
	}
}

func TestControllerRejectsActionsWhenNotRunning(t *testing.T) {
	controller := NewMatchController(humanSettings())

	if applied, errMsg := controller.TryGive(quatro.Piece(0)); applied || errMsg != "match not running" {
		t.Fatalf("give on idle match = (%v,%q), want (false,\"match not running\")", applied, errMsg)
	}
	if applied, errMsg := controller.TryPlace(0, 0); applied || errMsg != "match not running" {
		t.Fatalf("place on idle match = (%v,%q), want (false,\"match not running\")", applied, errMsg)
	}
}

func TestControllerRejectsHumanActionsOnBotTurn(t *testing.T) {
	settings := MatchSettings{Player1Type: SeatHuman, Player2Type: SeatBot, Player2Level: 1}
	controller := NewMatchController(settings)
	controller.StartMatch(settings)
	defer controller.Reset(humanSettings())

	if applied, errMsg := controller.TryGive(quatro.Piece(7)); !applied {
		t.Fatalf("human give rejected: %s", errMsg)
	}
	if applied, errMsg := controller.TryPlace(0, 0); applied || errMsg != "not a human turn" {
		t.Fatalf("place on bot turn = (%v,%q), want (false,\"not a human turn\")", applied, errMsg)
	}
}

func TestControllerRejectsPlaceWithoutPendingPiece(t *testing.T) {
	controller := NewMatchController(humanSettings())
	controller.StartMatch(humanSettings())

	if applied, errMsg := controller.TryPlace(2, 2); applied || errMsg != "no piece pending placement" {
		t.Fatalf("place without pending = (%v,%q), want rejection", applied, errMsg)
	}
}

func TestControllerStartMatchResetsBoardAndHistory(t *testing.T) {
	controller := NewMatchController(humanSettings())
	controller.StartMatch(humanSettings())
	if applied, errMsg := controller.TryGive(quatro.Piece(2)); !applied {
		t.Fatalf("give rejected: %s", errMsg)
	}
	if applied, errMsg := controller.TryPlace(3, 3); !applied {
		t.Fatalf("place rejected: %s", errMsg)
	}
	firstID := controller.MatchID()

	controller.StartMatch(humanSettings())
	state := controller.State()
	if got := state.PlacedCount(); got != 0 {
		t.Fatalf("placed count after restart = %d, want 0", got)
	}
	if got := controller.History().Size(); got != 0 {
		t.Fatalf("history size after restart = %d, want 0", got)
	}
	if controller.MatchID() == firstID {
		t.Fatalf("match id unchanged by restart")
	}
	if !controller.Running() {
		t.Fatalf("match not running after StartMatch")
	}
	if got := state.ActivePlayer(); got != 1 {
		t.Fatalf("active player after restart = %d, want 1", got)
	}
}

func TestUpdateSettingsSwitchToBotVsBotKeepsBoardAndContinuesMatch(t *testing.T) {
	prevCfg := GetConfig()
	cfg := prevCfg
	cfg.BotLevel = 1
	cfg.BotTimeBudgetMs = 50
	cfg.QueueEnabled = false
	configStore.Update(cfg)
	defer func() {
		configStore.Update(prevCfg)
		sharedAnalyzer.ClearCaches()
	}()

	controller := NewMatchController(humanSettings())
	controller.StartMatch(humanSettings())
	if applied, errMsg := controller.TryGive(quatro.Piece(9)); !applied {
		t.Fatalf("give rejected: %s", errMsg)
	}
	if applied, errMsg := controller.TryPlace(0, 0); !applied {
		t.Fatalf("place rejected: %s", errMsg)
	}

	botSettings := controller.Settings()
	botSettings.Player1Type = SeatBot
	botSettings.Player2Type = SeatBot
	botSettings.Player1Level = 1
	botSettings.Player2Level = 1
	controller.UpdateSettings(botSettings, false)
	defer controller.Reset(humanSettings())

	if got := controller.State().PlacedCount(); got != 1 {
		t.Fatalf("placed count after settings switch = %d, want 1", got)
	}
	if got := controller.History().Size(); got != 2 {
		t.Fatalf("history size after settings switch = %d, want 2", got)
	}
	if !controller.Running() {
		t.Fatalf("settings switch stopped the match")
	}

	deadline := time.Now().Add(3 * time.Second)
	for controller.History().Size() <= 2 && time.Now().Before(deadline) {
		controller.Tick()
		time.Sleep(5 * time.Millisecond)
	}
	if got := controller.History().Size(); got <= 2 {
		t.Fatalf("bots made no progress after settings switch, history size = %d", got)
	}
	entry, ok := controller.LatestHistoryEntry()
	if !ok {
		t.Fatalf("no latest history entry after bot actions")
	}
	if !entry.IsBot {
		t.Fatalf("latest action not flagged as bot after switching both seats")
	}
}

func TestUpdateSettingsWithResetStartsFresh(t *testing.T) {
	controller := NewMatchController(humanSettings())
	controller.StartMatch(humanSettings())
	if applied, errMsg := controller.TryGive(quatro.Piece(11)); !applied {
		t.Fatalf("give rejected: %s", errMsg)
	}

	controller.UpdateSettings(humanSettings(), true)
	if got := controller.History().Size(); got != 0 {
		t.Fatalf("history size after reset = %d, want 0", got)
	}
	if _, ok := controller.State().PendingPiece(); ok {
		t.Fatalf("pending piece survived reset")
	}
	if controller.Running() {
		t.Fatalf("reset left the match running")
	}
}
