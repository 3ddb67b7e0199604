package main

import (
	"sync"

	"github.com/zinnin/QuatroBot/quatro"
)

type MatchController struct {
	mu    sync.Mutex
	match Match
}

func NewMatchController(settings MatchSettings) *MatchController {
	return &MatchController{match: NewMatch(settings)}
}

func (mc *MatchController) TryGive(p quatro.Piece) (bool, string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if !mc.match.ActiveSeatIsHuman() {
		return false, "not a human turn"
	}
	return mc.match.TryApplyAction(Action{Kind: ActionGive, Piece: p})
}

func (mc *MatchController) TryPlace(row, col int) (bool, string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if !mc.match.ActiveSeatIsHuman() {
		return false, "not a human turn"
	}
	return mc.match.TryApplyAction(Action{Kind: ActionPlace, Cell: quatro.NewCell(row, col)})
}

func (mc *MatchController) SubmitAction(action Action) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.match.SubmitHumanAction(action)
}

func (mc *MatchController) Tick() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.match.Tick()
}

func (mc *MatchController) State() quatro.GameState {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.match.State()
}

func (mc *MatchController) Settings() MatchSettings {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.match.settings
}

func (mc *MatchController) MatchID() string {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.match.ID()
}

func (mc *MatchController) Running() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.match.Running()
}

func (mc *MatchController) History() MatchHistory {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.match.History()
}

func (mc *MatchController) TurnStartedAtMs() int64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.match.TurnStartedAtMs()
}

func (mc *MatchController) LatestHistoryEntry() (HistoryEntry, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	history := mc.match.History()
	if history.Size() == 0 {
		return HistoryEntry{}, false
	}
	entries := history.All()
	return entries[len(entries)-1], true
}

func (mc *MatchController) BotThinking() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.match.BotThinking()
}

func (mc *MatchController) Reset(settings MatchSettings) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.match.Reset(settings)
}

func (mc *MatchController) StartMatch(settings MatchSettings) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.match.Reset(settings)
	mc.match.Start()
}

func (mc *MatchController) UpdateSettings(update MatchSettings, reset bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if reset {
		mc.match.Reset(update)
		return
	}
	mc.match.stopBotSeats()
	mc.match.settings = update
	mc.match.createSeats(GetConfig())
}

// RefreshSeats rebuilds both seats from the live config, keeping the board
// and history. Used after a config change so new bot levels take effect.
func (mc *MatchController) RefreshSeats() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.match.stopBotSeats()
	mc.match.createSeats(GetConfig())
}
