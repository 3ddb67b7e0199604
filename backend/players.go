package main

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zinnin/QuatroBot/quatro"
)

type ActionKind int

const (
	ActionGive ActionKind = iota
	ActionPlace
)

func (k ActionKind) String() string {
	if k == ActionGive {
		return "give"
	}
	return "place"
}

// Action is one half-move: either handing a piece to the opponent or
// placing the piece that was handed over.
type Action struct {
	Kind  ActionKind
	Piece quatro.Piece
	Cell  quatro.Cell
}

type Seat interface {
	IsHuman() bool
}

type HumanSeat struct {
	pending       bool
	pendingAction Action
}

func NewHumanSeat() *HumanSeat {
	return &HumanSeat{}
}

func (h *HumanSeat) IsHuman() bool {
	return true
}

func (h *HumanSeat) SetPendingAction(action Action) {
	h.pendingAction = action
	h.pending = true
}

func (h *HumanSeat) HasPendingAction() bool {
	return h.pending
}

func (h *HumanSeat) TakePendingAction() Action {
	h.pending = false
	return h.pendingAction
}

type BotSeat struct {
	level       int
	bot         *quatro.BotPlayer
	actionMutex sync.Mutex
	workerDone  chan struct{}
	thinking    atomic.Bool
	actionReady atomic.Bool
	stopSignal  atomic.Bool
	readyAction Action
	readyOK     bool
}

func NewBotSeat(level int, seed int64) *BotSeat {
	bot, err := quatro.NewBotPlayer(sharedAnalyzer, level, seed)
	if err != nil {
		level = quatro.MinBotLevel
		bot, _ = quatro.NewBotPlayer(sharedAnalyzer, level, seed)
	}
	return &BotSeat{level: level, bot: bot}
}

func (b *BotSeat) IsHuman() bool {
	return false
}

func (b *BotSeat) Level() int {
	return b.level
}

func (b *BotSeat) StartThinking(state quatro.GameState) {
	if b.thinking.Load() {
		return
	}
	if b.workerDone != nil {
		<-b.workerDone
	}
	b.thinking.Store(true)
	b.actionReady.Store(false)
	b.stopSignal.Store(false)

	done := make(chan struct{})
	b.workerDone = done
	config := GetConfig()
	go func() {
		defer close(done)
		start := time.Now()
		budget := time.Duration(config.BotTimeBudgetMs) * time.Millisecond
		b.bot.ShouldStop = func() bool {
			if b.stopSignal.Load() {
				return true
			}
			return budget > 0 && time.Since(start) >= budget
		}
		action, err := chooseBotAction(b.bot, state)
		if b.stopSignal.Load() {
			b.actionReady.Store(false)
			b.thinking.Store(false)
			return
		}
		b.actionMutex.Lock()
		b.readyAction = action
		b.readyOK = err == nil
		b.actionMutex.Unlock()
		b.actionReady.Store(true)
		b.thinking.Store(false)
	}()
}

func chooseBotAction(bot *quatro.BotPlayer, state quatro.GameState) (Action, error) {
	if _, pending := state.PendingPiece(); pending {
		cell, err := bot.SelectPlacement(state)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionPlace, Cell: cell}, nil
	}
	piece, err := bot.SelectPieceToGive(state)
	if err != nil {
		return Action{}, err
	}
	return Action{Kind: ActionGive, Piece: piece}, nil
}

func (b *BotSeat) IsThinking() bool {
	return b.thinking.Load()
}

func (b *BotSeat) HasActionReady() bool {
	return b.actionReady.Load()
}

func (b *BotSeat) TakeAction() (Action, bool) {
	b.actionMutex.Lock()
	defer b.actionMutex.Unlock()
	b.actionReady.Store(false)
	return b.readyAction, b.readyOK
}

func (b *BotSeat) StopThinking() {
	b.stopSignal.Store(true)
}
