package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zinnin/QuatroBot/quatro"
)

type Match struct {
	id        string
	settings  MatchSettings
	state     quatro.GameState
	history   MatchHistory
	seats     [2]Seat
	running   bool
	archived  bool
	turnStart time.Time
	startedAt time.Time
}

func NewMatch(settings MatchSettings) Match {
	m := Match{}
	m.Reset(settings)
	return m
}

func (m *Match) Reset(settings MatchSettings) {
	m.stopBotSeats()
	m.id = uuid.New().String()
	m.settings = settings
	m.state = quatro.NewGameState()
	m.history.Clear()
	m.running = false
	m.archived = false
	m.createSeats(GetConfig())
	m.turnStart = time.Now()
	m.startedAt = time.Now()
	m.logMatchup()
}

func (m *Match) Start() {
	if !m.running && !m.state.IsOver() {
		m.running = true
		m.turnStart = time.Now()
		m.startedAt = time.Now()
	}
}

func (m *Match) ID() string {
	return m.id
}

func (m *Match) Running() bool {
	return m.running
}

func (m *Match) State() quatro.GameState {
	return m.state.Clone()
}

func (m *Match) History() MatchHistory {
	return m.history
}

func (m *Match) TurnStartedAtMs() int64 {
	if m.turnStart.IsZero() {
		return 0
	}
	return m.turnStart.UnixMilli()
}

func (m *Match) TryApplyAction(action Action) (bool, string) {
	if !m.running {
		return false, "match not running"
	}
	seat := m.activeSeat()
	isBot := seat != nil && !seat.IsHuman()
	player := m.state.ActivePlayer()
	elapsedMs := float64(time.Since(m.turnStart).Milliseconds())

	var applied bool
	var err error
	switch action.Kind {
	case ActionGive:
		applied, err = m.state.Give(action.Piece)
	case ActionPlace:
		if pending, ok := m.state.PendingPiece(); ok {
			action.Piece = pending
		}
		applied, err = m.state.Place(action.Cell.Row, action.Cell.Col)
	default:
		return false, "unknown action"
	}
	if err != nil {
		return false, err.Error()
	}
	if !applied {
		return false, m.rejectReason(action)
	}

	m.history.Push(HistoryEntry{Action: action, Player: player, ElapsedMs: elapsedMs, IsBot: isBot})
	m.logActionPlayed(action, player, elapsedMs, isBot)
	if m.state.IsOver() {
		m.finish()
		return true, ""
	}
	enqueueAnalysisTask(m.state.Clone())
	m.turnStart = time.Now()
	return true, ""
}

// rejectReason names why the engine refused an action. Only called after a
// false-without-error return, so the state is unchanged.
func (m *Match) rejectReason(action Action) string {
	if action.Kind == ActionGive {
		if _, ok := m.state.PendingPiece(); ok {
			return "a piece is already pending placement"
		}
		if !m.state.PieceAvailable(action.Piece) {
			return "piece not available"
		}
		return "give rejected"
	}
	if _, ok := m.state.PendingPiece(); !ok {
		return "no piece pending placement"
	}
	if !m.state.Board.IsEmpty(action.Cell.Row, action.Cell.Col) {
		return "cell occupied"
	}
	return "placement rejected"
}

func (m *Match) Tick() bool {
	if !m.running || m.state.IsOver() {
		return false
	}
	seat := m.activeSeat()
	if seat == nil {
		return false
	}
	if seat.IsHuman() {
		human, ok := seat.(*HumanSeat)
		if ok && human.HasPendingAction() {
			applied, _ := m.TryApplyAction(human.TakePendingAction())
			return applied
		}
		return false
	}
	bot, ok := seat.(*BotSeat)
	if !ok {
		return false
	}
	if bot.HasActionReady() {
		action, ok := bot.TakeAction()
		if !ok {
			return false
		}
		applied, _ := m.TryApplyAction(action)
		return applied
	}
	if !bot.IsThinking() {
		bot.StartThinking(m.state.Clone())
	}
	return false
}

func (m *Match) SubmitHumanAction(action Action) bool {
	seat := m.activeSeat()
	if seat == nil || !seat.IsHuman() {
		return false
	}
	human, ok := seat.(*HumanSeat)
	if !ok {
		return false
	}
	human.SetPendingAction(action)
	return true
}

func (m *Match) ActiveSeatIsHuman() bool {
	seat := m.activeSeat()
	return seat != nil && seat.IsHuman()
}

func (m *Match) BotThinking() bool {
	bot, ok := m.activeSeat().(*BotSeat)
	return ok && bot.IsThinking()
}

func (m *Match) activeSeat() Seat {
	return m.seatFor(m.state.ActivePlayer())
}

func (m *Match) seatFor(player int) Seat {
	if player == 1 {
		return m.seats[0]
	}
	return m.seats[1]
}

func (m *Match) createSeats(config Config) {
	seed := m.settings.Seed
	if seed == 0 {
		seed = config.BotSeed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m.seats[0] = newSeat(m.settings.Player1Type, botLevelOrDefault(m.settings.Player1Level, config), seed)
	m.seats[1] = newSeat(m.settings.Player2Type, botLevelOrDefault(m.settings.Player2Level, config), seed+1)
}

func newSeat(seatType SeatType, level int, seed int64) Seat {
	if seatType == SeatHuman {
		return NewHumanSeat()
	}
	return NewBotSeat(level, seed)
}

func botLevelOrDefault(level int, config Config) int {
	if level == 0 {
		level = config.BotLevel
	}
	if level < quatro.MinBotLevel {
		level = quatro.MinBotLevel
	}
	if level > quatro.MaxBotLevel {
		level = quatro.MaxBotLevel
	}
	return level
}

func (m *Match) stopBotSeats() {
	for _, seat := range m.seats {
		if bot, ok := seat.(*BotSeat); ok {
			bot.StopThinking()
		}
	}
}

func (m *Match) finish() {
	m.running = false
	if m.state.IsDraw() {
		log.Printf("[match] %s drawn after %d actions", shortID(m.id), m.history.Size())
	} else {
		log.Printf("[match] %s won by player %d after %d actions", shortID(m.id), m.state.Winner, m.history.Size())
	}
	if !m.archived {
		m.archived = true
		SaveMatchRecord(m.record())
	}
}

func (m *Match) record() MatchRecord {
	return MatchRecord{
		ID:         m.id,
		Winner:     int(m.state.Winner),
		Draw:       m.state.IsDraw(),
		Actions:    m.history.Size(),
		Placed:     m.state.PlacedCount(),
		Player1:    seatLabel(m.seats[0]),
		Player2:    seatLabel(m.seats[1]),
		DurationMs: time.Since(m.startedAt).Milliseconds(),
	}
}

func seatLabel(seat Seat) string {
	if bot, ok := seat.(*BotSeat); ok {
		return fmt.Sprintf("bot:%d", bot.Level())
	}
	return "human"
}

func (m *Match) logMatchup() {
	log.Printf("[match] %s ready: %s vs %s", shortID(m.id), seatLabel(m.seats[0]), seatLabel(m.seats[1]))
}

func (m *Match) logActionPlayed(action Action, player int, elapsedMs float64, isBot bool) {
	actor := "human"
	if isBot {
		actor = "bot"
	}
	switch action.Kind {
	case ActionGive:
		log.Printf("[match] %s p%d gives piece %d (%s, %.0fms)", shortID(m.id), player, action.Piece, actor, elapsedMs)
	case ActionPlace:
		log.Printf("[match] %s p%d places piece %d at (%d,%d) (%s, %.0fms)",
			shortID(m.id), player, action.Piece, action.Cell.Row, action.Cell.Col, actor, elapsedMs)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
