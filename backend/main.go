package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/zinnin/QuatroBot/quatro"
)

type StatusResponse struct {
	MatchID         string            `json:"match_id"`
	Settings        MatchSettingsDTO  `json:"settings"`
	Config          Config            `json:"config"`
	Board           [][]int           `json:"board"`
	AvailablePieces []int             `json:"available_pieces"`
	PendingPiece    *int              `json:"pending_piece"`
	NextPlayer      int               `json:"next_player"`
	Winner          int               `json:"winner"`
	Placed          int               `json:"placed"`
	Status          string            `json:"status"`
	BotThinking     bool              `json:"bot_thinking"`
	History         []historyEntryDTO `json:"history"`
	StateData       string            `json:"state_data"`
	TurnStartedAtMs int64             `json:"turn_started_at_ms"`
}

type MatchSettingsDTO struct {
	Mode         string `json:"mode"`
	HumanPlayer  int    `json:"human_player"`
	Player1Level int    `json:"player1_level"`
	Player2Level int    `json:"player2_level"`
	Seed         int64  `json:"seed"`
}

type historyEntryDTO struct {
	Action    string  `json:"action"`
	Player    int     `json:"player"`
	Piece     int     `json:"piece"`
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	ElapsedMs float64 `json:"elapsed_ms"`
	IsBot     bool    `json:"is_bot"`
}

type historyPayload struct {
	History []historyEntryDTO `json:"history"`
}

type resetPayload struct {
	MatchID         string            `json:"match_id"`
	History         []historyEntryDTO `json:"history"`
	Board           [][]int           `json:"board"`
	AvailablePieces []int             `json:"available_pieces"`
	PendingPiece    *int              `json:"pending_piece"`
	NextPlayer      int               `json:"next_player"`
	Winner          int               `json:"winner"`
	Status          string            `json:"status"`
	TurnStartedAtMs int64             `json:"turn_started_at_ms"`
}

type settingsPayload struct {
	Settings MatchSettingsDTO `json:"settings"`
	Config   Config           `json:"config"`
}

type analysisResponse struct {
	State        string              `json:"state"`
	Placed       int                 `json:"placed"`
	NextPlayer   int                 `json:"next_player"`
	PendingPiece *int                `json:"pending_piece"`
	Outcomes     quatro.GameOutcomes `json:"outcomes"`
	Verdict      string              `json:"verdict"`
	SafePieces   []int               `json:"safe_pieces"`
	UnsafePieces []int               `json:"unsafe_pieces"`
	Gives        []giveCandidateDTO  `json:"gives"`
	Places       []placeCandidateDTO `json:"places"`
	Interrupted  bool                `json:"interrupted"`
	ElapsedMs    int64               `json:"elapsed_ms"`
}

type hintResponse struct {
	Action    string `json:"action"`
	Piece     int    `json:"piece"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Level     int    `json:"level"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type cacheStatsResponse struct {
	Sizes quatro.CacheSizes    `json:"sizes"`
	Total int                  `json:"total"`
	Stats quatro.StatsSnapshot `json:"stats"`
}

func main() {
	var persistOnce sync.Once
	persistOnShutdown := func(reason string) {
		persistOnce.Do(func() {
			log.Printf("[backend] persisting caches on %s", reason)
			persistCaches()
		})
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("[backend] panic recovered in main: %v", recovered)
			persistOnShutdown("panic")
		}
	}()

	startupConfig := GetConfig()
	if startupConfig.StoreMatches {
		InitDB(startupConfig.DatabasePath)
		defer CloseDB()
	}
	loadPersistedCaches()
	defer persistOnShutdown("exit")
	controller := NewMatchController(DefaultMatchSettings())
	hub := NewHub()
	analysisHub := NewAnalysisHub()
	analysisBacklogManager.SetHub(analysisHub)
	startAnalysisBacklogWorkers(controller)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx.Done())
	go analysisHub.Run(ctx.Done())
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if controller.Tick() {
					if entry, ok := controller.LatestHistoryEntry(); ok {
						hub.broadcastHistory <- historyPayload{History: []historyEntryDTO{historyEntryToDTO(entry)}}
					}
					if hub.HasClients() {
						hub.broadcastBoard <- boardFromController(controller)
					}
				}
			}
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, controllerStatus(controller))
	})

	r.Post("/api/start", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Settings *MatchSettingsDTO `json:"settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		settings := controller.Settings()
		if payload.Settings != nil {
			settings = settingsFromDTO(*payload.Settings, settings)
		}
		analysisBacklogManager.RequestStop()
		controller.StartMatch(settings)
		writeJSON(w, http.StatusOK, controllerStatus(controller))
		hub.broadcastReset <- resetFromController(controller)
	})

	r.Post("/api/stop", func(w http.ResponseWriter, r *http.Request) {
		settings := controller.Settings()
		analysisBacklogManager.RequestStop()
		controller.Reset(settings)
		writeJSON(w, http.StatusOK, controllerStatus(controller))
		hub.broadcastReset <- resetFromController(controller)
	})

	r.Get("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, settingsPayload{
			Settings: matchSettingsToDTO(controller.Settings()),
			Config:   GetConfig(),
		})
	})

	r.Post("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Settings *MatchSettingsDTO `json:"settings"`
			Config   *Config           `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		if payload.Config != nil {
			configStore.Update(*payload.Config)
			controller.RefreshSeats()
		}
		if payload.Settings != nil {
			settings := settingsFromDTO(*payload.Settings, controller.Settings())
			controller.UpdateSettings(settings, false)
		}
		hub.broadcastSettings <- settingsPayload{
			Settings: matchSettingsToDTO(controller.Settings()),
			Config:   GetConfig(),
		}
		writeJSON(w, http.StatusOK, controllerStatus(controller))
	})

	r.Post("/api/give", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Piece int `json:"piece"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		applied, errMsg := controller.TryGive(quatro.Piece(payload.Piece))
		if !applied {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
			return
		}
		analysisBacklogManager.RequestStop()
		if entry, ok := controller.LatestHistoryEntry(); ok {
			hub.broadcastHistory <- historyPayload{History: []historyEntryDTO{historyEntryToDTO(entry)}}
		}
		hub.broadcastStatus <- controllerStatus(controller)
		writeJSON(w, http.StatusOK, controllerStatus(controller))
	})

	r.Post("/api/place", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Row int `json:"row"`
			Col int `json:"col"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		applied, errMsg := controller.TryPlace(payload.Row, payload.Col)
		if !applied {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
			return
		}
		analysisBacklogManager.RequestStop()
		if entry, ok := controller.LatestHistoryEntry(); ok {
			hub.broadcastHistory <- historyPayload{History: []historyEntryDTO{historyEntryToDTO(entry)}}
		}
		hub.broadcastStatus <- controllerStatus(controller)
		writeJSON(w, http.StatusOK, controllerStatus(controller))
	})

	r.Get("/api/analysis", func(w http.ResponseWriter, r *http.Request) {
		state := controller.State()
		if raw := r.URL.Query().Get("state"); raw != "" {
			data, err := hex.DecodeString(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid state encoding"})
				return
			}
			parsed, err := quatro.DeserializeGameState(data)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			state = parsed
		}
		writeJSON(w, http.StatusOK, analysisForState(r.Context(), state))
	})

	r.Get("/api/analysis/queue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, analysisQueueResponse{
			Queue:        analysisBacklogManager.TopQueue(analysisTopBoardsLimit()),
			TotalInQueue: analysisBacklogManager.TotalQueued(),
		})
	})

	r.Post("/api/analysis/queue", func(w http.ResponseWriter, r *http.Request) {
		enqueueAnalysisTask(controller.State())
		writeJSON(w, http.StatusOK, analysisQueueResponse{
			Queue:        analysisBacklogManager.TopQueue(analysisTopBoardsLimit()),
			TotalInQueue: analysisBacklogManager.TotalQueued(),
		})
	})

	r.Get("/api/bot/hint", func(w http.ResponseWriter, r *http.Request) {
		state := controller.State()
		if state.IsOver() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "match is over"})
			return
		}
		config := GetConfig()
		level := config.BotLevel
		if raw := r.URL.Query().Get("level"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid level"})
				return
			}
			level = parsed
		}
		bot, err := quatro.NewBotPlayer(sharedAnalyzer, level, time.Now().UnixNano())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		budget := time.Duration(config.HintTimeBudgetMs) * time.Millisecond
		start := time.Now()
		reqCtx := r.Context()
		bot.ShouldStop = func() bool {
			if reqCtx.Err() != nil {
				return true
			}
			return budget > 0 && time.Since(start) >= budget
		}
		before := sharedAnalyzer.Stats()
		action, err := chooseBotAction(bot, state)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		elapsed := time.Since(start)
		logAnalysisStats("hint", elapsed, before, sharedAnalyzer.Stats())
		hint := hintResponse{
			Action:    action.Kind.String(),
			Piece:     int(action.Piece),
			Row:       -1,
			Col:       -1,
			Level:     level,
			ElapsedMs: elapsed.Milliseconds(),
		}
		if action.Kind == ActionPlace {
			hint.Row = action.Cell.Row
			hint.Col = action.Cell.Col
		}
		writeJSON(w, http.StatusOK, hint)
	})

	r.Get("/api/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		sizes := sharedAnalyzer.CacheSizes()
		writeJSON(w, http.StatusOK, cacheStatsResponse{
			Sizes: sizes,
			Total: sizes.Total(),
			Stats: sharedAnalyzer.Stats(),
		})
	})

	r.Post("/api/cache/clear", func(w http.ResponseWriter, r *http.Request) {
		sharedAnalyzer.ClearCaches()
		sharedAnalyzer.ResetStats()
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	})

	r.Get("/api/matches", func(w http.ResponseWriter, r *http.Request) {
		limit := GetConfig().RecentMatchLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		records, err := RecentMatches(limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": records})
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(hub, controller, w, r)
	})
	r.Get("/ws/analysis", func(w http.ResponseWriter, r *http.Request) {
		serveAnalysisWS(analysisHub, w, r)
	})

	server := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log.Println("backend listening on :8080")
	var runErr error
	select {
	case <-sigCtx.Done():
		log.Printf("[backend] shutdown signal received: %v", sigCtx.Err())
	case err, ok := <-serverErrCh:
		if ok {
			runErr = err
			log.Printf("[backend] server error: %v", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[backend] graceful shutdown failed: %v", err)
		if closeErr := server.Close(); closeErr != nil && !errors.Is(closeErr, http.ErrServerClosed) {
			log.Printf("[backend] forced close failed: %v", closeErr)
		}
	}

	cancel()
	analysisBacklogManager.RequestStop()
	persistOnShutdown("shutdown")
	if runErr != nil {
		log.Printf("[backend] exiting after server error: %v", runErr)
	}
}

func serveWS(hub *Hub, controller *MatchController, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{hub: hub, send: make(chan []byte, 16)}
	hub.Register(client)

	status := controllerStatus(controller)
	client.sendJSON(wsMessage{Type: "status", Payload: mustMarshal(status)})

	go func() {
		defer conn.Close()
		if err := writePump(conn, client.send); err != nil {
			return
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			hub.Unregister(client)
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "request_status":
			status := controllerStatus(controller)
			client.sendJSON(wsMessage{Type: "status", Payload: mustMarshal(status)})
		case "give":
			var payload struct {
				Piece int `json:"piece"`
			}
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			controller.SubmitAction(Action{Kind: ActionGive, Piece: quatro.Piece(payload.Piece)})
		case "place":
			var payload struct {
				Row int `json:"row"`
				Col int `json:"col"`
			}
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			controller.SubmitAction(Action{Kind: ActionPlace, Cell: quatro.NewCell(payload.Row, payload.Col)})
		}
	}
}

// analysisForState runs the full rational analysis of one state: outcome
// counts and the minimax verdict explore concurrently, then every legal
// give or placement is rated. The request context interrupts all of it.
func analysisForState(ctx context.Context, state quatro.GameState) analysisResponse {
	stop := func() bool { return ctx.Err() != nil }
	before := sharedAnalyzer.Stats()
	start := time.Now()

	var outcomes quatro.GameOutcomes
	var verdict quatro.MinimaxResult
	g, gctx := errgroup.WithContext(ctx)
	groupStop := func() bool { return gctx.Err() != nil }
	g.Go(func() error {
		outcomes = sharedAnalyzer.AnalyzeStateRational(state, groupStop)
		return nil
	})
	g.Go(func() error {
		verdict = sharedAnalyzer.EvaluateState(state, groupStop)
		return nil
	})
	_ = g.Wait()

	var safe, unsafe []quatro.Piece
	if _, pending := state.PendingPiece(); !pending && !state.IsOver() {
		safe, unsafe = sharedAnalyzer.SplitSafePieces(state)
	}
	gives := buildGiveCandidates(state, stop)
	places := buildPlaceCandidates(state, stop)
	elapsed := time.Since(start)
	logAnalysisStats("analysis", elapsed, before, sharedAnalyzer.Stats())
	return analysisResponse{
		State:        stateID(quatro.StateHash(state)),
		Placed:       state.PlacedCount(),
		NextPlayer:   state.ActivePlayer(),
		PendingPiece: pendingPieceValue(state),
		Outcomes:     outcomes,
		Verdict:      verdict.String(),
		SafePieces:   pieceInts(safe),
		UnsafePieces: pieceInts(unsafe),
		Gives:        gives,
		Places:       places,
		Interrupted:  ctx.Err() != nil,
		ElapsedMs:    elapsed.Milliseconds(),
	}
}

func controllerStatus(controller *MatchController) StatusResponse {
	state := controller.State()
	return StatusResponse{
		MatchID:         controller.MatchID(),
		Settings:        matchSettingsToDTO(controller.Settings()),
		Config:          GetConfig(),
		Board:           boardToGrid(state.Board),
		AvailablePieces: pieceInts(state.AvailablePieces()),
		PendingPiece:    pendingPieceValue(state),
		NextPlayer:      state.ActivePlayer(),
		Winner:          int(state.Winner),
		Placed:          state.PlacedCount(),
		Status:          matchStatusString(controller, state),
		BotThinking:     controller.BotThinking(),
		History:         historyToDTO(controller.History()),
		StateData:       hex.EncodeToString(state.Serialize()),
		TurnStartedAtMs: controller.TurnStartedAtMs(),
	}
}

func boardFromController(controller *MatchController) boardPayload {
	state := controller.State()
	return boardPayload{
		Board:           boardToGrid(state.Board),
		AvailablePieces: pieceInts(state.AvailablePieces()),
		PendingPiece:    pendingPieceValue(state),
		NextPlayer:      state.ActivePlayer(),
		Winner:          int(state.Winner),
		Placed:          state.PlacedCount(),
		Status:          matchStatusString(controller, state),
		BotThinking:     controller.BotThinking(),
	}
}

func resetFromController(controller *MatchController) resetPayload {
	state := controller.State()
	return resetPayload{
		MatchID:         controller.MatchID(),
		History:         historyToDTO(controller.History()),
		Board:           boardToGrid(state.Board),
		AvailablePieces: pieceInts(state.AvailablePieces()),
		PendingPiece:    pendingPieceValue(state),
		NextPlayer:      state.ActivePlayer(),
		Winner:          int(state.Winner),
		Status:          matchStatusString(controller, state),
		TurnStartedAtMs: controller.TurnStartedAtMs(),
	}
}

func matchStatusString(controller *MatchController, state quatro.GameState) string {
	switch {
	case state.Winner == 1:
		return "p1_won"
	case state.Winner == 2:
		return "p2_won"
	case state.IsDraw():
		return "draw"
	case controller.Running():
		return "running"
	default:
		return "not_started"
	}
}

func settingsFromDTO(dto MatchSettingsDTO, base MatchSettings) MatchSettings {
	settings := base
	switch dto.Mode {
	case "bot_vs_bot":
		settings.Player1Type = SeatBot
		settings.Player2Type = SeatBot
	case "human_vs_human":
		settings.Player1Type = SeatHuman
		settings.Player2Type = SeatHuman
	case "human_vs_bot":
		if dto.HumanPlayer == 2 {
			settings.Player1Type = SeatBot
			settings.Player2Type = SeatHuman
		} else {
			settings.Player1Type = SeatHuman
			settings.Player2Type = SeatBot
		}
	}
	settings.Player1Level = dto.Player1Level
	settings.Player2Level = dto.Player2Level
	settings.Seed = dto.Seed
	return settings
}

func matchSettingsToDTO(settings MatchSettings) MatchSettingsDTO {
	mode := "human_vs_bot"
	if settings.Player1Type == SeatBot && settings.Player2Type == SeatBot {
		mode = "bot_vs_bot"
	} else if settings.Player1Type == SeatHuman && settings.Player2Type == SeatHuman {
		mode = "human_vs_human"
	}
	humanPlayer := 0
	if settings.Player1Type == SeatHuman && settings.Player2Type != SeatHuman {
		humanPlayer = 1
	} else if settings.Player2Type == SeatHuman && settings.Player1Type != SeatHuman {
		humanPlayer = 2
	} else if settings.Player1Type == SeatHuman && settings.Player2Type == SeatHuman {
		humanPlayer = 1
	}
	return MatchSettingsDTO{
		Mode:         mode,
		HumanPlayer:  humanPlayer,
		Player1Level: settings.Player1Level,
		Player2Level: settings.Player2Level,
		Seed:         settings.Seed,
	}
}

func pieceInts(pieces []quatro.Piece) []int {
	values := make([]int, 0, len(pieces))
	for _, p := range pieces {
		values = append(values, int(p))
	}
	return values
}

func pendingPieceValue(state quatro.GameState) *int {
	if p, ok := state.PendingPiece(); ok {
		value := int(p)
		return &value
	}
	return nil
}

func historyToDTO(history MatchHistory) []historyEntryDTO {
	entries := history.All()
	result := make([]historyEntryDTO, 0, len(entries))
	for _, entry := range entries {
		result = append(result, historyEntryToDTO(entry))
	}
	return result
}

func historyEntryToDTO(entry HistoryEntry) historyEntryDTO {
	dto := historyEntryDTO{
		Action:    entry.Action.Kind.String(),
		Player:    entry.Player,
		Piece:     int(entry.Action.Piece),
		Row:       -1,
		Col:       -1,
		ElapsedMs: entry.ElapsedMs,
		IsBot:     entry.IsBot,
	}
	if entry.Action.Kind == ActionPlace {
		dto.Row = entry.Action.Cell.Row
		dto.Col = entry.Action.Cell.Col
	}
	return dto
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
