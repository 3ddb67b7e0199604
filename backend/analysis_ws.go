package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zinnin/QuatroBot/quatro"
)

type analysisQueueEntryDTO struct {
	ID                  string               `json:"id"`
	Board               [][]int              `json:"board"`
	Placed              int                  `json:"placed"`
	Hits                int                  `json:"hits"`
	Analyzing           bool                 `json:"analyzing"`
	AnalysisStartedAtMs int64                `json:"analysis_started_at_ms"`
	Outcomes            *quatro.GameOutcomes `json:"outcomes,omitempty"`
	Verdict             string               `json:"verdict,omitempty"`
	ElapsedMs           int64                `json:"elapsed_ms,omitempty"`
	Done                bool                 `json:"done"`
}

type analysisQueueResponse struct {
	Queue        []analysisQueueEntryDTO `json:"queue"`
	TotalInQueue int                     `json:"total_in_queue"`
}

type analysisPayload struct {
	Event        string                   `json:"event"`
	Entry        *analysisQueueEventEntry `json:"entry,omitempty"`
	TotalInQueue int                      `json:"total_in_queue"`
	UpdatedAt    int64                    `json:"updated_at_ms"`
}

type analysisQueueEventEntry struct {
	ID                  string               `json:"id"`
	Placed              int                  `json:"placed"`
	Hits                int                  `json:"hits"`
	Analyzing           bool                 `json:"analyzing"`
	AnalysisStartedAtMs int64                `json:"analysis_started_at_ms"`
	Outcomes            *quatro.GameOutcomes `json:"outcomes,omitempty"`
	Verdict             string               `json:"verdict,omitempty"`
	Done                bool                 `json:"done"`
}

// backlogBoardEntry is the backlog's book-keeping for one queued state:
// how often players reached it, whether a worker is on it, and the result
// once a worker finished it.
type backlogBoardEntry struct {
	Hash                uint64
	Board               quatro.Board
	Placed              int
	Created             time.Time
	Hits                int
	Analyzing           bool
	AnalysisStartedAtMs int64
	Outcomes            quatro.GameOutcomes
	HasOutcomes         bool
	Verdict             string
	ElapsedMs           int64
	Done                bool
}

type AnalysisClient struct {
	hub  *AnalysisHub
	conn *websocket.Conn
	send chan []byte
}

type AnalysisHub struct {
	mu        sync.Mutex
	clients   map[*AnalysisClient]struct{}
	broadcast chan analysisPayload
}

func NewAnalysisHub() *AnalysisHub {
	return &AnalysisHub{
		clients:   make(map[*AnalysisClient]struct{}),
		broadcast: make(chan analysisPayload, 64),
	}
}

func (h *AnalysisHub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-h.broadcast:
			h.mu.Lock()
			if len(h.clients) == 0 {
				h.mu.Unlock()
				continue
			}
			for client := range h.clients {
				client.sendJSON(wsMessage{Type: "analysis", Payload: mustMarshal(payload)})
			}
			h.mu.Unlock()
		}
	}
}

func (h *AnalysisHub) Publish(payload analysisPayload) {
	select {
	case h.broadcast <- payload:
	default:
	}
}

func (h *AnalysisHub) Register(c *AnalysisClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *AnalysisHub) Unregister(c *AnalysisClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (c *AnalysisClient) sendJSON(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func serveAnalysisWS(hub *AnalysisHub, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &AnalysisClient{hub: hub, conn: conn, send: make(chan []byte, 16)}
	hub.Register(client)

	initial := analysisPayload{
		Event:        "snapshot",
		TotalInQueue: analysisBacklogManager.TotalQueued(),
		UpdatedAt:    time.Now().UnixMilli(),
	}
	client.sendJSON(wsMessage{Type: "analysis", Payload: mustMarshal(initial)})

	go func() {
		defer conn.Close()
		if err := writePump(conn, client.send); err != nil {
			return
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Unregister(client)
			return
		}
	}
}

func stateID(hash uint64) string {
	return "0x" + strconv.FormatUint(hash, 16)
}

// boardToGrid renders a board as rows of piece values, -1 for empty cells.
func boardToGrid(board quatro.Board) [][]int {
	rows := make([][]int, quatro.BoardSize)
	for row := 0; row < quatro.BoardSize; row++ {
		cells := make([]int, quatro.BoardSize)
		for col := 0; col < quatro.BoardSize; col++ {
			cells[col] = -1
			if p, occupied, err := board.At(row, col); err == nil && occupied {
				cells[col] = int(p)
			}
		}
		rows[row] = cells
	}
	return rows
}

func entryOutcomes(entry backlogBoardEntry) *quatro.GameOutcomes {
	if !entry.HasOutcomes {
		return nil
	}
	out := entry.Outcomes
	return &out
}

func analysisEntryToDTO(entry backlogBoardEntry) analysisQueueEntryDTO {
	return analysisQueueEntryDTO{
		ID:                  stateID(entry.Hash),
		Board:               boardToGrid(entry.Board),
		Placed:              entry.Placed,
		Hits:                entry.Hits,
		Analyzing:           entry.Analyzing,
		AnalysisStartedAtMs: entry.AnalysisStartedAtMs,
		Outcomes:            entryOutcomes(entry),
		Verdict:             entry.Verdict,
		ElapsedMs:           entry.ElapsedMs,
		Done:                entry.Done,
	}
}

func analysisEntryToEventEntry(entry backlogBoardEntry) analysisQueueEventEntry {
	return analysisQueueEventEntry{
		ID:                  stateID(entry.Hash),
		Placed:              entry.Placed,
		Hits:                entry.Hits,
		Analyzing:           entry.Analyzing,
		AnalysisStartedAtMs: entry.AnalysisStartedAtMs,
		Outcomes:            entryOutcomes(entry),
		Verdict:             entry.Verdict,
		Done:                entry.Done,
	}
}

func sortAnalysisQueue(entries []backlogBoardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return compareAnalysisPriority(entries[i], entries[j]) < 0
	})
}

// compareAnalysisPriority orders the backlog: most requested first, then
// fullest board (closer to the end, so cheaper to resolve), then oldest.
func compareAnalysisPriority(a, b backlogBoardEntry) int {
	if a.Hits != b.Hits {
		if a.Hits > b.Hits {
			return -1
		}
		return 1
	}
	if a.Placed != b.Placed {
		if a.Placed > b.Placed {
			return -1
		}
		return 1
	}
	if !a.Created.Equal(b.Created) {
		if a.Created.Before(b.Created) {
			return -1
		}
		return 1
	}
	if a.Hash < b.Hash {
		return -1
	}
	if a.Hash > b.Hash {
		return 1
	}
	return 0
}

func analysisTopBoardsLimit() int {
	limit := GetConfig().QueueTopBoards
	if limit <= 0 {
		return 10
	}
	return limit
}
