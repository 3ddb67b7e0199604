package main

type HistoryEntry struct {
	Action    Action
	Player    int
	ElapsedMs float64
	IsBot     bool
}

type MatchHistory struct {
	entries []HistoryEntry
}

func (h *MatchHistory) Clear() {
	h.entries = nil
}

func (h *MatchHistory) Push(entry HistoryEntry) {
	h.entries = append(h.entries, entry)
}

func (h MatchHistory) Size() int {
	return len(h.entries)
}

func (h MatchHistory) All() []HistoryEntry {
	return append([]HistoryEntry(nil), h.entries...)
}
