package main

type SeatType int

const (
	SeatHuman SeatType = iota
	SeatBot
)

type MatchSettings struct {
	Player1Type  SeatType `json:"-"`
	Player2Type  SeatType `json:"-"`
	Player1Level int      `json:"player1_level"`
	Player2Level int      `json:"player2_level"`
	Seed         int64    `json:"seed"`
}

func DefaultMatchSettings() MatchSettings {
	return MatchSettings{
		Player1Type:  SeatHuman,
		Player2Type:  SeatBot,
		Player1Level: 0, // 0 = config default
		Player2Level: 0,
		Seed:         0, // 0 = config default
	}
}
