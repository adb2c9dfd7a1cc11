package models

// Participant is one player's membership in a league, with the standings
// fields the engine consumes. tournament_points and disqualified are written
// by the standings provider and are read-only here; qualified is set once by
// the qualification selector and cleared only by a tournament reset.
type Participant struct {
	LeagueID         int    `json:"league_id" db:"league_id"`
	PlayerID         int    `json:"player_id" db:"player_id"`
	Firstname        string `json:"firstname" db:"firstname"`
	Lastname         string `json:"lastname" db:"lastname"`
	TournamentPoints int    `json:"tournament_points" db:"tournament_points"`
	Qualified        bool   `json:"qualified" db:"qualified"`
	Disqualified     bool   `json:"disqualified" db:"disqualified"`
}
