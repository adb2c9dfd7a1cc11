package models

import "time"

// LeaguePhase represents the league lifecycle phases matching the ENUM in the DB.
type LeaguePhase string

const (
	PhaseRegularSeason LeaguePhase = "regular_season"
	PhaseTournament    LeaguePhase = "tournament"
	PhaseCompleted     LeaguePhase = "completed"
)

// League is owned by the league-administration module; the engine only
// reads/writes phase, the regular-season lock timestamp and the champion.
type League struct {
	ID                    int         `json:"id" db:"id"`
	Name                  string      `json:"name" db:"name"`
	Phase                 LeaguePhase `json:"phase" db:"league_phase"`
	RegularSeasonLockedAt *time.Time  `json:"regular_season_locked_at,omitempty" db:"regular_season_locked_at"`
	ChampionID            *int        `json:"champion_id,omitempty" db:"champion_id"`
}
