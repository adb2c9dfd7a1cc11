package models

import "time"

// PodStatus represents draft/published visibility, matching the ENUM in the DB.
type PodStatus string

const (
	PodStatusDraft     PodStatus = "draft"
	PodStatusPublished PodStatus = "published"
)

// ConfirmationStatus is written by the pod-results provider once all four
// results are recorded. The engine only reads it.
type ConfirmationStatus string

const (
	ConfirmationPending  ConfirmationStatus = "pending"
	ConfirmationComplete ConfirmationStatus = "complete"
)

// Pod is a group of exactly four players who play one game together.
type Pod struct {
	ID                 int                `json:"id" db:"id"`
	LeagueID           int                `json:"league_id" db:"league_id"`
	BatchID            string             `json:"batch_id,omitempty" db:"batch_id"`
	Status             PodStatus          `json:"status" db:"status"`
	Round              int                `json:"round" db:"tournament_round"`
	IsTournamentGame   bool               `json:"is_tournament_game" db:"is_tournament_game"`
	IsChampionshipGame bool               `json:"is_championship_game" db:"is_championship_game"`
	ConfirmationStatus ConfirmationStatus `json:"confirmation_status" db:"confirmation_status"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	PublishedAt        *time.Time         `json:"published_at,omitempty" db:"published_at"`

	Participants []PodParticipant `json:"participants,omitempty" db:"-"`
}

// PodParticipant is one seat in a pod. TurnOrder is unique per pod and forms
// a permutation of {1,2,3,4}.
type PodParticipant struct {
	PodID     int    `json:"pod_id" db:"pod_id"`
	PlayerID  int    `json:"player_id" db:"player_id"`
	Firstname string `json:"firstname" db:"firstname"`
	Lastname  string `json:"lastname" db:"lastname"`
	TurnOrder int    `json:"turn_order" db:"turn_order"`
}
