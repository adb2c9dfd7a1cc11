package services

import "errors"

var (
	ErrLeagueNotFound           = errors.New("league not found")
	ErrIllegalPhaseTransition   = errors.New("operation not allowed in the current league phase")
	ErrInsufficientParticipants = errors.New("not enough active participants to start the tournament")
	ErrTooFewQualifiers         = errors.New("not enough qualified players to build pods")
	ErrIncompletePods           = errors.New("league still has unconfirmed games")
	ErrPodsAlreadyGenerated     = errors.New("tournament pods already exist for this league")
	ErrDraftBatchExists         = errors.New("a draft batch already exists for this league")
	ErrConcurrentGeneration     = errors.New("another tournament operation is already in progress for this league")
	ErrNothingToPublish         = errors.New("no draft pods to publish")
	ErrNothingToDelete          = errors.New("no draft pods to delete")
	ErrChampionshipExists       = errors.New("championship pod already exists")
	ErrChampionshipNotFound     = errors.New("championship pod not found")
	ErrChampionshipNotComplete  = errors.New("championship game is not confirmed yet")
	ErrNoChampionRecorded       = errors.New("championship game has no recorded winner")
	ErrPodNotFound              = errors.New("pod not found")
)
