package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/escalation-league/tournament-engine/models"
	"github.com/escalation-league/tournament-engine/pairing"
	"github.com/escalation-league/tournament-engine/repositories"
	"github.com/escalation-league/tournament-engine/storage"
	"github.com/google/uuid"
)

const (
	minTournamentPlayers = 4
	championshipSize     = 4
	championshipRound    = 5
)

// QualificationResult describes the qualification cut taken when the
// regular season ends.
type QualificationResult struct {
	LeagueID  int                   `json:"league_id"`
	Spots     int                   `json:"spots"`
	Qualified []*models.Participant `json:"qualified"`
	LockedAt  time.Time             `json:"locked_at"`
}

// DraftResult is a freshly generated draft batch together with its
// pairing audit.
type DraftResult struct {
	LeagueID int           `json:"league_id"`
	BatchID  string        `json:"batch_id"`
	Pods     []*models.Pod `json:"pods"`
	Audit    pairing.Audit `json:"audit"`
}

// ChampionshipResult is the draft championship pod. Warning is set when
// the pod was built while qualifying games were still unconfirmed.
type ChampionshipResult struct {
	Pod     *models.Pod `json:"pod"`
	Warning string      `json:"warning,omitempty"`
}

// PlayerStatus is a qualified player plus their published game count.
type PlayerStatus struct {
	*models.Participant
	GamesPlayed int `json:"games_played"`
}

// PodStats summarizes the league's qualifying pods.
type PodStats struct {
	Qualifying      int  `json:"qualifying"`
	Published       int  `json:"published"`
	Completed       int  `json:"completed"`
	Pending         int  `json:"pending"`
	HasChampionship bool `json:"has_championship"`
}

// TournamentStatus is the public snapshot of a league's tournament.
type TournamentStatus struct {
	LeagueID   int                `json:"league_id"`
	Phase      models.LeaguePhase `json:"phase"`
	Qualified  []PlayerStatus     `json:"qualified"`
	Pods       PodStats           `json:"pods"`
	ChampionID *int               `json:"champion_id,omitempty"`
	LockedAt   *time.Time         `json:"regular_season_locked_at,omitempty"`
}

type TournamentService struct {
	db           *sql.DB
	leagues      repositories.LeagueRepository
	participants repositories.ParticipantRepository
	pods         repositories.PodRepository
	generator    pairing.PodGenerator
	uploader     storage.FileUploader
	logger       *slog.Logger
}

// NewTournamentService wires the tournament lifecycle service. uploader
// may be nil when no object storage is configured.
func NewTournamentService(
	db *sql.DB,
	leagues repositories.LeagueRepository,
	participants repositories.ParticipantRepository,
	pods repositories.PodRepository,
	generator pairing.PodGenerator,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		db:           db,
		leagues:      leagues,
		participants: participants,
		pods:         pods,
		generator:    generator,
		uploader:     uploader,
		logger:       logger,
	}
}

// qualifyingSpots returns the number of tournament spots for n active
// players: three quarters of the field, rounded up to an even count,
// never below four.
func qualifyingSpots(n int) int {
	spots := n * 3 / 4
	if spots%2 != 0 {
		spots++
	}
	if spots < minTournamentPlayers {
		spots = minTournamentPlayers
	}
	return spots
}

// lockLeague takes the per-league advisory lock for the duration of the
// transaction, so mutating operations on one league never interleave.
func (s *TournamentService) lockLeague(ctx context.Context, exec repositories.SQLExecutor, leagueID int) error {
	locked, err := repositories.TryAdvisoryLeagueLock(ctx, exec, leagueID)
	if err != nil {
		return err
	}
	if !locked {
		return ErrConcurrentGeneration
	}
	return nil
}

func (s *TournamentService) requirePhase(league *models.League, phase models.LeaguePhase) error {
	if league.Phase != phase {
		return fmt.Errorf("%w: league %d is in phase %q", ErrIllegalPhaseTransition, league.ID, league.Phase)
	}
	return nil
}

func (s *TournamentService) findLeague(ctx context.Context, leagueID int) (*models.League, error) {
	league, err := s.leagues.FindByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return nil, ErrLeagueNotFound
		}
		return nil, err
	}
	return league, nil
}

// EndRegularSeason locks the regular season, qualifies the top players
// and moves the league into the tournament phase.
func (s *TournamentService) EndRegularSeason(ctx context.Context, leagueID int) (*QualificationResult, error) {
	league, err := s.findLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePhase(league, models.PhaseRegularSeason); err != nil {
		return nil, err
	}

	incomplete, err := s.pods.CountIncompleteRegularSeason(ctx, s.db, leagueID)
	if err != nil {
		return nil, err
	}
	if incomplete > 0 {
		return nil, fmt.Errorf("%w: %d regular season games pending", ErrIncompletePods, incomplete)
	}

	active, err := s.participants.ListActiveByLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if len(active) < minTournamentPlayers {
		return nil, fmt.Errorf("%w: have %d, need at least %d", ErrInsufficientParticipants, len(active), minTournamentPlayers)
	}

	spots := qualifyingSpots(len(active))
	if spots > len(active) {
		spots = len(active)
	}
	qualified := active[:spots]
	playerIDs := make([]int, 0, spots)
	for _, p := range qualified {
		playerIDs = append(playerIDs, p.PlayerID)
	}

	lockedAt := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockLeague(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if err := s.participants.SetQualified(ctx, tx, leagueID, playerIDs); err != nil {
		return nil, err
	}
	if err := s.leagues.SetRegularSeasonLock(ctx, tx, leagueID, &lockedAt); err != nil {
		return nil, err
	}
	if err := s.leagues.UpdatePhase(ctx, tx, leagueID, models.PhaseTournament); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("regular season ended",
		"league_id", leagueID,
		"active_players", len(active),
		"qualified", spots)

	for _, p := range qualified {
		p.Qualified = true
	}
	return &QualificationResult{
		LeagueID:  leagueID,
		Spots:     spots,
		Qualified: qualified,
		LockedAt:  lockedAt,
	}, nil
}

// GeneratePods builds a draft batch of qualifying tournament pods for
// all qualified players. The batch stays invisible to players until it
// is published.
func (s *TournamentService) GeneratePods(ctx context.Context, leagueID int) (*DraftResult, error) {
	league, err := s.findLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePhase(league, models.PhaseTournament); err != nil {
		return nil, err
	}

	published, err := s.pods.CountPublishedQualifying(ctx, s.db, leagueID)
	if err != nil {
		return nil, err
	}
	if published > 0 {
		return nil, ErrPodsAlreadyGenerated
	}

	drafts, err := s.pods.ListDrafts(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if len(drafts) > 0 {
		return nil, ErrDraftBatchExists
	}

	qualified, err := s.participants.ListQualified(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if len(qualified) < minTournamentPlayers {
		return nil, fmt.Errorf("%w: have %d qualified players", ErrTooFewQualifiers, len(qualified))
	}

	byPlayer := make(map[int]*models.Participant, len(qualified))
	playerIDs := make([]int, 0, len(qualified))
	for _, p := range qualified {
		byPlayer[p.PlayerID] = p
		playerIDs = append(playerIDs, p.PlayerID)
	}

	result, err := s.generator.Generate(ctx, pairing.GenerateParams{
		PlayerIDs: playerIDs,
		Seed:      time.Now().UnixNano(),
	})
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockLeague(ctx, tx, leagueID); err != nil {
		return nil, err
	}

	// Re-check the batch guards under the lock: another request may have
	// generated or published between the unlocked reads above and here.
	published, err = s.pods.CountPublishedQualifying(ctx, tx, leagueID)
	if err != nil {
		return nil, err
	}
	if published > 0 {
		return nil, ErrPodsAlreadyGenerated
	}
	draftCount, err := s.pods.CountDrafts(ctx, tx, leagueID)
	if err != nil {
		return nil, err
	}
	if draftCount > 0 {
		return nil, ErrDraftBatchExists
	}

	created := make([]*models.Pod, 0, len(result.Pods))
	for i := range result.Pods {
		pod := result.Pods[i]
		pod.LeagueID = leagueID
		pod.BatchID = batchID
		pod.IsTournamentGame = true
		for j := range pod.Participants {
			if p, ok := byPlayer[pod.Participants[j].PlayerID]; ok {
				pod.Participants[j].Firstname = p.Firstname
				pod.Participants[j].Lastname = p.Lastname
			}
		}
		if err := s.pods.CreateDraft(ctx, tx, &pod); err != nil {
			return nil, err
		}
		created = append(created, &pod)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("draft batch generated",
		"league_id", leagueID,
		"batch_id", batchID,
		"pods", len(created),
		"coverage_percent", result.Audit.CoveragePercent,
		"imbalance", result.Audit.Imbalance)

	return &DraftResult{
		LeagueID: leagueID,
		BatchID:  batchID,
		Pods:     created,
		Audit:    result.Audit,
	}, nil
}

// QualifierReport lists the current championship qualifiers and whether
// the qualifying round they came out of is fully confirmed.
type QualifierReport struct {
	Qualifiers                []*models.Participant `json:"qualifiers"`
	AllQualifyingPodsComplete bool                  `json:"all_qualifying_pods_complete"`
	IncompleteCount           int                   `json:"incomplete_count"`
}

func (s *TournamentService) topQualifiers(ctx context.Context, leagueID int) ([]*models.Participant, error) {
	qualified, err := s.participants.ListQualified(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if len(qualified) < championshipSize {
		return nil, fmt.Errorf("%w: have %d qualified players", ErrTooFewQualifiers, len(qualified))
	}
	return qualified[:championshipSize], nil
}

// GetChampionshipQualifiers returns the top four qualified players by
// tournament points, plus how many qualifying games are still open.
func (s *TournamentService) GetChampionshipQualifiers(ctx context.Context, leagueID int) (*QualifierReport, error) {
	if _, err := s.findLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	qualifiers, err := s.topQualifiers(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	incomplete, err := s.pods.CountIncompleteQualifying(ctx, s.db, leagueID)
	if err != nil {
		return nil, err
	}
	return &QualifierReport{
		Qualifiers:                qualifiers,
		AllQualifyingPodsComplete: incomplete == 0,
		IncompleteCount:           incomplete,
	}, nil
}

// StartChampionship builds a draft championship pod from the current
// top four. It does not wait for all qualifying games: if some are
// still unconfirmed the pod is created anyway and the result carries a
// warning.
func (s *TournamentService) StartChampionship(ctx context.Context, leagueID int) (*ChampionshipResult, error) {
	league, err := s.findLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePhase(league, models.PhaseTournament); err != nil {
		return nil, err
	}

	if _, err := s.pods.FindChampionship(ctx, leagueID); err == nil {
		return nil, ErrChampionshipExists
	} else if !errors.Is(err, repositories.ErrPodNotFound) {
		return nil, err
	}

	published, err := s.pods.CountPublishedQualifying(ctx, s.db, leagueID)
	if err != nil {
		return nil, err
	}
	if published == 0 {
		return nil, fmt.Errorf("%w: championship requires a published qualifying schedule", ErrIllegalPhaseTransition)
	}

	qualifiers, err := s.topQualifiers(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	incomplete, err := s.pods.CountIncompleteQualifying(ctx, s.db, leagueID)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	order := rng.Perm(championshipSize)

	pod := &models.Pod{
		LeagueID:           leagueID,
		BatchID:            uuid.NewString(),
		Round:              championshipRound,
		IsTournamentGame:   true,
		IsChampionshipGame: true,
		Participants:       make([]models.PodParticipant, championshipSize),
	}
	for i, q := range qualifiers {
		pod.Participants[order[i]] = models.PodParticipant{
			PlayerID:  q.PlayerID,
			Firstname: q.Firstname,
			Lastname:  q.Lastname,
			TurnOrder: order[i] + 1,
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockLeague(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	exists, err := s.pods.ChampionshipExists(ctx, tx, leagueID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrChampionshipExists
	}
	if err := s.pods.CreateDraft(ctx, tx, pod); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	result := &ChampionshipResult{Pod: pod}
	if incomplete > 0 {
		result.Warning = fmt.Sprintf("%d qualifying games are still unconfirmed", incomplete)
		s.logger.Warn("championship created before qualifying round finished",
			"league_id", leagueID,
			"incomplete_pods", incomplete)
	}
	s.logger.Info("championship pod drafted", "league_id", leagueID, "pod_id", pod.ID)
	return result, nil
}

// CompleteTournament records the championship winner as league champion
// and closes the league.
func (s *TournamentService) CompleteTournament(ctx context.Context, leagueID int) (*models.Participant, error) {
	league, err := s.findLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePhase(league, models.PhaseTournament); err != nil {
		return nil, err
	}

	championship, err := s.pods.FindChampionship(ctx, leagueID)
	if err != nil {
		if errors.Is(err, repositories.ErrPodNotFound) {
			return nil, ErrChampionshipNotFound
		}
		return nil, err
	}
	if championship.Status != models.PodStatusPublished || championship.ConfirmationStatus != models.ConfirmationComplete {
		return nil, ErrChampionshipNotComplete
	}

	winner, err := s.pods.FindWinner(ctx, championship.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrPodNoWinner) {
			return nil, ErrNoChampionRecorded
		}
		return nil, err
	}

	champion, err := s.participants.FindByPlayer(ctx, leagueID, winner.PlayerID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockLeague(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if err := s.leagues.SetChampion(ctx, tx, leagueID, &champion.PlayerID); err != nil {
		return nil, err
	}
	if err := s.leagues.UpdatePhase(ctx, tx, leagueID, models.PhaseCompleted); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("tournament completed",
		"league_id", leagueID,
		"champion_id", champion.PlayerID)
	return champion, nil
}

// ResetTournament deletes all tournament pods, clears qualification and
// returns the league to the regular season. It tears down a running or
// finished tournament; a league still in its regular season has nothing
// to reset.
func (s *TournamentService) ResetTournament(ctx context.Context, leagueID int) error {
	league, err := s.findLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if league.Phase == models.PhaseRegularSeason {
		return fmt.Errorf("%w: league %d is in phase %q", ErrIllegalPhaseTransition, league.ID, league.Phase)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockLeague(ctx, tx, leagueID); err != nil {
		return err
	}
	batchIDs, err := s.pods.DeleteTournamentPods(ctx, tx, leagueID)
	if err != nil {
		return err
	}
	if err := s.participants.ClearQualification(ctx, tx, leagueID); err != nil {
		return err
	}
	if err := s.leagues.SetChampion(ctx, tx, leagueID, nil); err != nil {
		return err
	}
	if err := s.leagues.SetRegularSeasonLock(ctx, tx, leagueID, nil); err != nil {
		return err
	}
	if err := s.leagues.UpdatePhase(ctx, tx, leagueID, models.PhaseRegularSeason); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("tournament reset", "league_id", leagueID)

	if s.uploader != nil && len(batchIDs) > 0 {
		s.cleanupScheduleSnapshots(leagueID, batchIDs)
	}
	return nil
}

// cleanupScheduleSnapshots removes the schedule snapshots of deleted
// batches from object storage. Failures are logged only, the reset
// already happened.
func (s *TournamentService) cleanupScheduleSnapshots(leagueID int, batchIDs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for _, batchID := range batchIDs {
		key := scheduleSnapshotKey(leagueID, batchID)
		if err := s.uploader.Delete(ctx, key); err != nil {
			s.logger.Error("failed to delete schedule snapshot", "league_id", leagueID, "key", key, "error", err)
			continue
		}
		s.logger.Info("schedule snapshot deleted", "league_id", leagueID, "key", key)
	}
}

// GetStatus returns a public snapshot of where the league stands.
func (s *TournamentService) GetStatus(ctx context.Context, leagueID int) (*TournamentStatus, error) {
	league, err := s.findLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	qualified, err := s.participants.ListQualified(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	gamesPlayed, err := s.pods.GamesPlayedByPlayer(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	players := make([]PlayerStatus, 0, len(qualified))
	for _, p := range qualified {
		players = append(players, PlayerStatus{
			Participant: p,
			GamesPlayed: gamesPlayed[p.PlayerID],
		})
	}

	total, err := s.pods.CountQualifying(ctx, s.db, leagueID)
	if err != nil {
		return nil, err
	}
	published, err := s.pods.CountPublishedQualifying(ctx, s.db, leagueID)
	if err != nil {
		return nil, err
	}
	incomplete, err := s.pods.CountIncompleteQualifying(ctx, s.db, leagueID)
	if err != nil {
		return nil, err
	}

	hasChampionship := true
	if _, err := s.pods.FindChampionship(ctx, leagueID); err != nil {
		if !errors.Is(err, repositories.ErrPodNotFound) {
			return nil, err
		}
		hasChampionship = false
	}

	return &TournamentStatus{
		LeagueID:  leagueID,
		Phase:     league.Phase,
		Qualified: players,
		Pods: PodStats{
			Qualifying:      total,
			Published:       published,
			Completed:       published - incomplete,
			Pending:         incomplete,
			HasChampionship: hasChampionship,
		},
		ChampionID: league.ChampionID,
		LockedAt:   league.RegularSeasonLockedAt,
	}, nil
}

// GetStandings lists active participants ordered by tournament points.
func (s *TournamentService) GetStandings(ctx context.Context, leagueID int) ([]*models.Participant, error) {
	if _, err := s.findLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	return s.participants.ListActiveByLeague(ctx, leagueID)
}

// ListPublishedPods lists the published tournament schedule, optionally
// filtered to one round.
func (s *TournamentService) ListPublishedPods(ctx context.Context, leagueID int, round *int) ([]*models.Pod, error) {
	if _, err := s.findLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	return s.pods.ListPublished(ctx, leagueID, round)
}
