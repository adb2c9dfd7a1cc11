package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/escalation-league/tournament-engine/models"
	"github.com/escalation-league/tournament-engine/pairing"
	"github.com/escalation-league/tournament-engine/repositories"
	"github.com/escalation-league/tournament-engine/storage"
)

// PublishNotifier pushes schedule updates to connected clients.
type PublishNotifier interface {
	PodsPublished(leagueID int, podIDs []int, hasChampionship bool)
}

// DraftBatch is the admin view of the pending draft pods.
type DraftBatch struct {
	LeagueID int           `json:"league_id"`
	Pods     []*models.Pod `json:"pods"`
	Audit    pairing.Audit `json:"audit"`
}

// PublishResult reports an atomic draft publication.
type PublishResult struct {
	LeagueID        int       `json:"league_id"`
	PodIDs          []int     `json:"pod_ids"`
	PublishedAt     time.Time `json:"published_at"`
	HasChampionship bool      `json:"has_championship"`
}

type DraftService struct {
	db       *sql.DB
	leagues  repositories.LeagueRepository
	pods     repositories.PodRepository
	notifier PublishNotifier
	uploader storage.FileUploader
	logger   *slog.Logger
}

// NewDraftService wires the draft workspace. notifier and uploader may
// be nil, publication then skips the matching side effect.
func NewDraftService(
	db *sql.DB,
	leagues repositories.LeagueRepository,
	pods repositories.PodRepository,
	notifier PublishNotifier,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *DraftService {
	return &DraftService{
		db:       db,
		leagues:  leagues,
		pods:     pods,
		notifier: notifier,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *DraftService) findLeague(ctx context.Context, leagueID int) (*models.League, error) {
	league, err := s.leagues.FindByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return nil, ErrLeagueNotFound
		}
		return nil, err
	}
	return league, nil
}

// ListDrafts returns the draft pods together with a fresh audit of the
// batch.
func (s *DraftService) ListDrafts(ctx context.Context, leagueID int) (*DraftBatch, error) {
	if _, err := s.findLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	drafts, err := s.pods.ListDrafts(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	pods := make([]models.Pod, 0, len(drafts))
	for _, pod := range drafts {
		if !pod.IsChampionshipGame {
			pods = append(pods, *pod)
		}
	}
	return &DraftBatch{
		LeagueID: leagueID,
		Pods:     drafts,
		Audit:    pairing.AuditPods(pods),
	}, nil
}

// SwapPlayers exchanges two players between draft pods, each taking the
// other's seat. Swapping a player with themselves, or two players in
// the same pod, is a no-op.
func (s *DraftService) SwapPlayers(ctx context.Context, leagueID, pod1ID, player1ID, pod2ID, player2ID int) (*DraftBatch, error) {
	if _, err := s.findLeague(ctx, leagueID); err != nil {
		return nil, err
	}

	pod1, err := s.pods.FindDraft(ctx, leagueID, pod1ID)
	if err != nil {
		if errors.Is(err, repositories.ErrPodNotFound) {
			return nil, fmt.Errorf("%w: pod %d has no draft in league %d", ErrPodNotFound, pod1ID, leagueID)
		}
		return nil, err
	}
	pod2, err := s.pods.FindDraft(ctx, leagueID, pod2ID)
	if err != nil {
		if errors.Is(err, repositories.ErrPodNotFound) {
			return nil, fmt.Errorf("%w: pod %d has no draft in league %d", ErrPodNotFound, pod2ID, leagueID)
		}
		return nil, err
	}

	if err := pairing.SwapSeats(pod1, player1ID, pod2, player2ID); err != nil {
		return nil, err
	}

	if pod1.ID != pod2.ID {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if locked, err := repositories.TryAdvisoryLeagueLock(ctx, tx, leagueID); err != nil {
			return nil, err
		} else if !locked {
			return nil, ErrConcurrentGeneration
		}
		if err := s.pods.ReplaceSeat(ctx, tx, pod1.ID, player1ID, player2ID); err != nil {
			return nil, err
		}
		if err := s.pods.ReplaceSeat(ctx, tx, pod2.ID, player2ID, player1ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		s.logger.Info("draft players swapped",
			"league_id", leagueID,
			"pod_1", pod1.ID, "player_1", player1ID,
			"pod_2", pod2.ID, "player_2", player2ID)
	}

	return s.ListDrafts(ctx, leagueID)
}

// DeleteDrafts discards draft pods. With championshipOnly set, only the
// draft championship pod is removed.
func (s *DraftService) DeleteDrafts(ctx context.Context, leagueID int, championshipOnly bool) (int, error) {
	if _, err := s.findLeague(ctx, leagueID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if locked, err := repositories.TryAdvisoryLeagueLock(ctx, tx, leagueID); err != nil {
		return 0, err
	} else if !locked {
		return 0, ErrConcurrentGeneration
	}
	deleted, err := s.pods.DeleteDrafts(ctx, tx, leagueID, championshipOnly)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, ErrNothingToDelete
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("draft pods deleted",
		"league_id", leagueID,
		"count", deleted,
		"championship_only", championshipOnly)
	return deleted, nil
}

// Publish atomically flips every draft pod of the league to published.
// Players see the whole batch at once or not at all. Notifications and
// the schedule snapshot are best effort and never fail the publish.
func (s *DraftService) Publish(ctx context.Context, leagueID int) (*PublishResult, error) {
	league, err := s.findLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if league.Phase != models.PhaseTournament {
		return nil, fmt.Errorf("%w: league %d is in phase %q", ErrIllegalPhaseTransition, league.ID, league.Phase)
	}

	drafts, err := s.pods.ListDrafts(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, ErrNothingToPublish
	}
	hasChampionship := false
	for _, pod := range drafts {
		if pod.IsChampionshipGame {
			hasChampionship = true
			break
		}
	}

	publishedAt := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if locked, err := repositories.TryAdvisoryLeagueLock(ctx, tx, leagueID); err != nil {
		return nil, err
	} else if !locked {
		return nil, ErrConcurrentGeneration
	}

	podIDs, err := s.pods.PublishDrafts(ctx, tx, leagueID, publishedAt)
	if err != nil {
		if errors.Is(err, repositories.ErrNoDraftPods) {
			return nil, ErrNothingToPublish
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("draft batch published",
		"league_id", leagueID,
		"pods", len(podIDs),
		"has_championship", hasChampionship)

	if s.notifier != nil {
		s.notifier.PodsPublished(leagueID, podIDs, hasChampionship)
	}
	if s.uploader != nil {
		s.uploadScheduleSnapshot(leagueID, drafts[0].BatchID)
	}

	return &PublishResult{
		LeagueID:        leagueID,
		PodIDs:          podIDs,
		PublishedAt:     publishedAt,
		HasChampionship: hasChampionship,
	}, nil
}

// scheduleSnapshotKey is the object storage key for a published batch's
// schedule snapshot.
func scheduleSnapshotKey(leagueID int, batchID string) string {
	return fmt.Sprintf("schedules/league-%d-%s.json", leagueID, batchID)
}

// uploadScheduleSnapshot stores the freshly published schedule as a
// JSON object. Failures are logged only, the publish already happened.
func (s *DraftService) uploadScheduleSnapshot(leagueID int, batchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	published, err := s.pods.ListPublished(ctx, leagueID, nil)
	if err != nil {
		s.logger.Error("failed to load schedule for snapshot", "league_id", leagueID, "error", err)
		return
	}
	data, err := json.Marshal(published)
	if err != nil {
		s.logger.Error("failed to encode schedule snapshot", "league_id", leagueID, "error", err)
		return
	}

	key := scheduleSnapshotKey(leagueID, batchID)
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(data))
	if err != nil {
		s.logger.Error("failed to upload schedule snapshot", "league_id", leagueID, "key", key, "error", err)
		return
	}
	s.logger.Info("schedule snapshot uploaded", "league_id", leagueID, "url", result.Location)
}
