package services

import (
	"context"
	"errors"
	"testing"

	"github.com/escalation-league/tournament-engine/models"
	"github.com/escalation-league/tournament-engine/pairing"
	"github.com/escalation-league/tournament-engine/repositories"
)

func draftPod(id int, playerIDs ...int) *models.Pod {
	pod := &models.Pod{ID: id, LeagueID: 1, Status: models.PodStatusDraft}
	for i, playerID := range playerIDs {
		pod.Participants = append(pod.Participants, models.PodParticipant{
			PodID:     id,
			PlayerID:  playerID,
			TurnOrder: i + 1,
		})
	}
	return pod
}

func TestPublishRequiresTournamentPhase(t *testing.T) {
	svc := NewDraftService(nil, leagueInPhase(models.PhaseRegularSeason), &mockPodRepo{}, nil, nil, discardLogger())

	_, err := svc.Publish(context.Background(), 1)
	if !errors.Is(err, ErrIllegalPhaseTransition) {
		t.Fatalf("got %v, want ErrIllegalPhaseTransition", err)
	}
}

func TestPublishRejectsEmptyWorkspace(t *testing.T) {
	svc := NewDraftService(nil, leagueInPhase(models.PhaseTournament), &mockPodRepo{}, nil, nil, discardLogger())

	_, err := svc.Publish(context.Background(), 1)
	if !errors.Is(err, ErrNothingToPublish) {
		t.Fatalf("got %v, want ErrNothingToPublish", err)
	}
}

func TestSwapPlayersRejectsUnknownPod(t *testing.T) {
	pods := &mockPodRepo{
		findDraft: func(ctx context.Context, leagueID, podID int) (*models.Pod, error) {
			return nil, repositories.ErrPodNotFound
		},
	}
	svc := NewDraftService(nil, leagueInPhase(models.PhaseTournament), pods, nil, nil, discardLogger())

	_, err := svc.SwapPlayers(context.Background(), 1, 10, 100, 11, 200)
	if !errors.Is(err, ErrPodNotFound) {
		t.Fatalf("got %v, want ErrPodNotFound", err)
	}
}

func TestSwapPlayersRejectsPlayerOutsidePod(t *testing.T) {
	pods := &mockPodRepo{
		findDraft: func(ctx context.Context, leagueID, podID int) (*models.Pod, error) {
			if podID == 10 {
				return draftPod(10, 1, 2, 3, 4), nil
			}
			return draftPod(11, 5, 6, 7, 8), nil
		},
	}
	svc := NewDraftService(nil, leagueInPhase(models.PhaseTournament), pods, nil, nil, discardLogger())

	// Player 5 sits in pod 11, not pod 10.
	_, err := svc.SwapPlayers(context.Background(), 1, 10, 5, 11, 6)
	if !errors.Is(err, pairing.ErrPlayerNotInPod) {
		t.Fatalf("got %v, want ErrPlayerNotInPod", err)
	}
}

func TestSwapPlayersSamePodIsNoOp(t *testing.T) {
	pods := &mockPodRepo{
		findDraft: func(ctx context.Context, leagueID, podID int) (*models.Pod, error) {
			return draftPod(10, 1, 2, 3, 4), nil
		},
		listDrafts: func(ctx context.Context, leagueID int) ([]*models.Pod, error) {
			return []*models.Pod{draftPod(10, 1, 2, 3, 4)}, nil
		},
	}
	// db is nil: the service must not open a transaction for a
	// same-pod swap.
	svc := NewDraftService(nil, leagueInPhase(models.PhaseTournament), pods, nil, nil, discardLogger())

	batch, err := svc.SwapPlayers(context.Background(), 1, 10, 1, 10, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Pods) != 1 {
		t.Fatalf("got %d pods, want 1", len(batch.Pods))
	}
}

func TestSwapPlayersHoldsLeagueLock(t *testing.T) {
	db, mock := newMockDB(t)
	pods := &mockPodRepo{
		findDraft: func(ctx context.Context, leagueID, podID int) (*models.Pod, error) {
			if podID == 10 {
				return draftPod(10, 1, 2, 3, 4), nil
			}
			return draftPod(11, 5, 6, 7, 8), nil
		},
		listDrafts: func(ctx context.Context, leagueID int) ([]*models.Pod, error) {
			return []*models.Pod{draftPod(10, 5, 2, 3, 4), draftPod(11, 1, 6, 7, 8)}, nil
		},
	}
	svc := NewDraftService(db, leagueInPhase(models.PhaseTournament), pods, nil, nil, discardLogger())

	expectLeagueLock(mock, 1, true)
	mock.ExpectCommit()

	if _, err := svc.SwapPlayers(context.Background(), 1, 10, 1, 11, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pods.replacedSeats) != 2 {
		t.Fatalf("got %d seat replacements, want 2", len(pods.replacedSeats))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet database expectations: %v", err)
	}
}

func TestSwapPlayersRejectsConcurrentRequest(t *testing.T) {
	db, mock := newMockDB(t)
	pods := &mockPodRepo{
		findDraft: func(ctx context.Context, leagueID, podID int) (*models.Pod, error) {
			if podID == 10 {
				return draftPod(10, 1, 2, 3, 4), nil
			}
			return draftPod(11, 5, 6, 7, 8), nil
		},
	}
	svc := NewDraftService(db, leagueInPhase(models.PhaseTournament), pods, nil, nil, discardLogger())

	expectLeagueLock(mock, 1, false)
	mock.ExpectRollback()

	_, err := svc.SwapPlayers(context.Background(), 1, 10, 1, 11, 5)
	if !errors.Is(err, ErrConcurrentGeneration) {
		t.Fatalf("got %v, want ErrConcurrentGeneration", err)
	}
	if len(pods.replacedSeats) != 0 {
		t.Errorf("replaced %d seats without holding the lock", len(pods.replacedSeats))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet database expectations: %v", err)
	}
}

func TestDeleteDraftsRejectsConcurrentRequest(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewDraftService(db, leagueInPhase(models.PhaseTournament), &mockPodRepo{deleteDraftRows: 4}, nil, nil, discardLogger())

	expectLeagueLock(mock, 1, false)
	mock.ExpectRollback()

	_, err := svc.DeleteDrafts(context.Background(), 1, false)
	if !errors.Is(err, ErrConcurrentGeneration) {
		t.Fatalf("got %v, want ErrConcurrentGeneration", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet database expectations: %v", err)
	}
}

func TestPublishTwiceLeavesNothingToPublish(t *testing.T) {
	db, mock := newMockDB(t)
	published := false
	pods := &mockPodRepo{
		listDrafts: func(ctx context.Context, leagueID int) ([]*models.Pod, error) {
			// A stale read: the second caller still sees the batch it
			// raced the first one for.
			return []*models.Pod{draftPod(10, 1, 2, 3, 4), draftPod(11, 5, 6, 7, 8)}, nil
		},
		publishDrafts: func(ctx context.Context, leagueID int) ([]int, error) {
			if published {
				return nil, repositories.ErrNoDraftPods
			}
			published = true
			return []int{10, 11}, nil
		},
	}
	svc := NewDraftService(db, leagueInPhase(models.PhaseTournament), pods, nil, nil, discardLogger())

	expectLeagueLock(mock, 1, true)
	mock.ExpectCommit()
	expectLeagueLock(mock, 1, true)
	mock.ExpectRollback()

	result, err := svc.Publish(context.Background(), 1)
	if err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	if len(result.PodIDs) != 2 {
		t.Fatalf("first publish flipped %d pods, want 2", len(result.PodIDs))
	}

	_, err = svc.Publish(context.Background(), 1)
	if !errors.Is(err, ErrNothingToPublish) {
		t.Fatalf("second publish: got %v, want ErrNothingToPublish", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet database expectations: %v", err)
	}
}

func TestListDraftsAuditsQualifyingPodsOnly(t *testing.T) {
	championship := draftPod(99, 1, 2, 3, 4)
	championship.IsChampionshipGame = true

	pods := &mockPodRepo{
		listDrafts: func(ctx context.Context, leagueID int) ([]*models.Pod, error) {
			return []*models.Pod{
				draftPod(10, 1, 2, 3, 4),
				draftPod(11, 5, 6, 7, 8),
				championship,
			}, nil
		},
	}
	svc := NewDraftService(nil, leagueInPhase(models.PhaseTournament), pods, nil, nil, discardLogger())

	batch, err := svc.ListDrafts(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Pods) != 3 {
		t.Fatalf("got %d pods, want 3", len(batch.Pods))
	}
	// 8 players give 28 possible pairings; the championship pod must
	// not count toward coverage.
	if batch.Audit.TotalPossiblePairings != 28 {
		t.Errorf("total pairings = %d, want 28", batch.Audit.TotalPossiblePairings)
	}
	if batch.Audit.CoveredPairings != 12 {
		t.Errorf("covered pairings = %d, want 12", batch.Audit.CoveredPairings)
	}
}

func TestListDraftsEmptyWorkspace(t *testing.T) {
	svc := NewDraftService(nil, leagueInPhase(models.PhaseTournament), &mockPodRepo{}, nil, nil, discardLogger())

	batch, err := svc.ListDrafts(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Pods) != 0 {
		t.Fatalf("got %d pods, want 0", len(batch.Pods))
	}
	if batch.Audit.CoveragePercent != 100.0 {
		t.Errorf("coverage of empty batch = %v, want 100.0", batch.Audit.CoveragePercent)
	}
}
