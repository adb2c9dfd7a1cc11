package pairing

import (
	"testing"

	"github.com/escalation-league/tournament-engine/models"
)

// podOf builds a pod whose seats follow the order of the given players.
func podOf(id int, players ...int) models.Pod {
	pod := models.Pod{ID: id}
	for i, p := range players {
		pod.Participants = append(pod.Participants, models.PodParticipant{
			PodID:     id,
			PlayerID:  p,
			TurnOrder: i + 1,
		})
	}
	return pod
}

// fullCoverageEightPlayers is a resolvable schedule for 8 players (two pods
// per round, four rounds) where every one of the 28 pairs meets at least once.
func fullCoverageEightPlayers() []models.Pod {
	return []models.Pod{
		podOf(1, 0, 1, 2, 3),
		podOf(2, 4, 5, 6, 7),
		podOf(3, 1, 0, 4, 5),
		podOf(4, 3, 2, 6, 7),
		podOf(5, 2, 6, 0, 4),
		podOf(6, 5, 7, 1, 3),
		podOf(7, 7, 3, 4, 0),
		podOf(8, 6, 2, 5, 1),
	}
}

func TestAuditEmptyInput(t *testing.T) {
	audit := AuditPods(nil)

	if audit.TotalPossiblePairings != 0 {
		t.Errorf("TotalPossiblePairings = %d, want 0", audit.TotalPossiblePairings)
	}
	if audit.CoveragePercent != 100.0 {
		t.Errorf("CoveragePercent = %v, want 100.0", audit.CoveragePercent)
	}
	if len(audit.MissingPairings) != 0 {
		t.Errorf("MissingPairings = %v, want empty", audit.MissingPairings)
	}
	if audit.Imbalance != 0 {
		t.Errorf("Imbalance = %v, want 0", audit.Imbalance)
	}
}

func TestAuditFullCoverage(t *testing.T) {
	pods := fullCoverageEightPlayers()
	audit := AuditPods(pods)

	if audit.TotalPossiblePairings != 28 {
		t.Fatalf("TotalPossiblePairings = %d, want 28", audit.TotalPossiblePairings)
	}
	if len(audit.MissingPairings) != 0 {
		t.Errorf("MissingPairings = %v, want none", audit.MissingPairings)
	}
	if audit.CoveragePercent != 100.0 {
		t.Errorf("CoveragePercent = %v, want 100.0", audit.CoveragePercent)
	}
	for player, games := range audit.GamesPlayed {
		if games != 4 {
			t.Errorf("player %d played %d games, want 4", player, games)
		}
	}
}

func TestAuditTotalPairsTwelvePlayers(t *testing.T) {
	// Three disjoint pods are enough to register all 12 distinct players.
	pods := []models.Pod{
		podOf(1, 1, 2, 3, 4),
		podOf(2, 5, 6, 7, 8),
		podOf(3, 9, 10, 11, 12),
	}
	audit := AuditPods(pods)

	if audit.TotalPossiblePairings != 66 {
		t.Errorf("TotalPossiblePairings = %d, want 66", audit.TotalPossiblePairings)
	}
	// Each pod covers 6 pairs, so 18 of 66 are covered.
	if audit.CoveredPairings != 18 {
		t.Errorf("CoveredPairings = %d, want 18", audit.CoveredPairings)
	}
	if want := 27.3; audit.CoveragePercent != want {
		t.Errorf("CoveragePercent = %v, want %v (rounded to one decimal)", audit.CoveragePercent, want)
	}
}

func TestAuditImbalanceZeroWhenSeatsRotate(t *testing.T) {
	// Four players, four games, each player in every seat exactly once.
	pods := []models.Pod{
		podOf(1, 1, 2, 3, 4),
		podOf(2, 2, 3, 4, 1),
		podOf(3, 3, 4, 1, 2),
		podOf(4, 4, 1, 2, 3),
	}
	audit := AuditPods(pods)

	if audit.Imbalance != 0 {
		t.Errorf("Imbalance = %v, want 0 for a perfectly rotated schedule", audit.Imbalance)
	}
	if audit.CoveragePercent != 100.0 {
		t.Errorf("CoveragePercent = %v, want 100.0", audit.CoveragePercent)
	}
}

func TestAuditImbalancePositiveWhenSeatsRepeat(t *testing.T) {
	// Same seating twice: every player holds the same seat in both games.
	pods := []models.Pod{
		podOf(1, 1, 2, 3, 4),
		podOf(2, 1, 2, 3, 4),
	}
	audit := AuditPods(pods)

	// Each player: one seat at count 2 vs ideal 0.5, three seats at 0.
	// |2-0.5| + 3*|0-0.5| = 3 per player, 12 total.
	if audit.Imbalance != 12 {
		t.Errorf("Imbalance = %v, want 12", audit.Imbalance)
	}
}

func TestAuditDeterministic(t *testing.T) {
	pods := fullCoverageEightPlayers()
	first := AuditPods(pods)
	second := AuditPods(pods)

	if first.CoveragePercent != second.CoveragePercent || first.Imbalance != second.Imbalance {
		t.Errorf("audit is not deterministic: %+v vs %+v", first, second)
	}
}
