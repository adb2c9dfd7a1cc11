package pairing

import (
	"errors"
	"testing"

	"github.com/escalation-league/tournament-engine/models"
)

func TestSwapSeatsExchangesPlayersKeepingSeats(t *testing.T) {
	pod1 := podOf(1, 10, 11, 12, 13)
	pod2 := podOf(2, 20, 21, 22, 23)

	// Player 11 sits at seat 2 in pod 1; player 23 at seat 4 in pod 2.
	if err := SwapSeats(&pod1, 11, &pod2, 23); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := pod1.Participants[1]; got.PlayerID != 23 || got.TurnOrder != 2 || got.PodID != 1 {
		t.Errorf("pod1 seat 2 = %+v, want player 23 keeping seat 2", got)
	}
	if got := pod2.Participants[3]; got.PlayerID != 11 || got.TurnOrder != 4 || got.PodID != 2 {
		t.Errorf("pod2 seat 4 = %+v, want player 11 keeping seat 4", got)
	}

	for _, pod := range []models.Pod{pod1, pod2} {
		if len(pod.Participants) != 4 {
			t.Fatalf("pod %d size changed to %d", pod.ID, len(pod.Participants))
		}
		seats := make(map[int]bool)
		for _, p := range pod.Participants {
			if p.TurnOrder < 1 || p.TurnOrder > 4 || seats[p.TurnOrder] {
				t.Errorf("pod %d turn orders are no longer a permutation", pod.ID)
			}
			seats[p.TurnOrder] = true
		}
	}
}

func TestSwapSeatsSamePodIsNoOp(t *testing.T) {
	pod := podOf(7, 1, 2, 3, 4)
	before := append([]models.PodParticipant(nil), pod.Participants...)

	if err := SwapSeats(&pod, 1, &pod, 3); err != nil {
		t.Fatalf("same-pod swap should be a no-op, got error: %v", err)
	}
	for i, p := range pod.Participants {
		if p != before[i] {
			t.Errorf("same-pod swap mutated participants: %+v != %+v", p, before[i])
		}
	}
}

func TestSwapSeatsPlayerNotInPod(t *testing.T) {
	pod1 := podOf(1, 10, 11, 12, 13)
	pod2 := podOf(2, 20, 21, 22, 23)

	if err := SwapSeats(&pod1, 99, &pod2, 23); !errors.Is(err, ErrPlayerNotInPod) {
		t.Errorf("swap with unknown player1 = %v, want ErrPlayerNotInPod", err)
	}
	if err := SwapSeats(&pod1, 10, &pod2, 99); !errors.Is(err, ErrPlayerNotInPod) {
		t.Errorf("swap with unknown player2 = %v, want ErrPlayerNotInPod", err)
	}
}
