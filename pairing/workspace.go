package pairing

import (
	"errors"

	"github.com/escalation-league/tournament-engine/models"
)

var ErrPlayerNotInPod = errors.New("player is not a member of the specified pod")

// SwapSeats exchanges two players between two draft pods. Each player takes
// the other's former turn order, so pod size and the {1,2,3,4} seat
// permutation survive the swap.
//
// Picking the same pod twice is a no-op, not an error.
func SwapSeats(pod1 *models.Pod, player1ID int, pod2 *models.Pod, player2ID int) error {
	if pod1.ID == pod2.ID {
		return nil
	}

	idx1 := seatIndex(pod1, player1ID)
	if idx1 < 0 {
		return ErrPlayerNotInPod
	}
	idx2 := seatIndex(pod2, player2ID)
	if idx2 < 0 {
		return ErrPlayerNotInPod
	}

	p1 := pod1.Participants[idx1]
	p2 := pod2.Participants[idx2]
	pod1.Participants[idx1] = models.PodParticipant{
		PodID:     pod1.ID,
		PlayerID:  p2.PlayerID,
		Firstname: p2.Firstname,
		Lastname:  p2.Lastname,
		TurnOrder: p1.TurnOrder,
	}
	pod2.Participants[idx2] = models.PodParticipant{
		PodID:     pod2.ID,
		PlayerID:  p1.PlayerID,
		Firstname: p1.Firstname,
		Lastname:  p1.Lastname,
		TurnOrder: p2.TurnOrder,
	}
	return nil
}

func seatIndex(pod *models.Pod, playerID int) int {
	for i, p := range pod.Participants {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}
