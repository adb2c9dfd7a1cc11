package pairing

import (
	"math"
	"sort"

	"github.com/escalation-league/tournament-engine/models"
)

// PlayerPair is an unordered pair of players, stored with Player1ID < Player2ID.
type PlayerPair struct {
	Player1ID int `json:"player1_id"`
	Player2ID int `json:"player2_id"`
}

// Audit is the derived pairing report over a set of pods. It is never
// persisted; it is recomputed on demand for generation scoring and for the
// operator review view.
type Audit struct {
	TotalPossiblePairings int            `json:"totalPossiblePairings"`
	CoveredPairings       int            `json:"coveredPairings"`
	MissingPairings       []PlayerPair   `json:"missingPairings"`
	CoveragePercent       float64        `json:"coveragePercent"`
	Imbalance             float64        `json:"imbalance"`
	GamesPlayed           map[int]int    `json:"gamesPlayed"`
	TurnOrderCounts       map[int][4]int `json:"turnOrderCounts"`
}

func orderedPair(a, b int) PlayerPair {
	if a < b {
		return PlayerPair{Player1ID: a, Player2ID: b}
	}
	return PlayerPair{Player1ID: b, Player2ID: a}
}

// AuditPods computes the co-occurrence matrix, missing-pairing list, coverage
// percentage and turn-order imbalance over the given pods. It has no failure
// modes: empty input yields zeros and 100% coverage over zero possible pairs.
func AuditPods(pods []models.Pod) Audit {
	audit := Audit{
		MissingPairings: []PlayerPair{},
		GamesPlayed:     make(map[int]int),
		TurnOrderCounts: make(map[int][4]int),
	}

	cooccurrence := make(map[PlayerPair]int)
	players := make(map[int]struct{})

	for _, pod := range pods {
		for i, p := range pod.Participants {
			players[p.PlayerID] = struct{}{}
			audit.GamesPlayed[p.PlayerID]++
			if p.TurnOrder >= 1 && p.TurnOrder <= 4 {
				counts := audit.TurnOrderCounts[p.PlayerID]
				counts[p.TurnOrder-1]++
				audit.TurnOrderCounts[p.PlayerID] = counts
			}
			for _, q := range pod.Participants[i+1:] {
				cooccurrence[orderedPair(p.PlayerID, q.PlayerID)]++
			}
		}
	}

	ids := make([]int, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	n := len(ids)
	audit.TotalPossiblePairings = n * (n - 1) / 2

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if cooccurrence[PlayerPair{Player1ID: ids[i], Player2ID: ids[j]}] == 0 {
				audit.MissingPairings = append(audit.MissingPairings, PlayerPair{Player1ID: ids[i], Player2ID: ids[j]})
			}
		}
	}

	audit.CoveredPairings = audit.TotalPossiblePairings - len(audit.MissingPairings)
	if audit.TotalPossiblePairings == 0 {
		audit.CoveragePercent = 100.0
	} else {
		pct := float64(audit.CoveredPairings) / float64(audit.TotalPossiblePairings) * 100
		audit.CoveragePercent = math.Round(pct*10) / 10
	}

	for _, id := range ids {
		ideal := float64(audit.GamesPlayed[id]) / 4.0
		counts := audit.TurnOrderCounts[id]
		for pos := 0; pos < 4; pos++ {
			audit.Imbalance += math.Abs(float64(counts[pos]) - ideal)
		}
	}

	return audit
}
