package pairing

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"

	"github.com/escalation-league/tournament-engine/models"
	"golang.org/x/sync/errgroup"
)

const (
	// PodSize is fixed: every pod seats exactly four players.
	PodSize = 4
	// GamesPerPlayer is the qualifying format: four games for every player.
	GamesPerPlayer = 4
	// DefaultAttempts bounds the randomized restart budget.
	DefaultAttempts = 20
)

var (
	ErrCannotGenerate    = errors.New("not enough players to generate pods (minimum 4 required)")
	ErrInvalidRosterSize = errors.New("qualified player count must be a multiple of 4")
)

// GenerateParams carries the roster and the explicit random seed so that runs
// are reproducible. Attempts <= 0 falls back to DefaultAttempts.
type GenerateParams struct {
	PlayerIDs []int
	Seed      int64
	Attempts  int
}

// Result is the best candidate schedule found within the attempt budget,
// together with its audit. The schedule is heuristic, not an exact optimum;
// the audit numbers are surfaced to the operator instead of a guarantee.
type Result struct {
	Pods  []models.Pod
	Audit Audit
}

type PodGenerator interface {
	Generate(ctx context.Context, params GenerateParams) (*Result, error)

	GetName() string
}

type balancedPodGenerator struct{}

func NewBalancedPodGenerator() PodGenerator {
	return &balancedPodGenerator{}
}

func (g *balancedPodGenerator) GetName() string {
	return "BalancedPods"
}

// Generate builds GamesPerPlayer rounds, each partitioning the roster into
// n/4 pods, repeated over several seeded restarts. Candidates are ranked by
// (coverage desc, imbalance asc); ties keep the lowest attempt index so the
// outcome is deterministic for a given seed.
func (g *balancedPodGenerator) Generate(ctx context.Context, params GenerateParams) (*Result, error) {
	n := len(params.PlayerIDs)
	if n < PodSize {
		return nil, ErrCannotGenerate
	}
	if n%PodSize != 0 {
		return nil, ErrInvalidRosterSize
	}

	attempts := params.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	// Restart attempts are independent and pure, so they may run in parallel.
	candidates := make([]*Result, attempts)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i := 0; i < attempts; i++ {
		i := i
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			rng := rand.New(rand.NewSource(params.Seed + int64(i)))
			pods := buildSchedule(params.PlayerIDs, rng)
			candidates[i] = &Result{Pods: pods, Audit: AuditPods(pods)}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Audit.CoveragePercent > best.Audit.CoveragePercent ||
			(c.Audit.CoveragePercent == best.Audit.CoveragePercent && c.Audit.Imbalance < best.Audit.Imbalance) {
			best = c
		}
	}
	return best, nil
}

// buildSchedule runs one randomized-greedy pass over all rounds.
func buildSchedule(playerIDs []int, rng *rand.Rand) []models.Pod {
	pairCount := make(map[PlayerPair]int)
	seatCount := make(map[int][4]int)

	pods := make([]models.Pod, 0, len(playerIDs))
	for round := 1; round <= GamesPerPlayer; round++ {
		remaining := append([]int(nil), playerIDs...)
		rng.Shuffle(len(remaining), func(i, j int) {
			remaining[i], remaining[j] = remaining[j], remaining[i]
		})

		for len(remaining) > 0 {
			members, rest := formPod(remaining, pairCount, seatCount)
			remaining = rest

			seats := assignSeats(members, seatCount)
			participants := make([]models.PodParticipant, PodSize)
			for pos, playerID := range seats {
				participants[pos] = models.PodParticipant{PlayerID: playerID, TurnOrder: pos + 1}
				counts := seatCount[playerID]
				counts[pos]++
				seatCount[playerID] = counts
			}
			for i := 0; i < PodSize; i++ {
				for j := i + 1; j < PodSize; j++ {
					pairCount[orderedPair(members[i], members[j])]++
				}
			}
			pods = append(pods, models.Pod{Round: round, Participants: participants})
		}
	}
	return pods
}

// formPod anchors on the player with the fewest unmet partners left in the
// round, then greedily adds the three players with the smallest marginal
// pair-reuse cost, breaking ties by seat spread. The caller pre-shuffles
// the remaining slice, which randomizes any residual ties.
func formPod(remaining []int, pairCount map[PlayerPair]int, seatCount map[int][4]int) (members []int, rest []int) {
	anchorIdx := 0
	anchorFresh := -1
	for idx, p := range remaining {
		fresh := 0
		for _, q := range remaining {
			if q != p && pairCount[orderedPair(p, q)] == 0 {
				fresh++
			}
		}
		if anchorFresh == -1 || fresh < anchorFresh {
			anchorFresh = fresh
			anchorIdx = idx
		}
	}

	members = []int{remaining[anchorIdx]}
	rest = append(remaining[:anchorIdx:anchorIdx], remaining[anchorIdx+1:]...)

	for len(members) < PodSize {
		bestIdx := 0
		bestReuse := math.MaxInt
		bestSpread := math.MaxFloat64
		for idx, cand := range rest {
			reuse := 0
			for _, m := range members {
				reuse += pairCount[orderedPair(cand, m)]
			}
			spread := seatSpread(seatCount[cand])
			if reuse < bestReuse || (reuse == bestReuse && spread < bestSpread) {
				bestReuse = reuse
				bestSpread = spread
				bestIdx = idx
			}
		}
		members = append(members, rest[bestIdx])
		rest = append(rest[:bestIdx:bestIdx], rest[bestIdx+1:]...)
	}
	return members, rest
}

func seatSpread(counts [4]int) float64 {
	min, max := counts[0], counts[0]
	for _, c := range counts[1:] {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	return float64(max - min)
}

// assignSeats picks, among all 24 permutations, the seat assignment that adds
// the least to the members' cumulative seat counts.
func assignSeats(members []int, seatCount map[int][4]int) [PodSize]int {
	var best [PodSize]int
	bestCost := math.MaxInt
	for _, perm := range seatPermutations {
		cost := 0
		for pos := 0; pos < PodSize; pos++ {
			cost += seatCount[members[perm[pos]]][pos]
		}
		if cost < bestCost {
			bestCost = cost
			for pos := 0; pos < PodSize; pos++ {
				best[pos] = members[perm[pos]]
			}
		}
	}
	return best
}

var seatPermutations = buildSeatPermutations()

func buildSeatPermutations() [][PodSize]int {
	perms := make([][PodSize]int, 0, 24)
	var permute func(current []int, used [PodSize]bool)
	permute = func(current []int, used [PodSize]bool) {
		if len(current) == PodSize {
			var p [PodSize]int
			copy(p[:], current)
			perms = append(perms, p)
			return
		}
		for i := 0; i < PodSize; i++ {
			if !used[i] {
				used[i] = true
				permute(append(current, i), used)
				used[i] = false
			}
		}
	}
	permute(make([]int, 0, PodSize), [PodSize]bool{})
	return perms
}
