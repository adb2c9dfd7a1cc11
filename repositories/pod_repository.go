package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/escalation-league/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrPodNotFound  = errors.New("pod not found")
	ErrPodNoWinner  = errors.New("pod has no recorded winner")
	ErrSeatNotFound = errors.New("player does not hold a seat in this pod")
	ErrNoDraftPods  = errors.New("no draft pods found")
)

type PodRepository interface {
	CreateDraft(ctx context.Context, exec SQLExecutor, pod *models.Pod) error
	ListDrafts(ctx context.Context, leagueID int) ([]*models.Pod, error)
	FindDraft(ctx context.Context, leagueID, podID int) (*models.Pod, error)
	ListPublished(ctx context.Context, leagueID int, round *int) ([]*models.Pod, error)
	FindChampionship(ctx context.Context, leagueID int) (*models.Pod, error)

	// The count and existence reads take a SQLExecutor so guards can be
	// re-evaluated inside a locked transaction; plain reads pass the pool.
	CountDrafts(ctx context.Context, exec SQLExecutor, leagueID int) (int, error)
	CountQualifying(ctx context.Context, exec SQLExecutor, leagueID int) (int, error)
	CountPublishedQualifying(ctx context.Context, exec SQLExecutor, leagueID int) (int, error)
	CountIncompleteQualifying(ctx context.Context, exec SQLExecutor, leagueID int) (int, error)
	CountIncompleteRegularSeason(ctx context.Context, exec SQLExecutor, leagueID int) (int, error)
	ChampionshipExists(ctx context.Context, exec SQLExecutor, leagueID int) (bool, error)
	GamesPlayedByPlayer(ctx context.Context, leagueID int) (map[int]int, error)

	PublishDrafts(ctx context.Context, exec SQLExecutor, leagueID int, publishedAt time.Time) ([]int, error)
	DeleteDrafts(ctx context.Context, exec SQLExecutor, leagueID int, championshipOnly bool) (int, error)
	DeleteTournamentPods(ctx context.Context, exec SQLExecutor, leagueID int) ([]string, error)
	ReplaceSeat(ctx context.Context, exec SQLExecutor, podID, playerID, newPlayerID int) error

	// FindWinner reads the game result recorded by the pod-results provider.
	FindWinner(ctx context.Context, podID int) (*models.PodParticipant, error)
}

type postgresPodRepository struct {
	db *sql.DB
}

func NewPostgresPodRepository(db *sql.DB) PodRepository {
	return &postgresPodRepository{db: db}
}

const podSelectSQL = `
	SELECT id, league_id, batch_id, status, tournament_round,
	       is_tournament_game, is_championship_game, confirmation_status,
	       created_at, published_at
	FROM pods`

func scanPod(scanner interface {
	Scan(dest ...interface{}) error
}, pod *models.Pod) error {
	return scanner.Scan(
		&pod.ID,
		&pod.LeagueID,
		&pod.BatchID,
		&pod.Status,
		&pod.Round,
		&pod.IsTournamentGame,
		&pod.IsChampionshipGame,
		&pod.ConfirmationStatus,
		&pod.CreatedAt,
		&pod.PublishedAt,
	)
}

func (r *postgresPodRepository) CreateDraft(ctx context.Context, exec SQLExecutor, pod *models.Pod) error {
	query := `
		INSERT INTO pods
			(league_id, batch_id, status, tournament_round,
			 is_tournament_game, is_championship_game, confirmation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		pod.LeagueID,
		pod.BatchID,
		models.PodStatusDraft,
		pod.Round,
		pod.IsTournamentGame,
		pod.IsChampionshipGame,
		models.ConfirmationPending,
	).Scan(&pod.ID, &pod.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create draft pod: %w", err)
	}
	pod.Status = models.PodStatusDraft
	pod.ConfirmationStatus = models.ConfirmationPending

	for i := range pod.Participants {
		pod.Participants[i].PodID = pod.ID
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO pod_participants (pod_id, player_id, turn_order) VALUES ($1, $2, $3)`,
			pod.ID, pod.Participants[i].PlayerID, pod.Participants[i].TurnOrder,
		); err != nil {
			return fmt.Errorf("failed to add participant %d to pod %d: %w", pod.Participants[i].PlayerID, pod.ID, err)
		}
	}
	return nil
}

func (r *postgresPodRepository) listPods(ctx context.Context, query string, args ...interface{}) ([]*models.Pod, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	defer rows.Close()

	var pods []*models.Pod
	for rows.Next() {
		pod := &models.Pod{}
		if err := scanPod(rows, pod); err != nil {
			return nil, fmt.Errorf("failed to scan pod: %w", err)
		}
		pods = append(pods, pod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pods: %w", err)
	}

	if err := r.attachParticipants(ctx, pods); err != nil {
		return nil, err
	}
	return pods, nil
}

func (r *postgresPodRepository) attachParticipants(ctx context.Context, pods []*models.Pod) error {
	if len(pods) == 0 {
		return nil
	}
	byID := make(map[int]*models.Pod, len(pods))
	ids := make([]int, 0, len(pods))
	for _, pod := range pods {
		byID[pod.ID] = pod
		ids = append(ids, pod.ID)
	}

	query := `
		SELECT pp.pod_id, pp.player_id, u.firstname, u.lastname, pp.turn_order
		FROM pod_participants pp
		JOIN users u ON u.id = pp.player_id
		WHERE pp.pod_id = ANY($1)
		ORDER BY pp.pod_id ASC, pp.turn_order ASC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load pod participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p := models.PodParticipant{}
		if err := rows.Scan(&p.PodID, &p.PlayerID, &p.Firstname, &p.Lastname, &p.TurnOrder); err != nil {
			return fmt.Errorf("failed to scan pod participant: %w", err)
		}
		if pod, ok := byID[p.PodID]; ok {
			pod.Participants = append(pod.Participants, p)
		}
	}
	return rows.Err()
}

func (r *postgresPodRepository) ListDrafts(ctx context.Context, leagueID int) ([]*models.Pod, error) {
	query := podSelectSQL + `
	WHERE league_id = $1 AND status = 'draft'
	ORDER BY created_at ASC, id ASC`
	return r.listPods(ctx, query, leagueID)
}

func (r *postgresPodRepository) FindDraft(ctx context.Context, leagueID, podID int) (*models.Pod, error) {
	query := podSelectSQL + `
	WHERE league_id = $1 AND id = $2 AND status = 'draft'`

	pod := &models.Pod{}
	err := r.db.QueryRowContext(ctx, query, leagueID, podID).Scan(
		&pod.ID,
		&pod.LeagueID,
		&pod.BatchID,
		&pod.Status,
		&pod.Round,
		&pod.IsTournamentGame,
		&pod.IsChampionshipGame,
		&pod.ConfirmationStatus,
		&pod.CreatedAt,
		&pod.PublishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPodNotFound
		}
		return nil, fmt.Errorf("failed to find draft pod %d: %w", podID, err)
	}
	if err := r.attachParticipants(ctx, []*models.Pod{pod}); err != nil {
		return nil, err
	}
	return pod, nil
}

func (r *postgresPodRepository) ListPublished(ctx context.Context, leagueID int, round *int) ([]*models.Pod, error) {
	query := podSelectSQL + `
	WHERE league_id = $1 AND is_tournament_game = TRUE AND status = 'published'`
	args := []interface{}{leagueID}
	if round != nil {
		query += ` AND tournament_round = $2`
		args = append(args, *round)
	}
	query += ` ORDER BY tournament_round ASC, id ASC`
	return r.listPods(ctx, query, args...)
}

func (r *postgresPodRepository) FindChampionship(ctx context.Context, leagueID int) (*models.Pod, error) {
	query := podSelectSQL + `
	WHERE league_id = $1 AND is_championship_game = TRUE`

	pod := &models.Pod{}
	err := scanPod(r.db.QueryRowContext(ctx, query, leagueID), pod)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPodNotFound
		}
		return nil, fmt.Errorf("failed to find championship pod for league %d: %w", leagueID, err)
	}
	if err := r.attachParticipants(ctx, []*models.Pod{pod}); err != nil {
		return nil, err
	}
	return pod, nil
}

func countPods(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (int, error) {
	var count int
	if err := exec.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pods: %w", err)
	}
	return count, nil
}

func (r *postgresPodRepository) CountDrafts(ctx context.Context, exec SQLExecutor, leagueID int) (int, error) {
	return countPods(ctx, exec, `
		SELECT COUNT(id) FROM pods
		WHERE league_id = $1 AND status = 'draft'`,
		leagueID)
}

func (r *postgresPodRepository) CountQualifying(ctx context.Context, exec SQLExecutor, leagueID int) (int, error) {
	return countPods(ctx, exec, `
		SELECT COUNT(id) FROM pods
		WHERE league_id = $1 AND is_tournament_game = TRUE AND is_championship_game = FALSE`,
		leagueID)
}

func (r *postgresPodRepository) CountPublishedQualifying(ctx context.Context, exec SQLExecutor, leagueID int) (int, error) {
	return countPods(ctx, exec, `
		SELECT COUNT(id) FROM pods
		WHERE league_id = $1 AND is_tournament_game = TRUE AND is_championship_game = FALSE
		  AND status = 'published'`,
		leagueID)
}

func (r *postgresPodRepository) CountIncompleteQualifying(ctx context.Context, exec SQLExecutor, leagueID int) (int, error) {
	return countPods(ctx, exec, `
		SELECT COUNT(id) FROM pods
		WHERE league_id = $1 AND is_tournament_game = TRUE AND is_championship_game = FALSE
		  AND status = 'published' AND confirmation_status <> 'complete'`,
		leagueID)
}

func (r *postgresPodRepository) CountIncompleteRegularSeason(ctx context.Context, exec SQLExecutor, leagueID int) (int, error) {
	return countPods(ctx, exec, `
		SELECT COUNT(id) FROM pods
		WHERE league_id = $1 AND is_tournament_game = FALSE
		  AND confirmation_status <> 'complete'`,
		leagueID)
}

func (r *postgresPodRepository) ChampionshipExists(ctx context.Context, exec SQLExecutor, leagueID int) (bool, error) {
	var exists bool
	err := exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pods WHERE league_id = $1 AND is_championship_game = TRUE)`,
		leagueID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check championship pod for league %d: %w", leagueID, err)
	}
	return exists, nil
}

func (r *postgresPodRepository) GamesPlayedByPlayer(ctx context.Context, leagueID int) (map[int]int, error) {
	query := `
		SELECT pp.player_id, COUNT(*) AS game_count
		FROM pod_participants pp
		JOIN pods p ON p.id = pp.pod_id
		WHERE p.league_id = $1 AND p.is_tournament_game = TRUE AND p.status = 'published'
		GROUP BY pp.player_id`

	rows, err := r.db.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to count games per player for league %d: %w", leagueID, err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var playerID, games int
		if err := rows.Scan(&playerID, &games); err != nil {
			return nil, fmt.Errorf("failed to scan game count: %w", err)
		}
		counts[playerID] = games
	}
	return counts, rows.Err()
}

func (r *postgresPodRepository) PublishDrafts(ctx context.Context, exec SQLExecutor, leagueID int, publishedAt time.Time) ([]int, error) {
	query := `
		UPDATE pods
		SET status = 'published', published_at = $1
		WHERE league_id = $2 AND status = 'draft'
		RETURNING id`

	rows, err := exec.QueryContext(ctx, query, publishedAt, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to publish draft pods for league %d: %w", leagueID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan published pod id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoDraftPods
	}
	return ids, nil
}

func (r *postgresPodRepository) DeleteDrafts(ctx context.Context, exec SQLExecutor, leagueID int, championshipOnly bool) (int, error) {
	query := `
		DELETE FROM pod_participants
		WHERE pod_id IN (
			SELECT id FROM pods
			WHERE league_id = $1 AND status = 'draft' AND ($2 = FALSE OR is_championship_game = TRUE)
		)`
	if _, err := exec.ExecContext(ctx, query, leagueID, championshipOnly); err != nil {
		return 0, fmt.Errorf("failed to delete draft pod participants for league %d: %w", leagueID, err)
	}

	result, err := exec.ExecContext(ctx, `
		DELETE FROM pods
		WHERE league_id = $1 AND status = 'draft' AND ($2 = FALSE OR is_championship_game = TRUE)`,
		leagueID, championshipOnly)
	if err != nil {
		return 0, fmt.Errorf("failed to delete draft pods for league %d: %w", leagueID, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check deleted draft pods: %w", err)
	}
	return int(deleted), nil
}

// DeleteTournamentPods removes every tournament pod of the league and
// returns the distinct batch ids that were deleted, so callers can clean
// up per-batch artifacts.
func (r *postgresPodRepository) DeleteTournamentPods(ctx context.Context, exec SQLExecutor, leagueID int) ([]string, error) {
	if _, err := exec.ExecContext(ctx, `
		DELETE FROM pod_participants
		WHERE pod_id IN (SELECT id FROM pods WHERE league_id = $1 AND is_tournament_game = TRUE)`,
		leagueID); err != nil {
		return nil, fmt.Errorf("failed to delete tournament pod participants for league %d: %w", leagueID, err)
	}

	rows, err := exec.QueryContext(ctx,
		`DELETE FROM pods WHERE league_id = $1 AND is_tournament_game = TRUE RETURNING batch_id`,
		leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete tournament pods for league %d: %w", leagueID, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var batchIDs []string
	for rows.Next() {
		var batchID string
		if err := rows.Scan(&batchID); err != nil {
			return nil, fmt.Errorf("failed to scan deleted batch id: %w", err)
		}
		if batchID != "" && !seen[batchID] {
			seen[batchID] = true
			batchIDs = append(batchIDs, batchID)
		}
	}
	return batchIDs, rows.Err()
}

// ReplaceSeat only touches draft pods: a pod that was published after the
// caller loaded it no longer matches and surfaces as ErrSeatNotFound.
func (r *postgresPodRepository) ReplaceSeat(ctx context.Context, exec SQLExecutor, podID, playerID, newPlayerID int) error {
	query := `
		UPDATE pod_participants pp
		SET player_id = $1
		WHERE pp.pod_id = $2 AND pp.player_id = $3
		  AND EXISTS (SELECT 1 FROM pods p WHERE p.id = pp.pod_id AND p.status = 'draft')`

	result, err := exec.ExecContext(ctx, query, newPlayerID, podID, playerID)
	if err != nil {
		return fmt.Errorf("failed to replace seat in pod %d: %w", podID, err)
	}
	return checkAffectedRows(result, ErrSeatNotFound)
}

func (r *postgresPodRepository) FindWinner(ctx context.Context, podID int) (*models.PodParticipant, error) {
	query := `
		SELECT pp.pod_id, pp.player_id, u.firstname, u.lastname, pp.turn_order
		FROM pod_participants pp
		JOIN users u ON u.id = pp.player_id
		WHERE pp.pod_id = $1 AND pp.result = 'win'`

	p := &models.PodParticipant{}
	err := r.db.QueryRowContext(ctx, query, podID).Scan(
		&p.PodID, &p.PlayerID, &p.Firstname, &p.Lastname, &p.TurnOrder,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPodNoWinner
		}
		return nil, fmt.Errorf("failed to find winner for pod %d: %w", podID, err)
	}
	return p, nil
}
