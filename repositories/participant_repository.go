package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/escalation-league/tournament-engine/models"
	"github.com/lib/pq"
)

var ErrParticipantNotFound = errors.New("participant not found")

// ParticipantRepository reads the standings data the engine consumes and
// writes only the qualification flag. tournament_points and disqualified are
// owned by the standings provider.
type ParticipantRepository interface {
	// ListActiveByLeague returns non-disqualified participants ordered by
	// tournament_points descending, player_id ascending (the deterministic
	// tie-break used everywhere in the engine).
	ListActiveByLeague(ctx context.Context, leagueID int) ([]*models.Participant, error)
	// ListQualified returns qualified participants in the same order.
	ListQualified(ctx context.Context, leagueID int) ([]*models.Participant, error)
	FindByPlayer(ctx context.Context, leagueID, playerID int) (*models.Participant, error)
	SetQualified(ctx context.Context, exec SQLExecutor, leagueID int, playerIDs []int) error
	ClearQualification(ctx context.Context, exec SQLExecutor, leagueID int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

const participantSelectSQL = `
	SELECT p.league_id, p.player_id, u.firstname, u.lastname,
	       p.tournament_points, p.qualified, p.disqualified
	FROM league_participants p
	JOIN users u ON u.id = p.player_id`

func (r *postgresParticipantRepository) scanParticipants(rows *sql.Rows) ([]*models.Participant, error) {
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(
			&p.LeagueID,
			&p.PlayerID,
			&p.Firstname,
			&p.Lastname,
			&p.TournamentPoints,
			&p.Qualified,
			&p.Disqualified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) ListActiveByLeague(ctx context.Context, leagueID int) ([]*models.Participant, error) {
	query := participantSelectSQL + `
	WHERE p.league_id = $1 AND p.disqualified = FALSE
	ORDER BY p.tournament_points DESC, p.player_id ASC`

	rows, err := r.db.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active participants for league %d: %w", leagueID, err)
	}
	return r.scanParticipants(rows)
}

func (r *postgresParticipantRepository) ListQualified(ctx context.Context, leagueID int) ([]*models.Participant, error) {
	query := participantSelectSQL + `
	WHERE p.league_id = $1 AND p.qualified = TRUE
	ORDER BY p.tournament_points DESC, p.player_id ASC`

	rows, err := r.db.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list qualified participants for league %d: %w", leagueID, err)
	}
	return r.scanParticipants(rows)
}

func (r *postgresParticipantRepository) FindByPlayer(ctx context.Context, leagueID, playerID int) (*models.Participant, error) {
	query := participantSelectSQL + `
	WHERE p.league_id = $1 AND p.player_id = $2`

	p := &models.Participant{}
	err := r.db.QueryRowContext(ctx, query, leagueID, playerID).Scan(
		&p.LeagueID,
		&p.PlayerID,
		&p.Firstname,
		&p.Lastname,
		&p.TournamentPoints,
		&p.Qualified,
		&p.Disqualified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant %d in league %d: %w", playerID, leagueID, err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) SetQualified(ctx context.Context, exec SQLExecutor, leagueID int, playerIDs []int) error {
	query := `
		UPDATE league_participants
		SET qualified = TRUE
		WHERE league_id = $1 AND player_id = ANY($2)`

	if _, err := exec.ExecContext(ctx, query, leagueID, pq.Array(playerIDs)); err != nil {
		return fmt.Errorf("failed to mark qualified participants for league %d: %w", leagueID, err)
	}
	return nil
}

func (r *postgresParticipantRepository) ClearQualification(ctx context.Context, exec SQLExecutor, leagueID int) error {
	query := `UPDATE league_participants SET qualified = FALSE WHERE league_id = $1`
	if _, err := exec.ExecContext(ctx, query, leagueID); err != nil {
		return fmt.Errorf("failed to clear qualification flags for league %d: %w", leagueID, err)
	}
	return nil
}
