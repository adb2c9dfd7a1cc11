package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/escalation-league/tournament-engine/models"
)

var ErrLeagueNotFound = errors.New("league not found")

type LeagueRepository interface {
	FindByID(ctx context.Context, id int) (*models.League, error)
	UpdatePhase(ctx context.Context, exec SQLExecutor, id int, phase models.LeaguePhase) error
	SetRegularSeasonLock(ctx context.Context, exec SQLExecutor, id int, lockedAt *time.Time) error
	SetChampion(ctx context.Context, exec SQLExecutor, id int, championID *int) error
}

type postgresLeagueRepository struct {
	db *sql.DB
}

func NewPostgresLeagueRepository(db *sql.DB) LeagueRepository {
	return &postgresLeagueRepository{db: db}
}

func (r *postgresLeagueRepository) FindByID(ctx context.Context, id int) (*models.League, error) {
	query := `
		SELECT id, name, league_phase, regular_season_locked_at, champion_id
		FROM leagues
		WHERE id = $1`

	league := &models.League{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&league.ID,
		&league.Name,
		&league.Phase,
		&league.RegularSeasonLockedAt,
		&league.ChampionID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to find league %d: %w", id, err)
	}
	return league, nil
}

func (r *postgresLeagueRepository) UpdatePhase(ctx context.Context, exec SQLExecutor, id int, phase models.LeaguePhase) error {
	query := `UPDATE leagues SET league_phase = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, phase, id)
	if err != nil {
		return fmt.Errorf("failed to update league %d phase: %w", id, err)
	}
	return checkAffectedRows(result, ErrLeagueNotFound)
}

func (r *postgresLeagueRepository) SetRegularSeasonLock(ctx context.Context, exec SQLExecutor, id int, lockedAt *time.Time) error {
	query := `UPDATE leagues SET regular_season_locked_at = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, lockedAt, id)
	if err != nil {
		return fmt.Errorf("failed to set regular season lock for league %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrLeagueNotFound)
}

func (r *postgresLeagueRepository) SetChampion(ctx context.Context, exec SQLExecutor, id int, championID *int) error {
	query := `UPDATE leagues SET champion_id = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, championID, id)
	if err != nil {
		return fmt.Errorf("failed to set champion for league %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrLeagueNotFound)
}
