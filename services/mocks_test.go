package services

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/escalation-league/tournament-engine/models"
	"github.com/escalation-league/tournament-engine/pairing"
	"github.com/escalation-league/tournament-engine/repositories"
	"github.com/escalation-league/tournament-engine/storage"
)

// newMockDB backs the service's transaction handling with a fake
// connection, so committed paths run end to end while repository
// effects stay observable through the mocks above.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// expectLeagueLock expects a transaction that opens with the per-league
// advisory lock, granted or denied.
func expectLeagueLock(mock sqlmock.Sqlmock, leagueID int, granted bool) {
	mock.ExpectBegin()
	mock.ExpectQuery("pg_try_advisory_xact_lock").
		WithArgs(int64(leagueID)).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_xact_lock"}).AddRow(granted))
}

type mockLeagueRepo struct {
	findByID func(ctx context.Context, id int) (*models.League, error)

	phaseUpdates []models.LeaguePhase
	championSets []*int
	lockSets     []*time.Time
}

func (m *mockLeagueRepo) FindByID(ctx context.Context, id int) (*models.League, error) {
	return m.findByID(ctx, id)
}

func (m *mockLeagueRepo) UpdatePhase(ctx context.Context, exec repositories.SQLExecutor, id int, phase models.LeaguePhase) error {
	m.phaseUpdates = append(m.phaseUpdates, phase)
	return nil
}

func (m *mockLeagueRepo) SetRegularSeasonLock(ctx context.Context, exec repositories.SQLExecutor, id int, lockedAt *time.Time) error {
	m.lockSets = append(m.lockSets, lockedAt)
	return nil
}

func (m *mockLeagueRepo) SetChampion(ctx context.Context, exec repositories.SQLExecutor, id int, championID *int) error {
	m.championSets = append(m.championSets, championID)
	return nil
}

type mockParticipantRepo struct {
	listActiveByLeague func(ctx context.Context, leagueID int) ([]*models.Participant, error)
	listQualified      func(ctx context.Context, leagueID int) ([]*models.Participant, error)
	findByPlayer       func(ctx context.Context, leagueID, playerID int) (*models.Participant, error)

	clearedLeagues []int
}

func (m *mockParticipantRepo) ListActiveByLeague(ctx context.Context, leagueID int) ([]*models.Participant, error) {
	return m.listActiveByLeague(ctx, leagueID)
}

func (m *mockParticipantRepo) ListQualified(ctx context.Context, leagueID int) ([]*models.Participant, error) {
	return m.listQualified(ctx, leagueID)
}

func (m *mockParticipantRepo) FindByPlayer(ctx context.Context, leagueID, playerID int) (*models.Participant, error) {
	return m.findByPlayer(ctx, leagueID, playerID)
}

func (m *mockParticipantRepo) SetQualified(ctx context.Context, exec repositories.SQLExecutor, leagueID int, playerIDs []int) error {
	return nil
}

func (m *mockParticipantRepo) ClearQualification(ctx context.Context, exec repositories.SQLExecutor, leagueID int) error {
	m.clearedLeagues = append(m.clearedLeagues, leagueID)
	return nil
}

type mockPodRepo struct {
	listDrafts                   func(ctx context.Context, leagueID int) ([]*models.Pod, error)
	findDraft                    func(ctx context.Context, leagueID, podID int) (*models.Pod, error)
	findChampionship             func(ctx context.Context, leagueID int) (*models.Pod, error)
	findWinner                   func(ctx context.Context, podID int) (*models.PodParticipant, error)
	countDrafts                  func(ctx context.Context, leagueID int) (int, error)
	countPublishedQualifying     func(ctx context.Context, leagueID int) (int, error)
	countIncompleteQualifying    func(ctx context.Context, leagueID int) (int, error)
	countIncompleteRegularSeason func(ctx context.Context, leagueID int) (int, error)
	championshipExists           func(ctx context.Context, leagueID int) (bool, error)
	publishDrafts                func(ctx context.Context, leagueID int) ([]int, error)
	deleteTournamentPods         func(ctx context.Context, leagueID int) ([]string, error)

	createdDrafts   []*models.Pod
	deletedLeagues  []int
	replacedSeats   [][3]int
	deleteDraftRows int
}

func (m *mockPodRepo) CreateDraft(ctx context.Context, exec repositories.SQLExecutor, pod *models.Pod) error {
	m.createdDrafts = append(m.createdDrafts, pod)
	return nil
}

func (m *mockPodRepo) ListDrafts(ctx context.Context, leagueID int) ([]*models.Pod, error) {
	if m.listDrafts == nil {
		return nil, nil
	}
	return m.listDrafts(ctx, leagueID)
}

func (m *mockPodRepo) FindDraft(ctx context.Context, leagueID, podID int) (*models.Pod, error) {
	return m.findDraft(ctx, leagueID, podID)
}

func (m *mockPodRepo) ListPublished(ctx context.Context, leagueID int, round *int) ([]*models.Pod, error) {
	return nil, nil
}

func (m *mockPodRepo) FindChampionship(ctx context.Context, leagueID int) (*models.Pod, error) {
	if m.findChampionship == nil {
		return nil, repositories.ErrPodNotFound
	}
	return m.findChampionship(ctx, leagueID)
}

func (m *mockPodRepo) CountDrafts(ctx context.Context, exec repositories.SQLExecutor, leagueID int) (int, error) {
	if m.countDrafts == nil {
		return 0, nil
	}
	return m.countDrafts(ctx, leagueID)
}

func (m *mockPodRepo) CountQualifying(ctx context.Context, exec repositories.SQLExecutor, leagueID int) (int, error) {
	return 0, nil
}

func (m *mockPodRepo) CountPublishedQualifying(ctx context.Context, exec repositories.SQLExecutor, leagueID int) (int, error) {
	if m.countPublishedQualifying == nil {
		return 0, nil
	}
	return m.countPublishedQualifying(ctx, leagueID)
}

func (m *mockPodRepo) CountIncompleteQualifying(ctx context.Context, exec repositories.SQLExecutor, leagueID int) (int, error) {
	if m.countIncompleteQualifying == nil {
		return 0, nil
	}
	return m.countIncompleteQualifying(ctx, leagueID)
}

func (m *mockPodRepo) CountIncompleteRegularSeason(ctx context.Context, exec repositories.SQLExecutor, leagueID int) (int, error) {
	if m.countIncompleteRegularSeason == nil {
		return 0, nil
	}
	return m.countIncompleteRegularSeason(ctx, leagueID)
}

func (m *mockPodRepo) ChampionshipExists(ctx context.Context, exec repositories.SQLExecutor, leagueID int) (bool, error) {
	if m.championshipExists == nil {
		return false, nil
	}
	return m.championshipExists(ctx, leagueID)
}

func (m *mockPodRepo) GamesPlayedByPlayer(ctx context.Context, leagueID int) (map[int]int, error) {
	return nil, nil
}

func (m *mockPodRepo) PublishDrafts(ctx context.Context, exec repositories.SQLExecutor, leagueID int, publishedAt time.Time) ([]int, error) {
	if m.publishDrafts == nil {
		return nil, repositories.ErrNoDraftPods
	}
	return m.publishDrafts(ctx, leagueID)
}

func (m *mockPodRepo) DeleteDrafts(ctx context.Context, exec repositories.SQLExecutor, leagueID int, championshipOnly bool) (int, error) {
	return m.deleteDraftRows, nil
}

func (m *mockPodRepo) DeleteTournamentPods(ctx context.Context, exec repositories.SQLExecutor, leagueID int) ([]string, error) {
	m.deletedLeagues = append(m.deletedLeagues, leagueID)
	if m.deleteTournamentPods == nil {
		return nil, nil
	}
	return m.deleteTournamentPods(ctx, leagueID)
}

func (m *mockPodRepo) ReplaceSeat(ctx context.Context, exec repositories.SQLExecutor, podID, playerID, newPlayerID int) error {
	m.replacedSeats = append(m.replacedSeats, [3]int{podID, playerID, newPlayerID})
	return nil
}

func (m *mockPodRepo) FindWinner(ctx context.Context, podID int) (*models.PodParticipant, error) {
	return m.findWinner(ctx, podID)
}

type mockGenerator struct {
	generate func(ctx context.Context, params pairing.GenerateParams) (*pairing.Result, error)
}

func (m *mockGenerator) Generate(ctx context.Context, params pairing.GenerateParams) (*pairing.Result, error) {
	return m.generate(ctx, params)
}

func (m *mockGenerator) GetName() string { return "mock" }

type mockUploader struct {
	uploadedKeys []string
	deletedKeys  []string
	deleteErr    error
}

func (m *mockUploader) Upload(ctx context.Context, key, contentType string, body io.Reader) (*storage.UploadResult, error) {
	m.uploadedKeys = append(m.uploadedKeys, key)
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.com/" + key}, nil
}

func (m *mockUploader) Delete(ctx context.Context, key string) error {
	m.deletedKeys = append(m.deletedKeys, key)
	return m.deleteErr
}

func (m *mockUploader) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func leagueInPhase(phase models.LeaguePhase) *mockLeagueRepo {
	return &mockLeagueRepo{
		findByID: func(ctx context.Context, id int) (*models.League, error) {
			return &models.League{ID: id, Name: "Test League", Phase: phase}, nil
		},
	}
}

func participantsWithPoints(points ...int) []*models.Participant {
	out := make([]*models.Participant, len(points))
	for i, p := range points {
		out[i] = &models.Participant{
			LeagueID:         1,
			PlayerID:         i + 1,
			Firstname:        "Player",
			TournamentPoints: p,
		}
	}
	return out
}
