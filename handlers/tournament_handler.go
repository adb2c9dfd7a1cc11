package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/escalation-league/tournament-engine/models"
	"github.com/escalation-league/tournament-engine/services"
)

type TournamentHandler struct {
	tournaments *services.TournamentService
	drafts      *services.DraftService
}

func NewTournamentHandler(tournaments *services.TournamentService, drafts *services.DraftService) *TournamentHandler {
	return &TournamentHandler{
		tournaments: tournaments,
		drafts:      drafts,
	}
}

// EndRegularSeasonHandler handles POST /api/leagues/{leagueID}/tournament/end-regular-season
func (h *TournamentHandler) EndRegularSeasonHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.tournaments.EndRegularSeason(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"qualification": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GeneratePodsHandler godoc
// @Summary Generate a draft batch of tournament pods
// @Tags tournament
// @Produce json
// @Param leagueID path int true "League ID"
// @Success 201 {object} services.DraftResult
// @Router /api/leagues/{leagueID}/tournament/generate-pods [post]
func (h *TournamentHandler) GeneratePodsHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.tournaments.GeneratePods(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"draft": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListDraftsHandler handles GET /api/leagues/{leagueID}/tournament/draft-pods
func (h *TournamentHandler) ListDraftsHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	batch, err := h.drafts.ListDrafts(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"draft": batch}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteDraftsHandler handles DELETE /api/leagues/{leagueID}/tournament/draft-pods.
// With ?championship_only=true only the draft championship pod is removed.
func (h *TournamentHandler) DeleteDraftsHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	championshipOnly := r.URL.Query().Get("championship_only") == "true"

	deleted, err := h.drafts.DeleteDrafts(r.Context(), leagueID, championshipOnly)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"deleted": deleted}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type swapPlayersInput struct {
	Pod1ID    int `json:"pod_1_id"`
	Player1ID int `json:"player_1_id"`
	Pod2ID    int `json:"pod_2_id"`
	Player2ID int `json:"player_2_id"`
}

// SwapPlayersHandler handles POST /api/leagues/{leagueID}/tournament/swap-players
func (h *TournamentHandler) SwapPlayersHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input swapPlayersInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Pod1ID <= 0 || input.Pod2ID <= 0 || input.Player1ID <= 0 || input.Player2ID <= 0 {
		badRequestResponse(w, r, errors.New("pod and player ids must be positive"))
		return
	}

	batch, err := h.drafts.SwapPlayers(r.Context(), leagueID, input.Pod1ID, input.Player1ID, input.Pod2ID, input.Player2ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"draft": batch}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PublishPodsHandler godoc
// @Summary Publish the draft batch to players
// @Tags tournament
// @Produce json
// @Param leagueID path int true "League ID"
// @Success 200 {object} services.PublishResult
// @Router /api/leagues/{leagueID}/tournament/publish-pods [post]
func (h *TournamentHandler) PublishPodsHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.drafts.Publish(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"published": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ChampionshipQualifiersHandler handles GET /api/leagues/{leagueID}/tournament/championship-qualifiers
func (h *TournamentHandler) ChampionshipQualifiersHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	qualifiers, err := h.tournaments.GetChampionshipQualifiers(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"qualifiers": qualifiers}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartChampionshipHandler handles POST /api/leagues/{leagueID}/tournament/start-championship
func (h *TournamentHandler) StartChampionshipHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.tournaments.StartChampionship(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"championship": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CompleteHandler handles POST /api/leagues/{leagueID}/tournament/complete
func (h *TournamentHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	champion, err := h.tournaments.CompleteTournament(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"champion": champion}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResetHandler handles POST /api/leagues/{leagueID}/tournament/reset
func (h *TournamentHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournaments.ResetTournament(r.Context(), leagueID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "tournament reset"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StatusHandler handles GET /api/leagues/{leagueID}/tournament
func (h *TournamentHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	status, err := h.tournaments.GetStatus(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": status}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StandingsHandler handles GET /api/leagues/{leagueID}/tournament/standings
func (h *TournamentHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participants, err := h.tournaments.GetStandings(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	standings := make([]rankedParticipant, 0, len(participants))
	for i, p := range participants {
		standings = append(standings, rankedParticipant{Rank: i + 1, Participant: p})
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type rankedParticipant struct {
	Rank int `json:"rank"`
	*models.Participant
}

// PodsHandler handles GET /api/leagues/{leagueID}/tournament/pods with an optional
// round query parameter.
func (h *TournamentHandler) PodsHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var round *int
	if roundStr := r.URL.Query().Get("round"); roundStr != "" {
		value, err := strconv.Atoi(roundStr)
		if err != nil || value <= 0 {
			badRequestResponse(w, r, errors.New("invalid round query parameter"))
			return
		}
		round = &value
	}

	pods, err := h.tournaments.ListPublishedPods(r.Context(), leagueID, round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	byRound := make(map[int][]*models.Pod)
	for _, pod := range pods {
		byRound[pod.Round] = append(byRound[pod.Round], pod)
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"pods": pods, "by_round": byRound}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
