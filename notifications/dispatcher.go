package notifications

// Dispatcher translates tournament events into websocket broadcasts.
type Dispatcher struct {
	hub *Hub
}

func NewDispatcher(hub *Hub) *Dispatcher {
	return &Dispatcher{hub: hub}
}

type podsPublishedPayload struct {
	LeagueID        int   `json:"league_id"`
	PodIDs          []int `json:"pod_ids"`
	HasChampionship bool  `json:"has_championship"`
}

// PodsPublished tells everyone watching the league that a new schedule
// batch just went live.
func (d *Dispatcher) PodsPublished(leagueID int, podIDs []int, hasChampionship bool) {
	room := LeagueRoom(leagueID)
	d.hub.BroadcastToRoom(room, Message{
		Type:   "POD_PUBLISHED",
		RoomID: room,
		Payload: podsPublishedPayload{
			LeagueID:        leagueID,
			PodIDs:          podIDs,
			HasChampionship: hasChampionship,
		},
	})
}
