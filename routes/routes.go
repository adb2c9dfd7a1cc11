package routes

import (
	"github.com/escalation-league/tournament-engine/handlers"
	"github.com/escalation-league/tournament-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Dependencies struct {
	Tournament *handlers.TournamentHandler
	WebSocket  *handlers.WebSocketHandler
	Auth       *middleware.Authenticator

	CORSAllowedOrigins []string
}

func InitRoutes(deps Dependencies) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	router.Route("/api/leagues/{leagueID}/tournament", func(r chi.Router) {
		// Public tournament views.
		r.Get("/", deps.Tournament.StatusHandler)
		r.Get("/standings", deps.Tournament.StandingsHandler)
		r.Get("/pods", deps.Tournament.PodsHandler)

		// Admin-only tournament management.
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Authenticate)
			r.Use(middleware.Authorize("admin"))

			r.Post("/end-regular-season", deps.Tournament.EndRegularSeasonHandler)
			r.Post("/generate-pods", deps.Tournament.GeneratePodsHandler)
			r.Get("/draft-pods", deps.Tournament.ListDraftsHandler)
			r.Delete("/draft-pods", deps.Tournament.DeleteDraftsHandler)
			r.Post("/swap-players", deps.Tournament.SwapPlayersHandler)
			r.Post("/publish-pods", deps.Tournament.PublishPodsHandler)
			r.Get("/championship-qualifiers", deps.Tournament.ChampionshipQualifiersHandler)
			r.Post("/start-championship", deps.Tournament.StartChampionshipHandler)
			r.Post("/complete", deps.Tournament.CompleteHandler)
			r.Post("/reset", deps.Tournament.ResetHandler)
		})
	})

	router.Get("/ws/leagues/{leagueID}", deps.WebSocket.ServeWs)

	return router
}
