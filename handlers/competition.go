package handlers

import (
	"skill-arena/middleware"
	"skill-arena/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCompetitionRoutes(app *fiber.App, competitionService *services.CompetitionService, lifecycleService *services.LifecycleService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Competition CRUD and discovery
	secured.Post("/competitions", competitionService.CreateCompetition)
	secured.Get("/competitions", competitionService.ListOpenCompetitions)
	secured.Get("/competitions/mine", competitionService.ListMyCompetitions)
	secured.Get("/competitions/:code", competitionService.GetCompetitionByCode)

	// Lifecycle operations
	secured.Post("/competitions/:code/join", lifecycleService.JoinCompetition)
	secured.Post("/competitions/:code/ready", lifecycleService.ReadyUpHandler)
	secured.Post("/competitions/:code/score", lifecycleService.SubmitScoreHandler)
	secured.Post("/competitions/:code/complete", lifecycleService.CompleteCompetition)
	secured.Post("/competitions/:code/cancel", lifecycleService.CancelCompetition)
	secured.Get("/competitions/:code/leaderboard", lifecycleService.GetStandings)
}
