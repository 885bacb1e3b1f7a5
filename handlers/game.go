package handlers

import (
	"skill-arena/middleware"
	"skill-arena/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, gameService *services.GameService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/games", gameService.ListGames)
	secured.Get("/games/:id", gameService.GetGameByID)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/games", gameService.CreateGame)
	admin.Patch("/games/:id", gameService.UpdateGame)
	admin.Delete("/games/:id", gameService.RetireGame)
}
