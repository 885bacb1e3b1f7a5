package handlers

import (
	"skill-arena/middleware"
	"skill-arena/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSocialRoutes(app *fiber.App, friendService *services.FriendService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Put("/profile", friendService.UpsertMyProfile)
	secured.Get("/profile/:user_id", friendService.GetProfile)

	secured.Get("/friends", friendService.ListFriends)
	secured.Post("/friends/requests", friendService.RequestFriend)
	secured.Get("/friends/requests", friendService.ListPendingRequests)
	secured.Post("/friends/requests/:id/accept", friendService.AcceptFriend)

	secured.Post("/competitions/:code/invites", friendService.InviteToCompetition)
	secured.Get("/invites", friendService.ListMyInvites)
}
