package handlers

import (
	"skill-arena/middleware"
	"skill-arena/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, walletService *services.WalletService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/wallet", walletService.GetMyWallet)
	secured.Get("/wallet/ledger", walletService.GetMyLedger)
	secured.Post("/wallet/deposits", walletService.InitiateDeposit)
	secured.Post("/wallet/withdrawals", walletService.Withdraw)
	secured.Post("/wallet/transfers", walletService.TransferToFriend)
}
