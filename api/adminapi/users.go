package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// registerUsers mounts the management of admin API users
func registerUsers(r fiber.Router, users model.UsersStore) {
	g := r.Group("/users")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			list, err := users.List()
			if err != nil {
				return sendError(c, err)
			}
			return c.JSON(list)
		},
	)
	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req model.NewUser
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(errorInvalidRequest("invalid body"))
			}
			if req.Username == "" || req.Password == "" {
				return c.Status(fiber.StatusBadRequest).JSON(errorInvalidRequest("username and password are required"))
			}
			u, err := users.Create(req)
			if err != nil {
				return sendError(c, err)
			}
			return c.Status(fiber.StatusCreated).JSON(u)
		},
	)
	g.Get(
		"/:username", func(c *fiber.Ctx) error {
			u, err := users.Get(c.Params("username"))
			if err != nil {
				return sendError(c, err)
			}
			return c.JSON(u)
		},
	)
	g.Put(
		"/:username", func(c *fiber.Ctx) error {
			var req model.UserUpdate
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(errorInvalidRequest("invalid body"))
			}
			if req.Password != nil && *req.Password == "" {
				return c.Status(fiber.StatusBadRequest).JSON(errorInvalidRequest("password cannot be empty"))
			}
			u, err := users.Update(c.Params("username"), req)
			if err != nil {
				return sendError(c, err)
			}
			return c.JSON(u)
		},
	)
	g.Delete(
		"/:username", func(c *fiber.Ctx) error {
			if err := users.Delete(c.Params("username")); err != nil {
				return sendError(c, err)
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)
}
