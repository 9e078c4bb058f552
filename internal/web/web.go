// Package web serves the two static page shells. All data on the pages is
// fetched client-side from the API; nothing is templated server-side.
package web

import (
	"embed"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
)

//go:embed static
var assets embed.FS

// Register wires the page routes and static assets into the Fiber app.
func Register(app *fiber.App) {
	app.Get("/", page("static/index.html"))
	app.Get("/dashboard/", page("static/dashboard.html"))

	app.Use("/static", filesystem.New(filesystem.Config{
		Root:       http.FS(assets),
		PathPrefix: "static",
	}))
}

func page(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := assets.ReadFile(name)
		if err != nil {
			return fiber.ErrInternalServerError
		}
		c.Type("html", "utf-8")
		return c.Send(data)
	}
}
