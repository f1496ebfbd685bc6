// Package api serves route searches over the latest occupancy snapshot.
package api

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"gtfs-occupancy/internal/snapshot"
)

// SearchResponse is the body of every search endpoint. Error is empty on
// success.
type SearchResponse struct {
	Dataset string         `json:"dataset"`
	Count   int            `json:"count"`
	Rows    []snapshot.Row `json:"rows"`
	Error   string         `json:"error"`
}

type Server struct {
	searcher *snapshot.Searcher
	catalog  snapshot.Catalog
}

func NewServer(searcher *snapshot.Searcher, catalog snapshot.Catalog) *Server {
	return &Server{searcher: searcher, catalog: catalog}
}

// App builds the fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "gtfs-occupancy",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
	}))

	app.Get("/health", s.Health)
	app.Get("/v1/search", s.Search)
	app.Post("/buscar", s.SearchForm)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "endpoint not found"})
	})
	return app
}

func (s *Server) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()
	if err := s.catalog.Ping(ctx); err != nil {
		log.Printf("health: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// Search handles GET /v1/search?linha=<substring>&limit=<n>.
func (s *Server) Search(c *fiber.Ctx) error {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(SearchResponse{Rows: []snapshot.Row{}, Error: "invalid limit"})
		}
		limit = n
	}
	return s.respond(c, snapshot.Query{RouteSubstr: c.Query("linha"), Limit: limit})
}

// SearchForm handles the form post with a single "linha" field.
func (s *Server) SearchForm(c *fiber.Ctx) error {
	return s.respond(c, snapshot.Query{RouteSubstr: c.FormValue("linha")})
}

func (s *Server) respond(c *fiber.Ctx, q snapshot.Query) error {
	res := s.searcher.Search(c.UserContext(), q)
	status := fiber.StatusOK
	switch res.Outcome {
	case snapshot.OutcomeNoSnapshots:
		status = fiber.StatusNotFound
	case snapshot.OutcomeError:
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(SearchResponse{
		Dataset: res.Dataset,
		Count:   res.Count,
		Rows:    res.Rows,
		Error:   res.Error,
	})
}
