package server

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/tsops/pulseboard/internal/dashboard"
	"github.com/tsops/pulseboard/internal/requestid"
)

// handleState returns the whole application state.
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.refresher.State())
}

func (s *Server) handleSpaces(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"spaces": s.refresher.State().Spaces})
}

func (s *Server) handleProjects(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"projects": s.refresher.State().Projects})
}

func (s *Server) handleComments(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"comments": s.refresher.State().Comments})
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	state := s.refresher.State()
	if state.Analysis == nil {
		return problemResponse(c, fiber.StatusNotFound, "no_analysis",
			"No AI analysis available yet; trigger a manual refresh in detail scope")
	}
	return c.JSON(state.Analysis)
}

type refreshRequest struct {
	Scope   string `json:"scope"`
	SpaceID string `json:"space_id"`
}

// handleRefresh switches scope if requested and kicks off a manual refresh.
// The refresh runs in the background; the caller polls /state for results.
func (s *Server) handleRefresh(c *fiber.Ctx) error {
	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return problemResponse(c, fiber.StatusBadRequest, "invalid_body",
				"Invalid request body: "+err.Error())
		}
	}

	switch req.Scope {
	case "":
		// keep current scope
	case string(dashboard.ScopeHome):
		s.refresher.SetScope(dashboard.ScopeHome, "")
	case string(dashboard.ScopeDetail):
		if req.SpaceID == "" {
			return problemResponse(c, fiber.StatusBadRequest, "missing_space",
				"space_id is required for detail scope")
		}
		s.refresher.SetScope(dashboard.ScopeDetail, req.SpaceID)
	default:
		return problemResponse(c, fiber.StatusBadRequest, "invalid_scope",
			"Unknown scope: "+req.Scope)
	}

	// Detached from the request context: an in-flight refresh is never
	// aborted by the client going away. The correlation ID carries over so
	// refresh logs trace back to the API call that triggered the run.
	ctx := requestid.With(context.Background(), requestid.From(c.UserContext()))
	go s.refresher.Refresh(ctx, true)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "refreshing"})
}
