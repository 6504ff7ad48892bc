package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const defaultLeaderboardLimit = 10

type leaderboardEntry struct {
	Rank     int    `json:"rank"`
	MemberID string `json:"member_id"`
	XP       int    `json:"xp"`
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	communityID := c.Param("id")
	if communityID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing community id")
	}

	limit := defaultLeaderboardLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	standings, err := s.app.Leaderboard(c.Request().Context(), communityID, limit)
	if err != nil {
		return fmt.Errorf("failed to read leaderboard: %w", err)
	}

	entries := make([]leaderboardEntry, 0, len(standings))
	for i, standing := range standings {
		entries = append(entries, leaderboardEntry{
			Rank:     i + 1,
			MemberID: standing.MemberID,
			XP:       standing.XP,
		})
	}

	response := map[string]any{
		"community_id": communityID,
		"entries":      entries,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
