package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

func getUserIDFromContext(c echo.Context) uint {
	if claims := middleware.CurrentUser(c); claims != nil {
		return claims.UserID
	}
	return 0
}

// actorName is the caller's username as carried in the token
func actorName(c echo.Context) string {
	if claims := middleware.CurrentUser(c); claims != nil && claims.Username != "" {
		return claims.Username
	}
	return "Someone"
}

func requireUser(c echo.Context) (uint, error) {
	id := getUserIDFromContext(c)
	if id == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

func parseUintParam(c echo.Context, name, label string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+label+" ID")
	}
	return uint(id), nil
}

func pagination(c echo.Context, defaultLimit, maxLimit int) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return page, limit
}

// respond writes the standard success envelope
func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// respondPage writes the success envelope plus pagination meta
func respondPage(c echo.Context, data interface{}, page, limit int, hasNext bool) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    data,
		"meta": echo.Map{
			"currentPage":     page,
			"itemsPerPage":    limit,
			"hasNextPage":     hasNext,
			"hasPreviousPage": page > 1,
		},
	})
}

// lookupError maps repository lookups onto 404/500
func lookupError(err error, what string) error {
	if errors.Is(err, repositories.ErrNotFound) || errors.Is(err, repositories.ErrInvalidID) {
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func uniqueUints(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
