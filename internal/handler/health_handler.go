package handler

import (
	"net/http"

	"order-service/pkg/database"

	"github.com/labstack/echo/v4"
)

// Health reports service and database liveness
func Health(c echo.Context) error {
	db := database.GetDB()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Ping(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{
					"status":   "degraded",
					"database": "unreachable",
				})
			}
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
