package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// envelope is the JSend body of every /api response.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// filterParams are the query parameters the event listings understand.
var filterParams = []string{"category", "matched", "from", "to", "page", "page_size"}

func respond(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

func reject(c echo.Context, status int, message string) error {
	return c.JSON(status, envelope{Status: "fail", Message: message})
}

func rejectFilter(c echo.Context, fieldErrors map[string]string) error {
	return c.JSON(http.StatusBadRequest, envelope{
		Status:  "fail",
		Message: "Invalid event filter",
		Data: map[string]any{
			"invalid_filters": fieldErrors,
			"accepted":        filterParams,
		},
	})
}

// noSnapshot answers listings before the first run has persisted anything.
func noSnapshot(c echo.Context) error {
	return c.JSON(http.StatusNotFound, envelope{
		Status:  "fail",
		Message: "No snapshot available",
		Data: map[string]any{
			"hint": `capture one with "gigradar run"`,
		},
	})
}

func storeFailure(c echo.Context, action string) error {
	return c.JSON(http.StatusInternalServerError, envelope{
		Status:  "error",
		Message: "Failed to " + action,
		Code:    http.StatusInternalServerError,
	})
}
