package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type VersionHandler struct {
	version string
}

func NewVersionHandler(version string) *VersionHandler {
	return &VersionHandler{version: version}
}

type versionResponse struct {
	Version string `json:"version"`
}

// Version reports the running build.
//
// @Summary      Build version
// @Tags         meta
// @Produce      json
// @Success      200  {object}  versionResponse
// @Router       /version [get]
func (h *VersionHandler) Version(c echo.Context) error {
	return c.JSON(http.StatusOK, versionResponse{Version: h.version})
}
