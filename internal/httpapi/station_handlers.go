package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/backend/internal/errors"
	"github.com/zfogg/sidechain/backend/internal/kernel"
	"github.com/zfogg/sidechain/backend/internal/repository"
	"github.com/zfogg/sidechain/backend/internal/util"
)

type stationHandlers struct {
	k *kernel.Kernel
}

func newStationHandlers(k *kernel.Kernel) *stationHandlers {
	return &stationHandlers{k: k}
}

// list returns every active station from the store. It does not report
// which of them the Scheduler has admitted.
func (h *stationHandlers) list(c *gin.Context) {
	stations, err := h.k.Stations().ListActive(c.Request.Context())
	if err != nil {
		util.RespondWithAPIError(c, errors.InternalError("failed to list stations"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stations": stations})
}

func (h *stationHandlers) get(c *gin.Context) {
	id := c.Param("id")
	if err := util.ValidateUUID(id); err != nil {
		util.RespondWithAPIError(c, errors.BadRequest(err.Error()))
		return
	}

	station, err := h.k.Stations().GetStation(c.Request.Context(), id)
	if err != nil {
		if err == repository.ErrStationNotFound {
			util.RespondWithAPIError(c, errors.NotFound("station"))
			return
		}
		util.RespondWithAPIError(c, errors.InternalError("failed to load station"))
		return
	}
	c.JSON(http.StatusOK, station)
}

// stop evicts a station from the Scheduler's running set without
// deactivating it in the store — an operator re-admits it by restarting
// the service, since the Scheduler admits stations only once, at startup.
func (h *stationHandlers) stop(c *gin.Context) {
	id := c.Param("id")
	if err := util.ValidateUUID(id); err != nil {
		util.RespondWithAPIError(c, errors.BadRequest(err.Error()))
		return
	}

	h.k.Scheduler().StopStation(id)
	c.JSON(http.StatusOK, gin.H{"stopped": id})
}

func (h *stationHandlers) wsMetrics(c *gin.Context) {
	h.k.WebSocket().HandleMetrics(c)
}
