package handlers

import (
	"net/http"

	"cellar_monitor/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errUnknownSensor = "unknown sensor kind; use temperature, humidity or luminosity"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Description  Reports whether the poller has data and whether it is stale.
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	d := h.services.Monitoring.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
		"ready":  d.Ready,
		"stale":  d.Stale,
	})
}

// @Summary      Dashboard snapshot
// @Description  Cards, chart series and banner as of the last poll cycle.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  models.Dashboard
// @Router       /api/v1/dashboard [get]
func (h *Handler) getDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Snapshot())
}

// @Summary      One sensor
// @Tags         dashboard
// @Produce      json
// @Param        kind  path  string  true  "Sensor kind"  Enums(temperature,humidity,luminosity)
// @Success      200  {object}  models.SensorView
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/sensors/{kind} [get]
func (h *Handler) getSensor(c *gin.Context) {
	kind, ok := models.ParseSensorKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownSensor})
		return
	}
	view, ok := h.services.Monitoring.Sensor(kind)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownSensor})
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Summary      Alert banner
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  models.BannerView
// @Router       /api/v1/banner [get]
func (h *Handler) getBanner(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Banner())
}
