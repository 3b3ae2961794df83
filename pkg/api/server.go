// Package api provides the REST status/control surface for the
// timecode host: one route group for routing status and control per
// engine, plus a device-registry view for the "●"/"[ENGINE N]"
// ownership markers.
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/fiverecords/SuperTimecodeConverter/internal/engine"
	"github.com/fiverecords/SuperTimecodeConverter/internal/host"
	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

// @title Super Timecode Converter API
// @version 1.0
// @description Status and routing control for a multi-engine timecode host
// @host localhost:8080
// @BasePath /api/v1

// Server wraps a *host.Host with the HTTP routes that expose it.
type Server struct {
	host   *host.Host
	log    *zap.Logger
	engine *gin.Engine
}

// New builds a Server over h. A nil logger behaves like zap.NewNop().
func New(h *host.Host, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{host: h, log: log}
	s.engine = gin.Default()
	s.engine.Use(corsMiddleware())

	s.engine.GET("/health", s.healthCheck)

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/health", s.healthCheck)
		v1.GET("/engines", s.listEngines)
		v1.POST("/engines", s.addEngine)
		v1.DELETE("/engines/:index", s.removeEngine)
		v1.GET("/engines/:index", s.getEngine)
		v1.PUT("/engines/:index/input", s.setActiveInput)
		v1.PUT("/engines/:index/ltc-fps-override", s.overrideLTCFPS)
		v1.PUT("/engines/:index/outputs/:kind", s.setOutput)
		v1.GET("/devices", s.listDeviceOwners)
	}

	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return s
}

// Run starts the HTTP server and blocks.
func (s *Server) Run(port int) error {
	return s.engine.Run(fmt.Sprintf(":%d", port))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "stc",
	})
}

type outputView struct {
	Enabled bool   `json:"enabled"`
	Offset  int    `json:"offset"`
	Status  string `json:"status"`
}

type engineView struct {
	Index             int        `json:"index"`
	Primary           bool       `json:"primary"`
	ActiveInput       string     `json:"active_input"`
	FPS               string     `json:"fps"`
	FPSConvertEnabled bool       `json:"fps_convert_enabled"`
	OutputFPS         string     `json:"output_fps"`
	Timecode          string     `json:"timecode"`
	Active            bool       `json:"active"`
	MTCOut            outputView `json:"mtc_out"`
	ArtNetOut         outputView `json:"artnet_out"`
	LTCOut            outputView `json:"ltc_out"`
}

func inputSourceName(s engine.InputSource) string {
	switch s {
	case engine.InputMTC:
		return "mtc"
	case engine.InputArtNet:
		return "artnet"
	case engine.InputSystemTime:
		return "systemtime"
	case engine.InputLTC:
		return "ltc"
	default:
		return "unknown"
	}
}

func inputSourceFromName(name string) (engine.InputSource, bool) {
	switch name {
	case "mtc":
		return engine.InputMTC, true
	case "artnet":
		return engine.InputArtNet, true
	case "systemtime":
		return engine.InputSystemTime, true
	case "ltc":
		return engine.InputLTC, true
	default:
		return 0, false
	}
}

func describeEngine(index int, primary bool, e *engine.Engine) engineView {
	snap := e.Snapshot()
	return engineView{
		Index:             index,
		Primary:           primary,
		ActiveInput:       inputSourceName(snap.ActiveInput),
		FPS:               snap.FPS.String(),
		FPSConvertEnabled: snap.FPSConvertEnabled,
		OutputFPS:         snap.OutputFPS.String(),
		Timecode:          snap.CurrentTC.String(),
		Active:            snap.Active,
		MTCOut:            outputView{snap.MTCOutput.Enabled, snap.MTCOutput.Offset, e.MTCOut().Status().Text()},
		ArtNetOut:         outputView{snap.ArtNetOutput.Enabled, snap.ArtNetOutput.Offset, e.ArtNetOut().Status().Text()},
		LTCOut:            outputView{snap.LTCOutput.Enabled, snap.LTCOutput.Offset, e.LTCOut().Status().Text()},
	}
}

// listEngines godoc
// @Summary List every engine's routing status
// @Tags engines
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/engines [get]
func (s *Server) listEngines(c *gin.Context) {
	primary := s.host.PrimaryIndex()
	views := make([]engineView, 0)
	for i, e := range s.host.Engines() {
		views = append(views, describeEngine(i, i == primary, e))
	}
	c.JSON(http.StatusOK, gin.H{"engines": views})
}

func (s *Server) engineAt(c *gin.Context) (int, *engine.Engine, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid engine index"})
		return 0, nil, false
	}
	engines := s.host.Engines()
	if index < 0 || index >= len(engines) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such engine"})
		return 0, nil, false
	}
	return index, engines[index], true
}

// getEngine godoc
// @Summary Get one engine's routing status
// @Tags engines
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/engines/{index} [get]
func (s *Server) getEngine(c *gin.Context) {
	index, e, ok := s.engineAt(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, describeEngine(index, s.host.IsPrimary(index), e))
}

// addEngine godoc
// @Summary Add a new, non-primary engine
// @Tags engines
// @Produce json
// @Success 201 {object} map[string]int
// @Failure 409 {object} map[string]string
// @Router /api/v1/engines [post]
func (s *Server) addEngine(c *gin.Context) {
	if _, err := s.host.AddEngine(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"count": len(s.host.Engines())})
}

// removeEngine godoc
// @Summary Remove an engine, promoting the next primary if needed
// @Tags engines
// @Produce json
// @Success 204
// @Failure 409 {object} map[string]string
// @Router /api/v1/engines/{index} [delete]
func (s *Server) removeEngine(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid engine index"})
		return
	}
	if err := s.host.RemoveEngine(index); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type setInputRequest struct {
	Source string `json:"source" binding:"required"`
}

// setActiveInput godoc
// @Summary Change an engine's active routing input
// @Tags engines
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/engines/{index}/input [put]
func (s *Server) setActiveInput(c *gin.Context) {
	index, e, ok := s.engineAt(c)
	if !ok {
		return
	}
	var req setInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	src, ok := inputSourceFromName(req.Source)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown input source: " + req.Source})
		return
	}
	e.SetActiveInput(src)
	s.log.Info("api: active input changed", zap.Int("engine", index), zap.String("source", req.Source))
	c.JSON(http.StatusOK, describeEngine(index, s.host.IsPrimary(index), e))
}

type overrideFPSRequest struct {
	FPSIndex int `json:"fps_index" binding:"gte=0"`
}

// overrideLTCFPS godoc
// @Summary Manually pin the ambiguous LTC frame rate
// @Tags engines
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/engines/{index}/ltc-fps-override [put]
func (s *Server) overrideLTCFPS(c *gin.Context) {
	index, e, ok := s.engineAt(c)
	if !ok {
		return
	}
	var req overrideFPSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FPSIndex >= len(tc.Rates) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fps_index out of range"})
		return
	}
	e.OverrideLTCFPS(tc.Rates[req.FPSIndex])
	c.JSON(http.StatusOK, describeEngine(index, s.host.IsPrimary(index), e))
}

type setOutputRequest struct {
	Enabled *bool `json:"enabled"`
	Offset  *int  `json:"offset"`
}

// setOutput godoc
// @Summary Enable/disable an output or change its frame offset
// @Tags engines
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/engines/{index}/outputs/{kind} [put]
func (s *Server) setOutput(c *gin.Context) {
	index, e, ok := s.engineAt(c)
	if !ok {
		return
	}
	kind := c.Param("kind")

	var req setOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !e.SetOutput(kind, req.Enabled, req.Offset) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown output kind: " + kind})
		return
	}
	c.JSON(http.StatusOK, describeEngine(index, s.host.IsPrimary(index), e))
}

type deviceOwnerView struct {
	Device string `json:"device"`
	Engine int    `json:"engine"`
	Kind   string `json:"kind"`
}

// listDeviceOwners godoc
// @Summary List the audio devices currently claimed by a handler
// @Tags devices
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/devices [get]
func (s *Server) listDeviceOwners(c *gin.Context) {
	devices := make([]deviceOwnerView, 0)
	seen := make(map[string]bool)
	for _, e := range s.host.Engines() {
		for _, name := range []string{e.LTCIn().Status().Detail, e.LTCOut().Status().Detail, e.AudioThru().DeviceName()} {
			if name == "" || seen[name] {
				continue
			}
			if owner, ok := s.host.Devices().OwnerOf(name); ok {
				devices = append(devices, deviceOwnerView{Device: name, Engine: owner.EngineIndex, Kind: owner.Kind})
				seen[name] = true
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}
