package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/camctl/internal/camera"
	"github.com/danmuck/camctl/internal/params"
)

// actionTypes maps URL action names onto target-addressed message types.
var actionTypes = map[string]string{
	"start":   camera.TypeStartCamera,
	"stop":    camera.TypeStopCamera,
	"shutter": camera.TypeShutterToggle,
}

func (s *Server) RegisterRoutes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"rig":     s.name,
			"version": "0.0.1",
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.started).String(),
			"rig":     s.name,
			"cameras": len(s.cameras),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/cameras", s.handleListCameras)
	r.GET("/cameras/:camera/functionality", s.handleFunctionality)
	r.POST("/cameras/:camera/actions/:action", s.handleAction)

	r.POST("/film/start", s.handleFilmStart)
	r.POST("/film/timing", s.handleFilmTiming)
	r.POST("/film/stop", s.handleFilmStop)

	r.POST("/parameters", s.handleNewParameters)
}

func (s *Server) handleListCameras(c *gin.Context) {
	list := make([]gin.H, 0, len(s.cameras))
	for _, name := range s.cameras {
		fn, err := s.functionality(name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		list = append(list, functionalityJSON(fn))
	}
	c.JSON(http.StatusOK, gin.H{"cameras": list})
}

func (s *Server) handleFunctionality(c *gin.Context) {
	fn, err := s.functionality(c.Param("camera"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, functionalityJSON(fn))
}

func (s *Server) handleAction(c *gin.Context) {
	name := c.Param("camera")
	if !s.hasCamera(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrCameraUnknown.Error()})
		return
	}
	msgType, ok := actionTypes[c.Param("action")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrActionUnknown.Error()})
		return
	}

	if _, err := s.post(msgType, camera.TargetPayload{Camera: name}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "camera": name, "type": msgType})
}

func (s *Server) handleFilmStart(c *gin.Context) {
	var req struct {
		FixedLength bool `json:"fixed_length"`
		Frames      int  `json:"frames"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := s.post(camera.TypeStartFilm, camera.StartFilmPayload{
		Settings: camera.FilmSettings{FixedLength: req.FixedLength, Frames: req.Frames},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "fixed_length": req.FixedLength, "frames": req.Frames})
}

// handleFilmTiming resolves the named camera's functionality and announces
// it as the film's time base.
func (s *Server) handleFilmTiming(c *gin.Context) {
	var req struct {
		Camera string `json:"camera"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fn, err := s.functionality(req.Camera)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if _, err := s.post(camera.TypeFilmTiming, camera.FilmTimingPayload{Functionality: fn}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time_base": fn.TimeBase})
}

func (s *Server) handleFilmStop(c *gin.Context) {
	msg, err := s.post(camera.TypeStopFilm, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	snapshots := gin.H{}
	for _, resp := range msg.Responses() {
		if pr, ok := resp.Data.(camera.ParametersResponse); ok {
			snapshots[resp.Source] = parametersJSON(pr.Parameters)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "parameters": snapshots})
}

// handleNewParameters builds one tree from the request body, with a named
// sub-tree per camera, and broadcasts it for controllers to apply. Each
// driver replaces its live set with its sub-tree, so the request must name
// every camera; a partial update would wipe the unmentioned ones.
func (s *Server) handleNewParameters(c *gin.Context) {
	var req struct {
		Cameras map[string]map[string]any `json:"cameras"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Cameras) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no camera parameters given"})
		return
	}
	for name := range req.Cameras {
		if !s.hasCamera(name) {
			c.JSON(http.StatusNotFound, gin.H{"error": ErrCameraUnknown.Error() + ": " + name})
			return
		}
	}

	tree := params.New(s.name)
	var missing []string
	for _, name := range s.cameras {
		attrs, ok := req.Cameras[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		sub := params.New(name)
		for k, v := range attrs {
			sub.Set(k, v)
		}
		if err := tree.Attach(sub); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "parameters must cover every camera",
			"missing": missing,
		})
		return
	}

	msg, err := s.post(camera.TypeNewParameters, camera.NewParametersPayload{Parameters: tree})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	applied := gin.H{}
	for _, resp := range msg.Responses() {
		if nr, ok := resp.Data.(camera.NewParametersResponse); ok {
			applied[resp.Source] = parametersJSON(nr.Parameters)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "parameters": applied})
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrCameraUnknown) || errors.Is(err, ErrActionUnknown):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func functionalityJSON(fn camera.Functionality) gin.H {
	return gin.H{
		"camera":      fn.Camera,
		"time_base":   fn.TimeBase,
		"master":      fn.Master,
		"has_shutter": fn.HasShutter,
	}
}

func parametersJSON(p *params.ParameterSet) gin.H {
	if p == nil {
		return gin.H{}
	}
	out := gin.H{}
	for k, v := range p.Attrs {
		out[k] = v
	}
	return out
}
