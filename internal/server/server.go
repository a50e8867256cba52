// Package server exposes the camera rig over HTTP. Every route translates
// a request into bus messages and reports the correlated responses; no
// device state lives here.
package server

import (
	"errors"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/camctl/internal/bus"
	"github.com/danmuck/camctl/internal/camera"
	"github.com/danmuck/camctl/internal/observability"
)

var (
	ErrCameraUnknown = errors.New("server: unknown camera")
	ErrActionUnknown = errors.New("server: unknown action")
)

// Config carries everything the HTTP surface needs from the rig config.
type Config struct {
	Name        string
	Addr        string
	CorsOrigins []string
	Cameras     []string
}

// Server fronts one rig's bus.
type Server struct {
	name    string
	addr    string
	cameras []string
	started time.Time

	bus    *bus.Bus
	router *gin.Engine
}

// New builds the rig server around an already-wired bus. The camera list
// is the set of controller names attached to that bus.
func New(cfg Config, b *bus.Bus) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	cameras := append([]string(nil), cfg.Cameras...)
	sort.Strings(cameras)

	return &Server{
		name:    cfg.Name,
		addr:    cfg.Addr,
		cameras: cameras,
		started: time.Now(),
		bus:     b,
		router:  r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve registers routes and blocks on the listener.
func (s *Server) Serve() error {
	s.RegisterRoutes()
	return s.router.Run(s.addr)
}

func (s *Server) hasCamera(name string) bool {
	for _, c := range s.cameras {
		if c == name {
			return true
		}
	}
	return false
}

// post sends one message and waits for every controller to handle it.
func (s *Server) post(msgType string, data any) (*bus.Message, error) {
	d, err := s.bus.Post(bus.NewMessage(s.name, msgType, data))
	if err != nil {
		return nil, err
	}
	if err := d.Wait(); err != nil {
		return d.Msg, err
	}
	return d.Msg, nil
}

// functionality queries one camera and returns its single response.
func (s *Server) functionality(name string) (camera.Functionality, error) {
	if !s.hasCamera(name) {
		return camera.Functionality{}, ErrCameraUnknown
	}
	msg, err := s.post(camera.TypeGetFunctionality, camera.TargetPayload{Camera: name})
	if err != nil {
		return camera.Functionality{}, err
	}
	for _, resp := range msg.Responses() {
		if fn, ok := resp.Data.(camera.FunctionalityResponse); ok {
			return fn.Functionality, nil
		}
	}
	return camera.Functionality{}, ErrCameraUnknown
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
