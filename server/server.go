// Package server exposes per-session simulation snapshots over HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clearae/edflow/sim"
	"github.com/clearae/edflow/sim/session"
)

// StatusResponse is the vitals snapshot plus the alert-log size.
type StatusResponse struct {
	*sim.Vitals
	TotalAlerts int `json:"total_alerts"`
}

// FacilityView is a facility's static record augmented with its live census.
type FacilityView struct {
	sim.Facility
	CurrentCensus int `json:"current_census"`
}

// Server wires the session manager to the HTTP surface.
type Server struct {
	manager *session.Manager
	ref     *sim.RefData
}

// New creates a server over the manager, using the embedded reference data
// for the facilities view.
func New(manager *session.Manager) *Server {
	return &Server{manager: manager, ref: sim.DefaultRefData()}
}

// Router builds the gin engine with permissive CORS and the three
// read-only endpoints. All session state is created on demand.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	router.GET("/status", s.handleStatus)
	router.GET("/alerts", s.handleAlerts)
	router.GET("/facilities", s.handleFacilities)
	return router
}

// corsMiddleware allows any origin; the surface is read-only.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// sessionFrom resolves the required session_id query parameter. A missing id
// is a client error; an unknown id creates a fresh session.
func (s *Server) sessionFrom(c *gin.Context) (*session.Session, bool) {
	id := c.Query("session_id")
	if id == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": "query parameter session_id is required",
		})
		return nil, false
	}
	return s.manager.GetOrCreate(id), true
}

func (s *Server) handleStatus(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		Vitals:      sess.Vitals(),
		TotalAlerts: sess.AlertCount(),
	})
}

func (s *Server) handleAlerts(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Alerts())
}

func (s *Server) handleFacilities(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return
	}
	census := sess.ActiveCensus()
	out := make([]FacilityView, 0, len(s.ref.Facilities))
	for _, f := range s.ref.Facilities {
		out = append(out, FacilityView{
			Facility:      f,
			CurrentCensus: census[f.ID],
		})
	}
	c.JSON(http.StatusOK, out)
}
