package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/gpgnet-mock/internal/session"
)

// snapshot fetches the session state, writing an error response on failure.
func (s *Server) snapshot(c *gin.Context) (session.Snapshot, bool) {
	snap, err := s.source.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return session.Snapshot{}, false
	}
	return snap, true
}

func (s *Server) handleGetSession(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleGetSummary renders the same table printed at shutdown.
func (s *Server) handleGetSummary(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	session.WriteSummary(&buf, snap)
	c.String(http.StatusOK, buf.String())
}

func (s *Server) handleGetPlayers(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}

	players := snap.Players
	if c.Query("connected") == "true" {
		players = players[:0:0]
		for _, p := range snap.Players {
			if p.Connected {
				players = append(players, p)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   len(players),
		"players": players,
	})
}

func (s *Server) handleGetPlayer(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid player id"})
		return
	}

	snap, ok := s.snapshot(c)
	if !ok {
		return
	}

	p, found := snap.Player(uint32(id))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}
