package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/events"
)

// handleGetConfig returns the full current configuration. The stored
// password hash is masked; it can be set but never read back.
func (s *Server) handleGetConfig(c *gin.Context) {
	serverData := s.cfg.GetServerData()
	if serverData.PasswordMD5 != "" {
		serverData.PasswordMD5 = "********"
	}

	c.JSON(http.StatusOK, gin.H{
		"server_data":      serverData,
		"application_data": s.cfg.GetApplicationData(),
	})
}

// handleSetServerConfig updates the server/account configuration.
func (s *Server) handleSetServerConfig(c *gin.Context) {
	var serverData config.ServerData
	if err := c.ShouldBindJSON(&serverData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A masked or omitted password keeps the stored one.
	if serverData.PasswordMD5 == "" || serverData.PasswordMD5 == "********" {
		serverData.PasswordMD5 = s.cfg.GetServerData().PasswordMD5
	}

	s.cfg.SetServerData(serverData)

	if err := s.cfg.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	s.eventBus.Emit(c.Request.Context(), events.Event{
		Type:   events.EventConfigChanged,
		Source: "api",
		Payload: events.ConfigChangedPayload{
			Key: "server_data",
		},
	})

	log.Info().Msg("API: server data updated")

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// handleSetAppConfig updates application configuration.
func (s *Server) handleSetAppConfig(c *gin.Context) {
	var appData config.ApplicationData
	if err := c.ShouldBindJSON(&appData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.cfg.SetApplicationData(appData)

	if err := s.cfg.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	s.eventBus.Emit(c.Request.Context(), events.Event{
		Type:   events.EventConfigChanged,
		Source: "api",
		Payload: events.ConfigChangedPayload{
			Key: "application_data",
		},
	})

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
