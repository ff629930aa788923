package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/webapi"
)

// handleLogin starts a connection attempt with the configured credentials.
func (s *Server) handleLogin(c *gin.Context) {
	if s.client.Session.IsOnline() {
		c.JSON(http.StatusConflict, gin.H{"error": "already logged in"})
		return
	}
	s.client.Login()
	c.JSON(http.StatusAccepted, gin.H{"status": "connecting"})
}

// handleLogout tears the session down.
func (s *Server) handleLogout(c *gin.Context) {
	s.client.Logout()
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// handleChat sends a chat message.
func (s *Server) handleChat(c *gin.Context) {
	var req struct {
		Target string `json:"target" binding:"required"`
		Text   string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.client.SendMessage(req.Target, req.Text); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// handleAction publishes the local activity state.
func (s *Server) handleAction(c *gin.Context) {
	var req struct {
		Action   uint8  `json:"action"`
		InfoText string `json:"info_text"`
		MapMD5   string `json:"map_md5"`
		Mods     uint32 `json:"mods"`
		Mode     uint8  `json:"mode"`
		MapID    int32  `json:"map_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.client.SetAction(protocol.UserStats{
		Action:   protocol.Action(req.Action),
		InfoText: req.InfoText,
		MapMD5:   req.MapMD5,
		Mods:     protocol.Mods(req.Mods),
		Mode:     protocol.GameMode(req.Mode),
		MapID:    req.MapID,
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// handleStartSpectating attaches to a player's live feed.
func (s *Server) handleStartSpectating(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		return
	}

	if err := s.client.StartSpectating(userID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "spectating", "user_id": userID})
}

// handleStopSpectating detaches from the spectated player.
func (s *Server) handleStopSpectating(c *gin.Context) {
	if err := s.client.StopSpectating(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// handleOpenLobby subscribes to the room listing.
func (s *Server) handleOpenLobby(c *gin.Context) {
	if err := s.client.OpenLobby(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "lobby_open"})
}

// handleCloseLobby unsubscribes from the room listing.
func (s *Server) handleCloseLobby(c *gin.Context) {
	if err := s.client.CloseLobby(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "lobby_closed"})
}

// handleCreateRoom opens a new multiplayer room hosted by us.
func (s *Server) handleCreateRoom(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.client.CreateRoom(req.Name, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "creating"})
}

// handleJoinRoom joins an existing room.
func (s *Server) handleJoinRoom(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Param("room_id"), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	c.ShouldBindJSON(&req)

	if err := s.client.JoinRoom(uint16(roomID), req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "joining"})
}

// handleLeaveRoom exits the current room.
func (s *Server) handleLeaveRoom(c *gin.Context) {
	if err := s.client.LeaveRoom(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// handleAddFriend adds a friend.
func (s *Server) handleAddFriend(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		return
	}

	if err := s.client.AddFriend(userID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

// handleRemoveFriend removes a friend.
func (s *Server) handleRemoveFriend(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		return
	}

	if err := s.client.RemoveFriend(userID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// handleLeaderboard kicks off a leaderboard fetch. The result travels
// through the dispatch queue; this endpoint only confirms the request.
func (s *Server) handleLeaderboard(c *gin.Context) {
	var req struct {
		MapMD5  string `json:"map_md5" binding:"required"`
		MapFile string `json:"map_file"`
		Mode    uint8  `json:"mode"`
		Mods    uint32 `json:"mods"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The fetch outlives this request; the handler context would cancel it.
	err := s.client.Web.RequestLeaderboard(context.Background(), req.MapMD5, req.MapFile,
		protocol.GameMode(req.Mode), protocol.Mods(req.Mods))
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// handleReplayDownload kicks off a replay download.
func (s *Server) handleReplayDownload(c *gin.Context) {
	scoreID, err := strconv.ParseInt(c.Param("score_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid score id"})
		return
	}

	var req struct {
		Mode uint8 `json:"mode"`
	}
	c.ShouldBindJSON(&req)

	if err := s.client.Web.RequestReplay(context.Background(), scoreID, protocol.GameMode(req.Mode)); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "downloading"})
}

// handleSubmitScore uploads a finished play to the score server and, on
// success, journals it locally.
func (s *Server) handleSubmitScore(c *gin.Context) {
	var req struct {
		MapMD5     string `json:"map_md5" binding:"required"`
		Mode       uint8  `json:"mode"`
		Mods       uint32 `json:"mods"`
		Rank       string `json:"rank"`
		Passed     bool   `json:"passed"`
		Num300     uint16 `json:"count_300"`
		Num100     uint16 `json:"count_100"`
		Num50      uint16 `json:"count_50"`
		NumGeki    uint16 `json:"count_geki"`
		NumKatu    uint16 `json:"count_katu"`
		NumMiss    uint16 `json:"count_miss"`
		TotalScore int32  `json:"total_score"`
		MaxCombo   uint16 `json:"max_combo"`
		Perfect    bool   `json:"perfect"`
		ReplayB64  string `json:"replay_b64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var replay []byte
	if req.ReplayB64 != "" {
		var err error
		replay, err = base64.StdEncoding.DecodeString(req.ReplayB64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid replay encoding"})
			return
		}
	}

	err := s.client.Web.SubmitScore(context.Background(), webapi.Submission{
		MapMD5: req.MapMD5,
		Mode:   protocol.GameMode(req.Mode),
		Mods:   protocol.Mods(req.Mods),
		Rank:   req.Rank,
		Passed: req.Passed,
		Score: protocol.ScoreFrame{
			Num300:     req.Num300,
			Num100:     req.Num100,
			Num50:      req.Num50,
			NumGeki:    req.NumGeki,
			NumKatu:    req.NumKatu,
			NumMiss:    req.NumMiss,
			TotalScore: req.TotalScore,
			MaxCombo:   req.MaxCombo,
			IsPerfect:  req.Perfect,
		},
		ReplayData: replay,
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "submitting"})
}

// handleMarkAsRead clears a channel's unread flag on the server; the
// completion journals the read time locally.
func (s *Server) handleMarkAsRead(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.client.Web.MarkAsRead(context.Background(), req.Channel); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// handleBeatmapsetInfo kicks off a beatmapset metadata fetch.
func (s *Server) handleBeatmapsetInfo(c *gin.Context) {
	setID, err := strconv.ParseInt(c.Param("set_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid set id"})
		return
	}

	if err := s.client.Web.RequestBeatmapInfo(context.Background(), int32(setID)); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// handleOAuthLogin starts polling the token endpoint with a device code
// obtained from the browser flow. The session logs in automatically once
// the user approves.
func (s *Server) handleOAuthLogin(c *gin.Context) {
	var req struct {
		DeviceCode string `json:"device_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.client.Session.IsOnline() {
		c.JSON(http.StatusConflict, gin.H{"error": "already logged in"})
		return
	}

	s.client.Web.PollOAuthToken(context.Background(), req.DeviceCode)
	c.JSON(http.StatusAccepted, gin.H{"status": "polling"})
}

// parseUserID parses the user_id path parameter, writing the error
// response itself on failure.
func parseUserID(c *gin.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, err
	}
	return int32(id), nil
}
