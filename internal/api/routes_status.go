package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/overture-project/overture/internal/util"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "overture",
		"version": "1.0.0",
	})
}

// handleStatus returns the current session state.
func (s *Server) handleStatus(c *gin.Context) {
	sess := s.client.Session
	sysInfo := util.GetSystemInfo()

	room, joined := sess.Room()

	c.JSON(http.StatusOK, gin.H{
		"status":        sess.Status().String(),
		"user_id":       sess.UserID().Load(),
		"username":      sess.Username(),
		"endpoint":      sess.Endpoint(),
		"in_room":       joined,
		"room_id":       room.ID,
		"spectating":    sess.SpectatedID(),
		"lobby_open":    sess.LobbyOpen(),
		"privileges":    sess.Privileges(),
		"menu_icon":     sess.MainMenuIcon(),
		"platform":      sysInfo.Platform,
		"hostname":      sysInfo.Hostname,
	})
}

// handleUsers returns the online user list.
func (s *Server) handleUsers(c *gin.Context) {
	online := s.client.Users.OnlineUsers()
	cached, _ := s.client.Users.Count()

	list := make([]gin.H, 0, len(online))
	for _, u := range online {
		list = append(list, gin.H{
			"id":     u.ID,
			"name":   u.Name,
			"action": u.Stats.Action.String(),
			"rank":   u.GlobalRank,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"online": list,
		"cached": cached,
	})
}

// handleUser returns one cached user entry. Unknown ids queue a
// presence request so a later poll can succeed.
func (s *Server) handleUser(c *gin.Context) {
	id, err := parseUserID(c)
	if err != nil {
		return
	}

	u, ok := s.client.Users.Lookup(id)
	if !ok || !u.HasPresence {
		s.client.Users.EnqueuePresenceRequest(id)
		c.JSON(http.StatusNotFound, gin.H{"error": "user not cached, presence requested"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          u.ID,
		"name":        u.Name,
		"online":      s.client.Users.IsOnline(u.ID),
		"country":     u.CountryID,
		"utc_offset":  u.UTCOffset,
		"rank":        u.GlobalRank,
		"action":      u.Stats.Action.String(),
		"info_text":   u.Stats.InfoText,
		"mode":        u.Stats.Mode,
		"total_score": u.Stats.TotalScore,
		"accuracy":    u.Stats.Accuracy,
		"play_count":  u.Stats.Plays,
		"pp":          u.Stats.PP,
		"is_friend":   s.client.Session.IsFriend(u.ID),
	})
}

// handleChannels returns the available chat channels with their local
// read state.
func (s *Server) handleChannels(c *gin.Context) {
	channels := s.client.Session.Channels()

	list := make([]gin.H, 0, len(channels))
	for _, ch := range channels {
		entry := gin.H{
			"name":    ch.Name,
			"topic":   ch.Topic,
			"members": ch.NbMembers,
		}
		if s.beatmaps != nil {
			if at, ok, err := s.beatmaps.LastRead(ch.Name); err == nil && ok {
				entry["last_read"] = at
			}
		}
		list = append(list, entry)
	}

	c.JSON(http.StatusOK, gin.H{"channels": list})
}

// handleBeatmapLookup returns the cached record for one map hash.
func (s *Server) handleBeatmapLookup(c *gin.Context) {
	if s.beatmaps == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no local database"})
		return
	}

	m, ok, err := s.beatmaps.LookupByMD5(c.Param("md5"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "map not cached"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// handleSetOffset stores a user-tuned audio offset for one map.
func (s *Server) handleSetOffset(c *gin.Context) {
	if s.beatmaps == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no local database"})
		return
	}

	var req struct {
		Offset int `json:"offset"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.beatmaps.SetOnlineOffset(c.Param("md5"), req.Offset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stored"})
}

// handleRoom returns the current multiplayer room snapshot.
func (s *Server) handleRoom(c *gin.Context) {
	room, joined := s.client.Session.Room()
	if !joined {
		c.JSON(http.StatusOK, gin.H{"in_room": false})
		return
	}

	slots := make([]gin.H, 0, len(room.Slots))
	for i, slot := range room.Slots {
		if !slot.HasPlayer() {
			continue
		}
		entry := gin.H{
			"slot":      i,
			"player_id": slot.PlayerID,
			"status":    slot.Status,
			"team":      slot.Team,
			"mods":      slot.Mods,
		}
		if slot.LastScore != nil {
			entry["score"] = slot.LastScore.TotalScore
			entry["combo"] = slot.LastScore.CurrentCombo
		}
		slots = append(slots, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"in_room":     true,
		"room_id":     room.ID,
		"name":        room.Name,
		"host_id":     room.HostID,
		"in_progress": room.InProgress,
		"map_name":    room.MapName,
		"map_id":      room.MapID,
		"is_host":     s.client.Session.IsHost(),
		"slots":       slots,
	})
}

// handleSpectateStatus returns the live spectating state.
func (s *Server) handleSpectateStatus(c *gin.Context) {
	stream := s.client.Stream

	c.JSON(http.StatusOK, gin.H{
		"host_id":   stream.HostID(),
		"active":    stream.Active(),
		"gameplay":  stream.GameplayActive(),
		"frames":    len(stream.Frames()),
		"fellows":   stream.Fellows(),
		"watchers":  stream.Watchers(),
		"sequence":  stream.LastSequence(),
	})
}

// handleToasts returns the recent notification backlog.
func (s *Server) handleToasts(c *gin.Context) {
	s.mu.Lock()
	toasts := make([]toastEntry, len(s.toasts))
	copy(toasts, s.toasts)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"toasts": toasts})
}

// handleSubmissions returns the recent score submission journal.
func (s *Server) handleSubmissions(c *gin.Context) {
	if s.beatmaps == nil {
		c.JSON(http.StatusOK, gin.H{"submissions": []any{}})
		return
	}

	records, err := s.beatmaps.RecentSubmissions(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": records})
}
