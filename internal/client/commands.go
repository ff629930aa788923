package client

import (
	"fmt"
	"strings"

	"github.com/overture-project/overture/internal/protocol"
)

// The command surface: everything the CLI and REST API can ask the
// client to do. All commands require a live session and hand the server
// the authoritative copy; local state only changes where the protocol
// gives no echo back.

var errOffline = fmt.Errorf("not logged in")

// SendMessage delivers a chat line. Targets starting with '#' go to the
// channel, anything else is a private message.
func (c *Client) SendMessage(target, text string) error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	m := protocol.Message{
		Sender:    c.Session.Username(),
		Text:      text,
		Recipient: target,
		SenderID:  c.Session.UserID().Load(),
	}
	if strings.HasPrefix(target, "#") {
		c.Send(protocol.BuildPublicMessage(m))
	} else {
		c.Send(protocol.BuildPrivateMessage(m))
	}
	return nil
}

// JoinChannel asks the server for channel membership. The channel only
// becomes usable once the join confirmation arrives.
func (c *Client) JoinChannel(name string) error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	c.Send(protocol.BuildChannelJoin(name))
	return nil
}

// PartChannel leaves a channel.
func (c *Client) PartChannel(name string) error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	c.Send(protocol.BuildChannelPart(name))
	c.Session.RemoveChannel(name)
	return nil
}

// StartSpectating attaches to another player's live feed. Switching
// targets detaches from the previous host first.
func (c *Client) StartSpectating(userID int32) error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	if c.Session.SpectatedID() == userID {
		return nil
	}
	if c.Session.SpectatedID() != 0 {
		c.Send(protocol.BuildStopSpectating())
		c.Stream.Stop()
	}
	c.Send(protocol.BuildStartSpectating(userID))
	c.Session.SetSpectating(userID)
	c.Stream.Start(userID)
	c.Users.EnqueuePresenceRequest(userID)
	return nil
}

// StopSpectating detaches from the spectated player.
func (c *Client) StopSpectating() error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	if c.Session.SpectatedID() == 0 {
		return nil
	}
	c.Send(protocol.BuildStopSpectating())
	c.Session.SetSpectating(0)
	c.Stream.Stop()
	return nil
}

// OpenLobby subscribes to the multiplayer room listing.
func (c *Client) OpenLobby() error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	c.Send(protocol.BuildJoinLobby())
	c.Session.SetLobbyOpen(true)
	return nil
}

// CloseLobby unsubscribes from the room listing.
func (c *Client) CloseLobby() error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	c.Send(protocol.BuildPartLobby())
	c.Session.SetLobbyOpen(false)
	return nil
}

// CreateRoom asks the server to open a room hosted by us. The room is
// installed once ROOM_CREATED comes back with our id in the host slot.
func (c *Client) CreateRoom(name, password string) error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	if c.Session.InRoom() {
		return fmt.Errorf("already in a room")
	}
	r := protocol.Room{
		Name:     name,
		Password: password,
		HostID:   c.Session.UserID().Load(),
	}
	c.Send(protocol.BuildCreateRoom(&r))
	return nil
}

// JoinRoom asks to join an existing room.
func (c *Client) JoinRoom(roomID uint16, password string) error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	if c.Session.InRoom() {
		return fmt.Errorf("already in a room")
	}
	c.Send(protocol.BuildJoinRoom(roomID, password))
	return nil
}

// LeaveRoom exits the current room.
func (c *Client) LeaveRoom() error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	if !c.Session.InRoom() {
		return nil
	}
	c.Send(protocol.BuildExitRoom())
	c.Session.ClearRoom()
	return nil
}

// AddFriend adds a user to the friends list. The server echoes the new
// list back, which is when the session copy updates.
func (c *Client) AddFriend(userID int32) error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	c.Send(protocol.BuildFriendAdd(userID))
	return nil
}

// RemoveFriend drops a user from the friends list.
func (c *Client) RemoveFriend(userID int32) error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	c.Send(protocol.BuildFriendRemove(userID))
	return nil
}

// SetAction publishes our current activity to the server.
func (c *Client) SetAction(stats protocol.UserStats) error {
	if !c.Session.IsOnline() {
		return errOffline
	}
	stats.UserID = c.Session.UserID().Load()
	c.Send(protocol.BuildChangeAction(stats))
	return nil
}
