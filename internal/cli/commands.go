// Package cli implements the interactive command-line interface for
// Overture: session control, chat, spectating and multiplayer commands
// against the running client.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/overture-project/overture/internal/client"
	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	client   *client.Client
}

// NewCLI creates a new CLI handler.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, cl *client.Client) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		client:   cl,
	}
}

// Start begins the interactive CLI loop.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nOverture CLI ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────────")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("overture> ")
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if err := c.execute(ctx, cmd, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "login":
		c.client.Login()
		fmt.Println("Connecting...")
	case "logout":
		c.client.Logout()
		fmt.Println("Logged out")
	case "chat", "msg":
		return c.cmdChat(args)
	case "users", "who":
		c.printUsers()
	case "spectate", "spec":
		return c.cmdSpectate(args)
	case "stopspec":
		return c.client.StopSpectating()
	case "lobby":
		return c.cmdLobby(args)
	case "create":
		return c.cmdCreateRoom(args)
	case "join":
		return c.cmdJoinRoom(args)
	case "leave":
		return c.client.LeaveRoom()
	case "room":
		c.printRoom()
	case "friend":
		return c.cmdFriend(args)
	case "board":
		return c.cmdLeaderboard(ctx, args)
	case "replay":
		return c.cmdReplay(ctx, args)
	case "read":
		return c.cmdMarkRead(ctx, args)
	case "mapset":
		return c.cmdMapset(ctx, args)
	case "reconnect":
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventReconnect,
			Source: "cli",
		})
		fmt.Println("Reconnection initiated")
	case "setconfig":
		return c.cmdSetConfig(args)
	case "quit", "exit", "q":
		fmt.Println("Shutting down Overture...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println("\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                     Overture CLI Commands                    ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Println("║  status             Show session status                      ║")
	fmt.Println("║  login / logout     Connect or disconnect                    ║")
	fmt.Println("║  chat <target> msg  Send a chat message (#chan or user)      ║")
	fmt.Println("║  users              List online users                        ║")
	fmt.Println("║  spectate <id>      Watch a player                           ║")
	fmt.Println("║  stopspec           Stop watching                            ║")
	fmt.Println("║  lobby open|close   Toggle the room listing                  ║")
	fmt.Println("║  create <name>      Create a multiplayer room                ║")
	fmt.Println("║  join <id> [pw]     Join a multiplayer room                  ║")
	fmt.Println("║  leave / room       Leave or inspect the current room        ║")
	fmt.Println("║  friend add|del <id> Manage the friends list                 ║")
	fmt.Println("║  board <md5>        Fetch a map leaderboard                  ║")
	fmt.Println("║  replay <score_id>  Download a replay                        ║")
	fmt.Println("║  read <channel>     Mark a channel as read                   ║")
	fmt.Println("║  mapset <set_id>    Fetch beatmapset info                    ║")
	fmt.Println("║  reconnect          Force a reconnect                        ║")
	fmt.Println("║  setconfig <k> <v>  Update a configuration value             ║")
	fmt.Println("║  quit               Shutdown Overture                        ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printStatus displays the session summary.
func (c *CLI) printStatus() {
	sess := c.client.Session
	cached, online := c.client.Users.Count()

	fmt.Printf("\n  Status:      %s\n", sess.Status())
	fmt.Printf("  User:        %s (#%d)\n", sess.Username(), sess.UserID().Load())
	fmt.Printf("  Endpoint:    %s\n", sess.Endpoint())
	fmt.Printf("  Online:      %d users (%d cached)\n", online, cached)
	if id := sess.SpectatedID(); id != 0 {
		fmt.Printf("  Spectating:  #%d\n", id)
	}
	if room, joined := sess.Room(); joined {
		fmt.Printf("  Room:        %s (#%d)\n", room.Name, room.ID)
	}
	fmt.Println()
}

// printUsers displays the online user list in a formatted table.
func (c *CLI) printUsers() {
	online := c.client.Users.OnlineUsers()

	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"ID", "Name", "Action", "Rank"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, u := range online {
		rank := "-"
		if u.GlobalRank > 0 {
			rank = fmt.Sprintf("#%d", u.GlobalRank)
		}
		tw.Append([]string{
			fmt.Sprintf("%d", u.ID),
			u.Name,
			u.Stats.Action.String(),
			rank,
		})
	}

	tw.Render()
	fmt.Println()
}

// printRoom displays the current room and its slots.
func (c *CLI) printRoom() {
	room, joined := c.client.Session.Room()
	if !joined {
		fmt.Println("Not in a room")
		return
	}

	fmt.Printf("\n  Room:      %s (#%d)\n", room.Name, room.ID)
	fmt.Printf("  Host:      #%d\n", room.HostID)
	fmt.Printf("  Map:       %s\n", room.MapName)
	fmt.Printf("  Players:   %d (%d ready)\n", room.NbPlayers, room.NbReady())
	fmt.Printf("  Running:   %v\n", room.InProgress)

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Slot", "Player", "Team", "Score"})
	tw.SetBorder(true)

	for i := range room.Slots {
		slot := &room.Slots[i]
		if !slot.HasPlayer() {
			continue
		}
		score := "-"
		if slot.LastScore != nil {
			score = fmt.Sprintf("%d", slot.LastScore.TotalScore)
		}
		tw.Append([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("#%d", slot.PlayerID),
			fmt.Sprintf("%d", slot.Team),
			score,
		})
	}

	tw.Render()
	fmt.Println()
}

func (c *CLI) cmdChat(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: chat <target> <message>")
	}
	return c.client.SendMessage(args[0], strings.Join(args[1:], " "))
}

func (c *CLI) cmdSpectate(args []string) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}
	return c.client.StartSpectating(id)
}

func (c *CLI) cmdLobby(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: lobby open|close")
	}
	switch args[0] {
	case "open":
		return c.client.OpenLobby()
	case "close":
		return c.client.CloseLobby()
	default:
		return fmt.Errorf("usage: lobby open|close")
	}
}

func (c *CLI) cmdCreateRoom(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: create <name>")
	}
	return c.client.CreateRoom(strings.Join(args, " "), "")
}

func (c *CLI) cmdJoinRoom(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: join <room_id> [password]")
	}
	roomID, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid room id: %s", args[0])
	}
	password := ""
	if len(args) > 1 {
		password = args[1]
	}
	return c.client.JoinRoom(uint16(roomID), password)
}

func (c *CLI) cmdFriend(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: friend add|del <user_id>")
	}
	id, err := parseIDArg(args[1:])
	if err != nil {
		return err
	}
	switch args[0] {
	case "add":
		return c.client.AddFriend(id)
	case "del", "remove":
		return c.client.RemoveFriend(id)
	default:
		return fmt.Errorf("usage: friend add|del <user_id>")
	}
}

func (c *CLI) cmdLeaderboard(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: board <map_md5>")
	}
	if err := c.client.Web.RequestLeaderboard(ctx, args[0], "", protocol.ModeStandard, 0); err != nil {
		return err
	}
	fmt.Println("Leaderboard requested")
	return nil
}

func (c *CLI) cmdReplay(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: replay <score_id>")
	}
	scoreID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid score id: %s", args[0])
	}
	if err := c.client.Web.RequestReplay(ctx, scoreID, protocol.ModeStandard); err != nil {
		return err
	}
	fmt.Println("Replay download started")
	return nil
}

func (c *CLI) cmdMarkRead(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: read <channel>")
	}
	if err := c.client.Web.MarkAsRead(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Marked %s as read\n", args[0])
	return nil
}

func (c *CLI) cmdMapset(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: mapset <set_id>")
	}
	setID, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid set id: %s", args[0])
	}
	if err := c.client.Web.RequestBeatmapInfo(ctx, int32(setID)); err != nil {
		return err
	}
	fmt.Println("Beatmapset info requested")
	return nil
}

func (c *CLI) cmdSetConfig(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: setconfig <key> <value>")
	}

	key := args[0]
	value := strings.Join(args[1:], " ")

	if err := c.cfg.UpdateServerField(key, value); err != nil {
		return err
	}

	if err := c.cfg.Save(); err != nil {
		return err
	}

	fmt.Printf("Config updated: %s = %s\n", key, value)
	return nil
}

func parseIDArg(args []string) (int32, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("user id required")
	}
	id, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %s", args[0])
	}
	return int32(id), nil
}
