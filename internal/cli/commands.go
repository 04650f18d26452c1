// Package cli implements the interactive console for Scout: the query
// commands, the server browser table, and heartbeat control.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/scout-project/scout/internal/config"
	"github.com/scout-project/scout/internal/events"
	"github.com/scout-project/scout/internal/nat"
	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/query"
)

// CLI provides the interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	engine   *query.Engine
	nat      *nat.Client
}

// NewCLI creates a new CLI handler. The NAT client may be nil when the
// profile is disabled.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, engine *query.Engine, natClient *nat.Client) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		engine:   engine,
		nat:      natClient,
	}
}

// Start begins the interactive CLI loop.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nScout CLI ready. Type 'help' for available commands.")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("scout> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			parts := strings.Fields(line)
			if err := c.execute(ctx, strings.ToLower(parts[0]), parts[1:]); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "servers", "list", "s":
		c.printServers()
	case "lan":
		return c.cmdQueryLAN(args)
	case "masters", "query":
		return c.cmdQueryMasters(args)
	case "favorites", "favs":
		c.engine.QueryFavorites()
	case "refresh":
		return c.cmdQuerySingle(args)
	case "gametypes":
		c.engine.QueryMasterGameTypes()
	case "cancel":
		c.engine.Cancel()
	case "stop":
		c.engine.Stop()
	case "heartbeat":
		return c.cmdHeartbeat(args)
	case "invite":
		return c.cmdInvite(args)
	case "arrange":
		return c.cmdArrange(args)
	case "quit", "exit", "q":
		fmt.Println("Shutting down Scout...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	fmt.Println(`
Scout commands:
  servers              Show the discovered server list
  lan [port]           Query LAN servers by broadcast
  masters              Query the configured master servers
  favorites            Refresh the favorites list
  refresh <address>    Refresh a single server
  gametypes            Ask a master for its game/mission types
  cancel               Cancel the running query (drops everything)
  stop                 Stop the running query (keeps completed work)
  heartbeat start|stop Control presence publication to masters
  invite <code>        Join a game by invite code
  arrange <address>    Request a master-arranged connection
  quit                 Shutdown Scout
  help                 Show this help message`)
	fmt.Println()
}

// printServers renders the registry as a table.
func (c *CLI) printServers() {
	servers := c.engine.Servers()
	if len(servers) == 0 {
		fmt.Println("No servers discovered yet. Try 'lan' or 'masters'.")
		return
	}

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"#", "Name", "Address", "Ping", "Players", "Game", "Mission", "Status"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for i, si := range servers {
		players := fmt.Sprintf("%d/%d", si.NumPlayers, si.MaxPlayers)
		if si.NumBots > 0 {
			players += fmt.Sprintf(" (%db)", si.NumBots)
		}
		name := si.Name
		if si.IsFavorite {
			name = "* " + name
		}
		tw.Append([]string{
			strconv.Itoa(i),
			name,
			si.Address.String(),
			fmt.Sprintf("%dms", si.Ping),
			players,
			si.GameType,
			si.MissionName,
			si.Status.String(),
		})
	}
	tw.Render()
}

func (c *CLI) cmdQueryLAN(args []string) error {
	port := c.cfg.GetClient().QueryPort
	if len(args) > 0 {
		p, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port %q", args[0])
		}
		port = uint16(p)
	}
	c.engine.QueryLAN(query.LANQuery{
		Port:            port,
		GameType:        "any",
		MissionType:     "any",
		MaxPlayers:      255,
		MaxBots:         16,
		RegionMask:      0xFFFFFFFF,
		ClearServerInfo: true,
	})
	return nil
}

func (c *CLI) cmdQueryMasters(args []string) error {
	client := c.cfg.GetClient()
	c.engine.QueryMasters(query.MasterQuery{
		LANPort:     client.QueryPort,
		GameType:    "any",
		MissionType: "any",
		MaxPlayers:  255,
		MaxBots:     16,
		RegionMask:  client.RegionMask,
	})
	return nil
}

func (c *CLI) cmdQuerySingle(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: refresh <address>")
	}
	addr, err := netaddr.Parse(args[0])
	if err != nil {
		return err
	}
	c.engine.QuerySingle(addr)
	return nil
}

func (c *CLI) cmdHeartbeat(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: heartbeat start|stop")
	}
	switch args[0] {
	case "start":
		c.engine.StartHeartbeat()
		fmt.Println("Heartbeat started.")
	case "stop":
		c.engine.StopHeartbeat()
		fmt.Println("Heartbeat stopped.")
	default:
		return fmt.Errorf("usage: heartbeat start|stop")
	}
	return nil
}

func (c *CLI) cmdInvite(args []string) error {
	if c.nat == nil {
		return fmt.Errorf("NAT profile is disabled")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: invite <code>")
	}
	c.nat.JoinByInvite(args[0])
	fmt.Println("Invite sent; waiting for a response...")
	return nil
}

func (c *CLI) cmdArrange(args []string) error {
	if c.nat == nil {
		return fmt.Errorf("NAT profile is disabled")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: arrange <address>")
	}
	addr, err := netaddr.Parse(args[0])
	if err != nil {
		return err
	}
	c.nat.ArrangeConnection(addr)
	return nil
}

// PrintProgress subscribes a console progress printer to the event bus.
func PrintProgress(bus *events.EventBus) {
	bus.Subscribe(events.EventQueryStatus, "cli-progress", func(ctx context.Context, ev events.Event) error {
		payload, ok := ev.Payload.(events.QueryStatusPayload)
		if !ok {
			return nil
		}
		switch payload.Phase {
		case "start", "done":
			fmt.Printf("\n%s\n", payload.Message)
		default:
			log.Debug().
				Str("phase", payload.Phase).
				Str("message", payload.Message).
				Float32("progress", payload.Progress).
				Msg("query progress")
		}
		return nil
	})
}
