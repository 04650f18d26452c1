// Scout - game server discovery & liveness engine
//
// Scout discovers hosting servers through master directories and LAN
// broadcast, measures liveness and round-trip time with a ping exchange,
// fetches rich info records, and (when hosting) answers queries and
// publishes presence heartbeats. A REST API, an interactive CLI, and
// optional MQTT telemetry sit on top of the engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scout-project/scout/internal/api"
	"github.com/scout-project/scout/internal/cli"
	"github.com/scout-project/scout/internal/config"
	"github.com/scout-project/scout/internal/events"
	"github.com/scout-project/scout/internal/nat"
	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/query"
	"github.com/scout-project/scout/internal/registry"
	"github.com/scout-project/scout/internal/responder"
	"github.com/scout-project/scout/internal/sched"
	"github.com/scout-project/scout/internal/store"
	"github.com/scout-project/scout/internal/telemetry"
	"github.com/scout-project/scout/internal/transport"
	"github.com/scout-project/scout/internal/util"
)

const (
	AppName    = "Scout"
	AppVersion = "1.0.0"
)

func main() {
	fmt.Printf("%s v%s - game server discovery engine\n\n", AppName, AppVersion)

	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Int("cpus", runtime.NumCPU()).
		Msg("starting Scout")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logCfg := util.LogConfig{
		Level:      cfg.ApplicationData.Logging.Level,
		Directory:  cfg.ApplicationData.Logging.Directory,
		MaxBackups: cfg.ApplicationData.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	// A hosting node needs an invite code for join-by-invite.
	srv := cfg.GetServer()
	if srv.AcceptsConns && srv.InviteCode == "" {
		srv.InviteCode = uuid.NewString()[:8]
		cfg.SetServer(srv)
		if err := cfg.Save(); err != nil {
			log.Warn().Err(err).Msg("failed to save generated invite code")
		}
		log.Info().Str("invite_code", srv.InviteCode).Msg("generated invite code")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	// Persistence: favorites and server history.
	st, err := store.Open(cfg.ApplicationData.StorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	// Merge stored favorites into the config-store favorites the engine
	// reloads at the start of each query.
	client := cfg.GetClient()
	client.Favorites = mergeFavorites(client.Favorites, st.FavoriteLines())
	cfg.SetClient(client)

	// The scheduler drives all engine ticks against the wall clock.
	scheduler := sched.New(sched.NewWallClock())

	engine := query.New(nil, scheduler, cfg, query.BusSink{Bus: eventBus})
	engine.SetEventBus(eventBus)

	rsp := responder.New(cfg, nil)
	natClient := nat.New(cfg, nil, &logSink{bus: eventBus})

	dispatcher := &query.Dispatcher{Engine: engine, Responder: rsp, NAT: natClient}

	// Bind the discovery socket; inbound datagrams feed the dispatcher.
	conn, err := transport.ListenUDP(ctx, cfg.GetClient().QueryPort, dispatcher.Dispatch)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind discovery socket")
	}
	engine.SetConn(conn)
	rsp.SetConn(conn)
	natClient.SetConn(conn)

	// Record responded servers into history.
	eventBus.Subscribe(events.EventServerFound, "store.history", func(ctx context.Context, ev events.Event) error {
		payload, ok := ev.Payload.(events.ServerPayload)
		if !ok {
			return nil
		}
		si := registry.ServerInfo{Address: payload.Address, Name: payload.Name, Ping: payload.Ping}
		if full, found := findServer(engine, payload.Address); found {
			si = full
		}
		return st.RecordServer(&si)
	})

	apiServer := api.NewServer(cfg, eventBus, engine, st)

	var mqttHandler *telemetry.MQTTHandler
	if cfg.ApplicationData.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	cliHandler := cli.NewCLI(cfg, eventBus, engine, natClient)
	cli.PrintProgress(eventBus)

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	// Task 1: scheduler loop.
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	// Task 2: REST API.
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("port", cfg.ApplicationData.APIPort).Msg("starting REST API server")
		if err := apiServer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("API server failed")
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Task 3: MQTT telemetry (non-fatal).
	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// Task 4: interactive CLI.
	wg.Add(1)
	go func() {
		defer wg.Done()
		cliHandler.Start(ctx)
	}()

	// Hosting nodes publish presence immediately.
	if srv.AcceptsConns {
		engine.StartHeartbeat()
	}

	// Shutdown on signal, CLI quit, or fatal error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	shutdownCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main", func(ctx context.Context, ev events.Event) error {
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
		return nil
	})

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-shutdownCh:
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")
	engine.StopHeartbeat()
	engine.Cancel()
	cancel()
	conn.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("shutdown timed out, forcing exit")
	}

	eventBus.Stop()
	log.Info().Msg("Scout stopped")
}

// mergeFavorites combines config-file and store favorites, store entries
// last so they win on duplicates downstream.
func mergeFavorites(configLines, storeLines []string) []string {
	seen := make(map[string]bool, len(configLines))
	out := make([]string, 0, len(configLines)+len(storeLines))
	for _, line := range append(configLines, storeLines...) {
		if seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return out
}

// findServer looks a record up by address through the engine's snapshot API.
func findServer(engine *query.Engine, addr netaddr.Addr) (registry.ServerInfo, bool) {
	for _, si := range engine.Servers() {
		if si.Address == addr {
			return si, true
		}
	}
	return registry.ServerInfo{}, false
}

// logSink reports NAT rendezvous outcomes to the log and the event bus.
type logSink struct {
	bus *events.EventBus
}

func (s *logSink) ArrangedCandidates(candidates []netaddr.Addr, isHost bool) {
	log.Info().Int("candidates", len(candidates)).Bool("is_host", isHost).
		Msg("arranged connection candidates received; starting connect attempts")
}

func (s *logSink) RelayReady(relay netaddr.Addr, isHost bool) {
	log.Info().Str("relay", relay.String()).Bool("is_host", isHost).Msg("relay path established")
}

func (s *logSink) ConnectionRejected(reason string) {
	log.Warn().Str("reason", reason).Msg("arranged connection rejected")
	s.bus.Emit(context.Background(), events.Event{
		Type:   events.EventInviteRejected,
		Source: "nat",
	})
}

func (s *logSink) InviteResult(found bool, host netaddr.Addr, isLocal bool) {
	if !found {
		log.Info().Msg("invite code not recognized by any server")
		s.bus.Emit(context.Background(), events.Event{Type: events.EventInviteRejected, Source: "nat"})
		return
	}
	log.Info().Str("host", host.String()).Bool("local", isLocal).Msg("invite accepted")
	s.bus.Emit(context.Background(), events.Event{
		Type:    events.EventInviteAccepted,
		Source:  "nat",
		Payload: events.InvitePayload{Host: host, IsLocal: isLocal},
	})
}
