package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"automator/auth"
	"automator/internal/automation"
	"automator/internal/config"
	"automator/internal/db"
	"automator/internal/engine"
	"automator/internal/hostlink"
	"automator/internal/logging"
	"automator/internal/mqtt"
	"automator/internal/redis"
	"automator/internal/scheduler"
	"automator/internal/services"
	"automator/internal/state"
	"automator/internal/taskqueue"
	"automator/internal/web"

	"github.com/hibiken/asynq"
	"github.com/pion/mdns/v2"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "engine")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Invalid timezone", zap.Error(err))
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to DB", zap.Error(err))
	}
	defer dbConn.Close()
	if err := dbConn.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate DB", zap.Error(err))
	}

	redisClient, err := redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	mqttClient, err := mqtt.NewMQTTClient(cfg.MQTT, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MQTT", zap.Error(err))
	}
	defer mqttClient.Disconnect(250)

	// shared device state
	deviceID := cfg.App.DeviceID
	states := state.NewStore(redisClient, deviceID)
	blocklist := state.NewBlockList(redisClient)
	if err := blocklist.Load(ctx); err != nil {
		logger.Warn("Failed to load block-list", zap.Error(err))
	}
	listeners := state.NewServices(redisClient, deviceID, logger)
	if err := listeners.Load(ctx); err != nil {
		logger.Warn("Failed to load listener service flags", zap.Error(err))
	}

	// host services over MQTT
	commands := services.NewCommandService(mqttClient, deviceID, logger)
	location := services.NewLocationService(mqttClient, deviceID, logger)
	geofences := services.NewGeofenceService(mqttClient, deviceID, logger)
	for name, start := range map[string]func(context.Context) error{"location": location.Start, "geofence": geofences.Start} {
		if err := start(ctx); err != nil {
			logger.Fatal("Failed to start host service", zap.String("service", name), zap.Error(err))
		}
	}
	defer location.Stop()
	defer geofences.Stop()

	// alarms
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	alarms := taskqueue.NewAlarmClock(asynqClient, inspector, logger)

	sched := scheduler.NewScheduler(dbConn, alarms, geofences, cfg.Engine.GeofenceTimeout, loc, logger)

	resolver := automation.NewLocationResolver(states, location, cfg.Engine.LastKnownTimeout, cfg.Engine.FreshFixTimeout, cfg.Engine.LocationMaxAge, logger)
	evaluator := automation.NewEvaluator(states, resolver, logger)
	evaluator.SetLocation(loc)
	pipeline := automation.NewPipeline(states, commands, states, blocklist, listeners, logger)

	eng := engine.NewEngine(engine.Deps{
		Store:     dbConn,
		States:    states,
		Evaluator: evaluator,
		Pipeline:  pipeline,
		Scheduler: sched,
		Redis:     redisClient,
		MQTT:      mqttClient,
		Location:  loc,
	}, engine.Options{
		DeviceID:          deviceID,
		MaxConcurrent:     cfg.Engine.MaxConcurrent,
		MonitorInterval:   cfg.Engine.MonitorInterval,
		SafetyNetInterval: cfg.Engine.SafetyNetInterval,
	}, logger)
	if err := eng.Start(ctx); err != nil {
		logger.Fatal("Failed to start engine", zap.Error(err))
	}

	worker := taskqueue.NewWorker(redisOpt, cfg.Engine.MaxConcurrent, sched.OnAlarmFired, logger)
	if err := worker.Start(); err != nil {
		logger.Fatal("Failed to start alarm worker", zap.Error(err))
	}

	authModule := auth.NewAuthModule(cfg.JWT.Secret, cfg.JWT.ClientID, cfg.JWT.ClientSecretHash, cfg.JWT.TokenTTL)
	webServer := web.NewWebServer(web.Dependencies{
		Auth:      authModule,
		Rules:     dbConn,
		Engine:    eng,
		States:    states,
		BlockList: blocklist,
		RateLimit: cfg.App.RateLimit,
		RateBurst: cfg.App.RateBurst,
		AgentID:   cfg.App.AgentID,
	}, logger)
	go func() {
		if err := webServer.Start(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			logger.Error("Web server stopped", zap.Error(err))
			stop()
		}
	}()

	go startMDNSServer(cfg.MDNS.LocalName, logger)

	if cfg.HostLink.Enabled {
		handler := hostlink.NewHandler(eng, commands, blocklist, states, listeners, logger)
		client := hostlink.NewClient(hostlink.Config{
			URL:        cfg.HostLink.URL,
			DeviceID:   deviceID,
			RetryDelay: cfg.HostLink.RetryDelay,
		}, handler, logger)
		go client.Run(ctx)
	} else {
		logger.Info("Host link is disabled")
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Web server shutdown", zap.Error(err))
	}
	worker.Shutdown()
	eng.Stop()
	logger.Info("Shutdown complete")
}

func startMDNSServer(localName string, logger *zap.Logger) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		logger.Warn("Failed to resolve UDP4 address for mDNS", zap.Error(err))
		return
	}

	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		logger.Warn("Failed to resolve UDP6 address for mDNS", zap.Error(err))
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		logger.Warn("Failed to listen on UDP4 for mDNS", zap.Error(err))
		return
	}

	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		logger.Warn("Failed to listen on UDP6 for mDNS", zap.Error(err))
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		logger.Warn("Failed to start mDNS server", zap.Error(err))
		return
	}
	logger.Info("mDNS advertising", zap.String("name", localName))
}
