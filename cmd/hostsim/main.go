// Command hostsim stands in for the host listener service during development.
// Engines connect to ws://<addr>/observer; observations are injected with
//
//	curl -H 'X-Device-ID: phone' -d '{"type":"foreground","package":"com.example"}' localhost:5069/push
package main

import (
	"log"

	"automator/internal/hostlink"
	"automator/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	addr := pflag.String("addr", ":5069", "listen address")
	level := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	logger, err := logging.NewLogger(*level, "console", "hostsim")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	relay := hostlink.NewRelay(logger)
	router := gin.New()
	router.Use(gin.Recovery())
	relay.RegisterRoutes(router)

	logger.Info("Host simulator listening", zap.String("addr", *addr))
	if err := router.Run(*addr); err != nil {
		logger.Fatal("Host simulator stopped", zap.Error(err))
	}
}
