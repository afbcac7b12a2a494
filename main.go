package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/readyup/internal/chat"
	"github.com/xiaot623/readyup/internal/config"
	"github.com/xiaot623/readyup/internal/hub"
	"github.com/xiaot623/readyup/internal/policy"
	"github.com/xiaot623/readyup/internal/repository"
	"github.com/xiaot623/readyup/internal/service"
	handler "github.com/xiaot623/readyup/internal/transport/http"
	"github.com/xiaot623/readyup/internal/transport/rpc"
	"github.com/xiaot623/readyup/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.LogLevel == "debug" {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	log.Printf("Starting readyup...")
	log.Printf("WebSocket Port: %d", cfg.WSPort)
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("RPC Port: %d", cfg.RPCPort)
	log.Printf("Database: %s", cfg.DatabaseURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize policy engine
	ctx := context.Background()
	policyContent, err := policy.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		log.Fatalf("Failed to load policy: %v", err)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Chat gateway
	connectionHub := hub.NewHub()
	hubDone := make(chan struct{})
	go connectionHub.Run(hubDone)
	channel := chat.NewChannel(connectionHub)

	controller := service.New(channel, db, cfg, policyEngine)

	// WebSocket server
	wsServer := ws.NewServer(cfg, connectionHub, channel, controller)
	wsEcho := echo.New()
	wsEcho.HideBanner = true
	wsEcho.HidePort = true
	wsEcho.Use(middleware.Logger())
	wsEcho.Use(middleware.Recover())
	wsServer.RegisterRoutes(wsEcho)

	// HTTP API
	httpServer := handler.NewServer(handler.NewHandler(controller, db, channel, connectionHub))

	// RPC bridge
	var rpcServer *rpc.Server
	if cfg.RPCPort > 0 {
		rpcServer, err = rpc.NewServer(controller, channel)
		if err != nil {
			log.Fatalf("Failed to initialize RPC server: %v", err)
		}
		go func() {
			addr := fmt.Sprintf(":%d", cfg.RPCPort)
			if err := rpcServer.Start(addr); err != nil {
				log.Fatalf("Failed to start RPC server: %v", err)
			}
		}()
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.WSPort)
		if err := wsEcho.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start WebSocket server: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	log.Printf("WebSocket server started on port %d", cfg.WSPort)
	log.Printf("HTTP API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down readyup...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the open prompt before the gateway goes away
	if err := controller.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to close active readyup: %v", err)
	}
	if rpcServer != nil {
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shutdown RPC server gracefully: %v", err)
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	if err := wsEcho.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown WebSocket server gracefully: %v", err)
	}
	close(hubDone)

	log.Println("readyup stopped")
}
