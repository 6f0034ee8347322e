// Package main is the referee process entry point (spec.md §4.8). On
// startup it registers with the league manager, then serves /mcp for the
// lifetime of the process.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/evenodd-league/agents/internal/auth"
	"github.com/evenodd-league/agents/internal/config"
	"github.com/evenodd-league/agents/internal/game"
	"github.com/evenodd-league/agents/internal/protocol"
	"github.com/evenodd-league/agents/internal/referee"
	"github.com/evenodd-league/agents/internal/repo"
	"github.com/evenodd-league/agents/internal/resilience"
	"github.com/evenodd-league/agents/internal/svcerr"
	"github.com/evenodd-league/agents/internal/telemetry"
	"github.com/evenodd-league/agents/internal/telemetry/metrics"
	"github.com/evenodd-league/agents/internal/transport"
)

func registerReferee(ctx context.Context, client *transport.Client, managerEndpoint, requestedID, contactEndpoint, gameType string, maxConcurrent int) (*protocol.RefereeRegisterResponse, error) {
	req := &protocol.RefereeRegisterRequest{
		RequestedRefereeID: requestedID,
		RefereeMeta: protocol.RefereeMeta{
			DisplayName:          "referee-" + requestedID,
			Version:              "1.0",
			GameTypes:            []string{gameType},
			ContactEndpoint:      contactEndpoint,
			MaxConcurrentMatches: maxConcurrent,
		},
	}
	env := protocol.NewEnvelope(protocol.MsgRefereeRegisterRequest, protocol.RoleReferee, requestedID, "boot", "", time.Now())
	raw, err := protocol.Encode(env, req)
	if err != nil {
		return nil, err
	}
	result, err := client.Call(ctx, managerEndpoint, string(protocol.MsgRefereeRegisterRequest), raw)
	if err != nil {
		return nil, err
	}
	var resp protocol.RefereeRegisterResponse
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, svcerr.Protocol("malformed registration response: " + err.Error())
	}
	if resp.Status != protocol.RegistrationAccepted {
		return nil, svcerr.New(svcerr.CodeProtocolError, "registration rejected: "+resp.RejectionReason)
	}
	return &resp, nil
}

func main() {
	logger := telemetry.NewFromEnv("referee")

	timeouts := config.DefaultTimeouts()
	retryCfg := config.DefaultRetryConfig()
	cbCfg := config.DefaultCircuitBreakerConfig()
	client := transport.NewClient(timeouts.HTTP,
		resilience.RetryConfig{MaxAttempts: retryCfg.MaxAttempts, Base: retryCfg.Base},
		resilience.Config{FailureThreshold: cbCfg.FailureThreshold, OpenTimeout: cbCfg.OpenTimeout, HalfOpenProbes: cbCfg.HalfOpenProbes})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := config.GetEnv("REFEREE_PORT", "8091")
	selfEndpoint := config.GetEnv("REFEREE_SELF_ENDPOINT", "http://localhost:"+port+"/mcp")
	managerEndpoint := config.GetEnv("LEAGUE_MANAGER_ENDPOINT", "http://localhost:8090/mcp")
	requestedID := config.GetEnv("REFEREE_ID", "")
	gameType := config.GetEnv("LEAGUE_GAME_TYPE", "even_odd")
	maxConcurrent := config.GetEnvInt("REFEREE_MAX_CONCURRENT_MATCHES", 4)

	regResp, err := registerReferee(ctx, client, managerEndpoint, requestedID, selfEndpoint, gameType, maxConcurrent)
	if err != nil {
		log.Fatalf("registration failed: %v", err)
	}

	authCfg := config.LoadAuthConfig()
	authSvc, err := auth.NewService(authCfg.Secret, authCfg.TokenExpiry)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	cfg := referee.Config{
		RefereeID:            regResp.RefereeID,
		LeagueID:             regResp.LeagueID,
		GameType:             gameType,
		ManagerEndpoint:      managerEndpoint,
		SelfEndpoint:         selfEndpoint,
		MaxConcurrentMatches: maxConcurrent,
		JoinAckTimeout:       timeouts.JoinAck,
		MoveTimeout:          timeouts.Move,
		Retry:                resilience.RetryConfig{MaxAttempts: retryCfg.MaxAttempts, Base: retryCfg.Base},
		Scoring:              game.Scoring(config.DefaultScoringWeights()),
		NumberRange:          game.NumberRange(config.DefaultNumberRange()),
		DrawOnBothWrong:      config.GetEnvBool("LEAGUE_DRAW_ON_BOTH_WRONG", true),
	}

	dataDir := config.GetEnv("LEAGUE_DATA_DIR", "./data/referee-"+cfg.RefereeID)
	matchRepo := repo.NewMatchRepo(dataDir)
	m := metrics.New("referee")

	ref := referee.New(cfg, matchRepo, client, authSvc, logger, m)

	srv := transport.NewServer(ref.HandleMessage, logger, m, config.GetEnvInt("LEAGUE_RATE_LIMIT_RPS", 50), config.GetEnvInt("LEAGUE_RATE_LIMIT_BURST", 100))

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{"port": port, "referee_id": cfg.RefereeID}).Info("referee starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
