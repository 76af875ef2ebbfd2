package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/verdant-labs/forestwatch/internal/auth"
	"github.com/verdant-labs/forestwatch/internal/bridge"
	"github.com/verdant-labs/forestwatch/internal/realtime"
	"github.com/verdant-labs/forestwatch/internal/server"
	"github.com/verdant-labs/forestwatch/internal/session"
	"github.com/verdant-labs/forestwatch/internal/store/mongodb"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	logger          *zap.Logger
	settings        Settings
	engine          *mongodb.Engine
	websocketServer *server.WebSocketServer
	restServer      *server.RESTServer
	bridge          *bridge.Bridge
}

func NewApp(logger *zap.Logger, settings Settings, mongoClient *mongo.Client) *App {
	engine := mongodb.NewEngine(mongoClient, settings.MongoDatabase)

	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	authenticator := auth.NewAuthenticator(settings.JWTSecret)

	transport := realtime.NewInMemoryTransport(logger)
	registry := realtime.NewRegistry()
	roomIndex := realtime.NewRoomIndex()
	dispatcher := realtime.NewDispatcher(logger, transport, registry, engine)

	controller := session.NewController(
		logger,
		registry,
		roomIndex,
		transport,
		dispatcher,
		engine,
		engine,
		engine,
		engine,
	)

	eventBridge := bridge.New(logger)
	router := server.NewRouter(logger, controller, dispatcher)

	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		authenticator,
		transport,
		controller,
		router,
	)
	restServer := server.NewRESTServer(
		logger,
		engine,
		engine,
		engine,
		controller,
		eventBridge,
		dispatcher,
	)

	return &App{
		logger,
		settings,
		engine,
		websocketServer,
		restServer,
		eventBridge,
	}
}

func (a *App) setup(ctx context.Context) error {
	err := a.engine.Setup(ctx)
	if err != nil {
		return fmt.Errorf("setup mongodb indexes: %w", err)
	}

	// The realtime subsystem is wired; REST writes may broadcast now.
	a.bridge.Ready()

	a.startHttpServer(ctx)

	return nil
}

func (a *App) startHttpServer(ctx context.Context) {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter().
		PathPrefix(a.settings.BasePath).
		Subrouter()

	a.websocketServer.Register(router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:    address,
		Handler: router,
	}

	a.logger.Info("starting http server",
		zap.String("address", address))

	go func() {
		err := httpServer.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start http server",
				zap.Error(err))
		}
	}()

	<-notifyCtx.Done()

	a.logger.Info("stopping http server")

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Fatal("http server shutdown failed",
			zap.Error(err))
	}

	a.logger.Info("http server stopped")
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		panic(err)
	}

	logger, err := buildZapLogger(settings.LogEncoding)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(settings.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)

	app := NewApp(logger, settings, mongoClient)

	err = app.setup(ctx)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}
}
