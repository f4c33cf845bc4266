// ABOUTME: Shared CLI runtime glueing the offline sync core to the wyrdledger binaries.
// ABOUTME: Wires store, queue, client, engine, and monitor from config + flags.
package appcli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/stanyfernando/wyrdledger/offline"
)

// App glues a CLI binary to the offline sync core.
type App struct {
	Config  Config
	Engine  *offline.Engine
	Monitor *offline.Monitor
	Auth    *offline.AuthClient

	store   *offline.Store
	queue   *offline.Queue
	client  *offline.Client
	session *offline.SessionPrincipal
}

// NewApp instantiates the sync core using persisted config layered with rc.
func NewApp(rc RuntimeConfig) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg = rc.Merge(cfg)
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}

	store, err := offline.OpenStore(cfg.DBPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	syncCfg := offline.SyncConfig{
		BaseURL:  cfg.Server,
		DeviceID: cfg.DeviceID,
	}

	session := &offline.SessionPrincipal{}
	if cfg.UserID != "" && cfg.Token != "" {
		session.Set(offline.Principal{UserID: cfg.UserID, Token: cfg.Token})
	}

	queue := offline.NewQueue(store, syncCfg)
	client := offline.NewClient(syncCfg, session)
	engine := offline.NewEngine(store, queue, client, session, offline.EngineOptions{
		Notifier: ColorNotifier,
	})
	monitor := offline.NewMonitor(client, session, engine, nil)

	return &App{
		Config:  cfg,
		Engine:  engine,
		Monitor: monitor,
		Auth:    offline.NewAuthClient(cfg.Server),
		store:   store,
		queue:   queue,
		client:  client,
		session: session,
	}, nil
}

// Close releases the monitor subscription and the local store.
func (a *App) Close() {
	a.Monitor.Close()
	if err := a.store.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
}

// Connect probes the remote store once and informs the engine, so short-lived
// commands get an accurate connectivity state without the monitor loop.
func (a *App) Connect(ctx context.Context) bool {
	if _, ok := a.session.Principal(); !ok {
		return false
	}
	status := a.client.Health(ctx)
	a.Engine.ConnectivityChanged(status.OK, status.Err)
	return status.OK
}

// Records reads the local snapshot for a collection.
func (a *App) Records(collection string) []json.RawMessage {
	return a.Engine.FetchCollection(collection)
}

// Append adds one record to a collection and mirrors the new snapshot.
func (a *App) Append(ctx context.Context, collection string, record json.RawMessage) {
	records := append(a.Engine.FetchCollection(collection), record)
	a.Engine.SaveCollection(ctx, collection, records)
}

// Replace overwrites a collection wholesale and mirrors the new snapshot.
func (a *App) Replace(ctx context.Context, collection string, records []json.RawMessage) {
	a.Engine.SaveCollection(ctx, collection, records)
}

// Pending returns the queued backlog for inspection.
func (a *App) Pending() ([]offline.QueuedOperation, error) {
	return a.queue.List()
}

// SignIn authenticates and persists the session in the config file.
func (a *App) SignIn(ctx context.Context, email, password string) error {
	res, err := a.Auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return a.saveSession(email, res)
}

// SignUp registers a new account and persists the session.
func (a *App) SignUp(ctx context.Context, email, password string) error {
	res, err := a.Auth.Register(ctx, email, password)
	if err != nil {
		return err
	}
	return a.saveSession(email, res)
}

func (a *App) saveSession(email string, res offline.LoginResult) error {
	a.session.Set(offline.Principal{UserID: res.UserID, Token: res.Token.Token})
	a.Monitor.Refresh()

	a.Config.Email = email
	a.Config.UserID = res.UserID
	a.Config.Token = res.Token.Token
	a.Config.RefreshToken = res.RefreshToken
	return SaveConfig(a.Config)
}
