// Package node is the main service which launches the velotype game server
// and manages the lifecycle of all its associated services at runtime, such
// as matchmaking, live match rooms and the HTTP gateway, gracefully closing
// them if the process ends.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/velotype/velotype/cmd"
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/crypto/rand"
	"github.com/velotype/velotype/io/file"
	"github.com/velotype/velotype/monitoring/prometheus"
	"github.com/velotype/velotype/monitoring/tracing"
	"github.com/velotype/velotype/runtime"
	"github.com/velotype/velotype/runtime/version"
	"github.com/velotype/velotype/server/auth"
	"github.com/velotype/velotype/server/cache"
	"github.com/velotype/velotype/server/daily"
	"github.com/velotype/velotype/server/db"
	"github.com/velotype/velotype/server/db/kv"
	"github.com/velotype/velotype/server/match"
	"github.com/velotype/velotype/server/matchmaking"
	"github.com/velotype/velotype/server/rpc"
	"github.com/velotype/velotype/server/ws"
)

var log = logrus.WithField("prefix", "node")

// revocationFileName is the snapshot of revoked session tokens kept under
// the data directory.
const revocationFileName = "revoked-tokens.json"

// GameNode defines a struct that handles the services running the velotype
// game server. It handles the lifecycle of the entire system and registers
// services to a service registry.
type GameNode struct {
	cliCtx    *cli.Context
	ctx       context.Context
	cancel    context.CancelFunc
	services  *runtime.ServiceRegistry
	lock      sync.RWMutex
	stop      chan struct{} // Channel to wait for termination notifications.
	db        db.Database
	texts     *cache.TextCache
	resetZone *time.Location
}

// New creates a new node instance, sets up configuration options, and
// registers every required service to the node.
func New(cliCtx *cli.Context) (*GameNode, error) {
	if err := tracing.Setup(
		"velotype", // service name
		cliCtx.String(cmd.TracingProcessNameFlag.Name),
		cliCtx.String(cmd.TracingEndpointFlag.Name),
		cliCtx.Float64(cmd.TraceSampleFractionFlag.Name),
		cliCtx.Bool(cmd.EnableTracingFlag.Name),
	); err != nil {
		return nil, err
	}

	if cliCtx.IsSet(cmd.GameConfigFileFlag.Name) {
		params.LoadConfigFile(cliCtx.String(cmd.GameConfigFileFlag.Name))
	}

	// The reset timezone decides when the daily challenge rolls over, so a
	// bad name has to surface now rather than at the first submission.
	tz := cliCtx.String(cmd.DailyResetTimezoneFlag.Name)
	resetZone, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown daily reset timezone %q", tz)
	}

	registry := runtime.NewServiceRegistry()

	ctx, cancel := context.WithCancel(cliCtx.Context)
	node := &GameNode{
		cliCtx:    cliCtx,
		ctx:       ctx,
		cancel:    cancel,
		services:  registry,
		stop:      make(chan struct{}),
		resetZone: resetZone,
	}

	texts, err := cache.NewTextCache()
	if err != nil {
		return nil, err
	}
	node.texts = texts

	if cliCtx.String(cmd.DatabaseURLFlag.Name) != "" {
		if err := node.startDB(cliCtx); err != nil {
			return nil, err
		}
	} else {
		log.Warn("No database configured. Matches resolve in memory and storage-backed routes answer 503")
	}

	if err := node.registerAuthService(cliCtx); err != nil {
		return nil, err
	}

	if err := node.registerMatchService(); err != nil {
		return nil, err
	}

	if err := node.registerMatchmakingService(); err != nil {
		return nil, err
	}

	if err := node.registerDailyService(); err != nil {
		return nil, err
	}

	if err := node.registerWsService(cliCtx); err != nil {
		return nil, err
	}

	if err := node.registerRPCService(cliCtx); err != nil {
		return nil, err
	}

	if !cliCtx.Bool(cmd.DisableMonitoringFlag.Name) {
		if err := node.registerPrometheusService(cliCtx); err != nil {
			return nil, err
		}
	}

	return node, nil
}

// Start the game node and kick off every registered service.
func (g *GameNode) Start() {
	g.lock.Lock()

	log.WithFields(logrus.Fields{
		"version": version.Version(),
	}).Info("Starting velotype node")

	g.services.StartAll()

	stop := g.stop
	g.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go g.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the game node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (g *GameNode) Close() {
	g.lock.Lock()
	defer g.lock.Unlock()

	log.Info("Stopping velotype node")
	g.services.StopAll()
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			log.Errorf("Failed to close database: %v", err)
		}
	}
	g.cancel()
	close(g.stop)
}

func (g *GameNode) startDB(cliCtx *cli.Context) error {
	dbDir, err := file.ExpandPath(cliCtx.String(cmd.DatabaseURLFlag.Name))
	if err != nil {
		return errors.Wrap(err, "could not expand database path")
	}
	clearDB := cliCtx.Bool(cmd.ClearDB.Name)

	log.WithField("database-path", dbDir).Info("Checking DB")

	d, err := db.NewDB(dbDir)
	if err != nil {
		return err
	}
	if clearDB {
		log.Warning("Removing database")
		if err := d.Close(); err != nil {
			return errors.Wrap(err, "could not close db prior to clearing")
		}
		if err := d.ClearDB(); err != nil {
			return errors.Wrap(err, "could not clear database")
		}
		d, err = db.NewDB(dbDir)
		if err != nil {
			return errors.Wrap(err, "could not create new database")
		}
	}
	g.db = d

	if info, err := os.Stat(filepath.Join(d.DatabasePath(), kv.DatabaseFileName)); err == nil {
		log.WithField("size", humanize.Bytes(uint64(info.Size()))).Info("Opened game database")
	}
	return nil
}

func (g *GameNode) registerAuthService(cliCtx *cli.Context) error {
	secret := []byte(cliCtx.String(cmd.AuthSecretFlag.Name))
	if len(secret) == 0 {
		if !cliCtx.Bool(cmd.DevFlag.Name) {
			return errors.Errorf("--%s is required outside --dev", cmd.AuthSecretFlag.Name)
		}
		secret = make([]byte, 32)
		if _, err := rand.NewGenerator().Read(secret); err != nil {
			return errors.Wrap(err, "could not generate dev auth secret")
		}
		log.Warn("Running with an ephemeral auth secret. Sessions will not survive a restart")
	}

	// The revocation snapshot lives under the data directory. Without a
	// resolvable data directory the revocation set stays in memory only.
	revocationPath := ""
	if dataDir := cliCtx.String(cmd.DataDirFlag.Name); dataDir != "" {
		if err := file.MkdirAll(dataDir); err != nil {
			return errors.Wrap(err, "could not create data directory")
		}
		expanded, err := file.ExpandPath(dataDir)
		if err != nil {
			return errors.Wrap(err, "could not expand data directory")
		}
		revocationPath = filepath.Join(expanded, revocationFileName)
	}

	svc, err := auth.NewService(g.ctx, &auth.Config{
		TokenSecret:    secret,
		EmailHashKey:   []byte(cliCtx.String(cmd.EmailHashKeyFlag.Name)),
		PIIKey:         []byte(cliCtx.String(cmd.PIIEncryptionKeyFlag.Name)),
		RevocationPath: revocationPath,
		GoogleClientID: cliCtx.String(cmd.GoogleClientIDFlag.Name),
	})
	if err != nil {
		return err
	}
	return g.services.RegisterService(svc)
}

func (g *GameNode) registerMatchService() error {
	svc := match.NewService(g.ctx, &match.ServiceConfig{
		Database: g.db,
		Texts:    g.texts,
	})
	return g.services.RegisterService(svc)
}

func (g *GameNode) registerMatchmakingService() error {
	var matchSvc *match.Service
	if err := g.services.FetchService(&matchSvc); err != nil {
		return err
	}
	svc := matchmaking.NewService(g.ctx, &matchmaking.ServiceConfig{
		Database: g.db,
		Match:    matchSvc,
	})
	return g.services.RegisterService(svc)
}

func (g *GameNode) registerDailyService() error {
	svc := daily.NewService(g.ctx, &daily.ServiceConfig{
		Database: g.db,
		Texts:    g.texts,
		Location: g.resetZone,
	})
	return g.services.RegisterService(svc)
}

func (g *GameNode) registerWsService(cliCtx *cli.Context) error {
	var authSvc *auth.Service
	if err := g.services.FetchService(&authSvc); err != nil {
		return err
	}
	var matchSvc *match.Service
	if err := g.services.FetchService(&matchSvc); err != nil {
		return err
	}
	var mmSvc *matchmaking.Service
	if err := g.services.FetchService(&mmSvc); err != nil {
		return err
	}
	svc := ws.NewService(g.ctx, &ws.Config{
		Auth:           authSvc,
		Match:          matchSvc,
		Matchmaking:    mmSvc,
		AllowedOrigins: corsOrigins(cliCtx),
	})
	return g.services.RegisterService(svc)
}

func (g *GameNode) registerRPCService(cliCtx *cli.Context) error {
	var authSvc *auth.Service
	if err := g.services.FetchService(&authSvc); err != nil {
		return err
	}
	var dailySvc *daily.Service
	if err := g.services.FetchService(&dailySvc); err != nil {
		return err
	}
	var wsSvc *ws.Service
	if err := g.services.FetchService(&wsSvc); err != nil {
		return err
	}
	svc := rpc.NewService(g.ctx, &rpc.Config{
		HTTPAddr:       fmt.Sprintf(":%d", cliCtx.Int(cmd.HTTPPortFlag.Name)),
		AllowedOrigins: corsOrigins(cliCtx),
		Auth:           authSvc,
		Database:       g.db,
		Daily:          dailySvc,
		WsHandler:      wsSvc.Handler(),
	})
	return g.services.RegisterService(svc)
}

func (g *GameNode) registerPrometheusService(cliCtx *cli.Context) error {
	service := prometheus.NewService(
		fmt.Sprintf("%s:%d", cliCtx.String(cmd.MonitoringHostFlag.Name), cliCtx.Int(cmd.MonitoringPortFlag.Name)),
		g.services,
	)
	hook := prometheus.NewLogrusCollector()
	logrus.AddHook(hook)
	return g.services.RegisterService(service)
}

// corsOrigins splits the configured allow list, dropping empty entries.
func corsOrigins(cliCtx *cli.Context) []string {
	var origins []string
	for _, o := range strings.Split(cliCtx.String(cmd.CorsOriginFlag.Name), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
