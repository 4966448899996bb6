// Package node contains the main executable for a go-meshsync node
package node

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cmdp "github.com/meshsync/go-meshsync/cmd"
	"github.com/meshsync/go-meshsync/config"
	"github.com/meshsync/go-meshsync/log"
	"github.com/meshsync/go-meshsync/metrics"
	mesh "github.com/meshsync/go-meshsync/node"
	"github.com/meshsync/go-meshsync/snapshot"
	"github.com/meshsync/go-meshsync/transport"
	"github.com/meshsync/go-meshsync/transport/stream"
	"github.com/meshsync/go-meshsync/transport/udp"
)

// Cmd is the cobra wrapper for the node, that allows adding parameters to it.
var Cmd = &cobra.Command{
	Use:   "node",
	Short: "start node",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := cmdp.LoadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		encoder, err := log.NewEncoder(conf.LOGGING.Encoder)
		if err != nil {
			return err
		}
		// the root logger is at debug level so that module loggers may go as low as they are configured
		app := New(
			WithConfig(conf),
			WithLog(log.NewWithLevel("", zap.NewAtomicLevelAt(zapcore.DebugLevel), encoder)),
		)
		if err := app.Lock(); err != nil {
			return fmt.Errorf("getting exclusive file lock: %w", err)
		}
		defer app.Unlock()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := app.Initialize(); err != nil {
			return fmt.Errorf("init node: %w", err)
		}
		defer app.Cleanup()
		// This blocks until the context is finished or until an error is produced
		if err := app.Start(ctx); err != nil {
			return fmt.Errorf("start node: %w", err)
		}
		return nil
	},
}

// VersionCmd returns the current version of go-meshsync.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(cmdp.Version)
		if cmdp.Commit != "" {
			fmt.Printf("+%s", cmdp.Commit)
		}
		fmt.Println()
	},
}

func init() {
	cmdp.AddCommands(Cmd)
	Cmd.AddCommand(VersionCmd)
}

// Option to modify an App instance.
type Option func(app *App)

// WithLog sets the root logger of the App.
func WithLog(logger *zap.Logger) Option {
	return func(app *App) {
		app.log = logger
	}
}

// WithConfig overwrites default App config.
func WithConfig(conf *config.Config) Option {
	return func(app *App) {
		app.Config = conf
	}
}

// WithFs sets the filesystem snapshots are read from and written to.
func WithFs(fs afero.Fs) Option {
	return func(app *App) {
		app.fs = fs
	}
}

// WithTransport replaces the configured transport.
func WithTransport(tr transport.Transport) Option {
	return func(app *App) {
		app.transport = tr
	}
}

// New creates an instance of the node app.
func New(opts ...Option) *App {
	defaultConfig := config.DefaultConfig()
	app := &App{
		Config: &defaultConfig,
		log:    zap.NewNop(),
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(app)
	}
	app.modules = log.NewModules(app.log, zapcore.InfoLevel, app.Config.LOGGING.Levels())
	return app
}

// App is the cli app singleton.
type App struct {
	Config    *config.Config
	log       *zap.Logger
	modules   *log.Modules
	fs        afero.Fs
	transport transport.Transport
	node      *mesh.Node
	fileLock  *flock.Flock
}

// Lock locks the app for exclusive use. It returns an error if the app is already locked.
// Lock is a no-op when no lock file is configured.
func (app *App) Lock() error {
	if app.Config.FileLock == "" {
		return nil
	}
	lockDir := filepath.Dir(app.Config.FileLock)
	if _, err := os.Stat(lockDir); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(lockDir, os.ModePerm); err != nil {
			return fmt.Errorf("creating dir %s for lock %s: %w", lockDir, app.Config.FileLock, err)
		}
	}
	fl := flock.New(app.Config.FileLock)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("flock %s: %w", app.Config.FileLock, err)
	} else if !locked {
		return fmt.Errorf("only one node should be running (locking file %s)", fl.Path())
	}
	app.fileLock = fl
	return nil
}

// Unlock unlocks the app. It is a no-op if the app is not locked.
func (app *App) Unlock() {
	if app.fileLock == nil {
		return
	}
	if err := app.fileLock.Unlock(); err != nil {
		app.log.Error("failed to unlock file", zap.String("path", app.fileLock.Path()), zap.Error(err))
	}
	app.fileLock = nil
}

func (app *App) addLogger(name string) *zap.Logger {
	return app.modules.Get(name)
}

// Initialize builds the transport and the node and restores the last snapshot.
func (app *App) Initialize() error {
	if app.transport == nil {
		tr, err := app.newTransport()
		if err != nil {
			return err
		}
		app.transport = tr
	}
	n, err := mesh.New(app.Config.Node, app.transport,
		mesh.WithLogger(app.addLogger(config.NodeLogger)),
		mesh.WithFs(app.fs),
	)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	app.node = n
	return app.restore()
}

func (app *App) newTransport() (transport.Transport, error) {
	logger := app.addLogger(config.TransportLogger)
	switch app.Config.Transport.Kind {
	case config.TransportUDP:
		return udp.New(
			udp.WithLogger(logger),
			udp.WithPeers(app.Config.Transport.Peers...),
			udp.WithBufferSize(app.Config.Transport.BufferSize),
		), nil
	case config.TransportStream:
		return stream.New(
			stream.WithLogger(logger),
			stream.WithBufferSize(app.Config.Transport.BufferSize),
		), nil
	case config.TransportLoopback:
		return nil, errors.New("loopback transport is only available in simulations")
	}
	return nil, fmt.Errorf("unknown transport %q", app.Config.Transport.Kind)
}

func (app *App) restore() error {
	path := app.Config.Node.SnapshotPath
	if path == "" {
		return nil
	}
	exists, err := afero.Exists(app.fs, path)
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	if !exists {
		return nil
	}
	snap, err := snapshot.Read(app.fs, path)
	if err != nil {
		// a broken snapshot only costs the warm start
		app.log.Warn("ignoring snapshot", zap.String("path", path), zap.Error(err))
		return nil
	}
	return app.node.Restore(snap)
}

// Start runs the node until ctx is canceled.
func (app *App) Start(ctx context.Context) error {
	logger := app.addLogger(config.AppLogger)
	logger.Info("starting node",
		zap.String("version", cmdp.Version),
		zap.String("commit", cmdp.Commit),
		zap.Stringer("id", app.node.ID()),
		zap.String("transport", app.Config.Transport.Kind),
	)
	metricsLogger := app.addLogger(config.MetricsLogger)
	if app.Config.CollectMetrics {
		metrics.StartMetricsServer(ctx, metricsLogger, app.Config.MetricsPort)
	}
	if app.Config.MetricsPush != "" {
		metrics.StartPushingMetrics(ctx, metricsLogger, app.Config.MetricsPush,
			app.Config.MetricsPushPeriod, app.node.ID().String())
	}
	return app.node.Run(ctx)
}

// Node returns the running node.
func (app *App) Node() *mesh.Node {
	return app.node
}

// Cleanup releases the node queues.
func (app *App) Cleanup() {
	if app.node != nil {
		app.node.Close()
	}
	_ = app.log.Sync()
}
