// Command lobbyserv runs the lobby server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"badc0de.net/pkg/flagutil/v1"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"badc0de.net/pkg/go-lobby/lobby"
	"badc0de.net/pkg/go-lobby/metrics"
	tnet "badc0de.net/pkg/go-lobby/net"
	"badc0de.net/pkg/go-lobby/paths"
	"badc0de.net/pkg/go-lobby/secrets"
)

var (
	listenAddress  = flag.String("listen_address", ":54994", "where the lobby server will listen")
	debugWebServer = flag.String("debug_web_server_listen_address", "", "where the debug server will listen")

	readTimeout   = flag.Duration("read_timeout", 30*time.Second, "how long a session may take to send a packet; 0 waits forever")
	writeTimeout  = flag.Duration("write_timeout", 10*time.Second, "how long writing one response may take; 0 waits forever")
	maxPacketSize = flag.Int("max_packet_size", tnet.DefaultMaxPacketSize, "largest packet size a client may announce, in bytes")

	packetsPerSecond = flag.Float64("packets_per_second", 0, "sustained packets per second a session may send; 0 disables the limit")
	packetBurst      = flag.Int("packet_burst", 16, "packets a session may send in a burst above packets_per_second")

	gameVersion        = flag.Uint("game_version", uint(secrets.DefaultGameVersion), "game version whose key layout is used in the handshake")
	serverID           = flag.Uint("server_id", 0, "server id stamped on outgoing IPC messages")
	serviceAccountName = flag.String("service_account_name", lobby.DefaultServiceAccountName, "name of the service account offered to clients")

	keyLayoutsPath string
)

func setupFilePathFlags() {
	paths.SetupFilePathFlag(flag.CommandLine, "keylayouts.yaml", "key_layouts_path", &keyLayoutsPath)
}

// openDataFile opens path. A bare file name not present in the working
// directory is looked up in the data file directories known to paths.
func openDataFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err == nil || filepath.Base(path) != path || !os.IsNotExist(err) {
		return f, err
	}
	return paths.Open(path)
}

// loadKeyLayouts returns the built-in key layouts, overridden by those in
// path if it is not empty.
func loadKeyLayouts(path string) (secrets.KeyLayouts, error) {
	layouts := secrets.DefaultKeyLayouts()
	if path == "" {
		return layouts, nil
	}
	f, err := openDataFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening key layouts")
	}
	defer f.Close()
	extra, err := secrets.LoadKeyLayouts(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading key layouts from %s", path)
	}
	glog.Infof("loaded %d key layouts from %s", len(extra), path)
	return layouts.Merge(extra), nil
}

func configFromFlags() (lobby.Config, error) {
	cfg := lobby.DefaultConfig()
	if *gameVersion > 0xffff {
		return cfg, errors.Errorf("game version %d out of range", *gameVersion)
	}
	if *serverID > 0xffff {
		return cfg, errors.Errorf("server id %d out of range", *serverID)
	}

	layouts, err := loadKeyLayouts(keyLayoutsPath)
	if err != nil {
		return cfg, err
	}
	cfg.KeyLayouts = layouts
	cfg.GameVersion = uint16(*gameVersion)
	cfg.ServerID = uint16(*serverID)
	cfg.ServiceAccountName = *serviceAccountName
	cfg.ReadTimeout = *readTimeout
	cfg.WriteTimeout = *writeTimeout
	cfg.MaxPacketSize = *maxPacketSize
	cfg.PacketsPerSecond = *packetsPerSecond
	cfg.PacketBurst = *packetBurst
	return cfg, nil
}

func run(ctx context.Context) error {
	cfg, err := configFromFlags()
	if err != nil {
		return err
	}
	srv, err := lobby.NewServer(cfg)
	if err != nil {
		return err
	}
	reg := metrics.NewRegistry()
	srv.SetObserver(metrics.NewObserver(reg))

	l, err := listenConfig().Listen(ctx, "tcp", *listenAddress)
	if err != nil {
		return errors.Wrap(err, "listening")
	}
	glog.Infof("lobbyserv now listening on %s", l.Addr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ServeListener(ctx, l)
	})

	if *debugWebServer != "" {
		hs := &http.Server{
			Addr:    *debugWebServer,
			Handler: debugHandler(reg, cfg.KeyLayouts),
		}
		g.Go(func() error {
			if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "debug web server")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func main() {
	setupFilePathFlags()
	flagutil.Parse()
	glog.Infoln("starting lobbyserv")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		glog.Exitln(err)
	}
	glog.Infoln("lobbyserv stopped")
	glog.Flush()
}
