// ABOUTME: Entry point for the SendSpin player
// ABOUTME: Loads config, finds a server and runs session, playback, UI and metrics together
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Sendspin/sendspin-client/internal/artwork"
	"github.com/Sendspin/sendspin-client/internal/config"
	"github.com/Sendspin/sendspin-client/internal/discovery"
	"github.com/Sendspin/sendspin-client/internal/metrics"
	"github.com/Sendspin/sendspin-client/internal/output"
	"github.com/Sendspin/sendspin-client/internal/transport"
	"github.com/Sendspin/sendspin-client/internal/ui"
	"github.com/Sendspin/sendspin-client/internal/version"
	"github.com/Sendspin/sendspin-client/pkg/protocol"
	"github.com/Sendspin/sendspin-client/pkg/sendspin"
)

var log = logging.Logger("sendspin/player")

var (
	configPath  = flag.String("config", "", "Path to YAML config file")
	serverAddr  = flag.String("server", "", "Server address host:port[/path] (skip mDNS)")
	name        = flag.String("name", "", "Player friendly name (default: hostname)")
	logFile     = flag.String("log-file", "", "Log file path (default: sendspin-player.log with the TUI)")
	metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs  = flag.Bool("stream-logs", false, "Alias for -no-tui")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Errorf("Player stopped: %v", err)
		if !cfg.UI.TUI {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) {
	if *serverAddr != "" {
		cfg.Server.Address = *serverAddr
	}
	if *name != "" {
		cfg.Player.Name = *name
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *metricsAddr != "" {
		cfg.Metrics.Address = *metricsAddr
	}
	if *noTUI || *streamLogs {
		cfg.UI.TUI = false
	}
}

// setupLogging sends logs to a file only when the TUI owns the terminal
func setupLogging(cfg *config.Config) {
	level, _ := logging.LevelFromString(cfg.Log.Level)

	lc := logging.Config{
		Format: logging.ColorizedOutput,
		Level:  level,
		Stderr: !cfg.UI.TUI,
		File:   cfg.Log.File,
	}
	switch cfg.Log.Format {
	case "nocolor":
		lc.Format = logging.PlaintextOutput
	case "json":
		lc.Format = logging.JSONOutput
	}
	if cfg.UI.TUI {
		lc.Format = logging.PlaintextOutput
		if lc.File == "" {
			lc.File = "sendspin-player.log"
		}
	}
	logging.SetupLogging(lc)
}

func run(ctx context.Context, cfg *config.Config) error {
	address := cfg.Server.Address
	if address == "" {
		log.Infof("No server configured, browsing for %s", discovery.ServiceType)
		discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		srv, err := discovery.First(discoverCtx, discovery.Config{Path: cfg.Server.Path})
		cancel()
		if err != nil {
			return fmt.Errorf("no server found: %w", err)
		}
		address = srv.Address()
		log.Infof("Discovered %s at %s", srv.Name, address)
	}

	dialer := transport.NewDialer(transport.Options{Path: cfg.Server.Path})
	sessCfg := cfg.Session()
	sessCfg.Dialer = sendspin.DialerFunc(func(ctx context.Context, addr string) (sendspin.Transport, error) {
		conn, err := dialer.Dial(ctx, addr)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
	sessCfg.DeviceInfo = protocol.DeviceInfo{
		ProductName:     version.Product,
		Manufacturer:    version.Manufacturer,
		SoftwareVersion: version.Version,
	}

	var collector *metrics.PrometheusCollector
	if cfg.Metrics.Address != "" {
		collector = metrics.NewPrometheusCollector()
		sessCfg.Metrics = collector
	}

	var store *artwork.Store
	if cfg.Player.Artwork {
		var err error
		if store, err = artwork.NewStore(""); err != nil {
			return err
		}
		sessCfg.Artwork = &protocol.ArtworkV1Support{Channels: []protocol.ArtworkChannel{
			{Source: "album", Format: "jpeg", MediaWidth: 800, MediaHeight: 800},
		}}
	}

	sess := sendspin.NewSession(sessCfg)
	defer sess.Close()
	if cfg.Player.StaticDelayMs != 0 {
		sess.Clock().SetStaticDelay(cfg.Player.StaticDelayMs)
	}

	// Subscribe before connecting so no event is missed
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	log.Infof("Starting %s as %q", version.Product, cfg.Player.Name)
	if err := sess.Connect(ctx, address); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return output.NewPlayer(sess, output.NewOto(), output.Options{}).Run(ctx)
	})

	g.Go(func() error {
		return handleEvents(ctx, events, store, !cfg.UI.TUI)
	})

	if collector != nil {
		g.Go(func() error {
			log.Infof("Metrics on http://%s/metrics", cfg.Metrics.Address)
			return collector.Serve(ctx, cfg.Metrics.Address)
		})
	}

	if cfg.UI.TUI {
		g.Go(func() error {
			return ui.Run(ctx, sess)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return sess.Disconnect()
	})

	err := g.Wait()
	if errors.Is(err, ui.ErrQuit) || errors.Is(err, sendspin.ErrNotConnected) {
		return nil
	}
	return err
}

// handleEvents stores artwork and, without the TUI, logs what happens
// artworkFetcher downloads artwork URLs off the event loop. A newer URL
// cancels the download still in flight.
type artworkFetcher struct {
	store  *artwork.Store
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (f *artworkFetcher) fetch(ctx context.Context, rawURL string) {
	if f.cancel != nil {
		f.cancel()
	}
	ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if _, err := f.store.Download(ctx, rawURL); err != nil && ctx.Err() == nil {
			log.Warnf("Artwork: %v", err)
		}
	}()
}

func (f *artworkFetcher) stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
}

func handleEvents(ctx context.Context, events <-chan sendspin.Event, store *artwork.Store, verbose bool) error {
	fetcher := &artworkFetcher{store: store}
	defer fetcher.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			switch e := e.(type) {
			case sendspin.ArtworkEvent:
				if store != nil {
					if _, err := store.Save(e.Channel, e.Data); err != nil {
						log.Warnf("Artwork: %v", err)
					}
				}
			case sendspin.MetadataEvent:
				md := e.Metadata
				if store != nil && md.ArtworkURL != nil {
					fetcher.fetch(ctx, *md.ArtworkURL)
				}
				if verbose && md.Title != nil {
					log.Infof("Now playing: %s", describe(md))
				}
			case sendspin.StateEvent:
				if verbose {
					log.Infof("State: %s (buffered %s)", e.State, e.Buffered)
				}
			case sendspin.StreamStartEvent:
				if verbose {
					f := e.Format
					log.Infof("Stream: %s %dHz %dch %d-bit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
				}
			case sendspin.VolumeEvent:
				if verbose {
					log.Infof("Volume %d muted=%v", e.Volume, e.Muted)
				}
			case sendspin.ErrorEvent:
				if e.Terminal {
					return e.Err
				}
			}
		}
	}
}

func describe(md sendspin.TrackMetadata) string {
	s := *md.Title
	if md.Artist != nil {
		s = *md.Artist + " - " + s
	}
	if md.Album != nil {
		s += " (" + *md.Album + ")"
	}
	return s
}
