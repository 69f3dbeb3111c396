// storage-serviced is the privileged broker daemon: it connects to the
// system bus, builds every domain handler over a real block-daemon
// adapter, exports them, and runs until signaled to stop, with a
// background metrics/health server and a startup banner reporting what
// got wired up.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/adapter/system"
	"github.com/storagebroker/service/pkg/adapter/udisks"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/busserver"
	"github.com/storagebroker/service/pkg/handlers"
	"github.com/storagebroker/service/pkg/hotplug"
	"github.com/storagebroker/service/pkg/imageengine"
	"github.com/storagebroker/service/pkg/log"
	"github.com/storagebroker/service/pkg/metrics"
	"github.com/storagebroker/service/pkg/rclone"
	"github.com/storagebroker/service/pkg/signalbus"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "storage-serviced",
	Short:   "Privileged storage-management broker daemon",
	Version: Version,
	RunE:    runDaemon,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("storage-serviced version %s\nCommit: %s\n", Version, Commit))

	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().Bool("fake-daemon", false, "Use an in-memory fake block daemon instead of connecting to the system bus (development only)")
	rootCmd.Flags().String("mount-markers-path", "/etc/storagebroker/mount-on-boot.conf", "Path to the mount-on-boot marker file")
	rootCmd.Flags().String("action-catalog", "", "Path to a YAML action catalog; empty uses an allow-all stub backend")
	rootCmd.Flags().String("rclone-binary", "", "Path to the rclone binary; empty resolves rclone from PATH")
	rootCmd.Flags().String("ledger-path", "/var/lib/storagebroker/operations.db", "Path to the image-operation audit ledger")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics, /health, /ready, /live on")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

	fakeDaemon, _ := cmd.Flags().GetBool("fake-daemon")
	markersPath, _ := cmd.Flags().GetString("mount-markers-path")
	catalogPath, _ := cmd.Flags().GetString("action-catalog")
	rcloneBinary, _ := cmd.Flags().GetString("rclone-binary")
	ledgerPath, _ := cmd.Flags().GetString("ledger-path")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var daemon adapter.BlockDaemon
	var conn *dbus.Conn
	if fakeDaemon {
		daemon = udisks.NewFake()
		fmt.Println("  Block daemon: in-memory fake (development mode)")
	} else {
		client, err := udisks.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("connect to block daemon: %w", err)
		}
		daemon = client
		conn = client.Conn()
		fmt.Println("  Block daemon: system bus")
	}

	busConn := conn
	if busConn == nil {
		c, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("connect to system bus: %w", err)
		}
		busConn = c
	}

	bus := signalbus.New()
	sys := system.New(markersPath)

	var backend auth.PolicyBackend
	if catalogPath != "" {
		cb, err := auth.LoadCatalog(catalogPath)
		if err != nil {
			return fmt.Errorf("load action catalog: %w", err)
		}
		backend = cb
		fmt.Printf("  Authorization: action catalog %s\n", catalogPath)
	} else {
		backend = auth.NewStubBackend()
		fmt.Println("  Authorization: allow-all stub (no --action-catalog given)")
	}
	gate := auth.New(backend, busserver.NewSenderResolver(busConn))

	ledger, err := bolt.Open(ledgerPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("open operation ledger: %w", err)
	}
	defer ledger.Close()

	engine, err := imageengine.New(daemon, bus, ledger)
	if err != nil {
		return fmt.Errorf("build image engine: %w", err)
	}
	defer engine.Stop()

	fsHandler, err := handlers.NewFilesystems(ctx, daemon, sys, gate, bus)
	if err != nil {
		return fmt.Errorf("build filesystems handler: %w", err)
	}

	rcloneBroker := rclone.NewBroker(sys, &rclone.CLI{BinaryPath: rcloneBinary})

	h := busserver.Handlers{
		Disks:       handlers.NewDisks(daemon, gate, bus),
		Filesystems: fsHandler,
		Luks:        handlers.NewLuks(daemon, sys, gate, bus),
		Image:       handlers.NewImage(engine, gate),
		Rclone:      handlers.NewRclone(rcloneBroker, gate, bus),
		Logical:     handlers.NewLogical(daemon, gate),
		Btrfs:       handlers.NewBtrfs(daemon, gate),
	}

	server := busserver.New(busConn, h, bus)
	if err := server.Export(); err != nil {
		return fmt.Errorf("export bus objects: %w", err)
	}
	go server.Run(ctx)
	fmt.Printf("✓ Exported %s on the bus\n", busserver.BusName)

	bridge := hotplug.New(daemon, bus)
	go func() {
		if err := bridge.Run(ctx); err != nil && err != context.Canceled {
			log.WithComponent("main").Error().Err(err).Msg("hot-plug bridge stopped")
		}
	}()

	collector := metrics.NewCollector(daemon)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("bus", true, "ready")
	metrics.RegisterComponent("handlers", true, "ready")
	if _, err := daemon.ListDisks(ctx); err != nil {
		metrics.RegisterComponent("adapter", false, err.Error())
	} else {
		metrics.RegisterComponent("adapter", true, "ready")
	}

	errCh := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)

	fmt.Println()
	fmt.Println("storage-serviced is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
	}

	cancel()
	fmt.Println("✓ Shutdown complete")
	return nil
}
