// Command grossd is the greylisting policy daemon: it binds the Postfix
// and SunJMS MTA front-ends, fans every incoming triplet out to the
// registered checks, and serves a status/metrics endpoint.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samettonyali/gross/internal/bloom"
	"github.com/samettonyali/gross/internal/checks/dnsbl"
	"github.com/samettonyali/gross/internal/checks/greylist"
	"github.com/samettonyali/gross/internal/checks/rhsbl"
	"github.com/samettonyali/gross/internal/checks/spf"
	"github.com/samettonyali/gross/internal/checks/tolerance"
	"github.com/samettonyali/gross/internal/config"
	"github.com/samettonyali/gross/internal/maintenance"
	"github.com/samettonyali/gross/internal/metrics"
	"github.com/samettonyali/gross/internal/mta/postfix"
	"github.com/samettonyali/gross/internal/mta/request"
	"github.com/samettonyali/gross/internal/mta/sunjms"
	"github.com/samettonyali/gross/internal/orchestrator"
	"github.com/samettonyali/gross/internal/peering"
	"github.com/samettonyali/gross/internal/pool"
	"github.com/samettonyali/gross/internal/registry"
	"github.com/samettonyali/gross/internal/statussrv"
	"github.com/samettonyali/gross/internal/version"
)

const requestDeadline = 4 * time.Second

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: grossd [-d] [-r] [-f configfile] [-V]")
	fmt.Fprintln(os.Stderr, "       -d\tRun grossd as a foreground process.")
	fmt.Fprintln(os.Stderr, "       -f\toverride default configfile")
	fmt.Fprintln(os.Stderr, "       -r\tdisable replication")
	fmt.Fprintln(os.Stderr, "       -V\tversion information")
	os.Exit(1)
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		foreground  bool
		noReplicate bool
		configFile  string
		showVersion bool
	)
	flag.BoolVar(&foreground, "d", false, "run in the foreground")
	flag.BoolVar(&noReplicate, "r", false, "disable peer replication")
	flag.StringVar(&configFile, "f", "/etc/gross/gross.conf", "config file path")
	flag.BoolVar(&showVersion, "V", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Println(version.String())
		return 0
	}

	logger := log.New(os.Stderr, "[grossd] ", log.LstdFlags)
	if !foreground {
		logger.SetPrefix("[grossd:daemon] ")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Printf("warning: failed to load %s, using defaults: %v", configFile, err)
		cfg = &config.Config{}
		cfg.ApplyEnvOverrides()
		cfg.ApplyDefaults()
	}

	ring, err := loadOrCreateRing(cfg, logger)
	if err != nil {
		logger.Printf("fatal: %v", err)
		return 1
	}

	reg := registry.New()
	var toleranceCounters []*tolerance.Counter
	var toleranceNames []string

	var replicator peering.Replicator = peering.NoopReplicator{}
	if !noReplicate && cfg.PeerHost != "" {
		addr := net.JoinHostPort(cfg.PeerHost, cfg.PeerPort)
		replicator = peering.NewTCPReplicator(addr, logger)
	}

	greylistChecker := greylist.NewChecker(ring, updatePolicy(cfg.Update)).WithReplicator(replicator)
	reg.Add(registry.Entry{
		Name: "greylist",
		Pool: pool.New("greylist", greylistChecker.Routine, 1, 8, logger),
	})

	if len(cfg.DNSBL) > 0 {
		zones := make([]dnsbl.Zone, 0, len(cfg.DNSBL))
		for _, name := range cfg.DNSBL {
			c := tolerance.NewCounter(cfg.ToleranceCeiling)
			toleranceCounters = append(toleranceCounters, c)
			toleranceNames = append(toleranceNames, "dnsbl:"+name)
			zones = append(zones, dnsbl.Zone{Name: name, Tolerance: c})
		}
		dnsblChecker := dnsbl.NewChecker(zones, nil)
		reg.Add(registry.Entry{
			Name: "dnsbl",
			Pool: pool.New("dnsbl", dnsblChecker.Routine, 1, 8, logger),
		})
	}

	if len(cfg.RHSBL) > 0 {
		zones := make([]rhsbl.Zone, 0, len(cfg.RHSBL))
		for _, name := range cfg.RHSBL {
			c := tolerance.NewCounter(cfg.ToleranceCeiling)
			toleranceCounters = append(toleranceCounters, c)
			toleranceNames = append(toleranceNames, "rhsbl:"+name)
			zones = append(zones, rhsbl.Zone{Name: name, Tolerance: c})
		}
		rhsblChecker := rhsbl.NewChecker(zones, nil)
		reg.Add(registry.Entry{
			Name: "rhsbl",
			Pool: pool.New("rhsbl", rhsblChecker.Routine, 1, 8, logger),
		})
	}

	spfChecker := spf.NewChecker(nil)
	reg.Add(registry.Entry{
		Name:       "spf",
		Definitive: true,
		Pool:       pool.New("spf", spfChecker.Routine, 1, 8, logger),
	})

	met := metrics.New()
	orch := orchestrator.New(reg, cfg.SuspiciousThreshold)

	mloop := maintenance.New(ring, time.Duration(cfg.RotateIntervalSec)*time.Second, toleranceCounters, met.RecordRotation)
	mloop.ToleranceNames = toleranceNames
	mloop.Registry = reg
	mloop.OnPoolSample = met.UpdatePoolStats
	mloop.OnToleranceSample = met.UpdateTolerance
	mloop.OnBloomSample = met.UpdateBloomStats
	go mloop.Run()
	defer mloop.Stop()

	handler := func(req request.Triplet) orchestrator.Outcome {
		start := time.Now()
		outcome := orch.Handle(req, requestDeadline)
		met.RecordRequest("postfix", outcome.Judgment.String(), time.Since(start).Seconds())
		return outcome
	}

	go func() {
		addr := net.JoinHostPort(cfg.Host, cfg.Port)
		srv := postfix.New(addr, handler, requestDeadline, logger)
		if err := srv.ListenAndServe(); err != nil {
			logger.Printf("postfix front-end stopped: %v", err)
		}
	}()

	go func() {
		addr := net.JoinHostPort(cfg.SyncHost, cfg.SyncPort)
		srv := sunjms.New(addr, handler, logger)
		if err := srv.ListenAndServe(); err != nil {
			logger.Printf("sunjms front-end stopped: %v", err)
		}
	}()

	go func() {
		addr := net.JoinHostPort(cfg.StatusHost, cfg.StatusPort)
		srv := statussrv.New(reg, logger)
		if err := srv.ListenAndServe(addr); err != nil {
			logger.Printf("status server stopped: %v", err)
		}
	}()

	waitForShutdown(logger)

	if cfg.StateFile != "" {
		if err := snapshotRing(ring, cfg.StateFile); err != nil {
			logger.Printf("failed to write state file on shutdown: %v", err)
		}
	}

	return 0
}

// mrproperFlag guards the shutdown handler against reentrancy: a second
// signal while cleanup is already in progress re-raises it with the
// default handler, exactly like mrproper() in the original gross.c.
var mrproperFlag atomic.Bool

func waitForShutdown(logger *log.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	if !mrproperFlag.CompareAndSwap(false, true) {
		signal.Reset(sig)
		_ = syscall.Kill(os.Getpid(), sig.(syscall.Signal))
		return
	}
	logger.Printf("received %s, shutting down", sig)

	// A second signal during cleanup re-raises with the default handler
	// instead of being swallowed.
	go func() {
		second := <-sigCh
		signal.Reset(second)
		_ = syscall.Kill(os.Getpid(), second.(syscall.Signal))
	}()
}

func updatePolicy(value string) greylist.UpdatePolicy {
	if value == "always" {
		return greylist.UpdateAlways
	}
	return greylist.UpdateGrey
}

func loadOrCreateRing(cfg *config.Config, logger *log.Logger) (*bloom.Ring, error) {
	if cfg.StateFile == "" {
		return bloom.NewRing(cfg.NumberBuffers, cfg.FilterBits, 4), nil
	}
	f, err := os.Open(cfg.StateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return bloom.NewRing(cfg.NumberBuffers, cfg.FilterBits, 4), nil
		}
		return nil, fmt.Errorf("opening state file: %w", err)
	}
	defer f.Close()

	ring, err := bloom.LoadSnapshot(f, cfg.NumberBuffers, cfg.FilterBits, 4)
	if err != nil {
		logger.Printf("discarding state file %s: %v", cfg.StateFile, err)
		return bloom.NewRing(cfg.NumberBuffers, cfg.FilterBits, 4), nil
	}
	return ring, nil
}

func snapshotRing(ring *bloom.Ring, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ring.Snapshot(f)
}
