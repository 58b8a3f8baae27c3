package cmd

import (
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"scarabd/internal/config"
	"scarabd/internal/domain"
	"scarabd/internal/ipc"
	"scarabd/internal/plugin"
	"scarabd/internal/pluginhost"
	"scarabd/internal/sessionmgr"
	"scarabd/internal/sessionstore"
	"scarabd/internal/shm"
	"scarabd/internal/socketdir"
	"scarabd/internal/term"
)

func newRunCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the daemon",
		Long: `Start scarab-daemon. By default it detaches into the background and
this command returns once the daemon's socket is ready to accept
connections; use --foreground to block in the current process instead
(useful under a supervisor, or for debugging).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if foreground {
				return runForeground()
			}

			out := termenv.NewOutput(cmd.OutOrStdout())
			fmt.Fprintln(out, out.String("starting scarab-daemon...").Foreground(termenv.ANSIYellow))
			if err := forkDaemon(); err != nil {
				return err
			}
			fmt.Fprintln(out, out.String("scarab-daemon started").Foreground(termenv.ANSIGreen))
			return nil
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in the foreground instead of detaching")
	return cmd
}

// newRunForegroundCmd is the hidden re-exec target forkDaemon spawns;
// kept distinct from `run --foreground` so the fork path never depends
// on flag-parsing defaults matching.
func newRunForegroundCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "_run-foreground",
		Short:  "Run the daemon in the foreground (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForeground()
		},
	}
}

// forkDaemon re-execs the current binary with the hidden foreground
// subcommand, detached from the controlling terminal, then waits for
// its socket to come up (mirrors the teacher's daemon.ForkDaemon).
func forkDaemon() error {
	if err := socketdir.ProbeSocket(socketdir.SocketPath(), "scarab-daemon"); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open /dev/null: %w", err)
	}
	defer devNull.Close()

	proc, err := os.StartProcess(exe, []string{exe, "_run-foreground"}, &os.ProcAttr{
		Files: []*os.File{devNull, devNull, devNull},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if err := proc.Release(); err != nil {
		return fmt.Errorf("detach daemon process: %w", err)
	}

	sockPath := socketdir.SocketPath()
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if _, err := os.Stat(sockPath); err == nil {
			return nil
		}
	}
	return fmt.Errorf("daemon did not start (socket %s not found)", sockPath)
}

// runForeground wires together every daemon component and blocks until
// SIGTERM/SIGINT, returning once shutdown has completed cleanly.
func runForeground() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dom := domain.NewLocal()
	defer dom.Close()

	store, err := sessionstore.Open(socketdir.Dir())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	blobStore, err := shm.CreateBlobStore(socketdir.BlobShmPath(), cfg.BlobRegionBytes)
	if err != nil {
		return fmt.Errorf("create blob region: %w", err)
	}
	defer blobStore.Close()

	dispatcher := plugin.NewDispatcher(pluginhost.New(), cfg.Plugins.HookTimeout, cfg.Plugins.MaxFailures, plugin.Sandbox{
		MaxValueStack:   cfg.Plugins.MaxValueStack,
		MaxCallStack:    cfg.Plugins.MaxCallStack,
		MaxInstructions: cfg.Plugins.MaxInstructions,
	})
	plugins, err := plugin.DiscoverPlugins(cfg.Plugins.Dir)
	if err != nil {
		return fmt.Errorf("discover plugins: %w", err)
	}
	for _, p := range plugins {
		if err := dispatcher.Register(p); err != nil {
			log.Printf("scarab-daemon: plugin %s not registered: %v", p.Meta.Name, err)
		}
	}
	defer dispatcher.Unload()

	defaultCfg := sessionmgr.DefaultConfig{
		Shell:              cfg.DefaultShell,
		Cols:               80,
		Rows:               24,
		ScrollbackCapacity: cfg.ScrollbackCapacity,
		Hooks:              plugin.HookChain{Dispatcher: dispatcher},
		BlobStore:          blobStore,
	}

	mgr := sessionmgr.New(dom, store)
	if err := mgr.RestoreSessions(defaultCfg.Shell, defaultCfg.Cols, defaultCfg.Rows); err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	ipcServer := ipc.NewServer(mgr, defaultCfg)
	ipcServer.SetCommandDispatcher(dispatcher)
	if err := ipcServer.Listen(socketdir.SocketPath()); err != nil {
		return fmt.Errorf("listen on ipc socket: %w", err)
	}
	defer ipcServer.Close()

	region, err := shm.Create(socketdir.ShmPath())
	if err != nil {
		return fmt.Errorf("create shared-memory region: %w", err)
	}
	defer region.Close()

	publisher := shm.NewPublisher(region, cfg.FrameTick())
	driver := shm.NewDriver(publisher, activeStateSource(mgr, defaultCfg), cfg.FrameTick())

	serveErrs := make(chan error, 1)
	go func() { serveErrs <- ipcServer.Serve() }()
	go driver.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-sigCh:
			driver.Stop()
			return nil
		case err := <-serveErrs:
			driver.Stop()
			return fmt.Errorf("ipc server stopped: %w", err)
		case <-cleanupTicker.C:
			if n, err := mgr.CleanupDetachedSessions(cfg.DetachedSessionTTL); err != nil {
				log.Printf("scarab-daemon: cleanup detached sessions: %v", err)
			} else if n > 0 {
				log.Printf("scarab-daemon: cleaned up %d detached session(s)", n)
			}
		}
	}
}

// activeStateSource resolves the default session's active pane as the
// one published into the SharedStateFrame region. scarabd runs one
// daemon per host with one GPU client attached at a time, so "the
// default session's active pane" stands in for "whatever is on
// screen" until multi-client focus tracking exists; the session is
// created on demand (mirroring the IPC server's own binding logic) so
// the region starts publishing before any client has connected.
func activeStateSource(mgr *sessionmgr.Manager, defaultCfg sessionmgr.DefaultConfig) shm.Source {
	return func() (uint64, *term.TerminalState, bool) {
		sess, err := mgr.GetOrCreateByName(ipc.DefaultSessionName, defaultCfg)
		if err != nil {
			return 0, nil, false
		}
		p, err := sess.ActivePane()
		if err != nil {
			return 0, nil, false
		}
		return sessionHash(string(sess.ID)), p.State(), true
	}
}

func sessionHash(id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64()
}
