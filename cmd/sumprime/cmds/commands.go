package cmds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/sumprime/sumprime/cmd/sumprime/cmds/helphelpers"
	"github.com/sumprime/sumprime/pkg/config"
	"github.com/sumprime/sumprime/pkg/logflags"
	"github.com/sumprime/sumprime/pkg/prime"
	"github.com/sumprime/sumprime/pkg/report"
	"github.com/sumprime/sumprime/pkg/terminal"
	"github.com/sumprime/sumprime/pkg/timing"
	"github.com/sumprime/sumprime/pkg/version"
	"github.com/sumprime/sumprime/service"
	"github.com/sumprime/sumprime/service/coordinator"
	"github.com/sumprime/sumprime/service/rpc2"
	"github.com/sumprime/sumprime/service/rpccommon"
	"github.com/sumprime/sumprime/service/worker"
)

const (
	defaultListen = "127.0.0.1:5000"
	// drainTimeout is how long a finished coordinator keeps serving so
	// that its workers can say goodbye.
	drainTimeout = 5 * time.Second
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// configPath is the path of the configuration file.
	configPath string

	// limit is the exclusive upper bound of the summation.
	limit int64
	// workers is the number of goroutines summing locally.
	workers int
	// clockName selects the clock used for timing.
	clockName string

	// addr is the coordinator listen address.
	addr string
	// chunks is the number of jobs the range is split into.
	chunks int
	// storePath is the file partial results are persisted to.
	storePath string
	// lease is how long a job may be held by a worker.
	lease time.Duration
	// acceptMulti allows multiple workers to connect to the same coordinator.
	acceptMulti bool
	// localWorkers is the number of workers the coordinator runs in process.
	localWorkers int

	// workerID identifies a worker to the coordinator.
	workerID string

	// initConfig makes the config subcommand write the default file.
	initConfig bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command
)

const sumprimeCommandLongDesc = `sumprime sums all prime numbers below a limit using trial division.

With no arguments it sums the primes below 1,000,000 on a single goroutine
and reports the sum and the elapsed time:

	Sum: 37550402023
	Time: 0.42 seconds

The same summation can be spread over several machines: start a coordinator
with 'sumprime serve' and point any number of 'sumprime work' processes at it.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Main sumprime root command.
	rootCommand = &cobra.Command{
		Use:   "sumprime",
		Short: "sumprime sums the primes below a limit.",
		Long:  sumprimeCommandLongDesc,
		Args:  cobra.NoArgs,
		Run:   sumCmd,
	}

	rootCommand.PersistentFlags().Int64Var(&limit, "limit", prime.DefaultLimit, "Exclusive upper bound of the summation.")
	rootCommand.PersistentFlags().IntVar(&workers, "workers", 1, "Number of goroutines summing locally, 0 means one per CPU.")
	rootCommand.PersistentFlags().StringVar(&clockName, "clock", timing.WallClockName, `Clock used for timing (see 'sumprime help clock').`)
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "Path of the configuration file (default ~/.sumprime/config.yml).")

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'sumprime help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'sumprime help log').")

	// 'serve' subcommand.
	serveCommand := &cobra.Command{
		Use:   "serve",
		Short: "Run a coordinator handing out ranges to workers.",
		Long: `Run a coordinator handing out ranges to workers.

The range [2, limit) is split into chunks. Workers started with 'sumprime work'
ask for one chunk at a time and report its partial sum. A chunk that is not
reported within the lease is handed to the next worker that asks.

Once every chunk has a result the coordinator prints the sum and the time
elapsed since the first chunk was handed out, and exits. With --store the
partial results are kept in a file and a restarted coordinator resumes
where the previous one stopped.`,
		Args: cobra.NoArgs,
		Run:  serveCmd,
	}
	serveCommand.Flags().StringVarP(&addr, "listen", "l", defaultListen, "Coordinator listen address.")
	serveCommand.Flags().IntVar(&chunks, "chunks", coordinator.DefaultChunks, "Number of jobs the range is split into.")
	serveCommand.Flags().StringVar(&storePath, "store", "", "File partial results are persisted to, empty keeps them in memory.")
	serveCommand.Flags().DurationVar(&lease, "lease", coordinator.DefaultLease, "How long a worker may hold a job before it is handed out again.")
	serveCommand.Flags().BoolVarP(&acceptMulti, "accept-multiclient", "", true, "Allows the coordinator to accept multiple worker connections.")
	serveCommand.Flags().IntVar(&localWorkers, "local-workers", 0, "Number of workers to run inside the coordinator process.")
	rootCommand.AddCommand(serveCommand)

	// 'work' subcommand.
	workCommand := &cobra.Command{
		Use:   "work addr",
		Short: "Run a worker for the coordinator at addr.",
		Long: `Run a worker for the coordinator at addr.

The worker asks the coordinator for jobs until none are left and exits.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 || args[0] == "" {
				return errors.New("you must provide the coordinator address as the first argument")
			}
			return nil
		},
		Run: workCmd,
	}
	workCommand.Flags().StringVar(&workerID, "worker-id", "", "Name reported to the coordinator (default the host name).")
	rootCommand.AddCommand(workCommand)

	// 'connect' subcommand.
	connectCommand := &cobra.Command{
		Use:   "connect addr",
		Short: "Connect a console to a coordinator.",
		Long: `Connect a console to the coordinator at addr.

The console shows the progress of the summation and the partial results.
Type 'help' at the prompt for a list of commands.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 || args[0] == "" {
				return errors.New("you must provide an address as the first argument")
			}
			return nil
		},
		Run: connectCmd,
	}
	rootCommand.AddCommand(connectCommand)

	// 'config' subcommand.
	configCommand := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration.",
		Long: `Print the effective configuration.

Values are taken from the command line flags, then from the configuration
file, then from the built-in defaults. With --init a configuration file with
every option commented out is written, an existing file is never overwritten.`,
		Args: cobra.NoArgs,
		Run:  configCmd,
	}
	configCommand.Flags().BoolVar(&initConfig, "init", false, "Write the default configuration file.")
	rootCommand.AddCommand(configCommand)

	// 'version' subcommand.
	var versionVerbose = false
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sumprime\n%s\n", version.SumprimeVersion)
			if versionVerbose {
				fmt.Printf("Build Details: %s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "clock",
		Short: "Help about the --clock flag.",
		Long: `The --clock flag selects how the summation is timed, possible values
are:

	wall	Monotonic wall clock time (default).
	cpu	CPU time, user plus system, consumed by the whole process.

With more than one worker goroutine the cpu clock adds up the time of
every goroutine and usually reports more than the wall clock.
The cpu clock is not available on every platform.

`})

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	prime		Log local summation
	coordinator	Log job assignment and results (default)
	worker		Log jobs processed by a worker
	rpc		Log all RPC messages
	store		Log result store reads and writes

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	rootCommand.DisableAutoGenTag = true

	usage := rootCommand.UsageFunc()
	rootCommand.SetUsageFunc(func(cmd *cobra.Command) error {
		helphelpers.Prepare(cmd)
		return usage(cmd)
	})

	return rootCommand
}

// options is the configuration resolved from flags, config file and
// defaults.
type options struct {
	limit   int64
	workers int
	clock   timing.Clock
	listen  string
	chunks  int
	store   string
	lease   time.Duration

	// limitFromConfig is set when the config file changed the limit.
	limitFromConfig bool
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// loadOptions merges the flag values of cmd with conf. Flags given on the
// command line win over the config file.
func loadOptions(cmd *cobra.Command, conf *config.Config) (options, error) {
	opts := options{
		limit:   limit,
		workers: workers,
		listen:  addr,
		chunks:  chunks,
		store:   storePath,
		lease:   lease,
	}
	if opts.listen == "" {
		opts.listen = defaultListen
	}
	if opts.chunks == 0 {
		opts.chunks = coordinator.DefaultChunks
	}
	if opts.lease == 0 {
		opts.lease = coordinator.DefaultLease
	}
	name := clockName

	if conf != nil {
		if conf.Limit != nil && !changed(cmd, "limit") {
			opts.limitFromConfig = *conf.Limit != opts.limit
			opts.limit = *conf.Limit
		}
		if conf.Workers != nil && !changed(cmd, "workers") {
			opts.workers = *conf.Workers
		}
		if conf.Clock != "" && !changed(cmd, "clock") {
			name = conf.Clock
		}
		if conf.Listen != "" && !changed(cmd, "listen") {
			opts.listen = conf.Listen
		}
		if conf.Chunks != nil && !changed(cmd, "chunks") {
			opts.chunks = *conf.Chunks
		}
		if conf.Store != "" && !changed(cmd, "store") {
			opts.store = conf.Store
		}
		if conf.Lease != "" && !changed(cmd, "lease") {
			d, err := time.ParseDuration(conf.Lease)
			if err != nil {
				return opts, fmt.Errorf("invalid lease %q in config file: %v", conf.Lease, err)
			}
			opts.lease = d
		}
	}

	if opts.limit < 0 {
		return opts, fmt.Errorf("limit must not be negative, got %d", opts.limit)
	}
	if opts.limit > prime.MaxLimit {
		return opts, fmt.Errorf("limit %d exceeds the maximum of %d", opts.limit, prime.MaxLimit)
	}
	if opts.workers < 0 {
		return opts, fmt.Errorf("workers must not be negative, got %d", opts.workers)
	}
	if opts.workers == 0 {
		opts.workers = runtime.GOMAXPROCS(0)
	}
	if opts.chunks < 1 {
		return opts, fmt.Errorf("chunks must be at least 1, got %d", opts.chunks)
	}
	if opts.lease <= 0 {
		return opts, fmt.Errorf("lease must be positive, got %v", opts.lease)
	}
	var err error
	if opts.clock, err = timing.ParseClock(name); err != nil {
		return opts, err
	}
	return opts, nil
}

// setup configures logging and resolves the options of cmd. On failure
// the error is printed and ok is false.
func setup(cmd *cobra.Command) (opts options, ok bool) {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return opts, false
	}
	opts, err := loadOptions(cmd, config.LoadConfig(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return opts, false
	}
	if opts.limitFromConfig {
		fmt.Fprintf(os.Stderr, "Using limit %d from the config file\n", opts.limit)
	}
	return opts, true
}

func sumCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		opts, ok := setup(cmd)
		defer logflags.Close()
		if !ok {
			return 1
		}
		return sum(opts, os.Stdout)
	}()
	os.Exit(status)
}

// sum runs the summation locally and writes the report to stdout.
func sum(opts options, stdout io.Writer) int {
	var (
		p   prime.Partial
		err error
	)
	elapsed, clockErr := timing.Measure(opts.clock, func() {
		p, err = prime.SumParallel(context.Background(), opts.limit, opts.workers)
	})
	if err == nil {
		err = clockErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	logflags.PrimeLogger().Debugf("%d primes below %d on %d workers, largest %d", p.Count, opts.limit, opts.workers, p.Largest)
	if err := report.Write(stdout, report.Result{Sum: p.Sum, Elapsed: elapsed}); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func serveCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		opts, ok := setup(cmd)
		defer logflags.Close()
		if !ok {
			return 1
		}
		return serve(opts, os.Stdout)
	}()
	os.Exit(status)
}

func serve(opts options, stdout io.Writer) int {
	listener, err := net.Listen("tcp", opts.listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "couldn't start listener: %s\n", err)
		return 1
	}

	var disconnectChan chan struct{}
	if !acceptMulti {
		disconnectChan = make(chan struct{})
	}
	server := rpccommon.NewServer(&service.Config{
		Listener:       listener,
		AcceptMulti:    acceptMulti,
		Limit:          opts.limit,
		Chunks:         opts.chunks,
		Lease:          opts.lease,
		StorePath:      opts.store,
		DisconnectChan: disconnectChan,
	})
	if err := server.Run(); err != nil {
		listener.Close()
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer server.Stop()
	fmt.Fprintf(os.Stderr, "Coordinator listening at: %s\n", listener.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := startLocalWorkers(ctx, server, localWorkers); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	c := server.Coordinator()
	if !waitForCompletion(c, disconnectChan) {
		fmt.Fprintln(os.Stderr, "coordinator stopped before every chunk was processed")
		return 1
	}
	agg := c.Aggregate()
	if err := report.Write(stdout, report.Result{Sum: agg.Sum, Elapsed: agg.Elapsed()}); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	drain(c)
	return 0
}

// startLocalWorkers runs n workers connected to server through in-memory
// pipes.
func startLocalWorkers(ctx context.Context, server *rpccommon.ServerImpl, n int) error {
	for i := 0; i < n; i++ {
		clientConn, serverConn := net.Pipe()
		server.ServeConn(serverConn)
		client := rpc2.NewClientFromConn(clientConn)
		id := fmt.Sprintf("local-%d", i)
		w, err := worker.New(client, id, worker.DefaultCacheSize)
		if err != nil {
			client.Disconnect()
			return err
		}
		go func() {
			defer client.Disconnect()
			if _, err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logflags.WorkerLogger().WithField("worker", id).Errorf("local worker stopped: %v", err)
			}
		}()
	}
	return nil
}

// waitForCompletion blocks until every chunk has a result, returning
// true, or until SIGINT or the disconnection of the only client, returning
// false. Progress is printed while waiting if stderr is a terminal.
func waitForCompletion(c *coordinator.Coordinator, disconnectChan <-chan struct{}) bool {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	var progress io.Writer
	var tick <-chan time.Time
	if isatty.IsTerminal(os.Stderr.Fd()) {
		progress = colorable.NewColorableStderr()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		tick = ticker.C
	}
	printProgress := func() {
		if progress != nil {
			p := c.Progress()
			fmt.Fprintf(progress, "\rProgress: %d/%d chunks processed", p.Done, p.Total)
		}
	}

	printProgress()
	for {
		select {
		case <-c.Done():
			if progress != nil {
				printProgress()
				fmt.Fprintln(progress)
			}
			return true
		case <-tick:
			printProgress()
		case <-ch:
			return false
		case <-disconnectChan:
			select {
			case <-c.Done():
				return true
			default:
				return false
			}
		}
	}
}

// drain keeps the coordinator serving until every worker said goodbye or
// drainTimeout expires.
func drain(c *coordinator.Coordinator) {
	deadline := time.Now().Add(drainTimeout)
	for c.Progress().Workers > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
}

func workCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := logflags.Setup(log, logOutput, logDest); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		id := workerID
		if id == "" {
			var err error
			if id, err = os.Hostname(); err != nil {
				fmt.Fprintf(os.Stderr, "could not determine worker id: %v\n", err)
				return 1
			}
		}
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return work(ctx, args[0], id, os.Stdout)
	}()
	os.Exit(status)
}

func work(ctx context.Context, addr, id string, stdout io.Writer) int {
	client, err := rpc2.NewClient(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", addr, err)
		return 1
	}
	defer client.Disconnect()

	w, err := worker.New(client, id, worker.DefaultCacheSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	stats, err := w.Run(ctx)
	fmt.Fprintf(stdout, "Worker %s processed %d jobs (%d cached), partial sum %d\n", id, stats.Jobs, stats.Cached, stats.Sum)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func connectCmd(cmd *cobra.Command, args []string) {
	os.Exit(connect(args[0]))
}

func connect(addr string) int {
	client, err := rpc2.NewClient(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", addr, err)
		return 1
	}
	term := terminal.New(client)
	status, err := term.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return status
}

func configCmd(cmd *cobra.Command, args []string) {
	if initConfig {
		path, err := config.WriteDefaultConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration file written to %s\n", path)
		return
	}
	opts, err := loadOptions(cmd, config.LoadConfig(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := printConfig(os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func printConfig(w io.Writer, opts options) error {
	conf := config.Config{
		Limit:   &opts.limit,
		Workers: &opts.workers,
		Clock:   opts.clock.Name(),
		Listen:  opts.listen,
		Chunks:  &opts.chunks,
		Store:   opts.store,
		Lease:   opts.lease.String(),
	}
	out, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
