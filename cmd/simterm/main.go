package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/dispatchlab/simterm/internal/channel"
	"github.com/dispatchlab/simterm/internal/config"
	"github.com/dispatchlab/simterm/internal/datalog"
	"github.com/dispatchlab/simterm/internal/debugsrv"
	"github.com/dispatchlab/simterm/internal/dispatcher"
	"github.com/dispatchlab/simterm/internal/predictor"
	"github.com/dispatchlab/simterm/internal/publisher"
	"github.com/dispatchlab/simterm/internal/queue"
	"github.com/dispatchlab/simterm/internal/subscriber"
	"github.com/dispatchlab/simterm/internal/variable"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	configPath = flag.String("config", "", "Path to the dispatcher's JSON configuration file.")
	promPort   = flag.String("prom", ":9090", "Prometheus metrics export address and port.")
	debugPort  = flag.String("debug", ":9091", "Introspection HTTP endpoint address and port.")
	csvPath    = flag.String("csv", "", "If set, append every delivered event's variables to this CSV file.")
	eventSock  = flag.String("event-socket", "", "If set, broadcast every delivered event as JSONL on this Unix domain socket.")

	ctx, cancel = context.WithCancel(context.Background())
)

// Exit codes per spec.md §6: 0 on normal termination at stopTime;
// distinct non-zero codes for configuration error, solver error,
// invalid argument, and unspecified error.
const (
	exitOK = iota
	exitConfigError
	exitSolverError
	exitInvalidArgument
	exitUnspecified
)

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "simterm: -config is required")
		os.Exit(exitInvalidArgument)
	}

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)

	tree, err := config.Load(*configPath)
	rtx.Must(err, "Could not load configuration from %s", *configPath)

	drawer := variable.NewDrawer()
	inMap, err := channel.FromConfig(drawer, tree.InChannels())
	rtx.Must(err, "Invalid input channel configuration")
	outMap, err := channel.FromConfig(drawer, tree.OutChannels())
	rtx.Must(err, "Invalid output channel configuration")

	q := queue.New()

	manager := predictor.NewManager()
	defer manager.Close()
	// Loading a real FMU is out of the CORE's scope per spec.md §1;
	// predictor.NoopModel stands in so this binary is runnable against a
	// real network topology without a real numerical model.
	onestep := predictor.NewOneStepEventPredictor(
		predictor.NoopModel{}, tree.LookAheadStepSize(), tree.VariableStepSizeOnModelEvent())

	d := dispatcher.New(q, onestep, tree.StopTime())
	d.Register(onestep)

	subs := make([]*subscriber.Subscriber, 0, len(inMap.Channels))
	for _, ch := range inMap.Channels {
		s := subscriber.New(ch, q, net.Dial)
		rtx.Must(s.InitAndStart(), "Could not start subscriber for channel %s", ch.ID)
		d.RegisterErrorSource(s)
		subs = append(subs, s)
	}

	for _, ch := range outMap.Channels {
		transport, err := newTransport(ch)
		rtx.Must(err, "Could not connect publisher for channel %s", ch.ID)
		p, err := publisher.New(ch, transport)
		rtx.Must(err, "Invalid publisher configuration for channel %s", ch.ID)
		d.Register(p)
	}

	if *csvPath != "" {
		f, err := os.OpenFile(*csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		rtx.Must(err, "Could not open CSV output file %s", *csvPath)
		defer f.Close()
		d.Register(datalog.New(f))
	}

	if *eventSock != "" {
		stream := debugsrv.NewEventStream(*eventSock)
		rtx.Must(stream.Listen(), "Could not listen on event socket %s", *eventSock)
		go stream.Serve(ctx)
		d.Register(stream)
	}

	dbg := debugsrv.New(q, inMap)
	go func() {
		if err := http.ListenAndServe(*debugPort, dbg); err != nil {
			log.Printf("simterm: debug server stopped: %v", err)
		}
	}()

	q.InitStartTimeNow(tree.StartTime())

	runErr := d.Run()
	for _, s := range subs {
		s.Terminate()
	}
	cancel()

	var solverErr *predictor.ErrSolver
	switch {
	case runErr == dispatcher.ErrStopTimeReached:
		os.Exit(exitOK)
	case errors.As(runErr, &solverErr):
		log.Printf("simterm: run aborted by solver error: %v", runErr)
		os.Exit(exitSolverError)
	case runErr != nil:
		log.Printf("simterm: run aborted: %v", runErr)
		os.Exit(exitUnspecified)
	}
}

// newTransport dials ch's connection and wraps it as the publisher.Transport
// its "protocol" config selects (spec.md §4.7/§6): "udp", or TCP by default.
func newTransport(ch *channel.Channel) (publisher.Transport, error) {
	addr := ch.Config["addr"]
	if strings.EqualFold(ch.Config["protocol"], "udp") {
		conn, err := net.Dial("udp", addr)
		if err != nil {
			return nil, err
		}
		return publisher.NewUDPTransport(conn.(net.PacketConn), conn.RemoteAddr()), nil
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return publisher.NewTCPTransport(conn), nil
}
