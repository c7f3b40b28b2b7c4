package start

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/api"
	"github.com/DE-labtory/lotto/config"
	"github.com/DE-labtory/lotto/core"
	"github.com/DE-labtory/lotto/elgamal"
	"github.com/DE-labtory/lotto/log"
	"github.com/DE-labtory/lotto/oracle"
	"github.com/DE-labtory/lotto/store"
	kitlog "github.com/go-kit/kit/log"
	"github.com/kyokomi/emoji"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const (
	eventBuffer   = 256
	traceInterval = 5 * time.Second
)

func Cmd() cli.Command {
	return cli.Command{
		Name:  "start",
		Usage: "lotto start",
		Action: func(c *cli.Context) error {
			return startLotto(config.Get())
		},
	}
}

// Node is a running ledger with its store, oracle relayer and HTTP API.
type Node struct {
	store   *store.BoltStore
	relayer *oracle.Relayer
	lottery *core.Lottery
	events  *lotto.EventChannel
	tracer  *lotto.EventTracer
	server  *http.Server
	done    chan struct{}
}

func startLotto(conf *config.Config) error {
	if err := log.SetLevel(conf.Log.Level); err != nil {
		return err
	}
	if conf.Log.File != "" {
		if err := log.EnableFileLogger(true, conf.Log.File); err != nil {
			return err
		}
	}

	n, err := NewNode(conf)
	if err != nil {
		emoji.Println(":broken_heart: start failed with error: %s", err)
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- n.Serve()
	}()
	emoji.Printf(":slot_machine: lotto serving at %s, round %d\n", conf.Api.Address, n.lottery.RoundNumber())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info("message", "shutting down", "signal", s.String())
	case err = <-serveErr:
		log.Error("message", "http server closed", "err", err)
	}
	n.Close()
	return nil
}

func NewNode(conf *config.Config) (*Node, error) {
	admin, err := lotto.ToAddress(conf.Identity.Admin)
	if err != nil {
		return nil, errors.Wrap(err, "admin address")
	}
	keys, err := elgamal.LoadKeySet(conf.Committee.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "load committee keys")
	}
	oracleAddr, err := oracleAddress(conf.Identity.Oracle, keys)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(conf.Store.Path)
	if err != nil {
		return nil, err
	}
	relayer := oracle.NewRelayer(oracleAddr, keys, conf.Committee.PollInterval)
	tracer := lotto.NewEventTracer()
	events := lotto.NewEventChannel(eventBuffer)

	l, err := core.New(core.Options{
		Admin:         admin,
		OracleAddress: oracleAddr,
		TicketPrice:   lotto.Amount(conf.Lottery.TicketPrice),
		Cooldown:      conf.Lottery.Cooldown,
		Context:       []byte(conf.Identity.Contract),
		Verifier:      elgamal.NewVerifier(keys.Public),
		Selector:      elgamal.NewSelector(keys.Public),
		Oracle:        relayer,
		Attestation:   oracle.NewVerifier(keys.SignerPublic()),
		Payout:        st,
		Events:        lotto.MultiSender{tracer, events},
		Store:         st,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	relayer.Bind(l)
	if req, ok := l.PendingRequest(); ok {
		log.Info("message", "resuming pending draw", "request", req.ID, "round", req.Round)
		if err := relayer.RequestDecryption(req); err != nil {
			l.Close()
			st.Close()
			return nil, err
		}
	}
	relayer.Start()

	httpLogger := kitlog.With(log.Logger(), "component", "http")
	n := &Node{
		store:   st,
		relayer: relayer,
		lottery: l,
		events:  events,
		tracer:  tracer,
		server: &http.Server{
			Addr:    conf.Api.Address,
			Handler: api.NewApiHandler(l, httpLogger),
		},
		done: make(chan struct{}),
	}
	go n.watch()
	return n, nil
}

// watch logs ledger events and flushes the event trace.
func (n *Node) watch() {
	ticker := time.NewTicker(traceInterval)
	defer ticker.Stop()
	for {
		select {
		case e := <-n.events.Receive():
			log.Debug("event", string(e.Type), "round", e.Round)
		case <-ticker.C:
			n.tracer.Trace()
			if dropped := n.events.Dropped(); dropped > 0 {
				log.Warn("message", "events dropped", "count", dropped)
			}
		case <-n.done:
			return
		}
	}
}

// Serve blocks until the HTTP server stops.
func (n *Node) Serve() error {
	log.Info("message", "http server started", "address", n.server.Addr)
	return n.server.ListenAndServe()
}

func (n *Node) Lottery() *core.Lottery {
	return n.lottery
}

func (n *Node) Store() *store.BoltStore {
	return n.store
}

// Close stops the server, then the relayer, the ledger and the store.
func (n *Node) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.server.Shutdown(ctx); err != nil {
		log.Error("message", "http shutdown", "err", err)
	}
	n.relayer.Close()
	n.lottery.Close()
	close(n.done)
	n.tracer.Trace()
	if err := n.store.Close(); err != nil {
		log.Error("message", "store close", "err", err)
	}
}

func oracleAddress(configured string, keys *elgamal.KeySet) (lotto.Address, error) {
	if configured != "" {
		addr, err := lotto.ToAddress(configured)
		return addr, errors.Wrap(err, "oracle address")
	}
	return oracle.AddressOf(keys.SignerPublic())
}
