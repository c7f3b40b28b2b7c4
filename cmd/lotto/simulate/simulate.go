// Package simulate runs lottery rounds end to end in memory: sealed
// tickets, the encrypted selection, committee decryption and claims.
package simulate

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/core"
	"github.com/DE-labtory/lotto/elgamal"
	"github.com/DE-labtory/lotto/oracle"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/urfave/cli"
)

var contract = []byte("lotto-simulation")

func Cmd() cli.Command {
	return cli.Command{
		Name:      "simulate",
		Usage:     "Run lottery rounds in memory and print every step",
		UsageText: "lotto simulate [--players N] [--rounds N]",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "players", Value: 5, Usage: "players per round"},
			cli.IntFlag{Name: "rounds", Value: 2, Usage: "rounds to play"},
			cli.IntFlag{Name: "threshold", Value: 3, Usage: "committee threshold"},
			cli.IntFlag{Name: "size", Value: 4, Usage: "committee size"},
			cli.Uint64Flag{Name: "price", Value: 100, Usage: "ticket price"},
		},
		Action: func(c *cli.Context) error {
			_, err := Run(Options{
				Players:   c.Int("players"),
				Rounds:    c.Int("rounds"),
				Threshold: c.Int("threshold"),
				Size:      c.Int("size"),
				Price:     lotto.Amount(c.Uint64("price")),
			})
			return err
		},
	}
}

type Options struct {
	Players   int
	Rounds    int
	Threshold int
	Size      int
	Price     lotto.Amount
}

// wallet collects the simulated payouts.
type wallet struct {
	mu       sync.Mutex
	balances map[lotto.Address]lotto.Amount
}

func (w *wallet) Transfer(to lotto.Address, amount lotto.Amount) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[to] += amount
	return nil
}

func (w *wallet) balanceOf(addr lotto.Address) lotto.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[addr]
}

// Result is what a simulation settled.
type Result struct {
	Winners []lotto.Address
	Paid    lotto.Amount
	Balance lotto.Amount
}

func Run(opts Options) (Result, error) {
	if opts.Players < 1 || opts.Rounds < 1 {
		return Result{}, errors.New("need at least one player and one round")
	}
	keys, err := elgamal.Setup(opts.Threshold, opts.Size)
	if err != nil {
		return Result{}, err
	}
	oracleAddr, err := oracle.AddressOf(keys.SignerPublic())
	if err != nil {
		return Result{}, err
	}
	admin := lotto.BytesToAddress([]byte("admin"))
	relayer := oracle.NewRelayer(oracleAddr, keys, time.Second)
	purse := &wallet{balances: make(map[lotto.Address]lotto.Amount)}
	tracer := lotto.NewEventTracer()

	l, err := core.New(core.Options{
		Admin:         admin,
		OracleAddress: oracleAddr,
		TicketPrice:   opts.Price,
		Context:       contract,
		Verifier:      elgamal.NewVerifier(keys.Public),
		Selector:      elgamal.NewSelector(keys.Public),
		Oracle:        relayer,
		Attestation:   oracle.NewVerifier(keys.SignerPublic()),
		Payout:        purse,
		Events:        tracer,
	})
	if err != nil {
		return Result{}, err
	}
	defer l.Close()
	relayer.Bind(l)

	pterm.DefaultSection.Println("Confidential lottery")
	pterm.Info.Printfln("committee %d of %d, oracle %s, ticket price %d", keys.Threshold, keys.Size(), oracleAddr, opts.Price)

	var result Result
	for r := 0; r < opts.Rounds; r++ {
		winner, err := playRound(l, relayer, keys, admin, opts)
		if err != nil {
			return result, err
		}
		result.Winners = append(result.Winners, winner)

		amount, err := l.ClaimPrize(winner)
		if err != nil {
			return result, err
		}
		result.Paid += amount
		pterm.Success.Printfln("%s claimed %d, wallet %d", winner, amount, purse.balanceOf(winner))
		if err := l.StartNewRound(admin); err != nil {
			return result, err
		}
	}

	if err := printArchive(l); err != nil {
		return result, err
	}
	for _, line := range tracer.Lines() {
		pterm.Debug.Println(line)
	}
	result.Balance = l.Balance()
	return result, nil
}

func playRound(l *core.Lottery, relayer *oracle.Relayer, keys *elgamal.KeySet, admin lotto.Address, opts Options) (lotto.Address, error) {
	round := l.RoundNumber()
	pterm.DefaultSection.WithLevel(2).Printfln("Round %d", round)

	rows := pterm.TableData{{"Player", "Ticket", "Ciphertext"}}
	for i := 0; i < opts.Players; i++ {
		player := lotto.BytesToAddress([]byte(fmt.Sprintf("r%dp%d", round, i)))
		value := uint64(rand.Intn(elgamal.MaxTicket) + 1)
		ct, proof, err := elgamal.Seal(keys.Public, value, player, contract)
		if err != nil {
			return lotto.Address{}, err
		}
		if err := l.PurchaseTicket(player, ct, proof, opts.Price); err != nil {
			return lotto.Address{}, errors.Wrapf(err, "purchase by %s", player)
		}
		rows = append(rows, []string{player.String(), fmt.Sprint(value), fmt.Sprintf("%x..", []byte(ct)[:8])})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return lotto.Address{}, err
	}

	req, err := l.RequestDraw(admin)
	if err != nil {
		return lotto.Address{}, err
	}
	pterm.Info.Printfln("draw %s requested over %d tickets, escrow %d", req.ID, req.Participants, l.Round().Escrow)

	spinner, _ := pterm.DefaultSpinner.Start("committee decrypting the selection ...")
	delivered := relayer.Flush()
	if delivered != 1 || !l.IsDrawn() {
		spinner.Fail("draw was not fulfilled")
		return lotto.Address{}, errors.Errorf("draw %s was not fulfilled", req.ID)
	}
	spinner.Success("draw fulfilled")

	winner := l.Winner()
	box := pterm.DefaultBox.WithTitle(pterm.LightGreen("|WINNER|")).WithTitleTopCenter()
	box.Println(pterm.Sprintfln("round %d won by %s, prize %d", round, pterm.LightCyan(winner.String()), l.Round().Escrow))
	return winner, nil
}

func printArchive(l *core.Lottery) error {
	rows := pterm.TableData{{"Index", "Round", "Winner", "Prize", "Claimed"}}
	for i := 0; i < l.PastRoundsLength(); i++ {
		e, err := l.PastRound(i)
		if err != nil {
			return err
		}
		rows = append(rows, []string{fmt.Sprint(i), fmt.Sprint(e.Round), e.Winner.String(), fmt.Sprint(e.Prize), fmt.Sprint(e.Claimed)})
	}
	pterm.DefaultSection.Println("Past rounds")
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	root, err := l.ArchiveRoot()
	if err != nil {
		return err
	}
	pterm.Info.Printfln("archive root %x", []byte(root))
	return nil
}
