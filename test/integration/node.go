package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/api"
	"github.com/DE-labtory/lotto/cmd/lotto/start"
	"github.com/DE-labtory/lotto/config"
	"github.com/DE-labtory/lotto/elgamal"
	"github.com/DE-labtory/lotto/oracle"
	"github.com/DE-labtory/lotto/test/util"
)

// Cluster is one lotto node with its committee keys and config on disk.
type Cluster struct {
	t      *testing.T
	Conf   *config.Config
	Keys   *elgamal.KeySet
	Admin  lotto.Address
	Oracle lotto.Address
	node   *start.Node
}

func NewCluster(t *testing.T, price lotto.Amount, cooldown time.Duration) *Cluster {
	dir := util.TempDir(t, "lotto-integration")
	keys, err := elgamal.Setup(3, 4)
	if err != nil {
		t.Fatalf("committee setup: %s", err)
	}
	keyFile := filepath.Join(dir, "committee.toml")
	if err := elgamal.SaveKeySet(keyFile, keys); err != nil {
		t.Fatalf("save keys: %s", err)
	}
	oracleAddr, err := oracle.AddressOf(keys.SignerPublic())
	if err != nil {
		t.Fatalf("oracle address: %s", err)
	}
	admin := lotto.BytesToAddress([]byte("integration-admin"))

	conf := config.Default()
	conf.Identity.Admin = admin.String()
	conf.Identity.Contract = "lotto-integration"
	conf.Lottery.TicketPrice = uint64(price)
	conf.Lottery.Cooldown = cooldown
	conf.Committee.Size = 4
	conf.Committee.Threshold = 3
	conf.Committee.KeyFile = keyFile
	conf.Committee.PollInterval = 20 * time.Millisecond
	conf.Store.Path = filepath.Join(dir, "lotto.db")
	conf.Api.Address = util.AvailableAddress(7000)

	return &Cluster{
		t:      t,
		Conf:   conf,
		Keys:   keys,
		Admin:  admin,
		Oracle: oracleAddr,
	}
}

// Start runs the node and waits for its API to answer.
func (c *Cluster) Start() {
	n, err := start.NewNode(c.Conf)
	if err != nil {
		c.t.Fatalf("start node: %s", err)
	}
	c.node = n
	go n.Serve()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, err := http.Get(c.url("/healthz"))
		if err == nil {
			res.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.t.Fatalf("node at %s did not come up", c.Conf.Api.Address)
}

func (c *Cluster) Stop() {
	if c.node != nil {
		c.node.Close()
		c.node = nil
	}
}

func (c *Cluster) Node() *start.Node {
	return c.node
}

func (c *Cluster) url(path string) string {
	return "http://" + c.Conf.Api.Address + path
}

// Client calls the API as one address.
func (c *Cluster) Client(caller lotto.Address) *Client {
	return &Client{cluster: c, caller: caller}
}

type Client struct {
	cluster *Cluster
	caller  lotto.Address
}

// Do sends body as JSON and decodes a 200 answer into out. It returns the
// status code.
func (cl *Client) Do(method, path string, body, out interface{}) int {
	t := cl.cluster.t
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode %s: %s", path, err)
		}
	}
	req, err := http.NewRequest(method, cl.cluster.url(path), &buf)
	if err != nil {
		t.Fatalf("request %s: %s", path, err)
	}
	req.Header.Set(api.CallerHeader, cl.caller.String())
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %s", method, path, err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %s", path, err)
		}
	}
	return res.StatusCode
}

// Buy seals value for the caller and purchases a ticket with it.
func (cl *Client) Buy(value uint64, payment lotto.Amount) int {
	ct, proof, err := elgamal.Seal(cl.cluster.Keys.Public, value, cl.caller, []byte(cl.cluster.Conf.Identity.Contract))
	if err != nil {
		cl.cluster.t.Fatalf("seal: %s", err)
	}
	return cl.Do("POST", "/tickets", api.PurchaseTicketRequest{
		Ciphertext: api.HexBytes(ct),
		Proof:      api.HexBytes(proof),
		Payment:    payment,
	}, nil)
}

func (cl *Client) Status() api.StatusResponse {
	var status api.StatusResponse
	if code := cl.Do("GET", "/lottery", nil, &status); code != http.StatusOK {
		cl.cluster.t.Fatalf("status: %d", code)
	}
	return status
}

// WaitDrawn polls the API until the round is drawn.
func (cl *Client) WaitDrawn(timeout time.Duration) api.StatusResponse {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if status := cl.Status(); status.IsDrawn {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	cl.cluster.t.Fatalf("round was not drawn within %s", timeout)
	return api.StatusResponse{}
}

func Players(n int) []lotto.Address {
	players := make([]lotto.Address, 0, n)
	for i := 0; i < n; i++ {
		players = append(players, lotto.BytesToAddress([]byte(fmt.Sprintf("player-%d", i))))
	}
	return players
}
