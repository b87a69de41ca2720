// Package balances implements the balance/allowance service over the
// exchange operator API: REST for queries and transaction submission, a
// WebSocket stream for balance, allowance and confirmation events.
package balances

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ampdex/dexsign/pkg/accountdata"
	"github.com/ampdex/dexsign/pkg/api"
)

const queryCacheTTL = 2 * time.Second

// Client talks to one operator endpoint. It implements
// accountdata.BalanceService and allowance.BlockchainService.
type Client struct {
	baseURL string
	wsURL   string
	httpc   *http.Client
	cache   *gocache.Cache
	log     *zap.Logger

	mu                sync.Mutex
	conn              *websocket.Conn
	balanceHandlers   []func(accountdata.Balance)
	allowanceHandlers []func(accountdata.Allowance)
	confirmations     map[string]func(bool)
	unclaimed         map[string]bool // txID -> outcome that arrived before its callback
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws"
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		wsURL:         wsURL,
		httpc:         &http.Client{Timeout: 10 * time.Second},
		cache:         gocache.New(queryCacheTTL, time.Minute),
		log:           log,
		confirmations: make(map[string]func(bool)),
		unclaimed:     make(map[string]bool),
	}
}

// Close tears down the event stream connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) QueryEtherBalance(ctx context.Context, account common.Address) (accountdata.Balance, error) {
	var entry api.BalanceEntry
	path := fmt.Sprintf("/api/v1/accounts/%s/balances/eth", account.Hex())
	if err := c.get(ctx, path, &entry); err != nil {
		return accountdata.Balance{}, errors.Wrap(err, "query ether balance")
	}
	value, err := parseValue(entry.Value)
	if err != nil {
		return accountdata.Balance{}, err
	}
	return accountdata.Balance{Symbol: entry.Symbol, Value: value}, nil
}

func (c *Client) QueryTokenBalances(ctx context.Context, account common.Address, tokens []accountdata.Token) ([]accountdata.Balance, error) {
	cacheKey := "balances:" + account.Hex()
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]accountdata.Balance), nil
	}

	var resp api.BalancesResponse
	path := fmt.Sprintf("/api/v1/accounts/%s/balances", account.Hex())
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, errors.Wrap(err, "query token balances")
	}

	out := make([]accountdata.Balance, 0, len(resp.Balances))
	for _, entry := range resp.Balances {
		value, err := parseValue(entry.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, accountdata.Balance{Symbol: entry.Symbol, Value: value})
	}
	c.cache.SetDefault(cacheKey, out)
	return out, nil
}

func (c *Client) QueryExchangeTokenAllowances(ctx context.Context, account common.Address, tokens []accountdata.Token) ([]accountdata.Allowance, error) {
	var resp api.AllowancesResponse
	path := fmt.Sprintf("/api/v1/accounts/%s/allowances", account.Hex())
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, errors.Wrap(err, "query token allowances")
	}

	out := make([]accountdata.Allowance, 0, len(resp.Allowances))
	for _, entry := range resp.Allowances {
		value, err := parseValue(entry.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, accountdata.Allowance{Symbol: entry.Symbol, Value: value})
	}
	return out, nil
}

func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	var resp api.BlockResponse
	if err := c.get(ctx, "/api/v1/chain/block", &resp); err != nil {
		return 0, errors.Wrap(err, "query current block")
	}
	return resp.Number, nil
}

func (c *Client) SubscribeTokenBalances(ctx context.Context, account common.Address, tokens []accountdata.Token, onUpdate func(accountdata.Balance)) error {
	if err := c.subscribe(ctx, api.ChannelBalances); err != nil {
		return err
	}
	c.mu.Lock()
	c.balanceHandlers = append(c.balanceHandlers, onUpdate)
	c.mu.Unlock()
	return nil
}

func (c *Client) SubscribeTokenAllowances(ctx context.Context, account common.Address, tokens []accountdata.Token, onUpdate func(accountdata.Allowance)) error {
	if err := c.subscribe(ctx, api.ChannelAllowances); err != nil {
		return err
	}
	c.mu.Lock()
	c.allowanceHandlers = append(c.allowanceHandlers, onUpdate)
	c.mu.Unlock()
	return nil
}

// UpdateExchangeAllowance submits an allowance update transaction. The
// confirmation outcome arrives on the event stream and is routed to
// onConfirmed. The transaction id is only known once the POST returns, so a
// confirmation that raced ahead of the registration is held in unclaimed and
// delivered here; either way onConfirmed fires exactly once.
func (c *Client) UpdateExchangeAllowance(token, account common.Address, value *big.Int, onConfirmed func(bool)) error {
	ctx := context.Background()
	if err := c.subscribe(ctx, api.ChannelAllowances); err != nil {
		return err
	}

	req := api.AllowanceUpdateRequest{
		Token:   token.Hex(),
		Account: account.Hex(),
		Value:   value.String(),
	}
	var resp api.AllowanceUpdateResponse
	if err := c.post(ctx, "/api/v1/allowances", req, &resp); err != nil {
		return errors.Wrap(err, "submit allowance update")
	}

	c.mu.Lock()
	if confirmed, ok := c.unclaimed[resp.TxID]; ok {
		delete(c.unclaimed, resp.TxID)
		c.mu.Unlock()
		onConfirmed(confirmed)
		return nil
	}
	c.confirmations[resp.TxID] = onConfirmed
	c.mu.Unlock()
	return nil
}

// subscribe ensures the event stream is connected and subscribed to channel.
func (c *Client) subscribe(ctx context.Context, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
		if err != nil {
			return errors.Wrapf(err, "dial event stream %s", c.wsURL)
		}
		c.conn = conn
		go c.readLoop(conn)
	}

	req := api.WSSubscribeRequest{Op: "subscribe", Channels: []string{channel}}
	if err := c.conn.WriteJSON(req); err != nil {
		return errors.Wrapf(err, "subscribe to %s", channel)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var event api.WSEvent
		if err := conn.ReadJSON(&event); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			c.log.Debug("event stream closed", zap.Error(err))
			return
		}
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event api.WSEvent) {
	switch event.Type {
	case api.EventBalance:
		value, err := parseValue(event.Value)
		if err != nil {
			c.log.Warn("bad balance event", zap.String("value", event.Value))
			return
		}
		for _, h := range c.snapshotBalanceHandlers() {
			h(accountdata.Balance{Symbol: event.Symbol, Value: value})
		}

	case api.EventAllowance:
		value, err := parseValue(event.Value)
		if err != nil {
			c.log.Warn("bad allowance event", zap.String("value", event.Value))
			return
		}
		for _, h := range c.snapshotAllowanceHandlers() {
			h(accountdata.Allowance{Symbol: event.Symbol, Value: value})
		}

	case api.EventAllowanceTx:
		c.mu.Lock()
		onConfirmed, ok := c.confirmations[event.TxID]
		if ok {
			delete(c.confirmations, event.TxID)
		} else {
			// Submission response has not been processed yet; park the
			// outcome for UpdateExchangeAllowance to claim.
			c.unclaimed[event.TxID] = event.Confirmed
		}
		c.mu.Unlock()
		if onConfirmed != nil {
			onConfirmed(event.Confirmed)
		}

	default:
		c.log.Debug("unknown event type", zap.String("type", event.Type))
	}
}

func (c *Client) snapshotBalanceHandlers() []func(accountdata.Balance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(accountdata.Balance), len(c.balanceHandlers))
	copy(out, c.balanceHandlers)
	return out
}

func (c *Client) snapshotAllowanceHandlers() []func(accountdata.Allowance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(accountdata.Allowance), len(c.allowanceHandlers))
	copy(out, c.allowanceHandlers)
	return out
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return errors.Errorf("%s %s: %s", req.Method, req.URL.Path, apiErr.Error)
		}
		return errors.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseValue(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid integer value %q", s)
	}
	return v, nil
}
