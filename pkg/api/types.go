package api

// Wire types shared by the devnet stub server and the pkg/balances client.
// Big integers travel as decimal strings.

// BalanceEntry is one symbol/value pair in balance and allowance responses.
type BalanceEntry struct {
	Symbol string `json:"symbol"`
	Value  string `json:"value"`
}

type BalancesResponse struct {
	Balances []BalanceEntry `json:"balances"`
}

type AllowancesResponse struct {
	Allowances []BalanceEntry `json:"allowances"`
}

type BlockResponse struct {
	Number uint64 `json:"number"`
}

// AllowanceUpdateRequest is the payload for POST /api/v1/allowances.
type AllowanceUpdateRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Value   string `json:"value"`
}

type AllowanceUpdateResponse struct {
	TxID string `json:"txId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// WSSubscribeRequest is sent by a client to subscribe to event channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// Event channels.
const (
	ChannelBalances   = "balances"
	ChannelAllowances = "allowances"
)

// WSEvent is one event on a subscription stream.
type WSEvent struct {
	Type      string `json:"type"` // "balance", "allowance", "allowance_tx"
	Symbol    string `json:"symbol,omitempty"`
	Value     string `json:"value,omitempty"`
	TxID      string `json:"txId,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

const (
	EventBalance     = "balance"
	EventAllowance   = "allowance"
	EventAllowanceTx = "allowance_tx"
)
