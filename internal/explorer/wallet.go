// Package explorer looks up the deployer wallet of a token contract through
// Etherscan-compatible block explorers, with a JSON-RPC path for Solana.
package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/vkuzmenko/dexleads/internal/fetch"
	"github.com/vkuzmenko/dexleads/internal/model"
)

// Service is the rate-limit bucket for block-explorer traffic.
const Service = "explorer"

// WalletLookup resolves the contract creator for a token address.
type WalletLookup struct {
	explorers model.ExplorersConfig
	fetcher   *fetch.Client
}

// NewWalletLookup creates a lookup over the configured explorers.
func NewWalletLookup(explorers model.ExplorersConfig, fetcher *fetch.Client) *WalletLookup {
	return &WalletLookup{explorers: explorers, fetcher: fetcher}
}

// Deployer returns the wallet that deployed the contract, or "" when it
// cannot be determined. Chains without an explorer configuration resolve to
// "" without error.
func (w *WalletLookup) Deployer(ctx context.Context, chain, contractAddress string) (string, error) {
	if chain == "solana" {
		return w.solanaDeployer(ctx, contractAddress)
	}

	explorer, ok := w.explorers.ByChain(chain)
	if !ok {
		log.Debug().Str("chain", chain).Msg("no explorer configured")
		return "", nil
	}
	if explorer.APIKey == "" {
		log.Debug().Str("chain", chain).Msg("no explorer API key, skipping wallet lookup")
		return "", nil
	}

	// The contractcreation endpoint is authoritative when available.
	deployer, err := w.contractCreation(ctx, explorer, contractAddress)
	if err != nil {
		return "", err
	}
	if deployer != "" {
		return deployer, nil
	}

	// Fall back to the earliest transaction on the contract.
	return w.earliestTx(ctx, explorer, contractAddress)
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (w *WalletLookup) contractCreation(ctx context.Context, explorer model.ExplorerConfig, address string) (string, error) {
	q := url.Values{
		"module":            {"contract"},
		"action":            {"getcontractcreation"},
		"contractaddresses": {address},
		"apikey":            {explorer.APIKey},
	}

	var resp explorerResponse
	if err := w.fetcher.GetJSON(ctx, Service, explorer.APIURL+"?"+q.Encode(), &resp); err != nil {
		return "", fmt.Errorf("contractcreation: %w", err)
	}
	if resp.Status != "1" {
		return "", nil
	}

	var result []struct {
		ContractCreator string `json:"contractCreator"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil || len(result) == 0 {
		return "", nil
	}
	if creator := result[0].ContractCreator; creator != "" {
		log.Debug().Str("deployer", creator).Msg("deployer via contractcreation")
		return creator, nil
	}
	return "", nil
}

func (w *WalletLookup) earliestTx(ctx context.Context, explorer model.ExplorerConfig, address string) (string, error) {
	q := url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {address},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"page":       {"1"},
		"offset":     {"1"},
		"sort":       {"asc"},
		"apikey":     {explorer.APIKey},
	}

	var resp explorerResponse
	if err := w.fetcher.GetJSON(ctx, Service, explorer.APIURL+"?"+q.Encode(), &resp); err != nil {
		return "", fmt.Errorf("txlist: %w", err)
	}
	if resp.Status != "1" {
		return "", nil
	}

	var txs []struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(resp.Result, &txs); err != nil || len(txs) == 0 {
		return "", nil
	}
	// The earliest transaction's sender is the deployer; a contract
	// creation tx additionally has an empty "to".
	return txs[0].From, nil
}

// solanaDeployer walks the signature history of a mint back to its oldest
// transaction and takes the fee payer. The freshness window keeps the
// history short enough for a single page.
func (w *WalletLookup) solanaDeployer(ctx context.Context, tokenAddress string) (string, error) {
	rpcURL := w.explorers.SolanaRPC
	if rpcURL == "" {
		return "", nil
	}

	var sigs struct {
		Result []struct {
			Signature string `json:"signature"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	err := w.rpcCall(ctx, rpcURL, "getSignaturesForAddress",
		[]interface{}{tokenAddress, map[string]interface{}{"limit": 1000}}, &sigs)
	if err != nil {
		return "", fmt.Errorf("solana signatures: %w", err)
	}
	if sigs.Error != nil || len(sigs.Result) == 0 {
		return "", nil
	}
	// Newest first: the last entry is the oldest, normally the mint tx.
	oldest := sigs.Result[len(sigs.Result)-1].Signature

	var tx struct {
		Result struct {
			Transaction struct {
				Message struct {
					AccountKeys []json.RawMessage `json:"accountKeys"`
				} `json:"message"`
			} `json:"transaction"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	err = w.rpcCall(ctx, rpcURL, "getTransaction",
		[]interface{}{oldest, map[string]interface{}{"maxSupportedTransactionVersion": 0}}, &tx)
	if err != nil {
		return "", fmt.Errorf("solana transaction: %w", err)
	}
	if tx.Error != nil || len(tx.Result.Transaction.Message.AccountKeys) == 0 {
		return "", nil
	}

	// The first account key is the fee payer / first signer. Some RPC
	// nodes return bare strings, others objects with a pubkey field.
	first := tx.Result.Transaction.Message.AccountKeys[0]
	var key string
	if err := json.Unmarshal(first, &key); err == nil && key != "" {
		return key, nil
	}
	var keyObj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(first, &keyObj); err == nil {
		return keyObj.Pubkey, nil
	}
	return "", nil
}

// rpcCall performs one JSON-RPC request against the Solana endpoint.
func (w *WalletLookup) rpcCall(ctx context.Context, rpcURL, method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	body, ferr := w.fetcher.Do(ctx, Service, req)
	if ferr != nil {
		return ferr
	}
	return json.Unmarshal(body, out)
}
