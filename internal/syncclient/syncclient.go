// Package syncclient is the outbound half of peer synchronization (spec
// §4.F): fanning a delta out to every configured peer and, at startup,
// pulling a full dump from the first reachable one. Grounded on the
// teacher's cluster/replicator.go HTTP dispatch — a short-timeout
// http.Client, one goroutine per peer — but stripped of its quorum
// counting and exponential-backoff retry: spec.md §5/§7 require fanout to
// be one-shot and best-effort, swallowing per-peer failures rather than
// retrying them.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"replichat/internal/chatmsg"
	"replichat/internal/peers"
	"replichat/internal/store"
	"replichat/internal/syncrpc"
)

// Client fans packages out to peers and reconciles with them at startup.
type Client struct {
	peers      *peers.List
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a Client. timeout bounds every single peer RPC.
func New(p *peers.List, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		peers:      p,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// MakePackage builds a DataPackage carrying only the supplied fields (spec
// §4.F: "produces a package with only the supplied fields populated").
func MakePackage(newMsgs []chatmsg.Message, deletedIDs, readIDs []string) syncrpc.DataPackage {
	pkg := syncrpc.DataPackage{
		Messages:   []chatmsg.Message{},
		DeletedIDs: []string{},
		ReadIDs:    []string{},
	}
	if len(newMsgs) > 0 {
		pkg.Messages = newMsgs
	}
	if len(deletedIDs) > 0 {
		pkg.DeletedIDs = deletedIDs
	}
	if len(readIDs) > 0 {
		pkg.ReadIDs = readIDs
	}
	return pkg
}

// FanoutIncremental invokes IncrementalSync on every peer. Per-peer
// failures are logged and swallowed — no retry, no queueing (spec §4.F).
func (c *Client) FanoutIncremental(pkg syncrpc.DataPackage) {
	c.fanout("/sync/incremental", pkg)
}

// FanoutFull invokes FullSync on every peer. Nothing else in this
// repository calls it (spec §4.F).
func (c *Client) FanoutFull(pkg syncrpc.DataPackage) {
	c.fanout("/sync/full", pkg)
}

func (c *Client) fanout(path string, pkg syncrpc.DataPackage) {
	for _, p := range c.peers.All() {
		go func(p peers.Peer) {
			url := fmt.Sprintf("http://%s%s", p.RPCAddr, path)
			if err := c.postJSON(url, pkg, nil); err != nil {
				c.log.Warn().Err(err).Str("peer", p.Name).Str("path", path).Msg("peer sync fanout failed")
			}
		}(p)
	}
}

// StartupReconcile iterates peers in config order and merges in the full
// dump of the first one that answers GetFullData without error (spec
// §4.F). Each remote message goes through Store.ApplyRemoteUpsert, so the
// usual timestamp tie-break applies and every accepted message is appended
// to the local log. Other peers are not consulted.
func (c *Client) StartupReconcile(s *store.Store) {
	for _, p := range c.peers.All() {
		pkg, err := c.getFullData(p)
		if err != nil {
			c.log.Warn().Err(err).Str("peer", p.Name).Msg("startup reconcile: peer unreachable")
			continue
		}
		for _, m := range pkg.Messages {
			if _, err := s.ApplyRemoteUpsert(m); err != nil {
				c.log.Warn().Err(err).Str("peer", p.Name).Str("id", m.ID).Msg("startup reconcile: merge failed")
			}
		}
		c.log.Info().Str("peer", p.Name).Int("messages", len(pkg.Messages)).Msg("startup reconcile complete")
		return
	}
	c.log.Warn().Msg("startup reconcile: no peer reachable, continuing local-only")
}

func (c *Client) getFullData(p peers.Peer) (syncrpc.DataPackage, error) {
	var pkg syncrpc.DataPackage
	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/sync/full", p.RPCAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pkg, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkg, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return pkg, fmt.Errorf("peer %s returned HTTP %d", p.Name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&pkg); err != nil {
		return pkg, err
	}
	return pkg, nil
}

func (c *Client) postJSON(url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("peer returned HTTP %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
