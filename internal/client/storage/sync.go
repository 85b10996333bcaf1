package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atinyakov/GophKeychain/internal/models"
	"go.uber.org/zap"
)

const apiItems = "/api/items"

// Syncer reconciles a LocalStorage with the server.
type Syncer struct {
	Client  *http.Client
	BaseURL string
	Store   *LocalStorage
	Log     *zap.Logger
}

type remoteItem struct {
	ID string `json:"id"`
	models.Record
}

// StartAutoSync runs Sync every interval until ctx is done. It does nothing
// for a non-positive interval.
func StartAutoSync(ctx context.Context, s *Syncer, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sync(ctx); err != nil {
					s.logger().Warn("sync error", zap.Error(err))
				}
			}
		}
	}()
}

// Sync pushes local deletions, then local changes, then replaces the local
// view with the server's. Items whose access level is bound to this device
// are never sent. When the store has a sealer, secrets travel and rest on
// the server sealed with it.
func (s *Syncer) Sync(ctx context.Context) error {
	started := time.Now().Unix()

	for _, e := range s.Store.Tombstones() {
		if !e.local() {
			if err := s.pushDelete(ctx, e.ID()); err != nil {
				return err
			}
		}
		s.Store.Forget(e.ID())
	}

	for _, e := range s.Store.Pending() {
		if e.local() {
			continue
		}
		rec, err := s.seal(e.Record)
		if err != nil {
			return err
		}
		if err := s.pushRecord(ctx, rec); err != nil {
			return err
		}
		s.Store.MarkPushed(e.ID(), e.Version)
	}

	remote, err := s.pull(ctx)
	if err != nil {
		return err
	}
	if err := s.Store.Replace(remote, started); err != nil {
		return err
	}
	s.logger().Info("sync successful", zap.Int("items", len(remote)))
	return nil
}

func (s *Syncer) pushDelete(ctx context.Context, id string) error {
	resp, err := s.do(ctx, http.MethodDelete, apiItems+"/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return serverError(resp)
	}
}

func (s *Syncer) pushRecord(ctx context.Context, rec models.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	resp, err := s.do(ctx, http.MethodPost, apiItems, body)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		resp.Body.Close()
		return nil
	case http.StatusConflict:
		resp.Body.Close()
	default:
		defer resp.Body.Close()
		return serverError(resp)
	}

	resp, err = s.do(ctx, http.MethodPut, apiItems, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}
	return nil
}

func (s *Syncer) pull(ctx context.Context) ([]models.Record, error) {
	resp, err := s.do(ctx, http.MethodGet, apiItems, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}

	var items []remoteItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	recs := make([]models.Record, 0, len(items))
	for _, it := range items {
		rec, err := s.open(it.Record)
		if err != nil {
			return nil, fmt.Errorf("open item %s: %w", it.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *Syncer) seal(rec models.Record) (models.Record, error) {
	if s.Store.sealer == nil {
		return rec, nil
	}
	return s.Store.sealer.Seal(rec)
}

func (s *Syncer) open(rec models.Record) (models.Record, error) {
	if s.Store.sealer == nil {
		return rec, nil
	}
	return s.Store.sealer.Open(rec)
}

func (s *Syncer) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(s.BaseURL, "/")+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync failed: %w", err)
	}
	return resp, nil
}

func (s *Syncer) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func serverError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("server error: %d %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
