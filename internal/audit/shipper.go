// Package audit handles structured audit log emission for security-relevant
// events such as linking-code issuance, account link changes, burned-code
// repairs, and admin access. Audit records are intentionally separate from
// application logs because they have different consumers and retention
// requirements — application logs are ephemeral debug output consumed by
// on-call engineers, while audit records describe who touched whose financial
// data and may be subject to compliance retention. The package supports
// multiple simultaneous destinations (file, webhook) via the Shipper interface
// so records can be routed to a SIEM or log aggregator independently of the
// application's own logging pipeline.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// LogEntry is one audit record. UserID identifies the web account involved,
// ExternalChatID the Telegram side when the action touched a link. Entries
// never carry receipt contents or amounts, only identifiers.
type LogEntry struct {
	Timestamp      time.Time              `json:"timestamp"`
	Action         string                 `json:"action"`
	UserID         string                 `json:"user_id,omitempty"`
	ExternalChatID string                 `json:"external_chat_id,omitempty"`
	ResourceType   string                 `json:"resource_type,omitempty"`
	ResourceID     string                 `json:"resource_id,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	AuthMethod     string                 `json:"auth_method,omitempty"`
	StatusCode     int                    `json:"status_code,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Shipper sends audit records to one destination.
type Shipper interface {
	// Ship sends an audit log entry to the destination
	Ship(ctx context.Context, entry *LogEntry) error
	// Close cleans up any resources
	Close() error
}

// ShipperConfig selects and configures a single shipper.
type ShipperConfig struct {
	// Enabled determines if this shipper is active
	Enabled bool `json:"enabled"`
	// Type is the shipper type (webhook, file)
	Type string `json:"type"`
	// Webhook configuration
	Webhook *WebhookConfig `json:"webhook,omitempty"`
	// File configuration
	File *FileConfig `json:"file,omitempty"`
}

// WebhookConfig holds webhook shipper configuration
type WebhookConfig struct {
	// URL is the webhook endpoint
	URL string `json:"url"`
	// Headers are additional HTTP headers to send
	Headers map[string]string `json:"headers,omitempty"`
	// Timeout is the HTTP request timeout
	Timeout time.Duration `json:"timeout"`
	// BatchSize is how many entries to batch before sending (0 = no batching)
	BatchSize int `json:"batch_size"`
	// FlushInterval is how often to flush batched entries
	FlushInterval time.Duration `json:"flush_interval"`
}

// FileConfig holds file shipper configuration
type FileConfig struct {
	// Path is the log file path
	Path string `json:"path"`
	// MaxSizeMB is the maximum file size before rotation
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (minimum 1)
	MaxBackups int `json:"max_backups"`
}

// MultiShipper fans one entry out to every configured destination.
type MultiShipper struct {
	shippers []Shipper
	mu       sync.RWMutex
}

// NewMultiShipper builds a shipper per enabled config entry. Disabled entries
// are skipped; an invalid entry fails construction so a typo in the audit
// config is caught at boot rather than silently dropping records.
func NewMultiShipper(configs []ShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{
		shippers: make([]Shipper, 0),
	}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var shipper Shipper
		var err error

		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			shipper, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			shipper, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}

		ms.shippers = append(ms.shippers, shipper)
	}

	return ms, nil
}

// Ship sends an entry to all configured shippers. A failing destination does
// not stop delivery to the others; the last error is returned.
func (ms *MultiShipper) Ship(ctx context.Context, entry *LogEntry) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Ship(ctx, entry); err != nil {
			lastErr = err
			slog.Warn("audit shipper failed", "error", err)
		}
	}
	return lastErr
}

// Close closes all shippers. The write lock makes it wait for in-flight Ship
// calls before destinations are torn down.
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// WebhookShipper posts audit entries to an HTTP endpoint, optionally batched.
type WebhookShipper struct {
	cfg      *WebhookConfig
	client   *http.Client
	queue    chan *LogEntry
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWebhookShipper creates the shipper and, when batching is configured,
// starts its delivery loop.
func NewWebhookShipper(cfg *WebhookConfig) (*WebhookShipper, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ws := &WebhookShipper{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
		queue: make(chan *LogEntry, 1000),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	if cfg.BatchSize > 0 {
		go ws.run()
	} else {
		close(ws.done)
	}

	return ws, nil
}

// run owns the pending batch: entries accumulate until the batch fills or the
// flush interval elapses. On stop it drains whatever Ship queued before Close
// and flushes one last time, so shutdown does not lose records.
func (ws *WebhookShipper) run() {
	defer close(ws.done)

	interval := ws.cfg.FlushInterval
	if interval == 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pending := make([]*LogEntry, 0, ws.cfg.BatchSize)
	for {
		select {
		case entry := <-ws.queue:
			pending = append(pending, entry)
			if len(pending) >= ws.cfg.BatchSize {
				pending = ws.flush(pending)
			}
		case <-ticker.C:
			pending = ws.flush(pending)
		case <-ws.stop:
			for {
				select {
				case entry := <-ws.queue:
					pending = append(pending, entry)
				default:
					ws.flush(pending)
					return
				}
			}
		}
	}
}

// flush posts the pending entries as one JSON array and returns the slice
// reset for reuse. Failures are logged and the batch dropped — the webhook is
// one destination among several and must not wedge the queue.
func (ws *WebhookShipper) flush(pending []*LogEntry) []*LogEntry {
	if len(pending) == 0 {
		return pending
	}

	data, err := json.Marshal(pending)
	if err != nil {
		slog.Error("failed to marshal audit batch", "error", err)
		return pending[:0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.client.Timeout)
	defer cancel()

	if err := ws.sendRequest(ctx, data); err != nil {
		slog.Warn("failed to send audit batch", "error", err, "entries", len(pending))
	}

	return pending[:0]
}

// Ship sends an entry to the webhook. When batching is enabled the entry is
// queued; a full queue falls back to a direct send so records are not lost.
func (ws *WebhookShipper) Ship(ctx context.Context, entry *LogEntry) error {
	if ws.cfg.BatchSize > 0 {
		select {
		case ws.queue <- entry:
			return nil
		default:
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	return ws.sendRequest(ctx, data)
}

func (ws *WebhookShipper) sendRequest(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Close stops the delivery loop and waits for its final flush before
// returning.
func (ws *WebhookShipper) Close() error {
	ws.stopOnce.Do(func() {
		close(ws.stop)
	})
	<-ws.done
	return nil
}

// FileShipper appends JSON-line audit entries to a file, rotating at
// MaxSizeMB and keeping MaxBackups rotated files.
type FileShipper struct {
	cfg  *FileConfig
	file *os.File
	mu   sync.Mutex
}

// NewFileShipper opens (or creates) the audit log file in append mode.
func NewFileShipper(cfg *FileConfig) (*FileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &FileShipper{
		cfg:  cfg,
		file: file,
	}, nil
}

// Ship appends one JSON line. Rotation happens before the write so an entry
// never splits across files.
func (fs *FileShipper) Ship(ctx context.Context, entry *LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.rotateIfNeeded()

	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}

// rotateIfNeeded rotates once the live file passes MaxSizeMB. Caller holds mu.
func (fs *FileShipper) rotateIfNeeded() {
	if fs.cfg.MaxSizeMB <= 0 {
		return
	}

	info, err := fs.file.Stat()
	if err != nil || info.Size() <= int64(fs.cfg.MaxSizeMB)*1024*1024 {
		return
	}

	if err := fs.rotate(); err != nil {
		slog.Warn("failed to rotate audit log", "error", err)
	}
}

// rotate drops the oldest backup, shifts path.N to path.N+1, moves the live
// file to path.1, and reopens a fresh file. Rotation always keeps at least one
// backup so the rotated-out trail is never discarded. Caller holds mu.
func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}

	backups := fs.cfg.MaxBackups
	if backups < 1 {
		backups = 1
	}

	_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, backups))
	for i := backups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", fs.cfg.Path, i), fmt.Sprintf("%s.%d", fs.cfg.Path, i+1))
	}
	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")

	file, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	fs.file = file
	return nil
}

// Close closes the file
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
