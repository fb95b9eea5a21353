package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Sidecar client defaults, used when the corresponding SidecarConfig
// field is left zero.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultRetryMax       = 3
	DefaultRetryWaitMin   = 1 * time.Second
	DefaultRetryWaitMax   = 10 * time.Second

	defaultBreakerThreshold = 5
	defaultBreakerReset     = 30 * time.Second

	initialPollBackoff = 1 * time.Second
	maxPollBackoff     = 30 * time.Second
)

// SidecarConfig configures a SidecarFeed. Zero fields fall back to the
// package defaults; only BaseURL is mandatory.
type SidecarConfig struct {
	BaseURL          string
	PollInterval     time.Duration
	RequestTimeout   time.Duration
	RetryMax         int
	RetryWaitMin     time.Duration
	RetryWaitMax     time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
}

func (c SidecarConfig) withDefaults() SidecarConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RetryMax <= 0 {
		c.RetryMax = DefaultRetryMax
	}
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = DefaultRetryWaitMin
	}
	if c.RetryWaitMax <= 0 {
		c.RetryWaitMax = DefaultRetryWaitMax
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = defaultBreakerThreshold
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = defaultBreakerReset
	}
	return c
}

// SidecarFeed streams finalized block events from a
// substrate-api-sidecar instance by polling its REST endpoints. It
// carries at most one subscription at a time.
type SidecarFeed struct {
	baseURL string
	cfg     SidecarConfig
	client  *http.Client
	breaker *CircuitBreaker
	logger  *zap.Logger

	mu         sync.Mutex
	subscribed bool
}

// NewSidecarFeed creates a feed over the sidecar at cfg.BaseURL.
func NewSidecarFeed(cfg SidecarConfig, logger *zap.Logger) *SidecarFeed {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.HTTPClient.Timeout = cfg.RequestTimeout
	// Retry chatter goes through the zap logger in the poll loop
	// instead of retryablehttp's own output.
	retryClient.Logger = nil

	return &SidecarFeed{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		client:  retryClient.StandardClient(),
		breaker: NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset),
		logger:  logger,
	}
}

// IsReady probes the sidecar's node endpoint.
func (f *SidecarFeed) IsReady() bool {
	resp, err := f.client.Get(f.baseURL + "/node/version")
	if err != nil {
		f.logger.Warn("sidecar not reachable",
			zap.String("url", f.baseURL),
			zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("sidecar not ready",
			zap.String("url", f.baseURL),
			zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}

// Subscribe resolves the current head and starts the poll loop.
// Blocks finalized before the subscription are not delivered.
func (f *SidecarFeed) Subscribe(h BatchHandler) (CancelFunc, error) {
	if h == nil {
		return nil, fmt.Errorf("sidecar feed: nil batch handler")
	}

	f.mu.Lock()
	if f.subscribed {
		f.mu.Unlock()
		return nil, fmt.Errorf("sidecar feed: already subscribed")
	}
	f.subscribed = true
	f.mu.Unlock()

	head, err := f.fetchHead()
	if err != nil {
		f.mu.Lock()
		f.subscribed = false
		f.mu.Unlock()
		return nil, fmt.Errorf("sidecar feed: resolving current head: %w", err)
	}

	done := make(chan struct{})
	go f.poll(h, head.Height, done)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			f.mu.Lock()
			f.subscribed = false
			f.mu.Unlock()
			f.logger.Info("sidecar subscription cancelled")
		})
	}
	return cancel, nil
}

func (f *SidecarFeed) poll(h BatchHandler, lastHeight uint64, done <-chan struct{}) {
	f.logger.Info("sidecar poll loop started",
		zap.Uint64("from_height", lastHeight),
		zap.Duration("interval", f.cfg.PollInterval))

	backoff := initialPollBackoff
	wait := f.cfg.PollInterval
	for {
		select {
		case <-done:
			f.logger.Info("sidecar poll loop stopped",
				zap.Uint64("last_height", lastHeight))
			return
		case <-time.After(wait):
		}

		if !f.breaker.Allow() {
			f.logger.Warn("sidecar circuit breaker open, skipping poll",
				zap.String("state", f.breaker.State()))
			wait = f.cfg.PollInterval
			continue
		}

		head, err := f.fetchHead()
		if err != nil {
			f.breaker.RecordFailure()
			backoff = nextBackoff(backoff)
			wait = backoff
			f.logger.Warn("failed to fetch head block",
				zap.Error(err),
				zap.Duration("backoff", backoff))
			continue
		}
		f.breaker.RecordSuccess()
		backoff = initialPollBackoff
		wait = f.cfg.PollInterval

		if head.Height <= lastHeight {
			continue
		}

		// Deliver every height exactly once, in order, even when the
		// head advanced more than one block between polls.
		delivered, err := f.deliverRange(h, lastHeight+1, head, done)
		lastHeight = delivered
		if err != nil {
			f.breaker.RecordFailure()
			backoff = nextBackoff(backoff)
			wait = backoff
			f.logger.Warn("failed to fetch intermediate block",
				zap.Uint64("height", delivered+1),
				zap.Error(err),
				zap.Duration("backoff", backoff))
		}
	}
}

// deliverRange hands [from, head.Height] to h, fetching intermediate
// blocks individually. It returns the last height delivered; on a
// fetch error delivery stops and the remainder is retried next cycle.
func (f *SidecarFeed) deliverRange(h BatchHandler, from uint64, head BlockEvents, done <-chan struct{}) (uint64, error) {
	last := from - 1
	for height := from; height <= head.Height; height++ {
		select {
		case <-done:
			return last, nil
		default:
		}

		batch := head
		if height != head.Height {
			var err error
			batch, err = f.fetchBlock(height)
			if err != nil {
				return last, err
			}
		}
		h(batch)
		last = height
	}
	return last, nil
}

func (f *SidecarFeed) fetchHead() (BlockEvents, error) {
	return f.fetch(f.baseURL + "/blocks/head")
}

func (f *SidecarFeed) fetchBlock(height uint64) (BlockEvents, error) {
	return f.fetch(fmt.Sprintf("%s/blocks/%d", f.baseURL, height))
}

func (f *SidecarFeed) fetch(url string) (BlockEvents, error) {
	resp, err := f.client.Get(url)
	if err != nil {
		return BlockEvents{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return BlockEvents{}, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return BlockEvents{}, fmt.Errorf("reading %s: %w", url, err)
	}

	var blk sidecarBlock
	if err := json.Unmarshal(body, &blk); err != nil {
		return BlockEvents{}, fmt.Errorf("decoding block response from %s: %w", url, err)
	}
	return blk.toBlockEvents()
}

// nextBackoff doubles the wait up to maxPollBackoff and adds up to 10%
// jitter so restarting monitors do not poll in lockstep.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxPollBackoff {
		next = maxPollBackoff
	}
	next += time.Duration(rand.Float64() * float64(next) * 0.1)
	return next
}

// sidecarBlock mirrors the substrate-api-sidecar /blocks response,
// reduced to the fields the monitor consumes. Sidecar encodes block
// numbers as decimal strings.
type sidecarBlock struct {
	Number       string              `json:"number"`
	Hash         string              `json:"hash"`
	OnInitialize sidecarEventGroup   `json:"onInitialize"`
	Extrinsics   []sidecarEventGroup `json:"extrinsics"`
	OnFinalize   sidecarEventGroup   `json:"onFinalize"`
}

type sidecarEventGroup struct {
	Events []sidecarEvent `json:"events"`
}

type sidecarEvent struct {
	Method sidecarMethod     `json:"method"`
	Data   []json.RawMessage `json:"data"`
}

type sidecarMethod struct {
	Pallet string `json:"pallet"`
	Method string `json:"method"`
}

var (
	phaseInitialization = json.RawMessage(`"Initialization"`)
	phaseFinalization   = json.RawMessage(`"Finalization"`)
)

// toBlockEvents flattens the sidecar layout into one record list in
// block-execution order: initialization, extrinsics, finalization.
func (b sidecarBlock) toBlockEvents() (BlockEvents, error) {
	height, err := strconv.ParseUint(b.Number, 10, 64)
	if err != nil {
		return BlockEvents{}, fmt.Errorf("parsing block number %q: %w", b.Number, err)
	}

	n := len(b.OnInitialize.Events) + len(b.OnFinalize.Events)
	for _, xt := range b.Extrinsics {
		n += len(xt.Events)
	}

	records := make([]EventRecord, 0, n)
	for _, ev := range b.OnInitialize.Events {
		records = append(records, newRecord(ev, phaseInitialization))
	}
	for i, xt := range b.Extrinsics {
		phase := json.RawMessage(fmt.Sprintf(`{"applyExtrinsic":%d}`, i))
		for _, ev := range xt.Events {
			records = append(records, newRecord(ev, phase))
		}
	}
	for _, ev := range b.OnFinalize.Events {
		records = append(records, newRecord(ev, phaseFinalization))
	}

	return BlockEvents{Height: height, Hash: b.Hash, Records: records}, nil
}

func newRecord(ev sidecarEvent, phase json.RawMessage) EventRecord {
	return EventRecord{
		Pallet: ev.Method.Pallet,
		Method: ev.Method.Method,
		Data:   ev.Data,
		Phase:  phase,
	}
}
