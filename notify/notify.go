// Package notify POSTs stored submissions to a webhook.
// Sending happens on a background goroutine and never blocks the caller.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/kjk/csvform/httputil"
	"github.com/kjk/csvform/log"
)

const (
	// how long to wait before we resume sending after a failure
	throttleTimeout = time.Second * 15
	sendTimeout     = time.Second * 10
	queueSize       = 256
)

// Payload is the JSON body of the webhook request
type Payload struct {
	File    string   `json:"file"`
	Columns []string `json:"columns"`
	Values  []string `json:"values"`
}

type Config struct {
	URL string
	// sent as X-Api-Key header if not empty
	APIKey string
	// optional, defaults to a client with timeouts
	Client *http.Client
}

type Notifier struct {
	config Config
	client *http.Client
	ch     chan *Payload

	mu            sync.Mutex
	throttleUntil time.Time
	startWorker   sync.Once
	stopped       bool
	wg            sync.WaitGroup

	// for tests, called after each attempt
	didSend func(p *Payload, err error)
}

// New returns nil if URL is empty. Methods on nil Notifier do nothing
func New(config Config) *Notifier {
	if config.URL == "" {
		return nil
	}
	client := config.Client
	if client == nil {
		client = httputil.NewTimeoutClient(time.Second*5, sendTimeout)
	}
	return &Notifier{
		config: config,
		client: client,
		ch:     make(chan *Payload, queueSize),
	}
}

func (n *Notifier) send(p *Payload) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	r := requests.
		URL(n.config.URL).
		Client(n.client).
		BodyJSON(p)
	if n.config.APIKey != "" {
		r = r.Header("X-Api-Key", n.config.APIKey)
	}
	return r.Fetch(ctx)
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for p := range n.ch {
		err := n.send(p)
		if err != nil {
			log.Errorf("notify: POST %s failed: %v, will throttle for %s\n", n.config.URL, err, throttleTimeout)
			n.mu.Lock()
			n.throttleUntil = time.Now().Add(throttleTimeout)
			n.mu.Unlock()
		}
		if n.didSend != nil {
			n.didSend(p, err)
		}
	}
}

// Notify queues a webhook POST. Returns false if the payload was dropped
// because of throttling, a full queue or Stop
func (n *Notifier) Notify(p *Payload) bool {
	if n == nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return false
	}
	if left := time.Until(n.throttleUntil); left > 0 {
		log.Verbosef("notify: skipping because throttling for %s\n", left)
		return false
	}
	n.startWorker.Do(func() {
		n.wg.Add(1)
		go n.worker()
	})
	select {
	case n.ch <- p:
		return true
	default:
		log.Errorf("notify: queue full, dropping notification\n")
		return false
	}
}

// Stop waits for queued notifications to be sent
func (n *Notifier) Stop() {
	if n == nil {
		return
	}
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	close(n.ch)
	n.mu.Unlock()
	n.wg.Wait()
}
