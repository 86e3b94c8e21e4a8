package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nixlim/buzz/internal/notify"
)

const (
	defaultInboxSize = 64
	defaultCacheSize = 128

	// maxCachedBody bounds what a single GET may put in the cache.
	maxCachedBody = 4 << 20

	showTimeout = 10 * time.Second
)

// Options configures a new Agent.
type Options struct {
	Origin   string
	Notifier notify.Notifier
	Opener   Opener

	// Transport performs network fetches. Nil means http.DefaultTransport.
	Transport http.RoundTripper

	Logger    *slog.Logger
	CacheSize int
	InboxSize int
}

// Agent is the background delivery actor. Create one with New or through a
// Registry, then Start it.
type Agent struct {
	origin   string
	notifier notify.Notifier
	opener   Opener
	http     *http.Client
	cache    *responseCache
	log      *slog.Logger

	inbox  chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	lifeMu    sync.Mutex
	started   bool
	stopped   bool
	state     atomic.Int32
	activated chan struct{}

	counters struct {
		shown, showErrors, clicks, focused, opened, fetches, offline atomic.Int64
	}

	// Owned by the run goroutine.
	clients    []Client
	controlled map[string]bool
}

// New returns an agent in the Parsed state.
func New(opts Options) *Agent {
	if opts.Notifier == nil {
		opts.Notifier = notify.Disabled{}
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.InboxSize < 1 {
		opts.InboxSize = defaultInboxSize
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = defaultCacheSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		origin:     opts.Origin,
		notifier:   opts.Notifier,
		opener:     opts.Opener,
		http:       &http.Client{Transport: opts.Transport},
		cache:      newResponseCache(opts.CacheSize),
		log:        opts.Logger.With("component", "agent", "origin", opts.Origin),
		inbox:      make(chan Event, opts.InboxSize),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		activated:  make(chan struct{}),
		controlled: make(map[string]bool),
	}
}

// Origin returns the origin the agent was registered for.
func (a *Agent) Origin() string { return a.origin }

// State returns the current lifecycle state.
func (a *Agent) State() Lifecycle { return Lifecycle(a.state.Load()) }

// Stats returns a snapshot of the agent's counters.
func (a *Agent) Stats() Stats {
	c := &a.counters
	return Stats{
		Shown:       int(c.shown.Load()),
		ShowErrors:  int(c.showErrors.Load()),
		Clicks:      int(c.clicks.Load()),
		Focused:     int(c.focused.Load()),
		Opened:      int(c.opened.Load()),
		Fetches:     int(c.fetches.Load()),
		OfflineHits: int(c.offline.Load()),
		Cached:      a.cache.len(),
	}
}

// Start launches the actor and posts Install. Calling it again is a no-op.
func (a *Agent) Start() {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	if a.started || a.stopped {
		return
	}
	a.started = true

	go a.run()
	if src, ok := a.notifier.(notify.ClickSource); ok {
		a.wg.Add(1)
		go a.forwardClicks(src.Clicks())
	}
	_ = a.Post(context.Background(), Install{})
}

// Stop terminates the actor. Pending requests fail with ErrAgentStopped.
func (a *Agent) Stop() {
	a.lifeMu.Lock()
	if a.stopped {
		a.lifeMu.Unlock()
		return
	}
	a.stopped = true
	started := a.started
	a.lifeMu.Unlock()

	a.state.Store(int32(Redundant))
	a.cancel()
	if started {
		<-a.done
	} else {
		close(a.done)
	}
	a.wg.Wait()
	a.log.Debug("agent stopped")
}

// Ready blocks until the agent is activated.
func (a *Agent) Ready(ctx context.Context) error {
	select {
	case <-a.activated:
		return nil
	case <-a.done:
		return ErrAgentStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post delivers ev to the inbox.
func (a *Agent) Post(ctx context.Context, ev Event) error {
	select {
	case <-a.done:
		return ErrAgentStopped
	default:
	}
	select {
	case a.inbox <- ev:
		return nil
	case <-a.done:
		return ErrAgentStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShowNotification asks the agent to display n and waits for the outcome.
func (a *Agent) ShowNotification(ctx context.Context, n notify.Notification) error {
	reply := make(chan error, 1)
	if err := a.Post(ctx, Show{Notification: n, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-a.done:
		return ErrAgentStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch performs req through the agent. Network failures never surface as
// errors: the cached copy or a 503 "Offline" response is returned instead.
func (a *Agent) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	reply := make(chan fetchResult, 1)
	if err := a.Post(ctx, Fetch{Request: req.WithContext(ctx), reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.resp, r.err
	case <-a.done:
		return nil, ErrAgentStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Click reports a notification activation.
func (a *Agent) Click(ctx context.Context, tag, action string) error {
	return a.Post(ctx, NotificationClick{Tag: tag, Action: action})
}

// Attach registers c so clicks can focus it.
func (a *Agent) Attach(ctx context.Context, c Client) error {
	return a.Post(ctx, Attach{Client: c})
}

// Detach removes the client with the given id.
func (a *Agent) Detach(ctx context.Context, id string) error {
	return a.Post(ctx, Detach{ID: id})
}

func (a *Agent) run() {
	defer close(a.done)
	for {
		select {
		case <-a.ctx.Done():
			return
		case ev := <-a.inbox:
			a.handle(ev)
		}
	}
}

func (a *Agent) forwardClicks(clicks <-chan notify.Click) {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case c, ok := <-clicks:
			if !ok {
				return
			}
			if err := a.Post(a.ctx, NotificationClick{Tag: c.Tag, Action: c.Action}); err != nil {
				return
			}
		}
	}
}

func (a *Agent) handle(ev Event) {
	switch e := ev.(type) {
	case Install:
		a.install()
	case Activate:
		a.activate()
	case Attach:
		a.attach(e.Client)
	case Detach:
		a.detach(e.ID)
	case Show:
		a.show(e)
	case NotificationClick:
		a.click(e)
	case Fetch:
		a.fetch(e)
	default:
		a.log.Warn("unknown agent event", "type", fmt.Sprintf("%T", ev))
	}
}

func (a *Agent) setState(l Lifecycle) {
	a.state.Store(int32(l))
	a.log.Debug("agent state", "state", l.String())
}

func (a *Agent) install() {
	if a.State() != Parsed {
		return
	}
	a.setState(Installing)
	a.setState(Installed)
	// Skip waiting: there is never an older agent to hand over from.
	a.activate()
}

func (a *Agent) activate() {
	if a.State() != Installed {
		return
	}
	a.setState(Activating)
	for _, c := range a.clients {
		a.controlled[c.ID()] = true
	}
	a.setState(Activated)
	close(a.activated)
	a.log.Info("agent activated", "clients", len(a.clients))
}

func (a *Agent) attach(c Client) {
	if c == nil {
		return
	}
	a.detach(c.ID())
	a.clients = append(a.clients, c)
	if a.State() == Activated {
		a.controlled[c.ID()] = true
	}
}

func (a *Agent) detach(id string) {
	for i, c := range a.clients {
		if c.ID() == id {
			a.clients = append(a.clients[:i], a.clients[i+1:]...)
			delete(a.controlled, id)
			return
		}
	}
}

func (a *Agent) show(e Show) {
	var err error
	if a.State() != Activated {
		err = ErrNotActive
	} else {
		ctx, cancel := context.WithTimeout(a.ctx, showTimeout)
		err = a.notifier.Show(ctx, e.Notification)
		cancel()
	}

	if err != nil {
		a.counters.showErrors.Add(1)
		a.log.Warn("agent show failed", "tag", e.Notification.Tag, "error", err)
	} else {
		a.counters.shown.Add(1)
	}
	if e.reply != nil {
		e.reply <- err
	}
}

func (a *Agent) click(e NotificationClick) {
	a.counters.clicks.Add(1)

	ctx, cancel := context.WithTimeout(a.ctx, showTimeout)
	defer cancel()

	if err := a.notifier.Close(ctx, e.Tag); err != nil {
		a.log.Debug("closing clicked notification", "tag", e.Tag, "error", err)
	}

	for _, c := range a.clients {
		if err := c.Focus(ctx); err != nil {
			a.log.Debug("focus failed", "client", c.ID(), "error", err)
			continue
		}
		a.counters.focused.Add(1)
		return
	}

	if a.opener == nil {
		a.log.Warn("notification clicked with no client and no opener", "tag", e.Tag)
		return
	}
	if err := a.opener.Open(ctx, a.origin); err != nil {
		a.log.Warn("opening client failed", "error", err)
		return
	}
	a.counters.opened.Add(1)
}

// fetch hands the network round trip to its own goroutine so a slow server
// never stalls the inbox.
func (a *Agent) fetch(e Fetch) {
	if a.State() != Activated {
		e.reply <- fetchResult{err: ErrNotActive}
		return
	}
	a.counters.fetches.Add(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		e.reply <- fetchResult{resp: a.roundTrip(e.Request)}
	}()
}

func (a *Agent) roundTrip(req *http.Request) *http.Response {
	key := req.URL.String()
	isGet := req.Method == "" || req.Method == http.MethodGet

	resp, err := a.http.Do(req)
	if err != nil {
		a.log.Warn("fetch failed, serving fallback", "url", key, "error", err)
		return a.fallback(req, key, isGet)
	}
	if !isGet || resp.StatusCode != http.StatusOK {
		return resp
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCachedBody+1))
	if err != nil {
		resp.Body.Close()
		a.log.Warn("reading fetch body failed, serving fallback", "url", key, "error", err)
		return a.fallback(req, key, isGet)
	}
	if len(body) > maxCachedBody {
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return resp
	}
	resp.Body.Close()

	entry := cachedResponse{status: resp.StatusCode, header: resp.Header.Clone(), body: body}
	a.cache.put(key, entry)
	return entry.toResponse(req)
}

func (a *Agent) fallback(req *http.Request, key string, isGet bool) *http.Response {
	if isGet {
		if c, ok := a.cache.get(key); ok {
			return c.toResponse(req)
		}
	}
	a.counters.offline.Add(1)
	return offlineResponse(req)
}
