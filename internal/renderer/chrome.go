package renderer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

// DefaultLoadTimeout bounds a single navigation.
const DefaultLoadTimeout = 30 * time.Second

// ChromeOptions configures the browser process.
type ChromeOptions struct {
	Headless    bool
	ExecPath    string        // empty uses chromedp's lookup
	LoadTimeout time.Duration // per navigation
}

type target struct {
	tab        domain.TabID
	ctx        context.Context
	cancel     context.CancelFunc
	loadCancel context.CancelFunc
}

// Chrome drives one CDP target per resource handle.
type Chrome struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	loadTimeout   time.Duration
	logger        logger.Logger

	mu       sync.Mutex
	next     domain.ResourceHandle
	targets  map[domain.ResourceHandle]*target
	listener domain.LoadListener
	wg       sync.WaitGroup
}

// NewChrome starts a browser and returns a surface over it.
func NewChrome(opts ChromeOptions, log logger.Logger) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(log.Errorf))

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	log.Info("chrome started",
		logger.Bool("headless", opts.Headless),
		logger.Duration("load_timeout", opts.LoadTimeout))

	return &Chrome{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		loadTimeout:   opts.LoadTimeout,
		logger:        log,
		targets:       make(map[domain.ResourceHandle]*target),
	}, nil
}

func (c *Chrome) SetLoadListener(l domain.LoadListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

func (c *Chrome) CreateResource(ctx context.Context, tab domain.TabID, rawURL string) (domain.ResourceHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.NoResource, err
	}
	// The target lives as long as tctx, so its first Run must not use a derived context.
	tctx, tcancel := chromedp.NewContext(c.browserCtx)
	if err := chromedp.Run(tctx); err != nil {
		tcancel()
		return domain.NoResource, fmt.Errorf("failed to open target: %w", err)
	}

	loadCtx, loadCancel := context.WithTimeout(tctx, c.loadTimeout)

	c.mu.Lock()
	c.next++
	h := c.next
	c.targets[h] = &target{tab: tab, ctx: tctx, cancel: tcancel, loadCancel: loadCancel}
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer loadCancel()

		err := chromedp.Run(loadCtx, chromedp.Navigate(rawURL))
		if errors.Is(loadCtx.Err(), context.Canceled) {
			c.logger.Debug("load cancelled", logger.Tab(uint64(tab)), logger.Uint64("handle", uint64(h)))
			return
		}
		c.notify(domain.LoadEvent{Tab: tab, Handle: h, Err: err})
	}()

	return h, nil
}

func (c *Chrome) notify(e domain.LoadEvent) {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener != nil {
		listener(e)
	}
}

func (c *Chrome) DestroyResource(_ context.Context, h domain.ResourceHandle) error {
	c.mu.Lock()
	t, ok := c.targets[h]
	delete(c.targets, h)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	t.loadCancel()
	if err := chromedp.Cancel(t.ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.cancel()
		return fmt.Errorf("failed to close target: %w", err)
	}
	t.cancel()
	return nil
}

func (c *Chrome) SuspendResource(ctx context.Context, h domain.ResourceHandle, level domain.SuspendLevel) error {
	t, err := c.target(h)
	if err != nil {
		return err
	}
	actions := []chromedp.Action{
		page.SetWebLifecycleState(page.SetWebLifecycleStateStateFrozen),
	}
	if level == domain.SuspendSnooze {
		actions = append(actions, emulation.SetScriptExecutionDisabled(true))
	}
	return c.run(ctx, t.ctx, actions...)
}

func (c *Chrome) ResumeResource(ctx context.Context, h domain.ResourceHandle) error {
	t, err := c.target(h)
	if err != nil {
		return err
	}
	return c.run(ctx, t.ctx,
		emulation.SetScriptExecutionDisabled(false),
		page.SetWebLifecycleState(page.SetWebLifecycleStateStateActive),
	)
}

func (c *Chrome) ReadState(ctx context.Context, h domain.ResourceHandle) (domain.PageState, error) {
	t, err := c.target(h)
	if err != nil {
		return domain.PageState{}, err
	}
	var (
		location string
		title    string
		scrollY  float64
	)
	err = c.run(ctx, t.ctx,
		chromedp.Location(&location),
		chromedp.Title(&title),
		chromedp.Evaluate(`window.scrollY`, &scrollY),
	)
	if err != nil {
		return domain.PageState{}, err
	}
	return domain.PageState{URL: location, Title: title, ScrollPosition: scrollY}, nil
}

func (c *Chrome) ApplyScroll(ctx context.Context, h domain.ResourceHandle, pos float64) error {
	t, err := c.target(h)
	if err != nil {
		return err
	}
	expr := "window.scrollTo(0, " + strconv.FormatFloat(pos, 'f', -1, 64) + ")"
	return c.run(ctx, t.ctx, chromedp.Evaluate(expr, nil))
}

func (c *Chrome) CancelLoad(h domain.ResourceHandle) {
	c.mu.Lock()
	t, ok := c.targets[h]
	c.mu.Unlock()
	if ok {
		t.loadCancel()
	}
}

func (c *Chrome) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.targets)
}

// Close tears down every target and the browser process.
func (c *Chrome) Close() error {
	c.mu.Lock()
	for h, t := range c.targets {
		t.loadCancel()
		t.cancel()
		delete(c.targets, h)
	}
	c.mu.Unlock()

	c.wg.Wait()
	err := chromedp.Cancel(c.browserCtx)
	c.browserCancel()
	c.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to stop chrome: %w", err)
	}
	return nil
}

func (c *Chrome) target(h domain.ResourceHandle) (*target, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.targets[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return t, nil
}

// run executes actions on a target context while honoring the caller's ctx.
func (c *Chrome) run(ctx, tctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(tctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}
