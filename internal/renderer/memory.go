package renderer

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
)

// Operations that a Memory surface can be told to fail.
const (
	OpCreate  = "create"
	OpDestroy = "destroy"
	OpSuspend = "suspend"
	OpResume  = "resume"
	OpRead    = "read"
	OpScroll  = "scroll"
)

// PageInfo is the in-process model of one live page.
type PageInfo struct {
	Tab       domain.TabID
	URL       string
	Title     string
	Scroll    float64
	Loading   bool
	Suspended bool
	Level     domain.SuspendLevel
}

// Memory is an in-process surface. Pages load instantly in AutoComplete
// mode, otherwise only when CompleteLoad is called.
type Memory struct {
	mu           sync.Mutex
	next         domain.ResourceHandle
	pages        map[domain.ResourceHandle]*PageInfo
	listener     domain.LoadListener
	autoComplete bool
	failures     map[string]error
	applyScrolls int
	wg           sync.WaitGroup
}

// NewMemory creates an in-process surface.
func NewMemory(autoComplete bool) *Memory {
	return &Memory{
		pages:        make(map[domain.ResourceHandle]*PageInfo),
		autoComplete: autoComplete,
		failures:     make(map[string]error),
	}
}

func (m *Memory) SetLoadListener(l domain.LoadListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// Fail makes every later call of op return err. A nil err clears it.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *Memory) CreateResource(_ context.Context, tab domain.TabID, rawURL string) (domain.ResourceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpCreate]; err != nil {
		return domain.NoResource, err
	}
	m.next++
	h := m.next
	m.pages[h] = &PageInfo{
		Tab:     tab,
		URL:     rawURL,
		Title:   titleFor(rawURL),
		Loading: true,
	}
	if m.autoComplete {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			_ = m.CompleteLoad(h)
		}()
	}
	return h, nil
}

// CompleteLoad finishes the pending load of h and notifies the listener.
func (m *Memory) CompleteLoad(h domain.ResourceHandle) error {
	return m.finishLoad(h, nil)
}

// FailLoad finishes the pending load of h with an error.
func (m *Memory) FailLoad(h domain.ResourceHandle, loadErr error) error {
	return m.finishLoad(h, loadErr)
}

func (m *Memory) finishLoad(h domain.ResourceHandle, loadErr error) error {
	m.mu.Lock()
	p, ok := m.pages[h]
	if !ok || !p.Loading {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d has no pending load", ErrUnknownHandle, h)
	}
	if loadErr == nil {
		p.Loading = false
	}
	listener := m.listener
	event := domain.LoadEvent{Tab: p.Tab, Handle: h, Err: loadErr}
	m.mu.Unlock()

	if listener != nil {
		listener(event)
	}
	return nil
}

func (m *Memory) DestroyResource(_ context.Context, h domain.ResourceHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpDestroy]; err != nil {
		return err
	}
	if _, ok := m.pages[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(m.pages, h)
	return nil
}

func (m *Memory) SuspendResource(_ context.Context, h domain.ResourceHandle, level domain.SuspendLevel) error {
	return m.update(OpSuspend, h, func(p *PageInfo) {
		p.Suspended = true
		p.Level = level
	})
}

func (m *Memory) ResumeResource(_ context.Context, h domain.ResourceHandle) error {
	return m.update(OpResume, h, func(p *PageInfo) {
		p.Suspended = false
	})
}

func (m *Memory) ReadState(_ context.Context, h domain.ResourceHandle) (domain.PageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpRead]; err != nil {
		return domain.PageState{}, err
	}
	p, ok := m.pages[h]
	if !ok {
		return domain.PageState{}, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return domain.PageState{URL: p.URL, Title: p.Title, ScrollPosition: p.Scroll}, nil
}

func (m *Memory) ApplyScroll(_ context.Context, h domain.ResourceHandle, pos float64) error {
	return m.update(OpScroll, h, func(p *PageInfo) {
		p.Scroll = pos
		m.applyScrolls++
	})
}

// CancelLoad drops the pending load of h without notifying the listener.
func (m *Memory) CancelLoad(h domain.ResourceHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[h]; ok {
		p.Loading = false
	}
}

// Navigate simulates the user moving the page to another location.
func (m *Memory) Navigate(h domain.ResourceHandle, rawURL string, scroll float64) error {
	return m.update("", h, func(p *PageInfo) {
		p.URL = rawURL
		p.Title = titleFor(rawURL)
		p.Scroll = scroll
	})
}

// Page returns a copy of the page model behind h.
func (m *Memory) Page(h domain.ResourceHandle) (PageInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[h]
	if !ok {
		return PageInfo{}, false
	}
	return *p, true
}

// ApplyScrollCount returns how many times ApplyScroll succeeded.
func (m *Memory) ApplyScrollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyScrolls
}

func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

// Close waits for in-flight automatic completions.
func (m *Memory) Close() error {
	m.wg.Wait()
	return nil
}

func (m *Memory) update(op string, h domain.ResourceHandle, fn func(*PageInfo)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[op]; op != "" && err != nil {
		return err
	}
	p, ok := m.pages[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	fn(p)
	return nil
}

func titleFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
