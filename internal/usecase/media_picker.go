package usecase

import (
	"context"
	"sync"
	"time"

	"chatcore/internal/domain/entity"
)

// DefaultMediaSearchDebounce is the quiet period after the last keystroke
// before a free-text search is sent.
const DefaultMediaSearchDebounce = 500 * time.Millisecond

// MediaPickerResult replaces the picker's result set. On error Items is
// empty; stale results are never kept around.
type MediaPickerResult struct {
	Kind     entity.MediaKind
	Query    string
	Category string
	Items    []entity.Media
	Err      error
}

// MediaPicker drives one GIF/sticker picker: free-text queries are debounced,
// category picks and tab switches search right away. Only the newest request
// may publish results.
type MediaPicker struct {
	uc       *MediaUseCase
	userID   string
	clock    Clock
	debounce time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	results chan MediaPickerResult

	mutex      sync.Mutex
	kind       entity.MediaKind
	query      string
	category   string
	timer      Timer
	generation uint64
}

func (uc *MediaUseCase) NewPicker(ctx context.Context, userID string, clock Clock, debounce time.Duration) *MediaPicker {
	if clock == nil {
		clock = SystemClock
	}
	if debounce <= 0 {
		debounce = DefaultMediaSearchDebounce
	}
	ctx, cancel := context.WithCancel(ctx)
	return &MediaPicker{
		uc:       uc,
		userID:   userID,
		clock:    clock,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
		results:  make(chan MediaPickerResult, 8),
		kind:     entity.MediaKindGIF,
	}
}

func (p *MediaPicker) Kind() entity.MediaKind {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.kind
}

func (p *MediaPicker) Results() <-chan MediaPickerResult {
	return p.results
}

// SetQuery schedules a search for query once the debounce period passes
// without another call.
func (p *MediaPicker) SetQuery(query string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.stopTimerLocked()
	p.query = query
	p.category = ""
	p.generation++
	generation, kind := p.generation, p.kind

	p.timer = p.clock.AfterFunc(p.debounce, func() {
		p.search(generation, kind, query, "")
	})
}

// SelectCategory searches a quick-filter category immediately.
func (p *MediaPicker) SelectCategory(category string) {
	p.mutex.Lock()
	p.stopTimerLocked()
	p.query = ""
	p.category = category
	p.generation++
	generation, kind := p.generation, p.kind
	p.mutex.Unlock()

	p.spawn(generation, kind, "", category)
}

// SetKind switches between gifs and stickers and reloads the current search.
func (p *MediaPicker) SetKind(kind entity.MediaKind) {
	p.mutex.Lock()
	p.stopTimerLocked()
	p.kind = kind
	p.generation++
	generation, query, category := p.generation, p.query, p.category
	p.mutex.Unlock()

	p.spawn(generation, kind, query, category)
}

// Close cancels any pending search and waits for running ones to finish.
func (p *MediaPicker) Close() {
	p.cancel()

	p.mutex.Lock()
	p.stopTimerLocked()
	p.generation++
	p.mutex.Unlock()

	p.wg.Wait()
}

func (p *MediaPicker) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *MediaPicker) spawn(generation uint64, kind entity.MediaKind, query, category string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.search(generation, kind, query, category)
	}()
}

func (p *MediaPicker) search(generation uint64, kind entity.MediaKind, query, category string) {
	if p.ctx.Err() != nil {
		return
	}
	items, err := p.uc.Search(p.ctx, p.userID, kind, query, category)

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if generation != p.generation {
		return
	}

	result := MediaPickerResult{Kind: kind, Query: query, Category: category, Items: items, Err: err}
	if err != nil {
		result.Items = nil
	}
	select {
	case p.results <- result:
	case <-p.ctx.Done():
	}
}
