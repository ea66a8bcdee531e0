package indicators

import (
	"context"
	"sync"
)

// Engine computes a registered set of indicators over a frame using a worker
// pool. Multi-value indicators attach one column per series, named
// "<indicator>:<series>".
type Engine struct {
	workers     int
	indicators  map[string]Indicator
	multiIndics map[string]MultiValueIndicator
	mu          sync.RWMutex
}

// NewEngine creates a new indicator engine with the specified number of workers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers:     workers,
		indicators:  make(map[string]Indicator),
		multiIndics: make(map[string]MultiValueIndicator),
	}
}

// Register registers a single-value indicator.
func (e *Engine) Register(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indicators[ind.Name()] = ind
}

// RegisterMulti registers a multi-value indicator.
func (e *Engine) RegisterMulti(ind MultiValueIndicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.multiIndics[ind.Name()] = ind
}

// MinCandles returns the longest warm-up period over all registered
// indicators, i.e. the minimum history the frame needs before every column
// has at least one real value.
func (e *Engine) MinCandles() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	longest := 0
	for _, ind := range e.indicators {
		if p := ind.Period(); p > longest {
			longest = p
		}
	}
	for _, ind := range e.multiIndics {
		if p := ind.Period(); p > longest {
			longest = p
		}
	}
	return longest
}

// AttachAll computes every registered indicator in parallel and attaches the
// results to the frame. An indicator that fails on insufficient data simply
// leaves its column absent; Frame.Value reports NaN for it.
func (e *Engine) AttachAll(ctx context.Context, frame *Frame) error {
	e.mu.RLock()
	indicators := make([]Indicator, 0, len(e.indicators))
	for _, ind := range e.indicators {
		indicators = append(indicators, ind)
	}
	multiIndics := make([]MultiValueIndicator, 0, len(e.multiIndics))
	for _, ind := range e.multiIndics {
		multiIndics = append(multiIndics, ind)
	}
	e.mu.RUnlock()

	type singleResult struct {
		name   string
		values []float64
	}
	type multiResult struct {
		name   string
		values map[string][]float64
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var singles []singleResult
	var multis []multiResult

	singleWork := make(chan Indicator, len(indicators))
	multiWork := make(chan MultiValueIndicator, len(multiIndics))

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range singleWork {
				select {
				case <-ctx.Done():
					return
				default:
				}
				values, err := ind.Calculate(frame.Candles)
				if err != nil {
					continue
				}
				mu.Lock()
				singles = append(singles, singleResult{ind.Name(), values})
				mu.Unlock()
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range multiWork {
				select {
				case <-ctx.Done():
					return
				default:
				}
				values, err := ind.Calculate(frame.Candles)
				if err != nil {
					continue
				}
				mu.Lock()
				multis = append(multis, multiResult{ind.Name(), values})
				mu.Unlock()
			}
		}()
	}

	for _, ind := range indicators {
		singleWork <- ind
	}
	close(singleWork)
	for _, ind := range multiIndics {
		multiWork <- ind
	}
	close(multiWork)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	// Attach sequentially: Frame is not safe for concurrent writes.
	for _, r := range singles {
		frame.Attach(r.name, r.values)
	}
	for _, r := range multis {
		for key, values := range r.values {
			frame.Attach(r.name+":"+key, values)
		}
	}
	return nil
}
