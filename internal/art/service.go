package art

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/store"
)

// Op names the kind of art request.
type Op string

const (
	OpGenerate Op = "generate"
	OpEdit     Op = "edit"
	OpRetry    Op = "retry"
)

// Generator produces artwork. *Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	Edit(ctx context.Context, ref, instruction string) (string, error)
}

// Cache remembers generated artwork. *store.ArtworkRepository satisfies it.
type Cache interface {
	Latest(ctx context.Context, cardID int, reversed bool) (*store.Artwork, error)
	Add(ctx context.Context, a *store.Artwork) error
}

// Request asks for artwork for one card orientation.
type Request struct {
	Op          Op
	Card        deck.Snapshot
	Reversed    bool
	Instruction string // edits only
	Source      string // edits only: the reference being edited
}

// Result is delivered on the Results channel when a request finishes.
type Result struct {
	RequestID string
	Op        Op
	CardID    int
	Reversed  bool
	Ref       string
	Cached    bool
	Err       error
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Generator   Generator
	Cache       Cache // optional
	MaxInFlight int
	Timeout     time.Duration
	Logger      *slog.Logger
	// OnRequest is called once per finished request with the op and "ok",
	// "cached" or "error".
	OnRequest func(op, result string)
}

// Service runs art requests on goroutines, at most MaxInFlight at a time, and
// reports results on a channel so the caller's loop can apply them.
type Service struct {
	gen       Generator
	cache     Cache
	timeout   time.Duration
	logger    *slog.Logger
	onRequest func(op, result string)

	sem     chan struct{}
	results chan Result

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service. Close must be called to release it.
func NewService(config ServiceConfig) *Service {
	n := config.MaxInFlight
	if n < 1 {
		n = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	onRequest := config.OnRequest
	if onRequest == nil {
		onRequest = func(string, string) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		gen:       config.Generator,
		cache:     config.Cache,
		timeout:   config.Timeout,
		logger:    logger,
		onRequest: onRequest,
		sem:       make(chan struct{}, n),
		results:   make(chan Result, 4*n),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Results returns the channel on which finished requests are delivered.
func (s *Service) Results() <-chan Result {
	return s.results
}

// Submit starts req in the background and returns its request ID.
func (s *Service) Submit(req Request) string {
	id := uuid.NewString()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(id, req)
	}()
	return id
}

// Close cancels pending requests and waits for workers to exit.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) run(id string, req Request) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-s.ctx.Done():
		return
	}

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res := Result{RequestID: id, Op: req.Op, CardID: req.Card.ID, Reversed: req.Reversed}
	res.Ref, res.Cached, res.Err = s.fetch(ctx, req)

	outcome := "ok"
	switch {
	case res.Err != nil:
		outcome = "error"
		s.logger.Warn("art request failed", "op", req.Op, "card", req.Card.ID, "err", res.Err)
	case res.Cached:
		outcome = "cached"
	}
	s.onRequest(string(req.Op), outcome)

	select {
	case s.results <- res:
	case <-s.ctx.Done():
	}
}

func (s *Service) fetch(ctx context.Context, req Request) (string, bool, error) {
	if req.Op == OpGenerate && s.cache != nil {
		a, err := s.cache.Latest(ctx, req.Card.ID, req.Reversed)
		switch {
		case err == nil:
			return a.Ref, true, nil
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("art cache lookup failed", "card", req.Card.ID, "err", err)
		}
	}

	var (
		ref string
		err error
	)
	prompt := Prompt{Name: req.Card.Name, Reversed: req.Reversed, Meaning: req.Card.Upright}
	if req.Reversed {
		prompt.Meaning = req.Card.Reversed
	}

	switch {
	case req.Op == OpEdit && req.Source != "":
		ref, err = s.gen.Edit(ctx, req.Source, req.Instruction)
	case req.Op == OpEdit:
		// Nothing generated yet to edit: fold the instruction into a fresh
		// generation.
		prompt.Meaning = joinNonEmpty(prompt.Meaning, req.Instruction)
		ref, err = s.gen.Generate(ctx, prompt)
	default:
		ref, err = s.gen.Generate(ctx, prompt)
	}
	if err != nil {
		return "", false, err
	}

	if s.cache != nil {
		a := &store.Artwork{CardID: req.Card.ID, Reversed: req.Reversed, Ref: ref, Instruction: req.Instruction}
		if err := s.cache.Add(ctx, a); err != nil {
			s.logger.Warn("art cache write failed", "card", req.Card.ID, "err", err)
		}
	}
	return ref, false, nil
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + ". " + b
}
