package caseflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fraudcase/internal/events"
	"fraudcase/internal/models"
)

// gatedCache is an in-memory CaseCache whose next Set can be held open
type gatedCache struct {
	mu      sync.Mutex
	items   map[uuid.UUID]models.Case
	hold    bool
	entered chan struct{}
	release chan struct{}
}

func newGatedCache() *gatedCache {
	return &gatedCache{
		items:   make(map[uuid.UUID]models.Case),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *gatedCache) holdNextSet() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hold = true
}

func (c *gatedCache) Get(_ context.Context, id uuid.UUID) (*models.Case, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return &v, true
}

func (c *gatedCache) Set(_ context.Context, cs *models.Case) {
	c.mu.Lock()
	hold := c.hold
	c.hold = false
	c.mu.Unlock()

	if hold {
		close(c.entered)
		<-c.release
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[cs.ID] = *cs
}

func (c *gatedCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

func (c *gatedCache) cached(id uuid.UUID) (models.Case, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[id]
	return v, ok
}

// stallingPublisher holds the next stage_advanced event until released
type stallingPublisher struct {
	*recordingPublisher
	mu      sync.Mutex
	stall   bool
	entered chan struct{}
	release chan struct{}
}

func (p *stallingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	stall := p.stall && e.Type == events.TypeStageAdvanced
	if stall {
		p.stall = false
	}
	p.mu.Unlock()

	if stall {
		close(p.entered)
		<-p.release
	}
	return p.recordingPublisher.Publish(ctx, e)
}

func finished(done <-chan struct{}) func() bool {
	return func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

func (s *OrchestratorTestSuite) TestCacheFillCannotOverwriteNewerCommit() {
	c := s.submit(&models.ScammerIdentifiers{Phone: "9999999999"})
	s.Require().Equal(models.StageCRPCGenerated, c.Status)

	cache := newGatedCache()
	s.orch.cache = cache
	cache.holdNextSet()

	readDone := make(chan struct{})
	var read *models.Case
	go func() {
		defer close(readDone)
		read, _ = s.orch.GetCase(s.ctx, admin, c.ID.String())
	}()
	<-cache.entered

	advanceDone := make(chan struct{})
	var advanceErr error
	go func() {
		defer close(advanceDone)
		_, advanceErr = s.orch.AdvanceStage(s.ctx, admin, c.ID.String(),
			models.AdvanceStageRequest{Stage: models.StageEmailsSent})
	}()

	// the advance waits for the read to finish filling the cache
	s.Never(finished(advanceDone), 100*time.Millisecond, 10*time.Millisecond)

	close(cache.release)
	<-readDone
	<-advanceDone

	s.Require().NoError(advanceErr)
	s.Require().NotNil(read)
	s.Equal(models.StageCRPCGenerated, read.Status)

	if cached, ok := cache.cached(c.ID); ok {
		s.Equal(models.StageEmailsSent, cached.Status)
	}

	current, err := s.orch.GetCase(s.ctx, admin, c.ID.String())
	s.Require().NoError(err)
	s.Equal(models.StageEmailsSent, current.Status)

	projected, err := s.orch.GetTimeline(s.ctx, admin, c.ID.String(), true)
	s.Require().NoError(err)
	for _, e := range projected {
		if e.Stage == models.StageEmailsSent {
			s.Equal(models.EntryCompleted, e.Status)
		}
	}
	s.assertConsistent(c)
}

func (s *OrchestratorTestSuite) TestSlowPublisherDoesNotHoldCaseLock() {
	c := s.submit(&models.ScammerIdentifiers{Phone: "9999999999"})

	publisher := &stallingPublisher{
		recordingPublisher: s.publisher,
		stall:              true,
		entered:            make(chan struct{}),
		release:            make(chan struct{}),
	}
	s.orch.events = publisher

	firstDone := make(chan struct{})
	var firstErr error
	go func() {
		defer close(firstDone)
		_, firstErr = s.orch.AdvanceStage(s.ctx, admin, c.ID.String(),
			models.AdvanceStageRequest{Stage: models.StageEmailsSent})
	}()
	<-publisher.entered

	s.Equal(models.StageEmailsSent, s.reload(c).Status)

	secondDone := make(chan struct{})
	var secondErr error
	go func() {
		defer close(secondDone)
		_, secondErr = s.orch.AdvanceStage(s.ctx, admin, c.ID.String(),
			models.AdvanceStageRequest{Stage: models.StageAuthorized})
	}()

	s.Eventually(finished(secondDone), time.Second, 10*time.Millisecond)
	s.False(finished(firstDone)())

	close(publisher.release)
	<-firstDone
	<-secondDone

	s.Require().NoError(firstErr)
	s.Require().NoError(secondErr)
	s.Equal(models.StageAuthorized, s.reload(c).Status)
	s.Contains(s.publisher.types(), events.TypeNotificationsDispatched)
	s.Equal(0, s.orch.locks.size())
	s.assertConsistent(c)
}
