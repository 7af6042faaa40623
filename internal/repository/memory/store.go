// Package memory provides an in-process Store. It honours the same
// uniqueness rules as the postgres schema and gives WithTx all-or-nothing
// semantics by working on a copy of the data and swapping it in on commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fraudcase/internal/database"
	"fraudcase/internal/models"
	"fraudcase/internal/repository"
)

type state struct {
	cases         map[uuid.UUID]models.Case
	timeline      []models.TimelineEntry
	scammers      map[uuid.UUID]models.ScammerProfile
	documents     map[uuid.UUID]models.Document
	notifications []models.NotificationAttempt
	seq           int64
}

func newState() *state {
	return &state{
		cases:     make(map[uuid.UUID]models.Case),
		scammers:  make(map[uuid.UUID]models.ScammerProfile),
		documents: make(map[uuid.UUID]models.Document),
	}
}

func (s *state) clone() *state {
	out := newState()
	for id, c := range s.cases {
		out.cases[id] = copyCase(c)
	}
	out.timeline = append([]models.TimelineEntry(nil), s.timeline...)
	for id, p := range s.scammers {
		out.scammers[id] = copyProfile(p)
	}
	for id, d := range s.documents {
		out.documents[id] = d
	}
	out.notifications = append([]models.NotificationAttempt(nil), s.notifications...)
	out.seq = s.seq
	return out
}

// Store is an in-memory repository.Store
type Store struct {
	mu    *sync.Mutex
	data  *state
	inTx  bool
	fault func(op string) error
}

// New creates an empty store
func New() *Store {
	return &Store{mu: &sync.Mutex{}, data: newState()}
}

// FailOn makes every operation whose name satisfies fn return the error
// fn produces. Operation names look like "cases.update" or "timeline.insert".
func (s *Store) FailOn(fn func(op string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *Store) lock(op string) (func(), error) {
	unlock := func() {}
	if !s.inTx {
		s.mu.Lock()
		unlock = s.mu.Unlock
	}
	if s.fault != nil {
		if err := s.fault(op); err != nil {
			unlock()
			return nil, err
		}
	}
	return unlock, nil
}

func (s *Store) Cases() repository.CaseRepository                 { return &cases{s} }
func (s *Store) Timeline() repository.TimelineRepository          { return &timeline{s} }
func (s *Store) Scammers() repository.ScammerRepository           { return &scammers{s} }
func (s *Store) Documents() repository.DocumentRepository         { return &documents{s} }
func (s *Store) Notifications() repository.NotificationRepository { return &notifications{s} }

func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true, fault: s.fault}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) Health(context.Context) error {
	return nil
}

type cases struct{ s *Store }

func (r *cases) Create(_ context.Context, c *models.Case) error {
	unlock, err := r.s.lock("cases.create")
	if err != nil {
		return err
	}
	defer unlock()

	for _, existing := range r.s.data.cases {
		if existing.CaseCode == c.CaseCode || existing.ID == c.ID {
			return repository.ErrDuplicate
		}
	}
	r.s.data.cases[c.ID] = copyCase(*c)
	return nil
}

func (r *cases) GetByID(_ context.Context, id uuid.UUID) (*models.Case, error) {
	unlock, err := r.s.lock("cases.get")
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, ok := r.s.data.cases[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyCase(c)
	return &out, nil
}

func (r *cases) GetByCode(_ context.Context, code string) (*models.Case, error) {
	unlock, err := r.s.lock("cases.get")
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, c := range r.s.data.cases {
		if c.CaseCode == code {
			out := copyCase(c)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *cases) CodeExists(_ context.Context, code string) (bool, error) {
	unlock, err := r.s.lock("cases.code_exists")
	if err != nil {
		return false, err
	}
	defer unlock()

	for _, c := range r.s.data.cases {
		if c.CaseCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *cases) Update(_ context.Context, c *models.Case) error {
	unlock, err := r.s.lock("cases.update")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.data.cases[c.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.data.cases[c.ID] = copyCase(*c)
	return nil
}

func (r *cases) List(_ context.Context, filter *models.CaseFilter, paginate *database.Paginate) ([]models.Case, int64, error) {
	unlock, err := r.s.lock("cases.list")
	if err != nil {
		return nil, 0, err
	}
	defer unlock()

	var matched []models.Case
	for _, c := range r.s.data.cases {
		if matches(c, filter) {
			matched = append(matched, copyCase(c))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CaseCode > matched[j].CaseCode
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := paginate.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + paginate.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func matches(c models.Case, filter *models.CaseFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Status != nil && c.Status != *filter.Status {
		return false
	}
	if filter.CaseType != nil && c.CaseType != *filter.CaseType {
		return false
	}
	if filter.Priority != nil && c.Priority != *filter.Priority {
		return false
	}
	if filter.ReporterID != nil && c.ReporterID != *filter.ReporterID {
		return false
	}
	if filter.AssignedOfficerID != nil && (c.AssignedOfficerID == nil || *c.AssignedOfficerID != *filter.AssignedOfficerID) {
		return false
	}
	if filter.ScammerID != nil && (c.ScammerID == nil || *c.ScammerID != *filter.ScammerID) {
		return false
	}
	return true
}

type timeline struct{ s *Store }

func (r *timeline) Insert(_ context.Context, entry *models.TimelineEntry) error {
	unlock, err := r.s.lock("timeline.insert")
	if err != nil {
		return err
	}
	defer unlock()

	if entry.Status == models.EntryCompleted {
		for _, existing := range r.s.data.timeline {
			if existing.CaseID == entry.CaseID && existing.Stage == entry.Stage &&
				existing.Round == entry.Round && existing.Status == models.EntryCompleted {
				return repository.ErrDuplicate
			}
		}
	}

	r.s.data.seq++
	entry.Seq = r.s.data.seq
	r.s.data.timeline = append(r.s.data.timeline, copyEntry(*entry))
	return nil
}

func (r *timeline) FindCompleted(_ context.Context, caseID uuid.UUID, stage models.Stage, round int) (*models.TimelineEntry, error) {
	unlock, err := r.s.lock("timeline.find")
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, e := range r.s.data.timeline {
		if e.CaseID == caseID && e.Stage == stage && e.Round == round && e.Status == models.EntryCompleted {
			out := copyEntry(e)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *timeline) ListByCase(_ context.Context, caseID uuid.UUID) ([]models.TimelineEntry, error) {
	unlock, err := r.s.lock("timeline.list")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []models.TimelineEntry
	for _, e := range r.s.data.timeline {
		if e.CaseID == caseID {
			out = append(out, copyEntry(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type scammers struct{ s *Store }

func (r *scammers) Create(_ context.Context, profile *models.ScammerProfile) error {
	unlock, err := r.s.lock("scammers.create")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.data.scammers[profile.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.data.scammers[profile.ID] = copyProfile(*profile)
	return nil
}

func (r *scammers) GetByID(_ context.Context, id uuid.UUID) (*models.ScammerProfile, error) {
	unlock, err := r.s.lock("scammers.get")
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, ok := r.s.data.scammers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyProfile(p)
	return &out, nil
}

func (r *scammers) FindByIdentifiers(_ context.Context, ids models.ScammerIdentifiers) ([]models.ScammerProfile, error) {
	unlock, err := r.s.lock("scammers.find")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []models.ScammerProfile
	for _, p := range r.s.data.scammers {
		if sharesIdentifier(p, ids) {
			out = append(out, copyProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func sharesIdentifier(p models.ScammerProfile, ids models.ScammerIdentifiers) bool {
	same := func(a, b string) bool {
		return b != "" && strings.EqualFold(a, b)
	}
	return same(p.Phone, ids.Phone) ||
		same(p.Email, ids.Email) ||
		same(p.PaymentHandle, ids.PaymentHandle) ||
		same(p.BankAccount, ids.BankAccount) ||
		same(p.RoutingCode, ids.RoutingCode)
}

func (r *scammers) LinkCase(_ context.Context, id, caseID uuid.UUID, seenAt time.Time) (*models.ScammerProfile, error) {
	unlock, err := r.s.lock("scammers.link")
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, ok := r.s.data.scammers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = copyProfile(p)
	if !p.HasCase(caseID) {
		p.CaseIDs = append(p.CaseIDs, caseID)
		p.CaseCount++
	}
	if seenAt.After(p.LastSeen) {
		p.LastSeen = seenAt
	}
	p.UpdatedAt = seenAt
	r.s.data.scammers[id] = p
	out := copyProfile(p)
	return &out, nil
}

func (r *scammers) FillIdentifiers(_ context.Context, id uuid.UUID, ids models.ScammerIdentifiers) error {
	unlock, err := r.s.lock("scammers.fill")
	if err != nil {
		return err
	}
	defer unlock()

	p, ok := r.s.data.scammers[id]
	if !ok {
		return repository.ErrNotFound
	}
	fill := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	p = copyProfile(p)
	fill(&p.Name, ids.Name)
	fill(&p.Phone, ids.Phone)
	fill(&p.Email, ids.Email)
	fill(&p.PaymentHandle, ids.PaymentHandle)
	fill(&p.BankAccount, ids.BankAccount)
	fill(&p.RoutingCode, ids.RoutingCode)
	fill(&p.Address, ids.Address)
	r.s.data.scammers[id] = p
	return nil
}

func (r *scammers) UpdateStatus(_ context.Context, id uuid.UUID, status models.ScammerStatus) error {
	unlock, err := r.s.lock("scammers.update_status")
	if err != nil {
		return err
	}
	defer unlock()

	p, ok := r.s.data.scammers[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	r.s.data.scammers[id] = p
	return nil
}

type documents struct{ s *Store }

func (r *documents) Create(_ context.Context, doc *models.Document) error {
	unlock, err := r.s.lock("documents.create")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.data.documents[doc.ID]; ok {
		return repository.ErrDuplicate
	}
	stored := *doc
	stored.Content = append([]byte(nil), doc.Content...)
	r.s.data.documents[doc.ID] = stored
	return nil
}

func (r *documents) GetByID(_ context.Context, id uuid.UUID) (*models.Document, error) {
	unlock, err := r.s.lock("documents.get")
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, ok := r.s.data.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d.Content = append([]byte(nil), d.Content...)
	return &d, nil
}

type notifications struct{ s *Store }

func (r *notifications) CreateAttempts(_ context.Context, attempts []models.NotificationAttempt) error {
	unlock, err := r.s.lock("notifications.create")
	if err != nil {
		return err
	}
	defer unlock()

	r.s.data.notifications = append(r.s.data.notifications, attempts...)
	return nil
}

func (r *notifications) ListByCase(_ context.Context, caseID uuid.UUID) ([]models.NotificationAttempt, error) {
	unlock, err := r.s.lock("notifications.list")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []models.NotificationAttempt
	for _, a := range r.s.data.notifications {
		if a.CaseID == caseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func copyCase(c models.Case) models.Case {
	c.Evidence = append([]models.EvidenceItem(nil), c.Evidence...)
	if c.Notifications != nil {
		results := make(models.NotificationResults, len(c.Notifications))
		for k, v := range c.Notifications {
			results[k] = v
		}
		c.Notifications = results
	}
	if c.ScammerID != nil {
		id := *c.ScammerID
		c.ScammerID = &id
	}
	if c.DocumentID != nil {
		id := *c.DocumentID
		c.DocumentID = &id
	}
	return c
}

func copyProfile(p models.ScammerProfile) models.ScammerProfile {
	p.CaseIDs = append([]uuid.UUID(nil), p.CaseIDs...)
	return p
}

func copyEntry(e models.TimelineEntry) models.TimelineEntry {
	if e.Metadata != nil {
		meta := make(models.JSONB, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		e.Metadata = meta
	}
	return e
}
