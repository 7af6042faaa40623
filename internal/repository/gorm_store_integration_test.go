//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"fraudcase/internal/config"
	"fraudcase/internal/database"
	"fraudcase/internal/models"
	"fraudcase/internal/repository"
)

// GormStoreTestSuite runs the store against a real postgres container
type GormStoreTestSuite struct {
	suite.Suite
	ctx       context.Context
	container testcontainers.Container
	cfg       *config.DatabaseConfig
	db        *database.Database
	store     *repository.GormStore
}

func TestGormStoreTestSuite(t *testing.T) {
	suite.Run(t, new(GormStoreTestSuite))
}

func (s *GormStoreTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "fraudcase_test",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	var err error
	s.container, err = testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)

	host, err := s.container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := s.container.MappedPort(s.ctx, "5432")
	s.Require().NoError(err)

	s.cfg = &config.DatabaseConfig{
		Driver:             "postgres",
		DSN:                fmt.Sprintf("postgres://postgres:testpass@%s:%s/fraudcase_test?sslmode=disable", host, port.Port()),
		MaxOpenConnections: 10,
		MaxIdleConnections: 2,
		ConnectionLifetime: time.Hour,
		ConnectionTimeout:  30 * time.Second,
		QueryTimeout:       10 * time.Second,
		MigrationPath:      "file://../../migrations",
	}

	logger := zap.NewNop()
	s.db, err = database.New(s.cfg, logger)
	s.Require().NoError(err)
	s.Require().NoError(s.db.RunMigrations())

	s.store = repository.NewGormStore(s.db, logger)
}

func (s *GormStoreTestSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		s.container.Terminate(s.ctx)
	}
}

func (s *GormStoreTestSuite) SetupTest() {
	s.Require().NoError(s.db.DB().Exec(
		"TRUNCATE cases, timeline_entries, scammer_profiles, documents, notification_attempts CASCADE").Error)
}

func (s *GormStoreTestSuite) newCase(code string) *models.Case {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Case{
		ID:           uuid.New(),
		CaseCode:     code,
		ReporterID:   "user-1",
		ReporterName: "Asha Rao",
		CaseType:     "upi-fraud",
		Description:  "Fake KYC update",
		Amount:       12500,
		IncidentDate: now.Add(-48 * time.Hour),
		Location:     "Chennai",
		Contact:      models.ContactInfo{Email: "asha@example.org"},
		Status:       models.StageReportSubmitted,
		Round:        1,
		Priority:     models.PriorityMedium,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *GormStoreTestSuite) TestCases() {
	cases := s.store.Cases()
	c := s.newCase("FRD-100001-AAAA")
	s.Require().NoError(cases.Create(s.ctx, c))

	err := cases.Create(s.ctx, s.newCase("FRD-100001-AAAA"))
	s.True(errors.Is(err, repository.ErrDuplicate), "got %v", err)

	exists, err := cases.CodeExists(s.ctx, "FRD-100001-AAAA")
	s.Require().NoError(err)
	s.True(exists)

	got, err := cases.GetByCode(s.ctx, "FRD-100001-AAAA")
	s.Require().NoError(err)
	s.Equal(c.ID, got.ID)
	s.Equal("asha@example.org", got.Contact.Email)

	_, err = cases.GetByID(s.ctx, uuid.New())
	s.True(errors.Is(err, repository.ErrNotFound))

	officer := "police-7"
	got.Status = models.StageUnderInvestigation
	got.AssignedOfficerID = &officer
	got.Notifications = models.NotificationResults{
		models.CategoryNodal: {Recipient: "nodal@example.org", Success: true},
	}
	s.Require().NoError(cases.Update(s.ctx, got))

	status := models.StageUnderInvestigation
	list, total, err := cases.List(s.ctx, &models.CaseFilter{Status: &status, AssignedOfficerID: &officer}, database.NewPaginate(10, 0))
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.True(list[0].Notifications[models.CategoryNodal].Success)
}

func (s *GormStoreTestSuite) TestTimelineUniquenessPerRound() {
	c := s.newCase("FRD-100002-BBBB")
	s.Require().NoError(s.store.Cases().Create(s.ctx, c))

	entry := func(round int, status models.EntryStatus) *models.TimelineEntry {
		now := time.Now().UTC()
		return &models.TimelineEntry{
			ID:        uuid.New(),
			CaseID:    c.ID,
			Round:     round,
			Stage:     models.StageReportSubmitted,
			Status:    status,
			Actor:     models.Actor{ID: "user-1", Role: models.RoleUser},
			Metadata:  models.JSONB{"case_code": c.CaseCode},
			CreatedAt: now,
		}
	}

	timeline := s.store.Timeline()
	s.Require().NoError(timeline.Insert(s.ctx, entry(1, models.EntryCompleted)))
	s.Require().NoError(timeline.Insert(s.ctx, entry(1, models.EntryFailed)))
	s.Require().NoError(timeline.Insert(s.ctx, entry(2, models.EntryCompleted)))

	err := timeline.Insert(s.ctx, entry(1, models.EntryCompleted))
	s.True(errors.Is(err, repository.ErrDuplicate), "got %v", err)

	found, err := timeline.FindCompleted(s.ctx, c.ID, models.StageReportSubmitted, 2)
	s.Require().NoError(err)
	s.Equal(2, found.Round)

	entries, err := timeline.ListByCase(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(entries, 3)
	s.Equal(c.CaseCode, entries[0].Metadata["case_code"])
}

func (s *GormStoreTestSuite) TestScammers() {
	scammers := s.store.Scammers()
	now := time.Now().UTC()

	older := &models.ScammerProfile{
		ID: uuid.New(), Phone: "9999999999", Status: models.ScammerActive,
		CaseIDs: []uuid.UUID{}, FirstSeen: now, LastSeen: now,
		CreatedAt: now.Add(-time.Hour), UpdatedAt: now,
	}
	newer := &models.ScammerProfile{
		ID: uuid.New(), Email: "crook@example.com", Status: models.ScammerActive,
		CaseIDs: []uuid.UUID{}, FirstSeen: now, LastSeen: now,
		CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(scammers.Create(s.ctx, older))
	s.Require().NoError(scammers.Create(s.ctx, newer))

	matches, err := scammers.FindByIdentifiers(s.ctx, models.ScammerIdentifiers{Phone: "9999999999", Email: "crook@example.com"})
	s.Require().NoError(err)
	s.Require().Len(matches, 2)
	s.Equal(older.ID, matches[0].ID)

	caseID := uuid.New()
	_, err = scammers.LinkCase(s.ctx, older.ID, caseID, now)
	s.Require().NoError(err)
	later := now.Add(time.Hour)
	linked, err := scammers.LinkCase(s.ctx, older.ID, caseID, later)
	s.Require().NoError(err)
	s.Equal(1, linked.CaseCount)
	s.Len(linked.CaseIDs, 1)
	s.WithinDuration(later, linked.LastSeen, time.Millisecond)

	s.Require().NoError(scammers.FillIdentifiers(s.ctx, older.ID, models.ScammerIdentifiers{Phone: "1111111111", PaymentHandle: "crook@ybl"}))
	got, err := scammers.GetByID(s.ctx, older.ID)
	s.Require().NoError(err)
	s.Equal("9999999999", got.Phone)
	s.Equal("crook@ybl", got.PaymentHandle)

	s.Require().NoError(scammers.UpdateStatus(s.ctx, older.ID, models.ScammerBlocked))
	err = scammers.UpdateStatus(s.ctx, uuid.New(), models.ScammerBlocked)
	s.True(errors.Is(err, repository.ErrNotFound))
}

func (s *GormStoreTestSuite) TestWithTxRollsBack() {
	c := s.newCase("FRD-100003-CCCC")

	err := s.store.WithTx(s.ctx, func(tx repository.Store) error {
		if err := tx.Cases().Create(s.ctx, c); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Error(err)

	_, err = s.store.Cases().GetByID(s.ctx, c.ID)
	s.True(errors.Is(err, repository.ErrNotFound))

	s.NoError(s.store.Health(s.ctx))
}

func (s *GormStoreTestSuite) TestMigrationsReleaseTheirConnection() {
	s.Require().NoError(s.db.RunMigrations())

	sqlDB, err := s.db.DB().DB()
	s.Require().NoError(err)
	s.Equal(0, sqlDB.Stats().InUse)
	s.NoError(s.store.Health(s.ctx))
}

func (s *GormStoreTestSuite) TestQueryTimeoutBoundsRepositoryCalls() {
	previous := s.cfg.QueryTimeout
	s.cfg.QueryTimeout = time.Nanosecond
	defer func() { s.cfg.QueryTimeout = previous }()

	store := repository.NewGormStore(s.db, zap.NewNop())

	_, err := store.Cases().GetByID(s.ctx, uuid.New())
	s.Require().Error(err)
	s.False(errors.Is(err, repository.ErrNotFound))
	s.True(errors.Is(err, context.DeadlineExceeded), "got %v", err)

	err = store.WithTx(s.ctx, func(tx repository.Store) error {
		return tx.Cases().Create(s.ctx, s.newCase("FRD-100004-DDDD"))
	})
	s.Error(err)

	_, err = s.store.Cases().GetByCode(s.ctx, "FRD-100004-DDDD")
	s.True(errors.Is(err, repository.ErrNotFound))
}
