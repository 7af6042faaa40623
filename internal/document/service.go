package document

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fraudcase/internal/apperr"
	"fraudcase/internal/models"
	"fraudcase/internal/repository"
)

// Service renders notices and stores them
type Service struct {
	renderer Renderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a document service
func NewService(renderer Renderer, logger *zap.Logger) *Service {
	return &Service{
		renderer: renderer,
		logger:   logger.Named("documents"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Generate renders the legal notice for c and stores it through repo. A
// render failure is reported as a dependency failure.
func (s *Service) Generate(ctx context.Context, repo repository.DocumentRepository, c models.Case, scammer *models.ScammerProfile) (*models.Document, error) {
	issuedAt := s.now()

	content, err := s.renderer.Render(Notice{Case: c, Scammer: scammer, IssuedAt: issuedAt})
	if err != nil {
		s.logger.Error("Failed to render legal notice",
			zap.String("case_id", c.ID.String()),
			zap.Error(err))
		return nil, apperr.Dependency(err, "failed to render legal notice")
	}

	doc := &models.Document{
		ID:          uuid.New(),
		CaseID:      c.ID,
		Kind:        KindLegalNotice,
		ContentType: ContentTypePDF,
		Content:     content,
		Size:        len(content),
		Digest:      Digest(content),
		CreatedAt:   issuedAt,
	}

	if err := repo.Create(ctx, doc); err != nil {
		return nil, apperr.Dependency(err, "failed to store legal notice")
	}

	s.logger.Info("Legal notice generated",
		zap.String("case_id", c.ID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.Int("size", doc.Size))

	return doc, nil
}

// Get loads a stored document
func (s *Service) Get(ctx context.Context, repo repository.DocumentRepository, id uuid.UUID) (*models.Document, error) {
	doc, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "document %s not found", id)
		}
		return nil, apperr.Dependency(err, "failed to load document")
	}
	return doc, nil
}
