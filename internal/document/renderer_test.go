package document

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fraudcase/internal/apperr"
	"fraudcase/internal/config"
	"fraudcase/internal/models"
	"fraudcase/internal/repository/memory"
)

func sampleCase() models.Case {
	return models.Case{
		ID:           uuid.New(),
		CaseCode:     "FRD-123456-AB12",
		ReporterID:   "user-1",
		ReporterName: "Asha Rao",
		CaseType:     "upi_fraud",
		Description:  "Received a call claiming to be from the bank and transferred money to a UPI handle.",
		Amount:       25000,
		IncidentDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:       models.StageInformationVerified,
	}
}

func TestPDFRenderer_Render(t *testing.T) {
	r := NewPDFRenderer(config.DocumentsConfig{Authority: "Cyber Cell", Footer: "System generated"})

	content, err := r.Render(Notice{
		Case:     sampleCase(),
		Scammer:  &models.ScammerProfile{Name: "Ravi", Phone: "9999999999", PaymentHandle: "ravi@ybl"},
		IssuedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
}

func TestPDFRenderer_RequiresCaseCode(t *testing.T) {
	r := NewPDFRenderer(config.DocumentsConfig{})
	c := sampleCase()
	c.CaseCode = ""

	_, err := r.Render(Notice{Case: c})
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("notice"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Digest([]byte("notice")))
	assert.NotEqual(t, a, Digest([]byte("notice2")))
}

type failingRenderer struct{}

func (failingRenderer) Render(Notice) ([]byte, error) {
	return nil, fmt.Errorf("font missing")
}

func TestService_Generate(t *testing.T) {
	store := memory.New()
	svc := NewService(NewPDFRenderer(config.DocumentsConfig{Authority: "Cyber Cell"}), zap.NewNop())
	ctx := context.Background()
	c := sampleCase()

	doc, err := svc.Generate(ctx, store.Documents(), c, nil)
	require.NoError(t, err)
	assert.Equal(t, c.ID, doc.CaseID)
	assert.Equal(t, KindLegalNotice, doc.Kind)
	assert.Equal(t, ContentTypePDF, doc.ContentType)
	assert.Equal(t, len(doc.Content), doc.Size)
	assert.Equal(t, Digest(doc.Content), doc.Digest)

	stored, err := svc.Get(ctx, store.Documents(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, stored.Content)

	_, err = svc.Get(ctx, store.Documents(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestService_GenerateRenderFailure(t *testing.T) {
	svc := NewService(failingRenderer{}, zap.NewNop())

	_, err := svc.Generate(context.Background(), memory.New().Documents(), sampleCase(), nil)
	assert.True(t, apperr.Is(err, apperr.KindDependencyFailure))
}
