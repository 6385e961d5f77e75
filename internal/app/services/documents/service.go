// Package documents renders funding contracts to PDF, stores them and
// keeps an audit record of every render.
package documents

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	"github.com/providerdesk/backoffice/internal/app/domain/document"
	"github.com/providerdesk/backoffice/internal/app/metrics"
	"github.com/providerdesk/backoffice/internal/app/services/contracts"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// ObjectStore is the storage surface the service needs. The objectstore
// client implements it; tests supply fakes.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	CreateSignedURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)
}

// Service renders and stores contract documents.
type Service struct {
	store        storage.DocumentStore
	contractsSt  storage.ContractStore
	residents    storage.ResidentStore
	houses       storage.HouseStore
	objects      ObjectStore
	signedURLTTL time.Duration
	log          *logging.Logger
}

// New creates a configured document service.
func New(store storage.DocumentStore, contractStore storage.ContractStore, residents storage.ResidentStore, houses storage.HouseStore, objects ObjectStore, signedURLTTL time.Duration, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("documents")
	}
	if signedURLTTL <= 0 {
		signedURLTTL = 15 * time.Minute
	}
	return &Service{
		store:        store,
		contractsSt:  contractStore,
		residents:    residents,
		houses:       houses,
		objects:      objects,
		signedURLTTL: signedURLTTL,
		log:          log,
	}
}

// RenderResult is a stored document plus its access URL.
type RenderResult struct {
	Document  document.Document `json:"document"`
	SignedURL string            `json:"signed_url"`
}

// Render generates the contract PDF, uploads it and records the audit row
// (content hash, render time, size). It returns a signed URL for download.
func (s *Service) Render(ctx context.Context, contractID string) (RenderResult, error) {
	c, err := s.contractsSt.GetContract(ctx, contractID)
	if err != nil {
		if err == sql.ErrNoRows {
			return RenderResult{}, errors.NotFound("contract", contractID)
		}
		return RenderResult{}, err
	}

	residentName := ""
	if r, err := s.residents.GetResident(ctx, c.ResidentID); err == nil {
		residentName = r.Name
	}
	houseName := ""
	if c.HouseID != "" && s.houses != nil {
		if h, err := s.houses.GetHouse(ctx, c.HouseID); err == nil {
			houseName = h.Name
		}
	}

	start := time.Now()
	pdfBytes, err := renderPDF(c, residentName, houseName)
	renderTime := time.Since(start)
	if err != nil {
		metrics.RecordDocumentRender(false)
		return RenderResult{}, errors.Internal("Contract PDF render failed", err)
	}

	sum := sha256.Sum256(pdfBytes)
	key := fmt.Sprintf("%s/contracts/%s/%d.pdf", c.OrgID, c.ID, start.UTC().Unix())

	if s.objects == nil {
		metrics.RecordDocumentRender(false)
		return RenderResult{}, errors.Internal("No object store configured", nil)
	}
	if err := s.objects.Upload(ctx, key, pdfBytes, "application/pdf"); err != nil {
		metrics.RecordDocumentRender(false)
		return RenderResult{}, errors.Internal("Contract PDF upload failed", err)
	}

	doc, err := s.store.CreateDocument(ctx, document.Document{
		OrgID:        c.OrgID,
		ContractID:   c.ID,
		StorageKey:   key,
		SHA256:       hex.EncodeToString(sum[:]),
		SizeBytes:    int64(len(pdfBytes)),
		RenderMillis: renderTime.Milliseconds(),
	})
	if err != nil {
		metrics.RecordDocumentRender(false)
		return RenderResult{}, err
	}

	signedURL, err := s.objects.CreateSignedURL(ctx, key, s.signedURLTTL)
	if err != nil {
		metrics.RecordDocumentRender(false)
		return RenderResult{}, errors.Internal("Signing document URL failed", err)
	}

	metrics.RecordDocumentRender(true)
	s.log.WithField("contract_id", c.ID).
		WithField("document_id", doc.ID).
		WithField("size_bytes", doc.SizeBytes).
		WithField("render_ms", doc.RenderMillis).
		Info("contract document rendered")
	return RenderResult{Document: doc, SignedURL: signedURL}, nil
}

// Get fetches a document audit record by identifier.
func (s *Service) Get(ctx context.Context, id string) (document.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// Download fetches the stored PDF bytes for a document.
func (s *Service) Download(ctx context.Context, documentID string) (document.Document, []byte, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return document.Document{}, nil, err
	}
	data, err := s.objects.Download(ctx, doc.StorageKey)
	if err != nil {
		return document.Document{}, nil, errors.Internal("Failed to fetch document from storage", err)
	}
	return doc, data, nil
}

// SignedURL returns a fresh signed URL for an existing document.
func (s *Service) SignedURL(ctx context.Context, documentID string) (string, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	return s.objects.CreateSignedURL(ctx, doc.StorageKey, s.signedURLTTL)
}

// ListByContract returns the render history for a contract.
func (s *Service) ListByContract(ctx context.Context, contractID string) ([]document.Document, error) {
	return s.store.ListDocumentsByContract(ctx, contractID)
}

func renderPDF(c contract.Contract, residentName, houseName string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("SDA Funding Contract", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "SDA Funding Contract")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 11)
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(55, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}

	row("Contract ID", c.ID)
	row("Resident", residentName)
	if houseName != "" {
		row("House", houseName)
	}
	row("Status", string(c.Status))
	row("Frequency", string(c.Frequency))
	row("Amount", c.Amount.StringFixed(2))
	row("Original amount", c.OriginalAmount.StringFixed(2))
	row("Current balance", c.CurrentBalance.StringFixed(2))
	row("Daily rate", contracts.DailyRate(c).StringFixed(2))
	row("Start date", c.StartDate.Format("2006-01-02"))
	if !c.EndDate.IsZero() {
		row("End date", c.EndDate.Format("2006-01-02"))
	}
	if c.RenewedFromID != "" {
		row("Renewed from", c.RenewedFromID)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf("Generated %s. This document reflects the contract state at generation time.", time.Now().UTC().Format(time.RFC3339)), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
