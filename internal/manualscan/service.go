// Package manualscan implements the user-initiated scan path. Unlike the
// ambient path it counts toward user-visible statistics, tolerates a longer
// wait, and falls back to the local heuristic scorer when the classifier is
// unreachable, so the user always gets a result, clearly labelled approximate
// when it was produced offline.
package manualscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phantomsec/threatwatch/internal/classifier"
	"github.com/phantomsec/threatwatch/internal/config"
	"github.com/phantomsec/threatwatch/internal/dedup"
	"github.com/phantomsec/threatwatch/internal/heuristic"
	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/phantomsec/threatwatch/internal/storage"
	"github.com/phantomsec/threatwatch/internal/textnorm"
	"github.com/sirupsen/logrus"
)

// ErrEmptyText rejects blank input before any processing.
var ErrEmptyText = errors.New("scan text is empty")

// ErrDuplicate reports that the same text was scanned within the manual-path
// dedup window.
var ErrDuplicate = errors.New("text was already scanned recently")

// Scanner is the remote classifier boundary.
type Scanner interface {
	Submit(ctx context.Context, request models.ScanRequest) (models.ScanVerdict, error)
}

// Service runs manual scans. It owns its own dedup cache, configured with the
// manual-path window and capacity (longer and larger than the notification
// path's).
type Service struct {
	cfg      *config.Config
	cache    *dedup.Cache
	scanner  Scanner
	fallback *heuristic.Scorer
	archive  storage.StorageInterface
}

// NewService creates the manual scan service. The archive may be nil when no
// storage backend is configured.
func NewService(cfg *config.Config, scanner Scanner, archive storage.StorageInterface) *Service {
	return &Service{
		cfg:      cfg,
		cache:    dedup.New(cfg.ManualDedupWindow, cfg.ManualDedupCapacity),
		scanner:  scanner,
		fallback: heuristic.NewScorer(),
		archive:  archive,
	}
}

// Scan scores the given text. The classifier verdict is preferred; on
// ScanUnavailable the heuristic scorer supplies an approximate verdict so a
// raw transport error never reaches the user.
func (s *Service) Scan(ctx context.Context, text string) (models.ScanVerdict, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ScanVerdict{}, ErrEmptyText
	}

	if !s.cache.Accept(textnorm.Fingerprint(text), time.Now()) {
		return models.ScanVerdict{}, ErrDuplicate
	}

	request := models.ScanRequest{
		DeviceID:      s.cfg.DeviceID,
		SourceType:    models.SourceTypeManual,
		TextContent:   text,
		Timestamp:     time.Now().Format("2006-01-02T15:04:05"),
		ExtractedURLs: textnorm.ExtractURLs(text),
		ShouldLog:     true,
	}

	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.ManualScanTimeout)
	defer cancel()

	verdict, err := s.scanner.Submit(scanCtx, request)
	if err != nil {
		if !errors.Is(err, classifier.ErrUnavailable) {
			logrus.Warnf("Unexpected manual scan error: %v", err)
		}
		logrus.Infof("Classifier unavailable, using heuristic scorer for manual scan")
		verdict = s.fallback.Score(text)
	}

	s.persist(request, verdict)
	return verdict, nil
}

// persist archives the scan record. Manual scans are the only persisted
// kind; ambient detections never reach here, so passive monitoring cannot
// inflate the user-visible history.
func (s *Service) persist(request models.ScanRequest, verdict models.ScanVerdict) {
	if s.archive == nil {
		return
	}

	record := models.ScanRecord{
		ID:          uuid.NewString(),
		DeviceID:    request.DeviceID,
		SourceType:  request.SourceType,
		TextContent: request.TextContent,
		Verdict:     verdict,
		ScannedAt:   time.Now(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		logrus.Errorf("Failed to marshal scan record: %v", err)
		return
	}

	filename := fmt.Sprintf("scans/%s/%s.json", record.ScannedAt.Format("2006-01-02"), record.ID)
	if err := s.archive.Store(filename, data); err != nil {
		logrus.Errorf("Failed to archive scan record: %v", err)
	}
}
