package manualscan

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/phantomsec/threatwatch/internal/classifier"
	"github.com/phantomsec/threatwatch/internal/config"
	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/phantomsec/threatwatch/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScanner struct {
	mu       sync.Mutex
	verdict  models.ScanVerdict
	err      error
	requests []models.ScanRequest
}

func (s *stubScanner) Submit(ctx context.Context, request models.ScanRequest) (models.ScanVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, request)
	return s.verdict, s.err
}

func scanConfig() *config.Config {
	return &config.Config{
		DeviceID:            "device-1",
		ManualScanTimeout:   time.Second,
		ManualDedupWindow:   60 * time.Second,
		ManualDedupCapacity: 256,
	}
}

func TestScanReturnsClassifierVerdict(t *testing.T) {
	scanner := &stubScanner{verdict: models.ScanVerdict{IsThreat: true, Confidence: 0.88, RiskLevel: "HIGH"}}
	service := NewService(scanConfig(), scanner, nil)

	verdict, err := service.Scan(context.Background(), "please verify your account at http://evil.example/login")

	require.NoError(t, err)
	assert.True(t, verdict.IsThreat)
	assert.InDelta(t, 0.88, verdict.Confidence, 0.001)
	assert.False(t, verdict.Approximate)

	require.Len(t, scanner.requests, 1)
	request := scanner.requests[0]
	assert.Equal(t, "device-1", request.DeviceID)
	assert.Equal(t, models.SourceTypeManual, request.SourceType)
	assert.True(t, request.ShouldLog, "manual scans count toward user statistics")
	assert.Equal(t, []string{"http://evil.example/login"}, request.ExtractedURLs)
}

func TestScanRejectsEmptyText(t *testing.T) {
	service := NewService(scanConfig(), &stubScanner{}, nil)

	_, err := service.Scan(context.Background(), "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestScanRejectsDuplicateWithinWindow(t *testing.T) {
	scanner := &stubScanner{}
	service := NewService(scanConfig(), scanner, nil)

	_, err := service.Scan(context.Background(), "suspicious message to check")
	require.NoError(t, err)

	// Same content modulo case and spacing.
	_, err = service.Scan(context.Background(), "Suspicious   message to check")
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.Len(t, scanner.requests, 1, "the duplicate must not reach the classifier")
}

func TestScanFallsBackToHeuristic(t *testing.T) {
	scanner := &stubScanner{err: classifier.ErrUnavailable}
	service := NewService(scanConfig(), scanner, nil)

	verdict, err := service.Scan(context.Background(), "긴급: 계좌 확인 필요 http://bit.ly/xyz")

	require.NoError(t, err, "the user always gets a verdict, even offline")
	assert.True(t, verdict.Approximate)
	assert.True(t, verdict.IsThreat)
	assert.InDelta(t, 1.0, verdict.Confidence, 0.001)
}

func TestScanArchivesRecord(t *testing.T) {
	archive := storage.NewMemoryStorage()
	scanner := &stubScanner{verdict: models.ScanVerdict{IsThreat: true, Confidence: 0.7}}
	service := NewService(scanConfig(), scanner, archive)

	_, err := service.Scan(context.Background(), "please verify your account now")
	require.NoError(t, err)

	names, err := archive.List("scans/")
	require.NoError(t, err)
	require.Len(t, names, 1)

	data, err := archive.Retrieve(names[0])
	require.NoError(t, err)

	var record models.ScanRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "device-1", record.DeviceID)
	assert.Equal(t, models.SourceTypeManual, record.SourceType)
	assert.Equal(t, "please verify your account now", record.TextContent)
	assert.True(t, record.Verdict.IsThreat)
}

func TestScanFallbackVerdictIsArchived(t *testing.T) {
	archive := storage.NewMemoryStorage()
	scanner := &stubScanner{err: classifier.ErrUnavailable}
	service := NewService(scanConfig(), scanner, archive)

	_, err := service.Scan(context.Background(), "긴급: 계좌 확인 필요 http://bit.ly/xyz")
	require.NoError(t, err)

	names, err := archive.List("scans/")
	require.NoError(t, err)
	require.Len(t, names, 1)

	data, err := archive.Retrieve(names[0])
	require.NoError(t, err)

	var record models.ScanRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.True(t, record.Verdict.Approximate)
}
