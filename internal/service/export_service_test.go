package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
	"github.com/noah-isme/sma-uks-api/pkg/storage"
)

type rosterStub struct {
	err error
}

func (s rosterStub) ExportConsentRoster(ctx context.Context, campaignID string, format ExportFormat) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	switch format {
	case ExportFormatCSV:
		return []byte("NIS,Student,Class,Consent,Answered At\n1001,Ani,6A,APPROVED,\n"), "text/csv", nil
	case ExportFormatPDF:
		return []byte("%PDF-1.4 stub"), "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func newExportServiceForTest(t *testing.T, rosters rosterSource) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	return NewExportService(rosters, store, signer, cfg, zap.NewNop()), store
}

func TestExportServiceGenerateStoresRoster(t *testing.T) {
	svc, store := newExportServiceForTest(t, rosterStub{})

	result, err := svc.Generate(context.Background(), "c1", ExportFormatCSV)
	require.NoError(t, err)
	require.Equal(t, "c1", result.CampaignID)
	require.NotEmpty(t, result.Token)
	require.Contains(t, result.URL, "/api/v1/export/")
	require.Equal(t, ExportFormatCSV, result.Format)

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceTokenRoundTrip(t *testing.T) {
	svc, _ := newExportServiceForTest(t, rosterStub{})

	result, err := svc.Generate(context.Background(), "c1", ExportFormatPDF)
	require.NoError(t, err)

	campaignID, relPath, expiresAt, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, "c1", campaignID)
	require.Equal(t, result.RelativePath, relPath)
	require.WithinDuration(t, result.ExpiresAt, expiresAt, time.Second)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestExportServiceInvalidTokenRejected(t *testing.T) {
	svc, _ := newExportServiceForTest(t, rosterStub{})

	_, _, _, err := svc.ParseToken("not.a.valid.token")
	require.Error(t, err)
	require.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))
}

func TestExportServiceGeneratePropagatesRosterError(t *testing.T) {
	svc, _ := newExportServiceForTest(t, rosterStub{err: appErrors.ErrNotFound})

	_, err := svc.Generate(context.Background(), "missing", ExportFormatCSV)
	require.Error(t, err)
	require.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestExportServiceCleanupRemovesExpired(t *testing.T) {
	svc, store := newExportServiceForTest(t, rosterStub{})

	result, err := svc.Generate(context.Background(), "c1", ExportFormatCSV)
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(result.RelativePath), old, old))

	deleted, err := svc.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	_, err = os.Stat(store.Path(result.RelativePath))
	require.True(t, os.IsNotExist(err))
}
