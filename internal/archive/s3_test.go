package archive_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/simulcast/internal/archive"
	"github.com/narwhalmedia/simulcast/pkg/logger"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// MockObjectStore is a mock implementation of archive.ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func rawEpisode() models.RawEpisode {
	return models.RawEpisode{
		CountryCode:     "FR",
		Platform:        models.PlatformCrunchyroll,
		PlatformID:      "G4VUQ1ZKW",
		ReleaseDateTime: time.Date(2025, time.March, 7, 16, 0, 0, 0, time.UTC),
		Original:        []byte(`{"id":"G4VUQ1ZKW"}`),
	}
}

func TestS3Archiver_Archive(t *testing.T) {
	// Arrange
	store := new(MockObjectStore)
	store.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, err := io.ReadAll(in.Body)
		return err == nil &&
			aws.ToString(in.Bucket) == "simulcast-raw" &&
			aws.ToString(in.Key) == "raw/crunchyroll/2025/03/FR-CRUN-G4VUQ1ZKW-ja-JP.json" &&
			string(body) == `{"id":"G4VUQ1ZKW"}` &&
			in.Metadata["platform"] == "CRUN"
	})).Return(&s3.PutObjectOutput{}, nil).Once()
	archiver := archive.NewS3Archiver(store, "simulcast-raw", "/raw/", logger.NewNoop())

	// Act
	err := archiver.Archive(context.Background(), rawEpisode(), "FR-CRUN-G4VUQ1ZKW-ja-JP")

	// Assert
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestS3Archiver_Archive_NoPayload(t *testing.T) {
	store := new(MockObjectStore)
	archiver := archive.NewS3Archiver(store, "simulcast-raw", "raw", logger.NewNoop())
	raw := rawEpisode()
	raw.Original = nil

	err := archiver.Archive(context.Background(), raw, "FR-CRUN-G4VUQ1ZKW-ja-JP")

	require.NoError(t, err)
	store.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}

func TestS3Archiver_Archive_StoreFailure(t *testing.T) {
	store := new(MockObjectStore)
	store.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
	archiver := archive.NewS3Archiver(store, "simulcast-raw", "raw", logger.NewNoop())

	err := archiver.Archive(context.Background(), rawEpisode(), "FR-CRUN-G4VUQ1ZKW-ja-JP")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw/crunchyroll/2025/03/FR-CRUN-G4VUQ1ZKW-ja-JP.json")
}

func TestS3Archiver_Key_WithoutPrefix(t *testing.T) {
	archiver := archive.NewS3Archiver(nil, "bucket", "", logger.NewNoop())
	raw := rawEpisode()
	raw.Platform = models.PlatformADN

	assert.Equal(t, "adn/2025/03/FR-ANIM-1-fr-FR.json", archiver.Key(raw, "FR-ANIM-1-fr-FR"))
}
