package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// CloudinaryStorage uploads files to Cloudinary. Images and PDFs alike are
// sent with resource type "auto".
type CloudinaryStorage struct {
	client *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStorage builds an uploader from account credentials.
func NewCloudinaryStorage(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: init client: %w", err)
	}
	return &CloudinaryStorage{client: cld, folder: folder}, nil
}

// Upload streams r to Cloudinary under a unique public id derived from filename.
func (s *CloudinaryStorage) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*Object, error) {
	publicID := uuid.NewString() + "-" + sanitizeName(strings.TrimSuffix(filename, path.Ext(filename)))
	resp, err := s.client.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		Folder:       s.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary: upload: %w", err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary: upload rejected: %s", resp.Error.Message)
	}
	return &Object{
		Key:         resp.PublicID,
		URL:         resp.SecureURL,
		ContentType: contentType,
		Size:        int64(resp.Bytes),
	}, nil
}
