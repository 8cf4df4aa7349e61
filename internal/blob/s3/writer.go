package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/makwansoran/futrledger/internal/domain"
)

// uploadPartSize is the multipart part size, the S3 minimum. A monthly
// statement export rarely exceeds one part; the upload manager only splits
// when an export grows past it.
const uploadPartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter for statement exports. Every upload
// goes through the SDK upload manager, which streams the body and switches
// to a concurrent multipart upload for exports larger than one part.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
}

// NewWriter creates a Writer uploading into the client's configured bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		uploader: manager.NewUploader(c.S3(), func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
		bucket: c.Bucket(),
	}
}

// Put uploads one object at the given path.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", path, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BlobWriter = (*Writer)(nil)
