package export

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the part of *s3.Client an S3Destination needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination uploads the artifact as one object. Uploads overwrite, so
// re-exporting a workflow replaces the previous revision.
type S3Destination struct {
	client ObjectPutter
	bucket string
	key    string
	format string
}

func NewS3Destination(client ObjectPutter, bucket, key string) *S3Destination {
	return &S3Destination{client: client, bucket: bucket, key: key}
}

func (d *S3Destination) String() string { return "s3://" + d.bucket + "/" + d.key }

// Write puts data under the key. The content type follows the key's
// extension; the artifact format, when known, is stored as object metadata.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(d.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType(path.Ext(d.key))),
		CacheControl:  aws.String("no-cache"),
	}
	if d.format != "" {
		in.Metadata = map[string]string{"workflow-format": d.format}
	}
	if _, err := d.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("uploading %s: %w", d, err)
	}
	return nil
}

// ContentType maps an artifact file extension to a MIME type.
func ContentType(ext string) string {
	switch ext {
	case ".yaml", ".yml":
		return "application/yaml"
	case ".json":
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}
