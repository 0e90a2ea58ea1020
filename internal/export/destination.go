// Package export writes workflow artifacts produced by the backend's export
// endpoint to local files, git repositories or S3-compatible buckets.
package export

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Destination is a target for an exported artifact.
type Destination interface {
	// Write stores the artifact, replacing any previous version.
	Write(ctx context.Context, data []byte) error
	// String names the destination in logs and CLI output.
	String() string
}

// Options carries the settings destinations need beyond their target.
type Options struct {
	S3Region   string
	S3Endpoint string // non-empty selects path-style addressing (MinIO and similar)
	GitRepo    string // when set, plain paths are files inside this clone
	GitBranch  string
	Format     string // artifact format, recorded on uploaded objects
}

// ParseDestination interprets target: "s3://bucket/key" uploads to S3, "-"
// writes to stdout, anything else is a local path (or a path inside
// Options.GitRepo).
func ParseDestination(ctx context.Context, target string, opts Options) (Destination, error) {
	dests, err := ParseDestinations(ctx, []string{target}, opts)
	if err != nil {
		return nil, err
	}
	return dests[0], nil
}

// ParseDestinations parses every target. S3 targets share one client, which
// is only built when at least one target needs it.
func ParseDestinations(ctx context.Context, targets []string, opts Options) ([]Destination, error) {
	var s3c *s3.Client
	dests := make([]Destination, 0, len(targets))
	for _, target := range targets {
		switch {
		case target == "":
			return nil, fmt.Errorf("empty export destination")
		case target == "-":
			dests = append(dests, &WriterDestination{W: os.Stdout, Name: "stdout"})
		case strings.HasPrefix(target, "s3://"):
			bucket, key, err := ParseS3URL(target)
			if err != nil {
				return nil, err
			}
			if s3c == nil {
				if s3c, err = newS3Client(ctx, opts); err != nil {
					return nil, err
				}
			}
			d := NewS3Destination(s3c, bucket, key)
			d.format = opts.Format
			dests = append(dests, d)
		case opts.GitRepo != "":
			branch := opts.GitBranch
			if branch == "" {
				branch = "main"
			}
			dests = append(dests, NewGitDestination(opts.GitRepo, target, branch))
		default:
			dests = append(dests, NewFileDestination(target))
		}
	}
	return dests, nil
}

func newS3Client(ctx context.Context, opts Options) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%s: not an s3:// URL", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%s: want s3://bucket/key", raw)
	}
	return u.Host, key, nil
}

// FileDestination writes the artifact to a local file.
type FileDestination struct {
	path string
}

func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

func (d *FileDestination) String() string { return d.path }

// Write replaces the file atomically via a temp file in the same directory.
func (d *FileDestination) Write(_ context.Context, data []byte) error {
	return writeFileAtomic(d.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
