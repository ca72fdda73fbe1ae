package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// S3Config locates the bucket.
type S3Config struct {
	Bucket string
	Region string
	Prefix string

	// Endpoint overrides the S3 endpoint for compatible services.
	Endpoint string
}

// Validate checks that a bucket is named.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return &domain.ConfigurationError{Field: "output.s3.bucket", Reason: "bucket is empty"}
	}
	return nil
}

// S3Store keeps files in an S3 bucket under a prefix.
type S3Store struct {
	client s3iface.S3API
	cfg    S3Config
	log    *log.Logger
	now    func() time.Time
}

// NewS3Store opens a session from the shared AWS config and environment.
func NewS3Store(cfg S3Config, logger *log.Logger) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return NewS3StoreWithClient(s3.New(sess), cfg, logger)
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client s3iface.S3API, cfg S3Config, logger *log.Logger) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &S3Store{client: client, cfg: cfg, log: logger.WithPrefix("store"), now: time.Now}, nil
}

// SaveAsset uploads the asset and returns its s3:// URL.
func (s *S3Store) SaveAsset(ctx context.Context, asset domain.AudioAsset) (string, error) {
	if len(asset.Data) == 0 {
		return "", errors.New("asset has no data")
	}
	return s.put(ctx, AssetName(asset), asset.Data, domain.ContentTypeWAV)
}

// SaveScript uploads s and returns its s3:// URL.
func (s *S3Store) SaveScript(ctx context.Context, sc domain.Script, name string) (string, error) {
	data, err := encodeScript(sc)
	if err != nil {
		return "", err
	}
	return s.put(ctx, ScriptName(name, s.now()), data, "text/plain; charset=utf-8")
}

// LoadScript downloads a script. ref may be an s3:// URL, a full key or a
// bare file name under the prefix.
func (s *S3Store) LoadScript(ctx context.Context, ref string) (domain.Script, error) {
	key, err := s.keyFor(ref)
	if err != nil {
		return domain.Script{}, err
	}

	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return domain.Script{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		return domain.Script{}, fmt.Errorf("failed to download script: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return domain.Script{}, fmt.Errorf("failed to read script: %w", err)
	}
	return decodeScript(ref, data)
}

// List returns the stored objects under the prefix, newest first.
func (s *S3Store) List(ctx context.Context) ([]Entry, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.cfg.Bucket)}
	if s.cfg.Prefix != "" {
		input.Prefix = aws.String(s.cfg.Prefix + "/")
	}

	var entries []Entry
	err := s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			kind, ok := classify(key)
			if !ok {
				continue
			}
			entries = append(entries, Entry{
				Ref:     s.url(key),
				Name:    path.Base(key),
				Kind:    kind,
				Size:    aws.Int64Value(obj.Size),
				ModTime: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket: %w", err)
	}
	sortEntries(entries)
	return entries, nil
}

func (s *S3Store) put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := s.key(name)
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		s.log.Error("Failed to upload object", "bucket", s.cfg.Bucket, "key", key, "err", err)
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}

	ref := s.url(key)
	s.log.Debug("Uploaded object", "ref", ref, "bytes", len(data))
	return ref, nil
}

func (s *S3Store) key(name string) string {
	if s.cfg.Prefix == "" {
		return name
	}
	return s.cfg.Prefix + "/" + name
}

func (s *S3Store) url(key string) string {
	return "s3://" + s.cfg.Bucket + "/" + key
}

func (s *S3Store) keyFor(ref string) (string, error) {
	if strings.HasPrefix(ref, "s3://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("invalid s3 ref %q: %w", ref, err)
		}
		if u.Host != s.cfg.Bucket {
			return "", fmt.Errorf("ref %q is not in bucket %s", ref, s.cfg.Bucket)
		}
		return strings.TrimPrefix(u.Path, "/"), nil
	}
	if strings.Contains(ref, "/") {
		return ref, nil
	}
	return s.key(ref), nil
}
