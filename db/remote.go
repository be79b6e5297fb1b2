package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the credentials for s3:// export and import targets. Empty
// fields fall back to the AWS default chain (environment, shared config,
// instance role).
type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string // S3-compatible endpoint, addressed path-style
}

var (
	errReadOnlyLocation = errors.New("location cannot be written")

	// ErrLocalFilesDisabled is returned when an engine made with
	// WithoutLocalFiles is given a local path.
	ErrLocalFilesDisabled = errors.New("local files are disabled: use an http(s):// or s3:// URL")
)

// location is a parsed export or import target.
type location struct {
	raw    string
	scheme string // "" for a local path, "file", "http", "https" or "s3"
	path   string // local path or object key
	bucket string
}

func (loc location) String() string {
	return loc.raw
}

// parseLocation accepts a local path, file://path, http(s)://... or
// s3://bucket/key.
func parseLocation(raw string) (location, error) {
	u, err := url.Parse(raw)
	// A one-letter scheme is a Windows drive.
	if err != nil || len(u.Scheme) <= 1 {
		return location{raw: raw, path: raw}, nil
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "file":
		return location{raw: raw, scheme: scheme, path: u.Host + u.Path}, nil
	case "http", "https":
		return location{raw: raw, scheme: scheme}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return location{}, fmt.Errorf("invalid S3 URL %s: expected s3://bucket/key", raw)
		}
		return location{raw: raw, scheme: scheme, path: key, bucket: u.Host}, nil
	default:
		return location{}, fmt.Errorf("unsupported URL scheme %q in %s", u.Scheme, raw)
	}
}

func (loc location) local() bool {
	return loc.scheme == "" || loc.scheme == "file"
}

// resolveLocation parses raw and applies the engine's restrictions.
func (engine *Engine) resolveLocation(raw string) (location, error) {
	loc, err := parseLocation(raw)
	if err != nil {
		return location{}, err
	}
	if engine.remoteOnly && loc.local() {
		return location{}, fmt.Errorf("%w: %s", ErrLocalFilesDisabled, raw)
	}
	return loc, nil
}

// open returns the content stored at loc.
func (loc location) open(ctx context.Context, cfg *S3Config) (io.ReadCloser, error) {
	switch loc.scheme {
	case "", "file":
		return os.Open(loc.path)
	case "http", "https":
		return openHTTP(ctx, loc.raw)
	default:
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(loc.bucket),
			Key:    aws.String(loc.path),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", loc, err)
		}
		return out.Body, nil
	}
}

// write stores data at loc, replacing what was there.
func (loc location) write(ctx context.Context, data []byte, cfg *S3Config) error {
	switch loc.scheme {
	case "", "file":
		return os.WriteFile(loc.path, data, 0o644)
	case "http", "https":
		return fmt.Errorf("%w: %s", errReadOnlyLocation, loc)
	default:
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return err
		}
		_, err = client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(loc.bucket),
			Key:         aws.String(loc.path),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("text/plain; charset=utf-8"),
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", loc, err)
		}
		return nil
	}
}

func openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", rawURL, err)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

func newS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	if cfg == nil {
		cfg = &S3Config{}
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint == "" {
			return
		}
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
		// S3-compatible stores often reject the optional checksum headers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}), nil
}
