package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"shorts-pipeline/internal/config"
)

// RemoteError wraps any failure from the storage provider. The pipeline
// never retries these; the job fails with the underlying message.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// RemoteFile is metadata for one candidate object in the watched prefix.
type RemoteFile struct {
	Key          string
	Name         string
	Size         int64
	LastModified time.Time
}

// Client implements the remote file service on S3. Folders are key
// prefixes; a folder ref is the prefix with a trailing slash.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New builds an S3-backed client from config, honoring custom endpoints
// for S3-compatible providers.
func New(ctx context.Context, cfg config.Config) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.S3Endpoint,
					HostnameImmutable: cfg.S3PathStyle,
					SigningRegion:     cfg.S3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3PathStyle
	})
	return &Client{s3: client, bucket: cfg.S3Bucket}, nil
}

// Download copies an object to a local file.
func (c *Client) Download(ctx context.Context, key, destPath string) error {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &RemoteError{Op: "download", Err: err}
	}
	defer out.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return &RemoteError{Op: "download", Err: err}
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return &RemoteError{Op: "download", Err: err}
	}
	return nil
}

// Upload puts a local file into a folder under the given name and returns
// the resulting object key.
func (c *Client) Upload(ctx context.Context, localPath, folderRef, name string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", &RemoteError{Op: "upload", Err: err}
	}
	defer f.Close()

	key := folderRef + name
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(name)),
	})
	if err != nil {
		return "", &RemoteError{Op: "upload", Err: err}
	}
	return key, nil
}

// Move relocates an object into a folder, keeping its base name. S3 has
// no rename, so this is a copy followed by a delete of the original.
func (c *Client) Move(ctx context.Context, key, folderRef string) error {
	destKey := folderRef + path.Base(key)
	_, err := c.s3.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		CopySource: aws.String(c.bucket + "/" + key),
		Key:        aws.String(destKey),
	})
	if err != nil {
		return &RemoteError{Op: "move", Err: err}
	}
	_, err = c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &RemoteError{Op: "move", Err: err}
	}
	return nil
}

// EnsureFolder get-or-creates a folder under parentRef and returns its
// ref. Folder identity is the (parent, name) prefix, so calling twice with
// the same arguments always yields the same ref; the marker object is only
// written when missing.
func (c *Client) EnsureFolder(ctx context.Context, parentRef, name string) (string, error) {
	ref := FolderRef(parentRef, name)
	marker := ref + ".keep"

	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(marker),
	})
	if err == nil {
		return ref, nil
	}
	if !isNotFound(err) {
		return "", &RemoteError{Op: "ensure folder", Err: err}
	}

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(marker),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return "", &RemoteError{Op: "ensure folder", Err: err}
	}
	return ref, nil
}

// ListCandidateFiles returns objects directly under folderRef, skipping
// subfolder contents and folder markers.
func (c *Client) ListCandidateFiles(ctx context.Context, folderRef string) ([]RemoteFile, error) {
	var files []RemoteFile
	var token *string
	for {
		out, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(folderRef),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, &RemoteError{Op: "list", Err: err}
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			name := path.Base(key)
			if key == folderRef || name == ".keep" {
				continue
			}
			f := RemoteFile{Key: key, Name: name}
			if obj.Size != nil {
				f.Size = *obj.Size
			}
			if obj.LastModified != nil {
				f.LastModified = *obj.LastModified
			}
			files = append(files, f)
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return files, nil
}

// FolderRef joins a parent folder ref and a folder name into a prefix.
func FolderRef(parentRef, name string) string {
	parent := strings.TrimSuffix(parentRef, "/")
	if parent == "" {
		return name + "/"
	}
	return parent + "/" + name + "/"
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func isNotFound(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
