package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store implements Store for any S3-compatible service. The bucket's
// key space is exposed as a tree: delimiter listing turns common
// prefixes into containers and plain keys into file objects. Object IDs
// are full keys; container IDs are key prefixes ending in "/".
type S3Store struct {
	client   *minio.Client
	bucket   string
	pageSize int
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PageSize  int
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build s3 client: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &S3Store{client: client, bucket: cfg.Bucket, pageSize: pageSize}, nil
}

// List returns one page of immediate children under the prefix. The
// continuation token is the last key of the previous page.
func (s *S3Store) List(ctx context.Context, containerID, pageToken string) (Page, error) {
	prefix := containerPrefix(containerID)

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  false,
		StartAfter: pageToken,
	})

	page, err := collectPage(objects, prefix, pageToken, s.pageSize)
	if err != nil {
		return Page{}, s3Error("list", containerID, err)
	}
	return page, nil
}

// collectPage assembles one page from the listing stream. When a page
// cuts at a common-prefix entry, resuming with StartAfter set to that
// prefix makes the server roll the prefix's keys up into the same
// common prefix again, so the first entries of the resumed stream can
// sort at or before the token; those are duplicates of the previous
// page and are skipped. Pages keep shrinking the remaining key space,
// so the token always advances and the final page ends with an empty
// token.
func collectPage(objects <-chan minio.ObjectInfo, prefix, pageToken string, pageSize int) (Page, error) {
	var page Page
	for obj := range objects {
		if obj.Err != nil {
			return Page{}, obj.Err
		}
		if obj.Key == prefix {
			continue // the placeholder entry for the prefix itself
		}
		if pageToken != "" && obj.Key <= pageToken {
			continue
		}
		page.Objects = append(page.Objects, s3Object(obj))
		if len(page.Objects) == pageSize {
			page.NextToken = obj.Key
			break
		}
	}
	return page, nil
}

func (s *S3Store) Metadata(ctx context.Context, id string) (Object, error) {
	if strings.HasSuffix(id, "/") {
		return Object{ID: id, Name: path.Base(strings.TrimSuffix(id, "/")), Kind: KindContainer}, nil
	}
	info, err := s.client.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{})
	if err != nil {
		return Object{}, s3Error("metadata", id, err)
	}
	return Object{
		ID:          id,
		Name:        path.Base(id),
		Kind:        KindFile,
		ContentType: info.ContentType,
	}, nil
}

// Open streams the object's bytes. S3 objects already have a concrete
// byte representation, so format export is not supported here.
func (s *S3Store) Open(ctx context.Context, id, exportType string) (io.ReadCloser, error) {
	if exportType != "" {
		return nil, NewError(KindUnexpected, "export", id,
			fmt.Errorf("s3 backend cannot export as %s", exportType))
	}
	obj, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Error("download", id, err)
	}
	// GetObject is lazy; surface missing objects now rather than at the
	// first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, s3Error("download", id, err)
	}
	return obj, nil
}

func s3Object(obj minio.ObjectInfo) Object {
	if strings.HasSuffix(obj.Key, "/") {
		return Object{
			ID:   obj.Key,
			Name: path.Base(strings.TrimSuffix(obj.Key, "/")),
			Kind: KindContainer,
		}
	}
	return Object{
		ID:          obj.Key,
		Name:        path.Base(obj.Key),
		Kind:        KindFile,
		ContentType: obj.ContentType,
	}
}

func containerPrefix(containerID string) string {
	if containerID == "" || containerID == "root" {
		return ""
	}
	if !strings.HasSuffix(containerID, "/") {
		return containerID + "/"
	}
	return containerID
}

func s3Error(op, id string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return NewError(ClassifyStatus(resp.StatusCode), op, id, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, op, id, err)
	}
	return NewError(KindUnexpected, op, id, err)
}
