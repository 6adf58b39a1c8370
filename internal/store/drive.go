package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveStore implements Store on top of the Google Drive v3 API.
type DriveStore struct {
	srv      *drive.Service
	pageSize int64
}

// NewDriveStore builds a read-only Drive client from a service account
// credentials file.
func NewDriveStore(ctx context.Context, credentialsFile string, pageSize int64) (*DriveStore, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(raw, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	return &DriveStore{srv: srv, pageSize: pageSize}, nil
}

// List returns one page of immediate children of the given folder.
func (s *DriveStore) List(ctx context.Context, containerID, pageToken string) (Page, error) {
	if containerID == "" {
		containerID = "root"
	}

	call := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", containerID)).
		PageSize(s.pageSize).
		Fields("nextPageToken, files(id, name, mimeType)").
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	result, err := call.Do()
	if err != nil {
		return Page{}, driveError("list", containerID, err)
	}

	page := Page{NextToken: result.NextPageToken}
	for _, f := range result.Files {
		page.Objects = append(page.Objects, Object{
			ID:          f.Id,
			Name:        f.Name,
			Kind:        driveKind(f.MimeType),
			ContentType: f.MimeType,
		})
	}
	return page, nil
}

// Metadata fetches the minimal fields needed to resolve a transfer.
func (s *DriveStore) Metadata(ctx context.Context, id string) (Object, error) {
	f, err := s.srv.Files.Get(id).Fields("id, name, mimeType").Context(ctx).Do()
	if err != nil {
		return Object{}, driveError("metadata", id, err)
	}
	return Object{
		ID:          f.Id,
		Name:        f.Name,
		Kind:        driveKind(f.MimeType),
		ContentType: f.MimeType,
	}, nil
}

// Open starts a download of the object's bytes. Google-native documents
// have no direct byte representation and must be exported, so a
// non-empty exportType switches to the export endpoint.
func (s *DriveStore) Open(ctx context.Context, id, exportType string) (io.ReadCloser, error) {
	if exportType != "" {
		r, err := s.srv.Files.Export(id, exportType).Context(ctx).Download()
		if err != nil {
			return nil, driveError("export", id, err)
		}
		return r.Body, nil
	}
	r, err := s.srv.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, driveError("download", id, err)
	}
	return r.Body, nil
}

func driveKind(mimeType string) Kind {
	if mimeType == folderMimeType {
		return KindContainer
	}
	return KindFile
}

// driveError converts googleapi failures into classified store errors.
func driveError(op, id string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return NewError(ClassifyStatus(gerr.Code), op, id, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return NewError(KindTimeout, op, id, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, op, id, err)
	}
	return NewError(KindUnexpected, op, id, err)
}
