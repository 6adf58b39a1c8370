package store

import (
	"context"
	"io"
)

// Kind distinguishes leaf objects from containers in the remote tree.
type Kind int

const (
	KindFile Kind = iota
	KindContainer
)

func (k Kind) String() string {
	if k == KindContainer {
		return "container"
	}
	return "file"
}

// Object is one entry in the remote store. Identity is the ID, unique
// within the store; everything else is display metadata.
type Object struct {
	ID          string
	Name        string
	Kind        Kind
	ContentType string
}

// Page is one page of a container listing. NextToken is empty on the
// last page.
type Page struct {
	Objects   []Object
	NextToken string
}

// Store captures the minimal remote operations the pipeline needs:
// paginated child listing, metadata lookup and streamed byte retrieval.
// Open returns the raw bytes when exportType is empty, or a
// format-converted stream when the backend supports exporting the
// object as exportType.
type Store interface {
	List(ctx context.Context, containerID, pageToken string) (Page, error)
	Metadata(ctx context.Context, id string) (Object, error)
	Open(ctx context.Context, id, exportType string) (io.ReadCloser, error)
}
