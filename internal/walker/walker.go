// Package walker flattens a remote container tree into the list of leaf
// objects the batch pipeline will transfer.
package walker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/docpipe/docpipe/internal/store"
	"github.com/docpipe/docpipe/pkg/logger"
)

// Lister is the slice of the store the walker needs.
type Lister interface {
	List(ctx context.Context, containerID, pageToken string) (store.Page, error)
}

// Walker performs a sequential recursive traversal. Each Walk call owns
// its own visited set, so runs never share state.
type Walker struct {
	lister Lister
	log    zerolog.Logger
}

func New(lister Lister) *Walker {
	return &Walker{
		lister: lister,
		log:    logger.Component("walker"),
	}
}

// Walk returns every file object reachable under containerID. Containers
// are marked visited before recursing, so a container reachable through
// several parents is listed exactly once and cyclic links terminate.
// A page-fetch error abandons only the container being listed; results
// gathered so far, and sibling containers, are kept.
func (w *Walker) Walk(ctx context.Context, containerID string) ([]store.Object, error) {
	visited := map[string]bool{}
	files := w.walk(ctx, containerID, visited)
	if err := ctx.Err(); err != nil {
		return files, err
	}
	return files, nil
}

func (w *Walker) walk(ctx context.Context, containerID string, visited map[string]bool) []store.Object {
	if visited[containerID] {
		w.log.Debug().Str("container", containerID).Msg("container already visited, skipping")
		return nil
	}
	visited[containerID] = true

	var files []store.Object
	pageToken := ""
	for {
		if ctx.Err() != nil {
			return files
		}

		page, err := w.lister.List(ctx, containerID, pageToken)
		if err != nil {
			w.log.Warn().Err(err).Str("container", containerID).
				Msg("page fetch failed, abandoning this container")
			return files
		}

		for _, obj := range page.Objects {
			switch obj.Kind {
			case store.KindContainer:
				if visited[obj.ID] {
					w.log.Debug().Str("container", obj.ID).Str("name", obj.Name).
						Msg("subcontainer already visited, skipping")
					continue
				}
				w.log.Debug().Str("container", obj.ID).Str("name", obj.Name).Msg("descending into subcontainer")
				files = append(files, w.walk(ctx, obj.ID, visited)...)
			case store.KindFile:
				files = append(files, obj)
			}
		}

		pageToken = page.NextToken
		if pageToken == "" {
			break
		}
	}

	return files
}
