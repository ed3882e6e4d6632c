package dispatch

import (
	"context"
	"fmt"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/artifact"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

// PublishedArchive is an archive a previous request published.
type PublishedArchive struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// PublishedArchives lists what requestID published. A request that
// published nothing, or a service without a store, reports ErrNotFound.
func (s *Service) PublishedArchives(ctx context.Context, requestID string) ([]PublishedArchive, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: no artifact store configured", artifact.ErrNotFound)
	}
	names, err := s.store.List(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: request %s", artifact.ErrNotFound, requestID)
	}

	out := make([]PublishedArchive, 0, len(names))
	for _, name := range names {
		location, err := s.store.GetURL(ctx, requestID, name)
		if err != nil {
			s.logger.WithFields(logger.Fields{"request_id": requestID, "name": name}).WithError(err).Warn("Failed to resolve archive location")
		}
		out = append(out, PublishedArchive{Name: name, Location: location})
	}
	return out, nil
}

// FetchPublished returns the bytes of a published archive.
func (s *Service) FetchPublished(ctx context.Context, requestID, name string) ([]byte, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: no artifact store configured", artifact.ErrNotFound)
	}
	return s.store.Get(ctx, requestID, name)
}
