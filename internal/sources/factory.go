package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/git"
	"github.com/nonebot/store-test/internal/httpclient"
)

// closer is implemented by handlers that hold resources between fetches
type closer interface {
	Close(ctx context.Context) error
}

// defaultSourceHandlerFactory creates one handler per source type and hands
// out the same instance on every call
type defaultSourceHandlerFactory struct {
	httpClient httpclient.Client
	gitClient  git.Client

	mu       sync.Mutex
	handlers map[string]SourceHandler
}

var _ SourceHandlerFactory = (*defaultSourceHandlerFactory)(nil)

// NewSourceHandlerFactory creates a new source handler factory
func NewSourceHandlerFactory(httpClient httpclient.Client, gitClient git.Client) SourceHandlerFactory {
	return &defaultSourceHandlerFactory{
		httpClient: httpClient,
		gitClient:  gitClient,
		handlers:   make(map[string]SourceHandler),
	}
}

// CreateHandler creates a source handler for the given source type
func (f *defaultSourceHandlerFactory) CreateHandler(sourceType string) (SourceHandler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if handler, ok := f.handlers[sourceType]; ok {
		return handler, nil
	}

	var handler SourceHandler
	switch sourceType {
	case config.SourceTypeGit:
		handler = NewGitSourceHandler(f.gitClient)
	case config.SourceTypeURL:
		handler = NewURLSourceHandler(f.httpClient)
	case config.SourceTypeFile:
		handler = NewFileSourceHandler()
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}

	f.handlers[sourceType] = handler
	return handler, nil
}

// Close releases resources held by the handlers created so far
func (f *defaultSourceHandlerFactory) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, handler := range f.handlers {
		if c, ok := handler.(closer); ok {
			errs = append(errs, c.Close(ctx))
		}
	}
	return errors.Join(errs...)
}
