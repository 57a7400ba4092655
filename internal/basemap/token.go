package basemap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"choromap/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// TokenProvider reads the access token from a local text file and reloads
// it when the file changes. A missing file is not an error; the token is
// simply empty until the file appears.
type TokenProvider struct {
	path string

	mu    sync.RWMutex
	token string
}

// NewTokenProvider loads the token once from path.
func NewTokenProvider(path string) *TokenProvider {
	p := &TokenProvider{path: strings.TrimSpace(path)}
	p.reload()
	return p
}

// Token returns the current token, empty when unavailable.
func (p *TokenProvider) Token() string {
	if p == nil {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Require returns the token or an error naming the style that needs it.
func (p *TokenProvider) Require(style string) (string, error) {
	token := p.Token()
	if token == "" {
		return "", fmt.Errorf("style %q requires an access token but %s is missing or empty", style, p.path)
	}
	return token, nil
}

func (p *TokenProvider) reload() {
	if p == nil || p.path == "" {
		return
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("basemap token read failed (%s): %v", p.path, err)
		}
		p.mu.Lock()
		p.token = ""
		p.mu.Unlock()
		return
	}
	token := strings.TrimSpace(string(data))
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
}

// Watch reloads the token when its file is written, created or removed.
// Watching the parent directory catches editors that replace the file.
// Blocks until ctx is canceled.
func (p *TokenProvider) Watch(ctx context.Context) error {
	if p == nil || p.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("token watcher init failed: %w", err)
	}
	defer watcher.Close()
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("token watcher add failed (%s): %w", dir, err)
	}
	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			p.reload()
			if p.Token() == "" {
				logger.Warnf("basemap token cleared (%s %s)", evt.Op, evt.Name)
			} else {
				logger.Infof("basemap token reloaded from %s", p.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Errorf("token watcher error: %v", err)
		}
	}
}
