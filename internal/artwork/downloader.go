// ABOUTME: Artwork cache for album art
// ABOUTME: Stores binary artwork frames and downloads artwork URLs into a cache directory
package artwork

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("sendspin/artwork")

// maxDownloadSize bounds a downloaded image
const maxDownloadSize = 16 << 20

// Store manages cached artwork
type Store struct {
	cacheDir string
	client   *http.Client

	mu          sync.Mutex
	currentPath string
	channels    map[int]string
}

// NewStore creates a store in dir, or in a temp directory when dir is empty
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "sendspin-artwork")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Store{
		cacheDir: dir,
		client:   &http.Client{Timeout: 30 * time.Second},
		channels: make(map[int]string),
	}, nil
}

// Save writes an artwork image received on channel and makes it current
func (s *Store) Save(channel int, data []byte) (string, error) {
	if len(data) == 0 {
		// An empty frame clears the channel
		s.mu.Lock()
		delete(s.channels, channel)
		s.mu.Unlock()
		return "", nil
	}

	hash := sha256.Sum256(data)
	filename := fmt.Sprintf("ch%d-%x%s", channel, hash[:8], detectExtension(data))
	cachePath := filepath.Join(s.cacheDir, filename)

	if _, err := os.Stat(cachePath); err != nil {
		if err := os.WriteFile(cachePath, data, 0644); err != nil {
			return "", fmt.Errorf("failed to save artwork: %w", err)
		}
		log.Debugf("Artwork saved: %s (%d bytes)", cachePath, len(data))
	}

	s.mu.Lock()
	s.channels[channel] = cachePath
	s.currentPath = cachePath
	s.mu.Unlock()
	return cachePath, nil
}

// Download fetches artwork from url and saves to cache
func (s *Store) Download(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", nil
	}

	// Create a cache key from URL hash
	hash := sha256.Sum256([]byte(rawURL))
	filename := fmt.Sprintf("%x%s", hash[:8], getExtension(rawURL))
	cachePath := filepath.Join(s.cacheDir, filename)

	if _, err := os.Stat(cachePath); err == nil {
		log.Debugf("Artwork cache hit: %s", cachePath)
		s.setCurrent(cachePath)
		return cachePath, nil
	}

	log.Infof("Downloading artwork: %s", rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to download artwork: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("artwork download failed: HTTP %d", resp.StatusCode)
	}

	// Write to a temp file first so a failed download never leaves a cache hit
	tmp, err := os.CreateTemp(s.cacheDir, "download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	_, err = io.Copy(tmp, io.LimitReader(resp.Body, maxDownloadSize))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save artwork: %w", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save artwork: %w", err)
	}

	log.Debugf("Artwork saved: %s", cachePath)
	s.setCurrent(cachePath)
	return cachePath, nil
}

func (s *Store) setCurrent(path string) {
	s.mu.Lock()
	s.currentPath = path
	s.mu.Unlock()
}

// CurrentPath returns the path to the most recent artwork
func (s *Store) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPath
}

// Channel returns the latest artwork received on channel
func (s *Store) Channel(channel int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.channels[channel]
	return p, ok
}

// getExtension extracts file extension from the URL path
func getExtension(rawURL string) string {
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(u.Path)
	}
	if ext == "" || len(ext) > 5 {
		ext = ".jpg" // Default to JPEG
	}
	return strings.ToLower(ext)
}

func detectExtension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// Cleanup removes cached artwork
func (s *Store) Cleanup() error {
	return os.RemoveAll(s.cacheDir)
}
