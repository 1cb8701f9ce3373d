package dataset

import (
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultBaseURL is the public MNIST mirror used when none is configured.
const DefaultBaseURL = "https://storage.googleapis.com/cvdf-datasets/mnist/"

var mnistFiles = struct {
	trainImages, trainLabels, testImages, testLabels string
}{
	trainImages: "train-images-idx3-ubyte.gz",
	trainLabels: "train-labels-idx1-ubyte.gz",
	testImages:  "t10k-images-idx3-ubyte.gz",
	testLabels:  "t10k-labels-idx1-ubyte.gz",
}

// MNIST is a Source backed by the canonical IDX archives. Files are
// downloaded into CacheDir on first use and reused afterwards.
type MNIST struct {
	CacheDir string
	BaseURL  string
	Client   *http.Client
	Logger   *slog.Logger

	train *Split
	test  *Split
}

// NewMNIST returns an MNIST source caching its archives under cacheDir.
func NewMNIST(cacheDir string) *MNIST {
	return &MNIST{CacheDir: cacheDir}
}

func (m *MNIST) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *MNIST) baseURL() string {
	if m.BaseURL != "" {
		return m.BaseURL
	}
	return DefaultBaseURL
}

func (m *MNIST) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

// Train returns the 60,000-sample training split, fetching it if needed.
func (m *MNIST) Train() (*Split, error) {
	if m.train == nil {
		s, err := m.load(mnistFiles.trainImages, mnistFiles.trainLabels)
		if err != nil {
			return nil, fmt.Errorf("%w: train split: %v", ErrUnavailable, err)
		}
		m.train = s
	}
	return m.train, nil
}

// Test returns the 10,000-sample held-out split, fetching it if needed.
func (m *MNIST) Test() (*Split, error) {
	if m.test == nil {
		s, err := m.load(mnistFiles.testImages, mnistFiles.testLabels)
		if err != nil {
			return nil, fmt.Errorf("%w: test split: %v", ErrUnavailable, err)
		}
		m.test = s
	}
	return m.test, nil
}

func (m *MNIST) load(imageFile, labelFile string) (*Split, error) {
	images, err := m.readImages(imageFile)
	if err != nil {
		return nil, err
	}
	labels, err := m.readLabels(labelFile)
	if err != nil {
		return nil, err
	}
	s := &Split{Images: images, Labels: labels}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *MNIST) readImages(name string) ([][]float32, error) {
	r, err := m.open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return decodeIDXImages(r)
}

func (m *MNIST) readLabels(name string) ([]int32, error) {
	r, err := m.open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return decodeIDXLabels(r)
}

// open returns a gunzipping reader over the cached archive, downloading
// it first when missing.
func (m *MNIST) open(name string) (io.ReadCloser, error) {
	path := filepath.Join(m.CacheDir, name)
	if _, err := os.Stat(path); err != nil {
		if err := m.download(name, path); err != nil {
			return nil, err
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gunzip %s: %w", path, err)
	}
	return &gzipFile{gz: gz, f: f}, nil
}

func (m *MNIST) download(name, dest string) error {
	if err := os.MkdirAll(m.CacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	url := m.baseURL() + name
	m.logger().Info("downloading dataset file", "url", url, "dest", dest)

	resp, err := m.client().Get(url)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}

	// Write through a temp file so an interrupted download never leaves a
	// truncated archive in the cache.
	tmp, err := os.CreateTemp(m.CacheDir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("finalize %s: %w", dest, err)
	}
	return nil
}

// gzipFile closes both the gzip stream and the underlying file.
type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipFile) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
