package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/polyalloc/blobstore"
	"golang.org/x/sync/errgroup"
)

const (
	ManifestFileName = "MANIFEST"
	CurrentFileName  = "CURRENT"
	// CurrentVersion is the version of the image format.
	CurrentVersion = binaryVersion
)

// Manifest is one persisted catalog image.
type Manifest struct {
	Version     int
	ID          uint64
	CreatedAt   time.Time
	Codec       string
	Compression Compression
	// Body is the encoded catalog state, uncompressed.
	Body []byte
}

// Info describes a stored image without its body.
type Info struct {
	ID          uint64
	CreatedAt   time.Time
	Codec       string
	Compression Compression
	Size        int
}

// Store manages catalog images and atomic updates of the CURRENT pointer.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a new manifest store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

// FileName returns the blob name of image version id.
func FileName(id uint64) string {
	return fmt.Sprintf("%s-%06d.bin", ManifestFileName, id)
}

// ParseFileName extracts the version id from an image blob name.
func ParseFileName(name string) (uint64, bool) {
	var id uint64
	if !strings.HasPrefix(name, ManifestFileName+"-") || !strings.HasSuffix(name, ".bin") {
		return 0, false
	}
	if _, err := fmt.Sscanf(name, ManifestFileName+"-%d.bin", &id); err != nil {
		return 0, false
	}
	return id, true
}

// Load loads the current image.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	return s.LoadVersion(ctx, 0)
}

// LoadVersion loads a specific version ID. 0 means latest.
func (s *Store) LoadVersion(ctx context.Context, versionID uint64) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadVersion(ctx, versionID)
}

func (s *Store) loadVersion(ctx context.Context, versionID uint64) (*Manifest, error) {
	name := FileName(versionID)
	if versionID == 0 {
		current, err := s.current(ctx)
		if err != nil {
			return nil, err
		}
		name = current
	}

	data, err := blobstore.ReadAll(ctx, s.store, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", name, err)
	}
	return ReadBinary(bytes.NewReader(data))
}

func (s *Store) current(ctx context.Context) (string, error) {
	content, err := blobstore.ReadAll(ctx, s.store, CurrentFileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(content), nil
}

// CurrentID returns the version id CURRENT points to.
func (s *Store) CurrentID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.current(ctx)
	if err != nil {
		return 0, err
	}
	id, ok := ParseFileName(name)
	if !ok {
		return 0, fmt.Errorf("invalid CURRENT pointer %q", name)
	}
	return id, nil
}

// ListVersions returns all readable images ordered by id.
// Corrupted or unreadable images are skipped.
func (s *Store) ListVersions(ctx context.Context) ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.store.List(ctx, ManifestFileName)
	if err != nil {
		return nil, err
	}

	var infos []Info
	for _, f := range files {
		if _, ok := ParseFileName(f); !ok {
			continue
		}
		data, err := blobstore.ReadAll(ctx, s.store, f)
		if err != nil {
			continue
		}
		m, err := ReadBinary(bytes.NewReader(data))
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			ID:          m.ID,
			CreatedAt:   m.CreatedAt,
			Codec:       m.Codec,
			Compression: m.Compression,
			Size:        len(data),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Save atomically saves m as the next version. m.ID is advanced past the
// latest stored version.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name, err := s.current(ctx); err == nil {
		if id, ok := ParseFileName(name); ok && id > m.ID {
			m.ID = id
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	m.Version = CurrentVersion
	m.ID++
	m.CreatedAt = time.Now()

	var buf bytes.Buffer
	if err := m.WriteBinary(&buf); err != nil {
		return err
	}

	filename := FileName(m.ID)
	if err := s.store.Put(ctx, filename, buf.Bytes()); err != nil {
		return err
	}
	return s.store.Put(ctx, CurrentFileName, []byte(filename))
}

// DeleteVersion deletes the image for the given version.
func (s *Store) DeleteVersion(ctx context.Context, versionID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Delete(ctx, FileName(versionID))
}

// Prune deletes all but the newest keep images. The image CURRENT points to
// is never deleted. It returns the deleted version ids.
func (s *Store) Prune(ctx context.Context, keep int) ([]uint64, error) {
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.store.List(ctx, ManifestFileName)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, f := range files {
		if id, ok := ParseFileName(f); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if len(ids) <= keep {
		return nil, nil
	}

	var current uint64
	if name, err := s.current(ctx); err == nil {
		current, _ = ParseFileName(name)
	}

	var victims []uint64
	for _, id := range ids[keep:] {
		if id != current {
			victims = append(victims, id)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range victims {
		g.Go(func() error {
			return s.store.Delete(gctx, FileName(id))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i] < victims[j] })
	return victims, nil
}
