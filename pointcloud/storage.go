package pointcloud

import (
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	rutils "go.viam.com/edgeplan/utils"
)

// Store is an append-only sink of named point resources.
type Store interface {
	// Reset empties the named resource, creating it if needed.
	Reset(name string) error
	// Append adds points to the end of the named resource.
	Append(name string, pts []Point) error
	// Load reads back the named resource.
	Load(name string) (*Cloud, error)
}

// DirStore keeps every resource as a `<name>.txt` text file of a directory.
type DirStore struct {
	dir string
	mu  sync.Mutex
}

// NewDirStore creates dir if needed and returns a store writing into it.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "cannot create output directory %q", dir)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the directory of the store.
func (s *DirStore) Dir() string {
	return s.dir
}

// Path returns the file backing the named resource.
func (s *DirStore) Path(name string) (string, error) {
	return rutils.SafeJoinDir(s.dir, name+".txt")
}

// Reset truncates the named resource.
func (s *DirStore) Reset(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return rutils.TruncateFile(path)
}

// Append writes points at the end of the named resource.
func (s *DirStore) Append(name string, pts []Point) (err error) {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := rutils.OpenAppend(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteText(f, pts)
}

// Load reads the named resource back.
func (s *DirStore) Load(name string) (cloud *Cloud, err error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, rutils.NewDataError("cannot open %q: %v", path, err)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ReadText(f, 0)
}

// MemoryStore keeps resources in memory.
type MemoryStore struct {
	mu        sync.Mutex
	resources map[string][]Point
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{resources: map[string][]Point{}}
}

// Reset empties the named resource.
func (s *MemoryStore) Reset(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[name] = []Point{}
	return nil
}

// Append adds points to the named resource.
func (s *MemoryStore) Append(name string, pts []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[name] = append(s.resources[name], pts...)
	return nil
}

// Load returns a copy of the named resource.
func (s *MemoryStore) Load(name string) (*Cloud, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pts, ok := s.resources[name]
	if !ok {
		return nil, rutils.NewDataError("no resource named %q", name)
	}
	cloud := NewWithPrealloc(len(pts))
	cloud.Append(pts...)
	return cloud, nil
}

// Names returns the sorted names of the resources held.
func (s *MemoryStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.resources))
	for name := range s.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	_ = Store(&DirStore{})
	_ = Store(&MemoryStore{})
)

