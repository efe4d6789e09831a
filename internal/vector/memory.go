package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/pkg/utils"
)

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// Suitable for tests and small offline corpora. When a path is set, the index is
// loaded from it on creation and written back on Close.
type MemoryIndex struct {
	dimensions int
	collection string
	created    bool
	path       string
	points     []Point
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// NewPersistentMemoryIndex creates a memory index backed by the file at path.
func NewPersistentMemoryIndex(dimensions int, path string) (*MemoryIndex, error) {
	m, err := NewMemoryIndex(dimensions)
	if err != nil {
		return nil, err
	}
	m.path = path
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.created && m.collection == name, nil
}

func (m *MemoryIndex) CreateCollection(ctx context.Context, name string, dims int, distance Distance) error {
	if distance != DistanceCosine {
		return fmt.Errorf("unsupported distance: %s", distance)
	}
	if dims != m.dimensions {
		return fmt.Errorf("dimension mismatch: collection %d, index %d", dims, m.dimensions)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection = name
	m.created = true
	m.points = nil
	return nil
}

// Upsert replaces all points of the titles in points. Points keep insertion order.
func (m *MemoryIndex) Upsert(ctx context.Context, points []Point) error {
	if err := checkDims(points, m.dimensions); err != nil {
		return err
	}
	replace := make(map[string]bool)
	for _, t := range titlesOf(points) {
		replace[t] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.points[:0:0]
	for _, p := range m.points {
		if !replace[p.Passage.Title] {
			kept = append(kept, p)
		}
	}
	for _, p := range points {
		vec := make([]float32, m.dimensions)
		copy(vec, p.Vector)
		p.Vector = vec
		kept = append(kept, p)
	}
	m.points = kept
	return nil
}

func (m *MemoryIndex) DeleteByTitle(ctx context.Context, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.points[:0:0]
	for _, p := range m.points {
		if p.Passage.Title != title {
			kept = append(kept, p)
		}
	}
	m.points = kept
	return nil
}

// Search returns the top-limit points by cosine similarity. Ties keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, limit int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || len(m.points) == 0 {
		return []*VectorResult{}, nil
	}
	results := make([]*VectorResult, len(m.points))
	for i, p := range m.points {
		results[i] = &VectorResult{ID: p.ID, Score: utils.CosineSimilarity(query, p.Vector), Passage: p.Passage}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > len(results) {
		limit = len(results)
	}
	return results[:limit], nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int64, error) {
	return int64(m.Size()), nil
}

// Size returns the number of points in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Close writes the index back to its file when it has one.
func (m *MemoryIndex) Close() error {
	return m.Save(m.path)
}

// Save persists the index to path. Directory is created if needed. Format: dimension (4),
// collection, n (4), then per point: id, text, title, url, source type (length-prefixed
// strings), chunk index (4), vector (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := writeString(f, m.collection); err != nil {
		return fmt.Errorf("write collection: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.points))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, p := range m.points {
		for _, s := range []string{p.ID, p.Passage.Text, p.Passage.Title, p.Passage.SourceURL, string(p.Passage.SourceType)} {
			if err := writeString(f, s); err != nil {
				return fmt.Errorf("write point %s: %w", p.ID, err)
			}
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(p.Passage.ChunkIndex)); err != nil {
			return fmt.Errorf("write chunk index: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(p.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	collection, err := readString(f)
	if err != nil {
		return fmt.Errorf("read collection: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	points := make([]Point, 0, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		fields := make([]string, 5)
		for j := range fields {
			if fields[j], err = readString(f); err != nil {
				return fmt.Errorf("read point %d: %w", i, err)
			}
		}
		var chunkIndex uint32
		if err := binary.Read(f, binary.LittleEndian, &chunkIndex); err != nil {
			return fmt.Errorf("read chunk index: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		points = append(points, Point{
			ID:     fields[0],
			Vector: bytesToFloat32Slice(buf),
			Passage: models.Passage{
				Text:       fields[1],
				Title:      fields[2],
				SourceURL:  fields[3],
				SourceType: models.SourceType(fields[4]),
				ChunkIndex: int(chunkIndex),
			},
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection = collection
	m.created = true
	m.points = points
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
