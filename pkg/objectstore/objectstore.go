// Package objectstore implements the ObjectStore component: a typed, dense,
// aligned repository of raw vectors keyed by ObjectId, with tombstoned
// deletion, a smallest-id-first free list, and (de)serialisation.
package objectstore

import (
	"bufio"
	"container/heap"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/vecgraph/ngt/internal/halffloat"
	"github.com/vecgraph/ngt/pkg/metric"
	"github.com/vecgraph/ngt/pkg/ngterr"
)

// ObjectID is a dense positive 32-bit id; 0 is reserved as the
// absent/tombstone sentinel.
type ObjectID uint32

// laneWidth is the alignment granularity vectors are padded to, so SIMD
// kernels can read whole lanes without a bounds check.
const laneWidth = 16

func scalarSize(kind metric.ScalarKind) int {
	switch kind {
	case metric.U8:
		return 1
	case metric.F16:
		return 2
	default:
		return 4
	}
}

func paddedLen(dim int) int {
	return ((dim + laneWidth - 1) / laneWidth) * laneWidth
}

// Store owns the raw vector bytes for all live objects of one ScalarKind and
// logical dimension.
type Store struct {
	mu        sync.RWMutex
	kind      metric.ScalarKind
	dim       int
	padded    int
	normalize bool

	slots    [][]byte // nil entry == tombstoned or never allocated
	freeList idHeap
}

// Allocate fixes the scalar kind, logical dimension, and whether the chosen
// metric implies on-insert normalisation (NormalizedAngle,
// NormalizedCosine, and NormalizedL2 all do).
func Allocate(kind metric.ScalarKind, dim int, m metric.Metric) *Store {
	s := &Store{
		kind:      kind,
		dim:       dim,
		padded:    paddedLen(dim),
		normalize: m.Normalizes(),
		slots:     make([][]byte, 1, 64), // index 0 reserved for tombstone sentinel
	}
	heap.Init(&s.freeList)
	return s
}

// Insert copies vec (normalising it first if the metric requires it),
// reusing the smallest available id from the free list, and returns the new
// ObjectID. Ids start at 1; id 0 is never returned.
func (s *Store) Insert(vec []float32) (ObjectID, error) {
	if len(vec) != s.dim {
		return 0, fmt.Errorf("objectstore: insert dim %d, want %d: %w", len(vec), s.dim, ngterr.ErrDimensionMismatch)
	}

	work := vec
	if s.normalize {
		var err error
		work, err = normalizeL2(vec)
		if err != nil {
			return 0, err
		}
	}

	buf := s.encode(work)

	s.mu.Lock()
	defer s.mu.Unlock()

	var id ObjectID
	if s.freeList.Len() > 0 {
		id = heap.Pop(&s.freeList).(ObjectID)
		s.slots[id] = buf
	} else {
		id = ObjectID(len(s.slots))
		s.slots = append(s.slots, buf)
	}
	return id, nil
}

// normalizeL2 returns a unit-length copy of v.
func normalizeL2(v []float32) ([]float32, error) {
	var norm float32
	for _, x := range v {
		norm += x * x
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm == 0 {
		return nil, fmt.Errorf("objectstore: zero-norm vector under normalising metric: %w", ngterr.ErrInvalidVector)
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out, nil
}

// PrepareQuery returns query in the same space Insert stores vectors: the
// Normalized metric family assumes unit vectors on both sides of the
// kernel, so the query must be normalised exactly like the stored side.
// Non-normalising metrics return query unchanged. A query of the wrong
// dimension fails with ErrDimensionMismatch.
func (s *Store) PrepareQuery(query []float32) ([]float32, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("objectstore: query dim %d, want %d: %w", len(query), s.dim, ngterr.ErrDimensionMismatch)
	}
	if !s.normalize {
		return query, nil
	}
	return normalizeL2(query)
}

// Get borrows the decoded vector for id. The returned slice must not be
// mutated; its validity ends at the next Insert/Remove touching this id.
func (s *Store) Get(id ObjectID) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == 0 || int(id) >= len(s.slots) || s.slots[id] == nil {
		return nil, fmt.Errorf("objectstore: id %d: %w", id, ngterr.ErrNotFound)
	}
	return s.decode(s.slots[id]), nil
}

// Remove tombstones id and returns it to the free list (smallest-id-first
// reuse on subsequent Insert).
func (s *Store) Remove(id ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == 0 || int(id) >= len(s.slots) || s.slots[id] == nil {
		return fmt.Errorf("objectstore: id %d: %w", id, ngterr.ErrNotFound)
	}
	s.slots[id] = nil
	heap.Push(&s.freeList, id)
	return nil
}

// Len returns the total number of slots ever allocated (live + tombstoned).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots) - 1
}

// LiveCount returns the number of non-tombstoned objects.
func (s *Store) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, b := range s.slots[1:] {
		if b != nil {
			count++
		}
	}
	return count
}

// LiveIDs returns every non-tombstoned id in ascending order. Used by
// seed-selection strategies that need to enumerate live objects.
func (s *Store) LiveIDs() []ObjectID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ObjectID, 0, len(s.slots))
	for i, b := range s.slots {
		if i == 0 {
			continue
		}
		if b != nil {
			ids = append(ids, ObjectID(i))
		}
	}
	return ids
}

// Dim returns the logical (unpadded) vector dimension.
func (s *Store) Dim() int { return s.dim }

// Kind returns the scalar kind this store was allocated with.
func (s *Store) Kind() metric.ScalarKind { return s.kind }

func (s *Store) encode(v []float32) []byte {
	switch s.kind {
	case metric.F32:
		buf := make([]byte, s.padded*4)
		for i, x := range v {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
		}
		return buf
	case metric.F16:
		buf := make([]byte, s.padded*2)
		for i, x := range v {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(halffloat.FromFloat32(x)))
		}
		return buf
	default: // U8
		buf := make([]byte, s.padded)
		for i, x := range v {
			if x < 0 {
				x = 0
			} else if x > 255 {
				x = 255
			}
			buf[i] = byte(x)
		}
		return buf
	}
}

func (s *Store) decode(buf []byte) []float32 {
	out := make([]float32, s.dim)
	switch s.kind {
	case metric.F32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
	case metric.F16:
		for i := range out {
			out[i] = halffloat.Half(binary.LittleEndian.Uint16(buf[i*2:])).Float32()
		}
	default: // U8
		for i := range out {
			out[i] = float32(buf[i])
		}
	}
	return out
}

// Save persists a u32 scalar-kind and u32 dimension header, then a
// length-prefixed sequence where each entry is either '-' (tombstone) or
// '+' followed by the raw padded bytes.
func (s *Store) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(s.kind)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(s.dim)); err != nil {
		return err
	}
	n := uint32(len(s.slots) - 1)
	if err := binary.Write(bw, binary.LittleEndian, n); err != nil {
		return err
	}
	for _, b := range s.slots[1:] {
		if b == nil {
			if _, err := bw.Write([]byte{'-'}); err != nil {
				return err
			}
			continue
		}
		if _, err := bw.Write([]byte{'+'}); err != nil {
			return err
		}
		if _, err := bw.Write(b); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Open reconstructs a Store previously written by Save. The metric is
// required again to recompute the normalisation flag.
func Open(r io.Reader, m metric.Metric) (*Store, error) {
	br := bufio.NewReader(r)
	var kindRaw, dimRaw, n uint32
	if err := binary.Read(br, binary.LittleEndian, &kindRaw); err != nil {
		return nil, fmt.Errorf("objectstore: open header: %w", ngterr.ErrCorrupt)
	}
	if err := binary.Read(br, binary.LittleEndian, &dimRaw); err != nil {
		return nil, fmt.Errorf("objectstore: open header: %w", ngterr.ErrCorrupt)
	}
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("objectstore: open header: %w", ngterr.ErrCorrupt)
	}

	s := Allocate(metric.ScalarKind(kindRaw), int(dimRaw), m)
	entrySize := s.padded * scalarSize(s.kind)

	s.slots = make([][]byte, n+1, n+1)
	for i := uint32(1); i <= n; i++ {
		tag := make([]byte, 1)
		if _, err := io.ReadFull(br, tag); err != nil {
			return nil, fmt.Errorf("objectstore: open entry %d: %w", i, ngterr.ErrCorrupt)
		}
		switch tag[0] {
		case '-':
			s.slots[i] = nil
			heap.Push(&s.freeList, ObjectID(i))
		case '+':
			buf := make([]byte, entrySize)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, fmt.Errorf("objectstore: open entry %d body: %w", i, ngterr.ErrCorrupt)
			}
			s.slots[i] = buf
		default:
			return nil, fmt.Errorf("objectstore: open entry %d tag %q: %w", i, tag[0], ngterr.ErrCorrupt)
		}
	}
	return s, nil
}

// idHeap is a min-heap of ObjectID, giving the free list smallest-id-first
// reuse order.
type idHeap []ObjectID

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(ObjectID)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
