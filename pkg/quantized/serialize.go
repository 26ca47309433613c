package quantized

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/vecgraph/ngt/pkg/ngterr"
)

func writeF32(w *bufio.Writer, v float32) error {
	return binary.Write(w, binary.LittleEndian, math.Float32bits(v))
}

func readF32(r io.Reader) (float32, error) {
	var bits uint32
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func writeVec(w *bufio.Writer, v []float32) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(v))); err != nil {
		return err
	}
	for _, x := range v {
		if err := writeF32(w, x); err != nil {
			return err
		}
	}
	return nil
}

func readVec(r io.Reader) ([]float32, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		v, err := readF32(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Save persists the "qr" file: the dim and every row of Q.
func (rot *Rotation) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(rot.Dim)); err != nil {
		return err
	}
	for _, row := range rot.Q {
		if err := writeVec(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// OpenRotation reconstructs a Rotation previously written by Save.
func OpenRotation(r io.Reader) (*Rotation, error) {
	br := bufio.NewReader(r)
	var dim uint32
	if err := binary.Read(br, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("quantized: open rotation header: %w", ngterr.ErrCorrupt)
	}
	q := make([][]float32, dim)
	for i := range q {
		row, err := readVec(br)
		if err != nil {
			return nil, fmt.Errorf("quantized: open rotation row %d: %w", i, ngterr.ErrCorrupt)
		}
		q[i] = row
	}
	return &Rotation{Dim: int(dim), Q: q}, nil
}

// Save persists the "qcb" file: the trained codebooks, blob centroids, and
// posting lists, bundled into one file rather than introducing a
// separate slot for posting-list storage.
func (ix *Index) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(ix.codebooks))); err != nil {
		return err
	}
	for _, cb := range ix.codebooks {
		if err := binary.Write(bw, binary.LittleEndian, uint32(cb.Size)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(cb.SubDim)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(cb.Centroids))); err != nil {
			return err
		}
		for _, c := range cb.Centroids {
			if err := writeVec(bw, c); err != nil {
				return err
			}
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(ix.lists))); err != nil {
		return err
	}
	for _, list := range ix.lists {
		if err := writeVec(bw, list.Centroid); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(list.Entries))); err != nil {
			return err
		}
		for _, e := range list.Entries {
			if err := binary.Write(bw, binary.LittleEndian, uint32(e.ID)); err != nil {
				return err
			}
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Codes))); err != nil {
				return err
			}
			for _, code := range e.Codes {
				if err := binary.Write(bw, binary.LittleEndian, code); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// Load reconstructs the codebooks, blob centroids, and posting lists
// previously written by Save into an Index already built with New, with
// its Rotation already assigned via OpenRotation.
func (ix *Index) Load(r io.Reader, rot *Rotation) error {
	ix.rotation = rot
	br := bufio.NewReader(r)

	var nCodebooks uint32
	if err := binary.Read(br, binary.LittleEndian, &nCodebooks); err != nil {
		return fmt.Errorf("quantized: load codebooks header: %w", ngterr.ErrCorrupt)
	}
	ix.codebooks = make([]Codebook, nCodebooks)
	for i := range ix.codebooks {
		var size, subDim, nCentroids uint32
		if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
			return fmt.Errorf("quantized: load codebook %d: %w", i, ngterr.ErrCorrupt)
		}
		if err := binary.Read(br, binary.LittleEndian, &subDim); err != nil {
			return fmt.Errorf("quantized: load codebook %d: %w", i, ngterr.ErrCorrupt)
		}
		if err := binary.Read(br, binary.LittleEndian, &nCentroids); err != nil {
			return fmt.Errorf("quantized: load codebook %d: %w", i, ngterr.ErrCorrupt)
		}
		centroids := make([][]float32, nCentroids)
		for j := range centroids {
			c, err := readVec(br)
			if err != nil {
				return fmt.Errorf("quantized: load codebook %d centroid %d: %w", i, j, ngterr.ErrCorrupt)
			}
			centroids[j] = c
		}
		ix.codebooks[i] = Codebook{Size: CodebookSize(size), SubDim: int(subDim), Centroids: centroids}
	}

	var nLists uint32
	if err := binary.Read(br, binary.LittleEndian, &nLists); err != nil {
		return fmt.Errorf("quantized: load lists header: %w", ngterr.ErrCorrupt)
	}
	ix.lists = make([]InvertedList, nLists)
	ix.blobs = make([][]float32, nLists)
	ix.assignment = make(map[ObjectID]BlobID)
	for b := range ix.lists {
		centroid, err := readVec(br)
		if err != nil {
			return fmt.Errorf("quantized: load list %d centroid: %w", b, ngterr.ErrCorrupt)
		}
		var nEntries uint32
		if err := binary.Read(br, binary.LittleEndian, &nEntries); err != nil {
			return fmt.Errorf("quantized: load list %d: %w", b, ngterr.ErrCorrupt)
		}
		entries := make([]PostingEntry, nEntries)
		for e := range entries {
			var id, nCodes uint32
			if err := binary.Read(br, binary.LittleEndian, &id); err != nil {
				return fmt.Errorf("quantized: load list %d entry %d: %w", b, e, ngterr.ErrCorrupt)
			}
			if err := binary.Read(br, binary.LittleEndian, &nCodes); err != nil {
				return fmt.Errorf("quantized: load list %d entry %d: %w", b, e, ngterr.ErrCorrupt)
			}
			codes := make([]uint32, nCodes)
			for c := range codes {
				if err := binary.Read(br, binary.LittleEndian, &codes[c]); err != nil {
					return fmt.Errorf("quantized: load list %d entry %d code %d: %w", b, e, c, ngterr.ErrCorrupt)
				}
			}
			entries[e] = PostingEntry{ID: ObjectID(id), Codes: codes}
			ix.assignment[ObjectID(id)] = BlobID(b)
		}
		ix.lists[b] = InvertedList{Centroid: centroid, Entries: entries}
		ix.blobs[b] = centroid
	}
	return nil
}
