package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"orienta-rag/internal/models"
)

const (
	VectorsFile  = "vectors.bin"
	ChunksFile   = "chunks.json"
	MetadataFile = "metadata.json"

	vectorsMagic   = "OVEC"
	vectorsVersion = uint32(1)
)

// Exists reports whether dir holds all three artifacts. A partial set counts as absent.
func Exists(dir string) bool {
	for _, name := range []string{VectorsFile, ChunksFile, MetadataFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// Save writes the three artifacts into a staging directory next to dir and
// renames it into place. A failure leaves any previous generation in dir intact.
func (x *Index) Save(dir string) error {
	parent := filepath.Dir(filepath.Clean(dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create index parent directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, ".staging-"+filepath.Base(dir)+"-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := writeVectors(filepath.Join(staging, VectorsFile), x.vectors, x.meta.Dimension); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(staging, ChunksFile), x.chunks); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(staging, MetadataFile), x.meta); err != nil {
		return err
	}

	var backup string
	if _, err := os.Stat(dir); err == nil {
		backup = staging + ".previous"
		if err := os.Rename(dir, backup); err != nil {
			return fmt.Errorf("failed to move previous index aside: %w", err)
		}
	}
	if err := os.Rename(staging, dir); err != nil {
		if backup != "" {
			if rerr := os.Rename(backup, dir); rerr != nil {
				x.logger.Error("failed to restore previous index", zap.String("backup", backup), zap.Error(rerr))
			}
		}
		return fmt.Errorf("failed to move index into place: %w", err)
	}
	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			x.logger.Warn("failed to remove previous index", zap.String("path", backup), zap.Error(err))
		}
	}

	x.logger.Info("index persisted",
		zap.String("dir", dir), zap.String("generation", x.meta.Generation), zap.Int("chunks", len(x.chunks)))
	return nil
}

// Load replaces the index with the generation persisted in dir. The model
// id must match the embedder, and so must the dimension when the embedder
// is available. Nothing is replaced on error.
func (x *Index) Load(dir string) error {
	if !Exists(dir) {
		return ErrNotFound
	}

	var meta Metadata
	if err := readJSON(filepath.Join(dir, MetadataFile), &meta); err != nil {
		return err
	}
	if meta.Model != x.embedder.ModelName() {
		return fmt.Errorf("%w: index model %q, embedder model %q", ErrIncompatible, meta.Model, x.embedder.ModelName())
	}
	if x.embedder.Available() && meta.Dimension != x.embedder.Dimensions() {
		return fmt.Errorf("%w: index dimension %d, embedder dimension %d", ErrIncompatible, meta.Dimension, x.embedder.Dimensions())
	}

	vectors, dim, err := readVectors(filepath.Join(dir, VectorsFile), meta.ChunkCount, meta.Dimension)
	if err != nil {
		return err
	}
	var chunks []models.DocumentChunk
	if err := readJSON(filepath.Join(dir, ChunksFile), &chunks); err != nil {
		return err
	}

	if len(chunks) != meta.ChunkCount {
		return fmt.Errorf("chunk count %d does not match metadata count %d", len(chunks), meta.ChunkCount)
	}
	if len(vectors) > 0 && (len(vectors) != len(chunks) || dim != meta.Dimension) {
		return fmt.Errorf("vector blob holds %d x %d, metadata expects %d x %d",
			len(vectors), dim, meta.ChunkCount, meta.Dimension)
	}

	x.meta = meta
	x.chunks = chunks
	x.vectors = vectors
	x.logger.Info("index loaded",
		zap.String("dir", dir), zap.String("generation", meta.Generation),
		zap.Int("chunks", len(chunks)), zap.Int("vectors", len(vectors)))
	return nil
}

// writeVectors stores a little-endian header (magic, version, count,
// dimension) followed by count rows of dimension float32 values.
func writeVectors(path string, vectors [][]float32, dim int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create vector file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(vectorsMagic); err != nil {
		return fmt.Errorf("failed to write vector header: %w", err)
	}
	header := []uint32{vectorsVersion, uint32(len(vectors)), uint32(dim)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write vector header: %w", err)
	}

	buf := make([]byte, 4)
	for _, v := range vectors {
		for _, val := range v {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(val))
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("failed to write vectors: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush vectors: %w", err)
	}
	return f.Sync()
}

// readVectors reads the blob written by writeVectors. A non-empty blob whose
// header disagrees with the expected count and dimension is rejected before
// any row is allocated.
func readVectors(path string, wantCount, wantDim int) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open vector file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(vectorsMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != vectorsMagic {
		return nil, 0, errors.New("vector file has no valid header")
	}
	header := make([]uint32, 3)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, 0, fmt.Errorf("failed to read vector header: %w", err)
	}
	if header[0] != vectorsVersion {
		return nil, 0, fmt.Errorf("unsupported vector file version %d", header[0])
	}
	count, dim := int(header[1]), int(header[2])
	if count > 0 && (count != wantCount || dim != wantDim) {
		return nil, 0, fmt.Errorf("vector header holds %d x %d, metadata expects %d x %d", count, dim, wantCount, wantDim)
	}

	var vectors [][]float32
	buf := make([]byte, 4*dim)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, fmt.Errorf("failed to read vector %d: %w", i, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		vectors = append(vectors, v)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, 0, errors.New("vector file has trailing data")
	}
	return vectors, dim, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
