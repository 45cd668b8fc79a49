// Package snapshot persists a finalized graph between pipeline stages so
// analysis runs can start from a previously built network. The on-disk
// form is a snappy-compressed binary record with a CRC32 integrity check;
// it is internal storage, not an interchange format.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	"github.com/opencohort/epigraph/pkg/graph"
)

var (
	ErrBadMagic    = errors.New("not a graph snapshot")
	ErrBadChecksum = errors.New("snapshot checksum mismatch")
	ErrBadVersion  = errors.New("unsupported snapshot version")
	ErrTruncated   = errors.New("snapshot truncated")
)

var magic = [8]byte{'E', 'P', 'G', 'S', 'N', 'A', 'P', '1'}

const version uint16 = 1

// Save writes the graph to path atomically (write to temp file, rename).
func Save(path string, g *graph.Graph) error {
	payload := encode(g)
	compressed := snappy.Encode(nil, payload)
	checksum := crc32.ChecksumIEEE(compressed)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	header := make([]byte, 0, 18)
	header = append(header, magic[:]...)
	header = binary.LittleEndian.AppendUint16(header, version)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(compressed)))
	header = binary.LittleEndian.AppendUint32(header, checksum)

	if _, err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot payload: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// Load reads a snapshot and reconstructs the graph, verifying the
// checksum before decoding.
func Load(path string) (*graph.Graph, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	header := make([]byte, 18)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", ErrTruncated)
	}
	if !bytes.Equal(header[:8], magic[:]) {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(header[8:10]); v != version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}

	length := binary.LittleEndian.Uint32(header[10:14])
	checksum := binary.LittleEndian.Uint32(header[14:18])

	compressed := make([]byte, length)
	if _, err := io.ReadFull(file, compressed); err != nil {
		return nil, fmt.Errorf("read snapshot payload: %w", ErrTruncated)
	}
	if crc32.ChecksumIEEE(compressed) != checksum {
		return nil, ErrBadChecksum
	}

	payload, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	return decode(payload)
}

func encode(g *graph.Graph) []byte {
	buf := make([]byte, 0, 64)

	ids := g.NodeIDs()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ids)))
	for _, id := range ids {
		d, _ := g.Node(id)
		buf = binary.LittleEndian.AppendUint64(buf, d.ConceptID)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(d.Prevalence))
		name := []byte(d.Name)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(name)))
		buf = append(buf, name...)
	}

	edges := g.Edges()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(edges)))
	for _, e := range edges {
		buf = binary.LittleEndian.AppendUint64(buf, e.Source)
		buf = binary.LittleEndian.AppendUint64(buf, e.Target)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Weight))
	}

	return buf
}

func decode(payload []byte) (*graph.Graph, error) {
	r := &reader{buf: payload}

	nodeCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	nodes := make([]graph.Disease, 0, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		id, err := r.uint64()
		if err != nil {
			return nil, err
		}
		prevalence, err := r.uint32()
		if err != nil {
			return nil, err
		}
		nameLen, err := r.uint16()
		if err != nil {
			return nil, err
		}
		name, err := r.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, graph.Disease{
			ConceptID:  id,
			Name:       string(name),
			Prevalence: int(prevalence),
		})
	}

	edgeCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	edges := make([]graph.Edge, 0, edgeCount)
	for i := uint32(0); i < edgeCount; i++ {
		source, err := r.uint64()
		if err != nil {
			return nil, err
		}
		target, err := r.uint64()
		if err != nil {
			return nil, err
		}
		weight, err := r.uint32()
		if err != nil {
			return nil, err
		}
		edges = append(edges, graph.Edge{Source: source, Target: target, Weight: int(weight)})
	}

	return graph.Restore(nodes, edges)
}

// reader cursors over the decoded payload.
type reader struct {
	buf []byte
	off int
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
