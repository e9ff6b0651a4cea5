package flat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"

	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Snapshot layout, little-endian throughout:
//
//	magic "RCVX" | version u32 | dimension u32 | next_id u64
//	vector count u64 | count*dimension float32 payload
//	forward count u64 | (id u64, item_id string, space_id string)...
//	tombstone count u64 | id u64...
//	crc32 u32 over everything preceding it
//
// Strings are u32 length followed by raw bytes. The reverse map is
// rebuilt from forward on load; over live entries the two are inverse
// bijections, so persisting one of them is sufficient.
const (
	snapshotMagic   = "RCVX"
	snapshotVersion = 1
)

// persistState is the copied state a snapshot is written from.
type persistState struct {
	dimension  int
	nextID     uint64
	vectors    [][]float32
	forward    map[uint64]entry
	tombstones map[uint64]struct{}
}

// Persist writes an atomic snapshot: the state is copied under the
// read lock, encoded without any index lock held, written to a
// temporary file and committed by rename.
func (idx *Index) Persist() error {
	idx.mu.RLock()
	st := persistState{
		dimension:  idx.dimension,
		nextID:     idx.nextID,
		vectors:    idx.vectors[:len(idx.vectors):len(idx.vectors)],
		forward:    make(map[uint64]entry, len(idx.forward)),
		tombstones: make(map[uint64]struct{}, len(idx.tombstones)),
	}
	for id, e := range idx.forward {
		st.forward[id] = e
	}
	for id := range idx.tombstones {
		st.tombstones[id] = struct{}{}
	}
	idx.mu.RUnlock()

	idx.fileMu.Lock()
	defer idx.fileMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(idx.path), 0700); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	data, err := encodeSnapshot(st)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(idx.path), "index-*.tmp")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, idx.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// load restores the index from its snapshot file. A missing file
// yields an empty index. A truncated or corrupt snapshot is discarded
// with a warning, also yielding an empty index.
func (idx *Index) load() error {
	data, err := os.ReadFile(idx.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	st, err := decodeSnapshot(data, idx.dimension)
	if err != nil {
		logger.Warn("Discarding vector index snapshot %s: %v", idx.path, err)
		return nil
	}

	idx.nextID = st.nextID
	idx.vectors = st.vectors
	idx.forward = st.forward
	idx.tombstones = st.tombstones
	idx.reverse = make(map[string]uint64, len(st.forward))
	for id, e := range st.forward {
		idx.reverse[e.itemID] = id
	}
	return nil
}

func encodeSnapshot(st persistState) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	writeU32(&buf, snapshotVersion)
	writeU32(&buf, uint32(st.dimension))
	writeU64(&buf, st.nextID)

	writeU64(&buf, uint64(len(st.vectors)))
	for _, vec := range st.vectors {
		if len(vec) != st.dimension {
			return nil, fmt.Errorf("snapshot: payload vector has dimension %d, want %d", len(vec), st.dimension)
		}
		for _, x := range vec {
			writeU32(&buf, math.Float32bits(x))
		}
	}

	writeU64(&buf, uint64(len(st.forward)))
	for id, e := range st.forward {
		writeU64(&buf, id)
		writeString(&buf, e.itemID)
		writeString(&buf, e.spaceID)
	}

	writeU64(&buf, uint64(len(st.tombstones)))
	for id := range st.tombstones {
		writeU64(&buf, id)
	}

	writeU32(&buf, crc32.ChecksumIEEE(buf.Bytes()))
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte, dimension int) (persistState, error) {
	var st persistState
	if len(data) < len(snapshotMagic)+4 {
		return st, fmt.Errorf("snapshot too short")
	}

	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if binary.LittleEndian.Uint32(trailer) != crc32.ChecksumIEEE(body) {
		return st, fmt.Errorf("checksum mismatch")
	}

	r := &reader{data: body}
	if string(r.bytes(4)) != snapshotMagic {
		return st, fmt.Errorf("bad magic")
	}
	if v := r.u32(); v != snapshotVersion {
		return st, fmt.Errorf("unsupported snapshot version %d", v)
	}
	if d := int(r.u32()); d != dimension {
		return st, fmt.Errorf("snapshot dimension %d, index configured for %d", d, dimension)
	}
	st.dimension = dimension
	st.nextID = r.u64()

	count := r.u64()
	if count*uint64(dimension)*4 > uint64(len(body)) {
		return st, fmt.Errorf("snapshot payload count %d exceeds file size", count)
	}
	st.vectors = make([][]float32, 0, count)
	for i := uint64(0); i < count; i++ {
		vec := make([]float32, dimension)
		for j := 0; j < dimension; j++ {
			vec[j] = math.Float32frombits(r.u32())
		}
		st.vectors = append(st.vectors, vec)
	}

	fwdCount := r.u64()
	st.forward = make(map[uint64]entry, fwdCount)
	for i := uint64(0); i < fwdCount; i++ {
		id := r.u64()
		itemID := r.string()
		spaceID := r.string()
		st.forward[id] = entry{itemID: itemID, spaceID: spaceID}
	}

	tombCount := r.u64()
	st.tombstones = make(map[uint64]struct{}, tombCount)
	for i := uint64(0); i < tombCount; i++ {
		st.tombstones[r.u64()] = struct{}{}
	}

	if r.failed {
		return persistState{}, fmt.Errorf("truncated snapshot")
	}
	if uint64(len(st.vectors)) != st.nextID {
		return persistState{}, fmt.Errorf("snapshot payload count %d does not match next_id %d", len(st.vectors), st.nextID)
	}
	return st, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

// reader is a cursor over snapshot bytes; any out-of-bounds read sets
// failed instead of panicking so corrupt files are rejected cleanly.
type reader struct {
	data   []byte
	off    int
	failed bool
}

func (r *reader) bytes(n int) []byte {
	if r.failed || r.off+n > len(r.data) {
		r.failed = true
		return make([]byte, n)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u32() uint32 {
	return binary.LittleEndian.Uint32(r.bytes(4))
}

func (r *reader) u64() uint64 {
	return binary.LittleEndian.Uint64(r.bytes(8))
}

func (r *reader) string() string {
	n := int(r.u32())
	if r.failed || n < 0 || r.off+n > len(r.data) {
		r.failed = true
		return ""
	}
	return string(r.bytes(n))
}
