package hugr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// SerialVersion tags the on-disk layout.
const SerialVersion = "hugr-go/1"

// SerialHugr is the flat on-disk form of a graph. Children of a node appear
// in node order.
type SerialHugr struct {
	Version string       `json:"version" msgpack:"version"`
	Nodes   []SerialNode `json:"nodes" msgpack:"nodes"`
	Edges   []Edge       `json:"edges" msgpack:"edges"`
}

// SerialNode is one node; the root has Parent -1.
type SerialNode struct {
	Parent int64             `json:"parent" msgpack:"parent"`
	Op     Op                `json:"op" msgpack:"op"`
	Meta   map[string]string `json:"meta,omitempty" msgpack:"meta,omitempty"`
}

// Format selects an encoding.
type Format uint8

const (
	FormatJSON Format = iota
	FormatMsgpack
)

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp", ".msgpack", ".mpk":
		return FormatMsgpack
	}
	return FormatJSON
}

// Serialize flattens h.
func (h *Hugr) Serialize() *SerialHugr {
	s := &SerialHugr{Version: SerialVersion, Nodes: make([]SerialNode, len(h.nodes))}
	for i, n := range h.nodes {
		parent := int64(-1)
		if n.parent != NoNode {
			parent = int64(n.parent)
		}
		s.Nodes[i] = SerialNode{Parent: parent, Op: n.op, Meta: n.meta}
	}
	s.Edges = append(s.Edges, h.edges...)
	return s
}

// Deserialize rebuilds a graph and validates it.
func Deserialize(s *SerialHugr) (*Hugr, error) {
	if s == nil || len(s.Nodes) == 0 {
		return nil, errors.New("hugr: empty graph")
	}
	if s.Version != "" && s.Version != SerialVersion {
		return nil, fmt.Errorf("hugr: unsupported version %q", s.Version)
	}
	if s.Nodes[0].Parent != -1 {
		return nil, errors.New("hugr: node 0 must be the root")
	}
	h := New(s.Nodes[0].Op)
	h.nodes[0].meta = s.Nodes[0].Meta
	for i, sn := range s.Nodes[1:] {
		if sn.Parent < 0 || sn.Parent >= int64(len(s.Nodes)) {
			return nil, fmt.Errorf("hugr: node %d has invalid parent %d", i+1, sn.Parent)
		}
		p, err := safecast.Conv[uint32](sn.Parent)
		if err != nil {
			return nil, fmt.Errorf("hugr: node %d: %w", i+1, err)
		}
		h.nodes = append(h.nodes, node{op: sn.Op, parent: NodeID(p), meta: sn.Meta})
	}
	for i := 1; i < len(h.nodes); i++ {
		p := h.nodes[i].parent
		h.nodes[p].children = append(h.nodes[p].children, NodeID(i))
	}
	if err := checkAcyclicHierarchy(h); err != nil {
		return nil, err
	}
	for _, e := range s.Edges {
		if err := h.Link(e); err != nil {
			return nil, fmt.Errorf("hugr: %w", err)
		}
	}
	if err := Validate(h); err != nil {
		return nil, err
	}
	return h, nil
}

func checkAcyclicHierarchy(h *Hugr) error {
	for i := range h.nodes {
		seen := 0
		for n := NodeID(i); n != NoNode; n = h.nodes[n].parent {
			seen++
			if seen > len(h.nodes) {
				return fmt.Errorf("hugr: node %d is its own ancestor", i)
			}
		}
	}
	return nil
}

// MarshalJSON encodes the serial form.
func (h *Hugr) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Serialize())
}

// UnmarshalJSON decodes and validates the serial form.
func (h *Hugr) UnmarshalJSON(b []byte) error {
	var s SerialHugr
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	g, err := Deserialize(&s)
	if err != nil {
		return err
	}
	*h = *g
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (h *Hugr) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(h.Serialize())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (h *Hugr) DecodeMsgpack(dec *msgpack.Decoder) error {
	var s SerialHugr
	if err := dec.Decode(&s); err != nil {
		return err
	}
	g, err := Deserialize(&s)
	if err != nil {
		return err
	}
	*h = *g
	return nil
}

// Decode reads a graph in the given format.
func Decode(r io.Reader, f Format) (*Hugr, error) {
	h := &Hugr{}
	switch f {
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(h); err != nil {
			return nil, fmt.Errorf("decode msgpack: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(h); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	return h, nil
}

// Encode writes h in the given format.
func Encode(w io.Writer, h *Hugr, f Format) error {
	switch f {
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(h)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	}
}

// Load reads a graph from disk, picking the format from the extension.
func Load(path string) (*Hugr, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := Decode(f, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Save writes a graph to disk atomically.
func Save(path string, h *Hugr) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if err := Encode(f, h, FormatForPath(path)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
