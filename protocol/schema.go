package protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/skyward-er/segs-sub000/errors"
)

//go:embed dialect.json
var dialectJSON []byte

// FieldDef describes one field of a message: name, primitive wire type,
// optional physical unit and optional fixed array length.
type FieldDef struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Unit     string    `json:"unit,omitempty"`
	ArrayLen int       `json:"array_len,omitempty"`
}

// Size returns the encoded size of the field in bytes.
func (f FieldDef) Size() int {
	if f.ArrayLen > 0 {
		return f.Type.Size() * f.ArrayLen
	}
	return f.Type.Size()
}

// MessageDef describes one message type: numeric ID, name, checksum seed
// and the ordered field list.
type MessageDef struct {
	ID       uint32     `json:"id"`
	Name     string     `json:"name"`
	CRCExtra byte       `json:"crc_extra"`
	Fields   []FieldDef `json:"fields"`
}

// PayloadSize returns the total encoded payload size in bytes.
func (m *MessageDef) PayloadSize() int {
	size := 0
	for _, f := range m.Fields {
		size += f.Size()
	}
	return size
}

// Catalog is the read-only schema catalog mapping message IDs and names to
// their definitions. Built once, safe for concurrent read from any
// goroutine without synchronization.
type Catalog struct {
	Dialect string
	Version int

	defs   []*MessageDef
	byID   map[uint32]*MessageDef
	byName map[string]*MessageDef
}

type dialectFile struct {
	Dialect  string       `json:"dialect"`
	Version  int          `json:"version"`
	Messages []MessageDef `json:"messages"`
}

// NewCatalog builds a catalog from a serialized dialect description.
func NewCatalog(data []byte) (*Catalog, error) {
	var file dialectFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapInvalid(err, "Catalog", "NewCatalog", "dialect deserialization")
	}

	c := &Catalog{
		Dialect: file.Dialect,
		Version: file.Version,
		byID:    make(map[uint32]*MessageDef, len(file.Messages)),
		byName:  make(map[string]*MessageDef, len(file.Messages)),
	}

	for i := range file.Messages {
		def := &file.Messages[i]
		if def.Name == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("message %d has no name", def.ID),
				"Catalog", "NewCatalog", "dialect validation")
		}
		if def.ID > 255 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("message %s id %d does not fit the one-byte frame header", def.Name, def.ID),
				"Catalog", "NewCatalog", "dialect validation")
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, errors.WrapInvalid(
				fmt.Errorf("duplicate message id %d", def.ID),
				"Catalog", "NewCatalog", "dialect validation")
		}
		if def.PayloadSize() > 255 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("message %s payload exceeds 255 bytes", def.Name),
				"Catalog", "NewCatalog", "dialect validation")
		}
		c.defs = append(c.defs, def)
		c.byID[def.ID] = def
		c.byName[def.Name] = def
	}

	sort.Slice(c.defs, func(i, j int) bool { return c.defs[i].Name < c.defs[j].Name })
	return c, nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := NewCatalog(dialectJSON)
	if err != nil {
		// The embedded dialect is compiled in; failing to parse it is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("protocol: embedded dialect is invalid: %v", err))
	}
	return c
})

// DefaultCatalog returns the process-wide catalog built from the embedded
// dialect. It is lazily initialized on first use and immutable afterwards.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

// MessageByID looks up a message definition by numeric ID.
func (c *Catalog) MessageByID(id uint32) (*MessageDef, error) {
	def, ok := c.byID[id]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("message %d: %w", id, errors.ErrUnknownMessage),
			"Catalog", "MessageByID", "lookup")
	}
	return def, nil
}

// MessageByName looks up a message definition by name.
func (c *Catalog) MessageByName(name string) (*MessageDef, error) {
	def, ok := c.byName[name]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("message %q: %w", name, errors.ErrUnknownMessage),
			"Catalog", "MessageByName", "lookup")
	}
	return def, nil
}

// Messages returns all message definitions sorted by name.
func (c *Catalog) Messages() []*MessageDef {
	out := make([]*MessageDef, len(c.defs))
	copy(out, c.defs)
	return out
}

// Fields returns every field of a message as resolved IndexedFields.
func (c *Catalog) Fields(msg MessageLocator) ([]IndexedField, error) {
	def, err := msg.lookup(c)
	if err != nil {
		return nil, err
	}
	fields := make([]IndexedField, len(def.Fields))
	for i := range def.Fields {
		fields[i] = IndexedField{MessageID: def.ID, Index: i, Field: def.Fields[i]}
	}
	return fields, nil
}

// PlottableFields returns the fields of a message with numeric scalar
// types, suitable for plotting.
func (c *Catalog) PlottableFields(msg MessageLocator) ([]IndexedField, error) {
	def, err := msg.lookup(c)
	if err != nil {
		return nil, err
	}
	var fields []IndexedField
	for i, f := range def.Fields {
		if f.Type.Numeric() && f.ArrayLen == 0 {
			fields = append(fields, IndexedField{MessageID: def.ID, Index: i, Field: f})
		}
	}
	return fields, nil
}

// StateFields returns the fields of a message whose names follow the
// state/status naming convention.
func (c *Catalog) StateFields(msg MessageLocator) ([]IndexedField, error) {
	def, err := msg.lookup(c)
	if err != nil {
		return nil, err
	}
	var fields []IndexedField
	for i, f := range def.Fields {
		lower := strings.ToLower(f.Name)
		if strings.HasSuffix(lower, "state") || strings.HasSuffix(lower, "status") {
			fields = append(fields, IndexedField{MessageID: def.ID, Index: i, Field: f})
		}
	}
	return fields, nil
}

// ResolveField resolves a field locator (index, name or an already
// resolved IndexedField) against a message identified by its locator.
func (c *Catalog) ResolveField(msg MessageLocator, field FieldLocator) (IndexedField, error) {
	def, err := msg.lookup(c)
	if err != nil {
		return IndexedField{}, err
	}
	return field.resolve(def)
}

// MessageLocator identifies a message definition by numeric ID or name.
type MessageLocator interface {
	lookup(c *Catalog) (*MessageDef, error)
}

// MessageID locates a message by its numeric ID.
type MessageID uint32

func (id MessageID) lookup(c *Catalog) (*MessageDef, error) {
	return c.MessageByID(uint32(id))
}

// MessageName locates a message by its name.
type MessageName string

func (n MessageName) lookup(c *Catalog) (*MessageDef, error) {
	return c.MessageByName(string(n))
}
