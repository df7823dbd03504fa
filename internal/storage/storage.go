package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/keshon/modbot/datastore"
	"github.com/keshon/modbot/internal/core"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

var prettyOptions = &pretty.Options{Width: 80, Indent: "    "}

// Storage is the schema-validated config tree. The whole tree lives in memory
// as one JSON document and is written back through the datastore on Save.
type Storage struct {
	mu     sync.RWMutex
	doc    []byte
	ds     *datastore.DataStore
	schema Schema
	log    zerolog.Logger
}

var _ core.Config = (*Storage)(nil)

func New(ds *datastore.DataStore, schema Schema, logger zerolog.Logger) *Storage {
	return &Storage{
		doc:    []byte("{}"),
		ds:     ds,
		schema: schema,
		log:    logger.With().Str("component", "storage").Logger(),
	}
}

// Open creates the datastore at filePath and loads the tree from it.
func Open(filePath string, backups int, logger zerolog.Logger) (*Storage, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.BackupCount = backups
	cfg.Logger = logger
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, core.NewConfigIOError(filePath, err)
	}

	s := New(ds, DefaultSchema, logger)
	return s, s.Load()
}

// Path is the config file location.
func (s *Storage) Path() string {
	return s.ds.Path()
}

// Load reads the file, applies the schema and writes the corrected tree back.
// An unreadable or unparsable file yields a fully defaulted tree; read and
// write failures are still returned so the caller can report them.
func (s *Storage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ioErr error
	data, err := s.ds.Read()
	if err != nil {
		ioErr = core.NewConfigIOError(s.ds.Path(), err)
		s.log.Error().Err(err).Msg("failed to read config, using defaults")
		data = nil
	}

	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		if len(data) > 0 {
			s.log.Warn().Str("file", s.ds.Path()).Msg("config is not a JSON object, starting from an empty tree")
		}
		data = []byte("{}")
	}

	doc, err := s.schema.Apply(data, nil)
	if err != nil {
		return core.NewConfigIOError(s.ds.Path(), err)
	}
	s.doc = pretty.PrettyOptions(doc, prettyOptions)

	if err := s.persist(); err != nil {
		return err
	}
	return ioErr
}

// Reload re-reads the file when it changed on disk since the last read or
// write. It reports whether a reload happened.
func (s *Storage) Reload() (bool, error) {
	changed, err := s.ds.Changed()
	if err != nil {
		return false, core.NewConfigIOError(s.ds.Path(), err)
	}
	if !changed {
		return false, nil
	}
	return true, s.Load()
}

// Save writes the tree if it differs from what is on disk.
func (s *Storage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = pretty.PrettyOptions(s.doc, prettyOptions)
	return s.persist()
}

func (s *Storage) persist() error {
	if _, err := s.ds.Write(s.doc); err != nil {
		return core.NewConfigIOError(s.ds.Path(), err)
	}
	return nil
}

// Raw returns a copy of the current document.
func (s *Storage) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.doc...)
}

func (s *Storage) lookup(path string) gjson.Result {
	p, err := ParsePath(path)
	if err != nil {
		return gjson.Result{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gjson.GetBytes(s.doc, p.gjsonPath())
}

// Get returns the value at path decoded to plain Go values (numbers are
// float64, objects map[string]any), or fallback when absent.
func (s *Storage) Get(path string, fallback any) any {
	res := s.lookup(path)
	if !res.Exists() {
		return fallback
	}
	return res.Value()
}

func (s *Storage) Has(path string) bool {
	return s.lookup(path).Exists()
}

func (s *Storage) String(path, fallback string) string {
	res := s.lookup(path)
	if res.Type != gjson.String {
		return fallback
	}
	return res.Str
}

func (s *Storage) Int(path string, fallback int) int {
	res := s.lookup(path)
	if res.Type != gjson.Number {
		return fallback
	}
	return int(res.Int())
}

func (s *Storage) Bool(path string, fallback bool) bool {
	res := s.lookup(path)
	switch res.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	}
	return fallback
}

// Strings returns the array at path as strings, nil when absent.
func (s *Storage) Strings(path string) []string {
	res := s.lookup(path)
	if !res.IsArray() {
		return nil
	}
	var out []string
	for _, v := range res.Array() {
		out = append(out, v.String())
	}
	return out
}

// StringMap returns the object at path with values rendered as strings.
func (s *Storage) StringMap(path string) map[string]string {
	res := s.lookup(path)
	if !res.IsObject() {
		return nil
	}
	out := make(map[string]string)
	res.ForEach(func(key, value gjson.Result) bool {
		out[key.Str] = value.String()
		return true
	})
	return out
}

// Decode unmarshals the value at path into v. A missing value leaves v as is.
func (s *Storage) Decode(path string, v any) error {
	res := s.lookup(path)
	if !res.Exists() {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Raw), v); err != nil {
		return core.NewConfigPathError(path, err)
	}
	return nil
}

// Set replaces the value at path, creating intermediate objects. It fails
// when an existing ancestor is not an object or when the value does not fit
// the schema field declared at path.
func (s *Storage) Set(path string, value any) error {
	p, err := ParsePath(path)
	if err != nil {
		return core.NewConfigPathError(path, err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return core.NewConfigPathError(path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(p, raw)
}

func (s *Storage) setLocked(p Path, raw []byte) error {
	if f, ok := s.schema.field(p); ok && !f.Accepts(raw) {
		return core.NewConfigPathError(p.String(), fmt.Errorf("%s must be of type %s", p, f.Kind))
	}
	for i := 1; i < len(p); i++ {
		res := gjson.GetBytes(s.doc, p[:i].gjsonPath())
		if res.Exists() && !res.IsObject() {
			return core.NewConfigPathError(p.String(), fmt.Errorf("%s is a %s, not an object", p[:i], res.Type))
		}
	}

	doc, err := sjson.SetRawBytes(s.doc, p.sjsonPath(), raw)
	if err != nil {
		return core.NewConfigPathError(p.String(), err)
	}
	s.doc = doc
	return nil
}

// SetDefault sets path only when it is absent and reports whether it did.
func (s *Storage) SetDefault(path string, value any) (bool, error) {
	p, err := ParsePath(path)
	if err != nil {
		return false, core.NewConfigPathError(path, err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, core.NewConfigPathError(path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gjson.GetBytes(s.doc, p.gjsonPath()).Exists() {
		return false, nil
	}
	if err := s.setLocked(p, raw); err != nil {
		return false, err
	}
	return true, nil
}

// Unset removes path. Removing an absent path is not an error.
func (s *Storage) Unset(path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return core.NewConfigPathError(path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !gjson.GetBytes(s.doc, p.gjsonPath()).Exists() {
		return nil
	}
	doc, err := sjson.DeleteBytes(s.doc, p.sjsonPath())
	if err != nil {
		return core.NewConfigPathError(path, err)
	}
	s.doc = doc
	return nil
}

// Close releases the underlying datastore.
func (s *Storage) Close() error {
	return s.ds.Close()
}
