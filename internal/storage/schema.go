package storage

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	return [...]string{"string", "number", "boolean", "array", "object"}[k]
}

// Field declares one key of the config tree. Object fields start as {} and
// then have their own Fields applied; an object with no Fields is an open map.
type Field struct {
	Key     string
	Kind    Kind
	Default any
	Fields  Schema
}

type Schema []Field

// TokenPlaceholder is written for discordToken until a real token is set.
const TokenPlaceholder = "Paste your bot token here."

// DefaultSchema is the bot's top-level config layout.
var DefaultSchema = Schema{
	{Key: "discordToken", Kind: KindString, Default: TokenPlaceholder},
	{Key: "owner", Kind: KindString, Default: ""},
	{Key: "defaultGame", Kind: KindString, Default: "$help for help"},
	{Key: "prefix", Kind: KindString, Default: "$"},
	{Key: "activeModules", Kind: KindArray, Default: []string{"core", "utils", "autorespond"}},
	{Key: "commandAliases", Kind: KindObject},
	{Key: "defaultColors", Kind: KindObject, Fields: Schema{
		{Key: "neutral", Kind: KindString, Default: "#287db4"},
		{Key: "error", Kind: KindString, Default: "#c63737"},
		{Key: "success", Kind: KindString, Default: "#41b95f"},
	}},
	{Key: "defaultUserCooldown", Kind: KindObject, Fields: Schema{
		{Key: "intervalMs", Kind: KindNumber, Default: 10000},
		{Key: "messageCount", Kind: KindNumber, Default: 5},
		{Key: "blockDurationMs", Kind: KindNumber, Default: 0},
	}},
	{Key: "settings", Kind: KindObject},
	{Key: "groups", Kind: KindObject},
	{Key: "commandPermissions", Kind: KindObject},
	{Key: "serverPermissions", Kind: KindObject},
	{Key: "modules", Kind: KindObject},
}

// matches reports whether res is an acceptable value for the field. Any
// array is accepted for an array field; elements are not inspected.
func (f Field) matches(res gjson.Result) bool {
	if !res.Exists() {
		return false
	}
	switch f.Kind {
	case KindString:
		return res.Type == gjson.String
	case KindNumber:
		return res.Type == gjson.Number
	case KindBool:
		return res.Type == gjson.True || res.Type == gjson.False
	case KindArray:
		return res.IsArray()
	case KindObject:
		return res.IsObject()
	}
	return false
}

// Accepts reports whether the raw JSON value fits the field. Declared
// subfields of an object are checked when present.
func (f Field) Accepts(raw []byte) bool {
	res := gjson.ParseBytes(raw)
	if !gjson.ValidBytes(raw) || !f.matches(res) {
		return false
	}
	for _, sub := range f.Fields {
		v := gjson.Get(res.Raw, Path{sub.Key}.gjsonPath())
		if v.Exists() && !sub.Accepts([]byte(v.Raw)) {
			return false
		}
	}
	return true
}

func (f Field) defaultRaw() ([]byte, error) {
	switch {
	case f.Kind == KindObject:
		return []byte("{}"), nil
	case f.Kind == KindArray && f.Default == nil:
		return []byte("[]"), nil
	}
	return json.Marshal(f.Default)
}

// Field returns the declared field at path. Paths inside open maps and
// undeclared keys have no field.
func (s Schema) Field(path string) (Field, bool) {
	p, err := ParsePath(path)
	if err != nil {
		return Field{}, false
	}
	return s.field(p)
}

func (s Schema) field(p Path) (Field, bool) {
	fields := s
	for i, key := range p {
		idx := slices.IndexFunc(fields, func(f Field) bool { return f.Key == key })
		if idx < 0 {
			return Field{}, false
		}
		f := fields[idx]
		if i == len(p)-1 {
			return f, true
		}
		if f.Kind != KindObject || len(f.Fields) == 0 {
			return Field{}, false
		}
		fields = f.Fields
	}
	return Field{}, false
}

// Apply walks the schema under base and replaces every missing or mistyped
// value with its default. It returns the corrected document.
func (s Schema) Apply(doc []byte, base Path) ([]byte, error) {
	for _, f := range s {
		p := base.Join(f.Key)
		res := gjson.GetBytes(doc, p.gjsonPath())

		if !f.matches(res) {
			raw, err := f.defaultRaw()
			if err != nil {
				return doc, fmt.Errorf("default for %s: %w", p, err)
			}
			doc, err = sjson.SetRawBytes(doc, p.sjsonPath(), raw)
			if err != nil {
				return doc, fmt.Errorf("set %s: %w", p, err)
			}
		}

		if f.Kind == KindObject && len(f.Fields) > 0 {
			var err error
			if doc, err = f.Fields.Apply(doc, p); err != nil {
				return doc, err
			}
		}
	}
	return doc, nil
}
