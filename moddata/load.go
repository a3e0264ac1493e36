package moddata

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/modhost/errors"
	"github.com/wippyai/modhost/manifest"
)

// fileModel is the on-disk layout of the compatibility database. The same
// structs are stored in the msgpack snapshot.
type fileModel struct {
	Mods []modModel `toml:"mod" msgpack:"mods"`
}

type modModel struct {
	ID               string       `toml:"ID" msgpack:"id"`
	Name             string       `toml:"Name" msgpack:"name"`
	FormerIDs        []string     `toml:"FormerIDs" msgpack:"former_ids"`
	SuppressWarnings []string     `toml:"SuppressWarnings" msgpack:"suppress_warnings"`
	Fields           []fieldModel `toml:"Fields" msgpack:"fields"`
}

type fieldModel struct {
	Key          string `toml:"Key" msgpack:"key"`
	Value        string `toml:"Value" msgpack:"value"`
	LowerVersion string `toml:"LowerVersion" msgpack:"lower"`
	UpperVersion string `toml:"UpperVersion" msgpack:"upper"`
	IsDefault    bool   `toml:"IsDefault" msgpack:"default"`
}

// Parse decodes a TOML compatibility database.
func Parse(data string) (*Database, error) {
	model, err := decodeTOML(data)
	if err != nil {
		return nil, err
	}
	return model.compile()
}

// LoadFile reads a TOML compatibility database from disk.
func LoadFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).File(path).Cause(err).Detail("read compatibility list").Build()
	}
	db, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

func decodeTOML(data string) (*fileModel, error) {
	var model fileModel
	meta, err := toml.Decode(data, &model)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse compatibility list")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		Logger().Sugar().Debugf("compatibility list has unknown keys: %v", undecoded)
	}
	return &model, nil
}

func (f *fileModel) compile() (*Database, error) {
	records := make([]*Record, 0, len(f.Mods))
	for i, m := range f.Mods {
		path := []string{"mod", fmt.Sprint(i)}
		if strings.TrimSpace(m.ID) == "" {
			return nil, errors.InvalidData(errors.PhaseConfig, path, "entry has no ID")
		}
		r := &Record{ID: strings.TrimSpace(m.ID), DisplayName: m.Name}
		for _, id := range m.FormerIDs {
			if id = strings.TrimSpace(id); id != "" {
				r.FormerIDs = append(r.FormerIDs, id)
			}
		}
		for _, name := range m.SuppressWarnings {
			w, err := ParseWarning(name)
			if err != nil {
				return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).Path(path...).Mod(r.ID).Cause(err).Build()
			}
			r.SuppressWarnings |= w
		}
		for j, fm := range m.Fields {
			field, err := fm.compile()
			if err != nil {
				return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
					Path(append(path, "field", fmt.Sprint(j))...).Mod(r.ID).Cause(err).Build()
			}
			r.Fields = append(r.Fields, field)
		}
		records = append(records, r)
	}
	return New(records, nil), nil
}

func (fm fieldModel) compile() (Field, error) {
	key, err := ParseFieldKey(fm.Key)
	if err != nil {
		return Field{}, err
	}
	if key == FieldStatus {
		if _, err := ParseStatus(fm.Value); err != nil {
			return Field{}, err
		}
	}
	f := Field{Key: key, Value: fm.Value, IsDefault: fm.IsDefault}
	if fm.LowerVersion != "" {
		if f.LowerVersion, err = manifest.ParseVersion(fm.LowerVersion); err != nil {
			return Field{}, err
		}
	}
	if fm.UpperVersion != "" {
		if f.UpperVersion, err = manifest.ParseVersion(fm.UpperVersion); err != nil {
			return Field{}, err
		}
	}
	return f, nil
}
