package wasm

import (
	"fmt"

	"github.com/wippyai/modhost/wasm/internal/binary"
)

// Dylink subsection types from the dynamic linking convention.
const (
	DylinkMemInfo    byte = 1
	DylinkNeeded     byte = 2
	DylinkExportInfo byte = 3
	DylinkImportInfo byte = 4
)

// Dylink is a decoded dylink.0 custom section. Only the needed list is
// interpreted; other subsections pass through untouched.
type Dylink struct {
	subs []dylinkSub
}

type dylinkSub struct {
	payload []byte
	needed  []string
	typ     byte
}

// ParseDylink decodes the payload of a dylink.0 section.
func ParseDylink(data []byte) (*Dylink, error) {
	r := binary.NewReader(data, 0)
	d := &Dylink{}
	for r.Len() > 0 {
		typ, _ := r.ReadByte()
		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError(CustomDylink, err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError(CustomDylink, err)
		}
		sub := dylinkSub{typ: typ, payload: payload}
		if typ == DylinkNeeded {
			pr := binary.NewReader(payload, 0)
			n, err := pr.ReadU32()
			if err != nil {
				return nil, pr.WrapError(CustomDylink, err)
			}
			for i := uint32(0); i < n; i++ {
				name, err := pr.ReadName()
				if err != nil {
					return nil, pr.WrapError(CustomDylink, err)
				}
				sub.needed = append(sub.needed, name)
			}
			if pr.Len() != 0 {
				return nil, fmt.Errorf("%s: trailing bytes in needed subsection", CustomDylink)
			}
		}
		d.subs = append(d.subs, sub)
	}
	return d, nil
}

// Needed returns the WASM_DYLINK_NEEDED entries.
func (d *Dylink) Needed() []string {
	var out []string
	for _, s := range d.subs {
		if s.typ == DylinkNeeded {
			out = append(out, s.needed...)
		}
	}
	return out
}

// SetNeeded replaces the needed list, adding the subsection if absent.
func (d *Dylink) SetNeeded(names []string) {
	set := false
	kept := d.subs[:0]
	for _, s := range d.subs {
		if s.typ != DylinkNeeded {
			kept = append(kept, s)
			continue
		}
		if !set {
			s.needed = names
			kept = append(kept, s)
			set = true
		}
	}
	d.subs = kept
	if !set {
		d.subs = append(d.subs, dylinkSub{typ: DylinkNeeded, needed: names})
	}
}

// Encode serializes the section payload.
func (d *Dylink) Encode() []byte {
	w := binary.NewWriter()
	for _, s := range d.subs {
		payload := s.payload
		if s.typ == DylinkNeeded {
			pw := binary.NewWriter()
			pw.WriteU32(uint32(len(s.needed)))
			for _, n := range s.needed {
				pw.WriteName(n)
			}
			payload = pw.Bytes()
		}
		w.Byte(s.typ)
		w.WriteU32(uint32(len(payload)))
		w.WriteBytes(payload)
	}
	return w.Bytes()
}

// DylinkNeeded returns the needed list of m's dylink.0 section, if any.
func (m *Module) DylinkNeeded() ([]string, error) {
	c := m.Custom(CustomDylink)
	if c == nil {
		return nil, nil
	}
	d, err := ParseDylink(c.Data)
	if err != nil {
		return nil, err
	}
	return d.Needed(), nil
}
