package wasm

import (
	"github.com/wippyai/modhost/wasm/internal/binary"
)

// SignatureRef is one entry of the modhost.signatures custom section: the
// host-level type name a binary expects for one of its imports.
type SignatureRef struct {
	Module    string
	Field     string
	Signature string
}

// ParseSignatures decodes a modhost.signatures payload.
func ParseSignatures(data []byte) ([]SignatureRef, error) {
	r := binary.NewReader(data, 0)
	n, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError(CustomSignatures, err)
	}
	if err := checkCount(r, n); err != nil {
		return nil, r.WrapError(CustomSignatures, err)
	}
	out := make([]SignatureRef, 0, n)
	for i := uint32(0); i < n; i++ {
		var ref SignatureRef
		for _, dst := range []*string{&ref.Module, &ref.Field, &ref.Signature} {
			if *dst, err = r.ReadName(); err != nil {
				return nil, r.WrapError(CustomSignatures, err)
			}
		}
		out = append(out, ref)
	}
	return out, nil
}

// EncodeSignatures serializes a modhost.signatures payload.
func EncodeSignatures(refs []SignatureRef) []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(refs)))
	for _, ref := range refs {
		w.WriteName(ref.Module)
		w.WriteName(ref.Field)
		w.WriteName(ref.Signature)
	}
	return w.Bytes()
}

// Signatures returns the decoded modhost.signatures section of m, if any.
func (m *Module) Signatures() ([]SignatureRef, error) {
	c := m.Custom(CustomSignatures)
	if c == nil {
		return nil, nil
	}
	return ParseSignatures(c.Data)
}
