package models

import "encoding/json"

// IdentityMeta is the declared-trait mapping a vessel publishes alongside its
// homepage. Interests and values are the keys the discovery matcher
// understands; everything else round-trips untouched in Extra so vessels can
// publish traits this server does not interpret yet.
type IdentityMeta struct {
	Interests []string
	Values    []string
	Extra     map[string]json.RawMessage
}

func (m IdentityMeta) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Interests != nil {
		b, err := json.Marshal(m.Interests)
		if err != nil {
			return nil, err
		}
		out["interests"] = b
	}
	if m.Values != nil {
		b, err := json.Marshal(m.Values)
		if err != nil {
			return nil, err
		}
		out["values"] = b
	}
	return json.Marshal(out)
}

func (m *IdentityMeta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if b, ok := raw["interests"]; ok {
		if err := json.Unmarshal(b, &m.Interests); err != nil {
			return err
		}
		delete(raw, "interests")
	}
	if b, ok := raw["values"]; ok {
		if err := json.Unmarshal(b, &m.Values); err != nil {
			return err
		}
		delete(raw, "values")
	}

	if len(raw) > 0 {
		m.Extra = raw
	} else {
		m.Extra = nil
	}
	return nil
}
