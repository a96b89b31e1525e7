package models

import (
	"encoding/json"
	"strings"
)

// Ref is a canonical person/user reference. The server is inconsistent about
// how it represents references in nested lists: sometimes a plain id string,
// sometimes {"_id": ...}, sometimes {"userId": ...}. Ref normalizes all three
// at the decode boundary so every comparison goes through Ref.ID.
type Ref struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// refAlias carries every id field spelling seen in server payloads.
type refAlias struct {
	ID       json.RawMessage `json:"_id"`
	UserID   json.RawMessage `json:"userId"`
	PersonID json.RawMessage `json:"person"`
	Name     string          `json:"name"`
	PersonNm string          `json:"personName"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	// Plain id string.
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.ID = s
		return nil
	}

	var alias refAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	for _, raw := range []json.RawMessage{alias.ID, alias.UserID, alias.PersonID} {
		if id := flexibleID(raw); id != "" {
			r.ID = id
			break
		}
	}
	r.Name = alias.Name
	if r.Name == "" {
		r.Name = alias.PersonNm
	}
	return nil
}

// flexibleID extracts an id from a raw value that may be a string, a number,
// or a nested {"_id": ...} object.
func flexibleID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var nested struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.ID != "" {
		return nested.ID
	}
	// Numeric ids arrive from older records; keep the literal form.
	return strings.Trim(string(raw), `"`)
}

// ContainsRef reports whether refs holds an entry whose normalized id equals id.
func ContainsRef(refs []Ref, id string) bool {
	if id == "" {
		return false
	}
	for _, r := range refs {
		if r.ID == id {
			return true
		}
	}
	return false
}
