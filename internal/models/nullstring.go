package models

import (
	"database/sql"
	"encoding/json"
)

// NullString is a nullable text column that encodes as a plain JSON string,
// empty when NULL.
type NullString struct {
	sql.NullString
}

func NewNullString(s string) NullString {
	return NullString{sql.NullString{String: s, Valid: s != ""}}
}

func (n NullString) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String)
}

func (n *NullString) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*n = NullString{}
		return nil
	}
	*n = NewNullString(*s)
	return nil
}
