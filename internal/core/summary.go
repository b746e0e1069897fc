package core

import (
	"bytes"
	"encoding/json"
)

// CategoryTotal is the summed amount for one exact-match category. Categories
// are never normalized: "Food" and "food" are distinct groups.
type CategoryTotal struct {
	Category string
	Total    float64
}

// ByCategory is a category breakdown ordered by descending total. Equal
// totals are broken by ascending lexical category order.
type ByCategory []CategoryTotal

// Summary is the full-ledger aggregation. Total is 0 for an empty ledger,
// never null.
type Summary struct {
	Total      float64    `json:"total"`
	ByCategory ByCategory `json:"by_category"`
}

// MarshalJSON renders the breakdown as a JSON object whose keys appear in
// breakdown order. A plain map would lose the descending-total ordering.
func (b ByCategory) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ct := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ct.Category)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(ct.Total)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
