package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is an invoice amount. It unmarshals from either a JSON number
// or a numeric string ("555" becomes 555) and always marshals as a
// number, so clients that quote amounts still get numbers back.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", raw)
	}
	*a = Amount(f)
	return nil
}
