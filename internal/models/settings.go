package models

// Setting is one key/value row of the Config table.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Settings holds Config rows in table order. Keys are unique; Set updates an
// existing row in place or appends a new one.
type Settings []Setting

// Get returns the value for key and whether it exists.
func (s Settings) Get(key string) (string, bool) {
	for _, entry := range s {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return "", false
}

// GetDefault returns the value for key, or def when the key is absent.
func (s Settings) GetDefault(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Set updates the value for key, appending a new row if needed.
func (s *Settings) Set(key, value string) {
	for i, entry := range *s {
		if entry.Key == key {
			(*s)[i].Value = value
			return
		}
	}
	*s = append(*s, Setting{Key: key, Value: value})
}
