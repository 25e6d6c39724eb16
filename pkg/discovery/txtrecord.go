package discovery

import (
	"strings"
)

// TXTRecordMap holds decoded DNS-SD TXT key/value pairs.
type TXTRecordMap map[string]string

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
// Keys are lower-cased; a key without value is stored with an empty value.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		key, value, _ := strings.Cut(s, "=")
		if key == "" {
			continue
		}
		txt[strings.ToLower(key)] = value
	}
	return txt
}

// First returns the value of the first key present.
func (t TXTRecordMap) First(keys ...string) string {
	for _, k := range keys {
		if v, ok := t[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
