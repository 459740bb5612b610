package models

import "encoding/json"

// JSONValue marshals a payload for column-level updates, which bypass the
// struct serializer. The columns are longtext holding JSON documents.
func JSONValue(v map[string]interface{}) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
