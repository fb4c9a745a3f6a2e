package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

func withCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// asAgents decodes the agents list column as DuckDB hands it back: a slice
// of maps keyed by field name.
func asAgents(v any) []finalAgent {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]finalAgent, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		a := finalAgent{ID: asInt64(m["id"]), Boxes: asInt64(m["boxes"])}
		a.Side, _ = m["side"].(string)
		a.Alive, _ = m["alive"].(bool)
		out = append(out, a)
	}
	return out
}

func asInt64(v any) int64 {
	switch vv := v.(type) {
	case int32:
		return int64(vv)
	case int64:
		return vv
	case int:
		return int64(vv)
	case float64:
		return int64(vv)
	default:
		return 0
	}
}

func formatResults(agents []finalAgent) string {
	parts := make([]string, 0, len(agents))
	for _, a := range agents {
		state := "dead"
		if a.Alive {
			state = "alive"
		}
		parts = append(parts, fmt.Sprintf("%s:%s:%d", a.Side, state, a.Boxes))
	}
	return strings.Join(parts, " ")
}
