package assist

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// Proxy exposes the upstream model behind an origin allowlist so the API key
// never reaches a browser. Requests pass through unchanged; the key is
// appended server side.
type Proxy struct {
	client         *Client
	allowedOrigins []string
}

func NewProxy(client *Client, allowedOrigins []string) *Proxy {
	return &Proxy{client: client, allowedOrigins: allowedOrigins}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	if r.Method == http.MethodOptions {
		p.writeCORS(w, origin)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Same-origin requests carry no Origin header and are always allowed.
	if origin != "" && !p.originAllowed(origin) {
		writeError(w, http.StatusForbidden, "origin not allowed")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := p.client.forward(r.Context(), req)
	if err != nil {
		log.Printf("assist proxy: %v", err)
		p.writeCORS(w, origin)
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}

	p.writeCORS(w, origin)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("assist proxy write: %v", err)
	}
}

func (p *Proxy) originAllowed(origin string) bool {
	for _, allowed := range p.allowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

func (p *Proxy) writeCORS(w http.ResponseWriter, origin string) {
	if origin == "" || !p.originAllowed(origin) {
		return
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
