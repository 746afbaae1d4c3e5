package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/chenzhangda16/polygon-netflow/internal/netflow/model"
)

const (
	tokenSymbol   = "POL"
	tokenDecimals = 18
)

// Snapshotter is the read side of the aggregate; the store implements it.
type Snapshotter interface {
	Snapshot(ctx context.Context) (model.NetflowState, error)
}

type Server struct {
	snap Snapshotter
}

func NewServer(snap Snapshotter) *Server { return &Server{snap: snap} }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/netflow", s.handleNetflow)
	return mux
}

type netflowResp struct {
	Symbol        string `json:"symbol"`
	Decimals      int    `json:"decimals"`
	CumulativeIn  string `json:"cumulative_in"`
	CumulativeOut string `json:"cumulative_out"`
	CumulativeNet string `json:"cumulative_net"`
	LastBlock     *int64 `json:"last_block"`
}

func (s *Server) handleNetflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st, err := s.snap.Snapshot(r.Context())
	if err != nil {
		log.Printf("[api] snapshot err: %v", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, netflowResp{
		Symbol:        tokenSymbol,
		Decimals:      tokenDecimals,
		CumulativeIn:  FormatUnits(st.CumulativeIn, tokenDecimals),
		CumulativeOut: FormatUnits(st.CumulativeOut, tokenDecimals),
		CumulativeNet: FormatUnits(st.Net(), tokenDecimals),
		LastBlock:     st.LastBlock,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
