package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
)

const (
	sourceDeBank      = "debank"
	sourceHyperliquid = "hyperliquid"

	defaultListLimit = 100
	maxListLimit     = 1000
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListSnapshots serves GET /api/v1/snapshots/{address}?source=&limit=.
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	address, source, limit, ok := s.parseSnapshotQuery(w, r)
	if !ok {
		return
	}

	switch source {
	case sourceDeBank:
		rows, err := s.protocols.ListByAddress(r.Context(), address, limit)
		if err != nil {
			s.logger.WithError(err).Error("protocol snapshot query failed")
			respondError(w, http.StatusInternalServerError, errCodeInternal, "snapshot query failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"address":   address,
			"source":    source,
			"snapshots": rows,
		})
	case sourceHyperliquid:
		rows, err := s.accounts.ListByAddress(r.Context(), address, limit)
		if err != nil {
			s.logger.WithError(err).Error("account snapshot query failed")
			respondError(w, http.StatusInternalServerError, errCodeInternal, "snapshot query failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"address":   address,
			"source":    source,
			"snapshots": rows,
		})
	}
}

// handleLatestSnapshots serves GET /api/v1/snapshots/{address}/latest: the
// rows sharing the most recent fetched_at for the address.
func (s *Server) handleLatestSnapshots(w http.ResponseWriter, r *http.Request) {
	address, source, _, ok := s.parseSnapshotQuery(w, r)
	if !ok {
		return
	}

	switch source {
	case sourceDeBank:
		rows, err := s.protocols.LatestByAddress(r.Context(), address)
		if err != nil {
			s.logger.WithError(err).Error("protocol snapshot query failed")
			respondError(w, http.StatusInternalServerError, errCodeInternal, "snapshot query failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"address":   address,
			"source":    source,
			"snapshots": rows,
		})
	case sourceHyperliquid:
		rows, err := s.accounts.ListByAddress(r.Context(), address, 1)
		if err != nil {
			s.logger.WithError(err).Error("account snapshot query failed")
			respondError(w, http.StatusInternalServerError, errCodeInternal, "snapshot query failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"address":   address,
			"source":    source,
			"snapshots": rows,
		})
	}
}

// parseSnapshotQuery validates the address path variable and the shared
// source/limit query parameters. On failure it writes the error response
// and returns ok=false.
func (s *Server) parseSnapshotQuery(w http.ResponseWriter, r *http.Request) (address, source string, limit int, ok bool) {
	address = strings.ToLower(mux.Vars(r)["address"])
	if !common.IsHexAddress(address) {
		respondError(w, http.StatusBadRequest, errCodeInvalidInput, "invalid wallet address")
		return "", "", 0, false
	}

	source = r.URL.Query().Get("source")
	if source == "" {
		source = sourceDeBank
	}
	if source != sourceDeBank && source != sourceHyperliquid {
		respondError(w, http.StatusBadRequest, errCodeInvalidInput, "source must be debank or hyperliquid")
		return "", "", 0, false
	}

	limit = defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			respondError(w, http.StatusBadRequest, errCodeInvalidInput, "limit must be between 1 and 1000")
			return "", "", 0, false
		}
		limit = n
	}
	return address, source, limit, true
}
