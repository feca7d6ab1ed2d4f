package rpc

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"champ/core"
)

// errorResponse is the JSON body returned for every non-2xx response.
type errorResponse struct {
	Code    core.ErrorCode `json:"code"`
	Message string         `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code core.ErrorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeErr maps err to an HTTP status via core.CodeOf and writes it.
func writeErr(w http.ResponseWriter, err error) {
	code := core.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case core.CodeNotFound, core.CodeNoLastBlock:
		status = http.StatusNotFound
	case core.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case core.CodeForbidden:
		status = http.StatusForbidden
	case core.CodeInvalidSize, core.CodeInvalidChecksum, core.CodeInvalidSymbol, core.CodeDecode:
		status = http.StatusBadRequest
	}
	writeError(w, status, code, err.Error())
}

func parseAccount(r *http.Request) (core.AccountID, error) {
	return core.ParseAddress(r.URL.Query().Get("account"))
}

func parseBlockID(r *http.Request) (core.BlockID, error) {
	raw, err := core.ZbaseDecode(r.URL.Query().Get("id"))
	if err != nil {
		return core.BlockID{}, err
	}
	if len(raw) != len(core.BlockID{}) {
		return core.BlockID{}, core.ErrInvalidSize
	}
	var id core.BlockID
	copy(id[:], raw)
	return id, nil
}

func parseTransactionID(r *http.Request) (core.TransactionID, error) {
	raw, err := core.ZbaseDecode(r.URL.Query().Get("id"))
	if err != nil {
		return core.TransactionID{}, err
	}
	if len(raw) != len(core.TransactionID{}) {
		return core.TransactionID{}, core.ErrInvalidSize
	}
	var id core.TransactionID
	copy(id[:], raw)
	return id, nil
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	balance, err := s.account.GetBalance(r.Context(), account)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

func (s *Server) handleGetBlockByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseBlockID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	blk, err := s.account.GetBlockByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blk)
}

func (s *Server) handleGetLatestBlock(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	blk, err := s.account.GetLatestBlock(r.Context(), account)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blk)
}

func (s *Server) handleGetBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sort := core.SortDescending
	if q.Get("sort") == "asc" {
		sort = core.SortAscending
	}

	limit := core.MaxBlocksLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, core.ErrInvalidSize)
			return
		}
		limit = n
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, core.ErrInvalidSize)
			return
		}
		offset = n
	}

	var account *core.AccountID
	if v := q.Get("account"); v != "" {
		a, err := core.ParseAddress(v)
		if err != nil {
			writeErr(w, err)
			return
		}
		account = &a
	}

	blocks, err := s.account.GetBlocks(r.Context(), sort, limit, offset, account)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (s *Server) handleGetTransactionByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseTransactionID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	tx, err := s.account.GetTransactionByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleGetUnclaimedTransactions(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	txs, err := s.account.GetUnclaimedTransactions(r.Context(), account)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetVotingPower(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	active := r.URL.Query().Get("kind") == "active"
	power, err := s.account.GetVotingPower(r.Context(), account, active)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"power": power})
}

func (s *Server) handleGetDelegate(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	delegate, err := s.account.GetDelegate(r.Context(), account)
	if err != nil {
		writeErr(w, err)
		return
	}
	if delegate == nil {
		writeJSON(w, http.StatusOK, map[string]any{"delegate": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"delegate": delegate.String()})
}

// submitBlockRequest carries the raw wire-encoded block, base64-encoded.
type submitBlockRequest struct {
	RawBlock string `json:"raw_block"`
}

func (s *Server) handleSubmitBlock(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, core.ErrDecode)
		return
	}
	var req submitBlockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErr(w, core.ErrDecode)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.RawBlock)
	if err != nil {
		writeErr(w, core.ErrDecode)
		return
	}
	if err := s.account.SubmitBlock(r.Context(), raw); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.admin.GetVersion(r.Context())})
}

func (s *Server) handleGetBlockPoolSize(w http.ResponseWriter, r *http.Request) {
	n, err := s.admin.GetBlockPoolSize(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"size": n})
}

func (s *Server) handleGetNodeName(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"name": s.admin.GetNodeName(r.Context())})
}

type setNodeNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSetNodeName(w http.ResponseWriter, r *http.Request) {
	if claims, ok := claimsFromContext(r.Context()); ok && !claims.HasPermission("admin") {
		writeError(w, http.StatusForbidden, core.CodeForbidden, "forbidden")
		return
	}
	var req setNodeNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, core.ErrDecode)
		return
	}
	if err := s.admin.SetNodeName(r.Context(), req.Name); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
