package rpc

import (
	"net/http"
)

type accountParams struct {
	Address string `json:"address"`
}

type accountResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Frozen  bool   `json:"frozen"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	account, err := s.node.Account(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, accountResult{
		Address: params.Address,
		Balance: account.Balance.String(),
		Frozen:  account.Frozen,
	})
}

type setFrozenParams struct {
	Address string `json:"address"`
	Frozen  bool   `json:"frozen"`
}

func (s *Server) handleSetFrozen(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setFrozenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	if err := s.node.SetAccountFrozen(addr, params.Frozen); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"frozen": params.Frozen})
}
