package rpc

import (
	"net/http"

	"epochpay/core/types"
)

type registryHolderParams struct {
	Registry string `json:"registry"`
	Holder   string `json:"holder"`
	Weight   string `json:"weight,omitempty"`
}

func (s *Server) handleRegistrySetHolder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params registryHolderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	category, err := parseCategoryParam(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	holder, err := parseAddressParam("holder", params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	weight, err := parseAmountParam("weight", params.Weight)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	if err := s.node.RegistrySetHolder(category, holder, weight); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "holder rejected", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleRegistryRemoveHolder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params registryHolderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	category, err := parseCategoryParam(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	holder, err := parseAddressParam("holder", params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	if err := s.node.RegistryRemoveHolder(category, holder); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "holder not removed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"removed": true})
}

type registryThresholdParams struct {
	Registry  string `json:"registry"`
	Threshold string `json:"threshold"`
}

func (s *Server) handleRegistrySetThreshold(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params registryThresholdParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	category, err := parseCategoryParam(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	threshold, err := parseAmountParam("threshold", params.Threshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	if err := s.node.RegistrySetThreshold(category, threshold); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "threshold rejected", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

type registryInfoParams struct {
	Registry string `json:"registry"`
}

type registryInfoResult struct {
	Registry  string `json:"registry"`
	Count     uint64 `json:"count"`
	Threshold string `json:"threshold"`
}

func (s *Server) handleRegistryInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params registryInfoParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	category, err := parseCategoryParam(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	count, threshold, err := s.node.RegistryInfo(category)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, registryInfoResult{
		Registry:  category.String(),
		Count:     count,
		Threshold: threshold.String(),
	})
}

type registryHolderAtParams struct {
	Registry string `json:"registry"`
	Index    uint64 `json:"index"`
}

type registryHolderAtResult struct {
	Holder string `json:"holder"`
}

func (s *Server) handleRegistryHolderAt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params registryHolderAtParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	category, err := parseCategoryParam(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	holder, err := s.node.RegistryHolderAt(category, params.Index)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "index out of range", err.Error())
		return
	}
	writeResult(w, req.ID, registryHolderAtResult{Holder: types.FormatAddress(holder)})
}
