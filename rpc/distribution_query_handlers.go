package rpc

import (
	"net/http"

	"epochpay/native/distribution"
)

type statusResult struct {
	AccumulatingCycle uint64 `json:"accumulatingCycle"`
	ActiveCycle       uint64 `json:"activeCycle"`
	Invocations       uint64 `json:"invocations"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	status, err := s.node.EngineStatus()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusResult{
		AccumulatingCycle: status.AccumulatingCycle,
		ActiveCycle:       status.ActiveCycle,
		Invocations:       status.Invocations,
	})
}

type cycleParams struct {
	Cycle uint64 `json:"cycle"`
}

type cycleResult struct {
	ID                 uint64 `json:"id"`
	Phase              string `json:"phase"`
	AccumulationStart  uint64 `json:"accumulationStart"`
	DistributionStart  uint64 `json:"distributionStart,omitempty"`
	SnapshotInvocation uint64 `json:"snapshotInvocation,omitempty"`
	ClosedAt           uint64 `json:"closedAt,omitempty"`
}

func (s *Server) handleGetCycle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params cycleParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	cycle, err := s.node.CycleInfo(params.Cycle)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, cycleResult{
		ID:                 cycle.ID,
		Phase:              cycle.Phase.String(),
		AccumulationStart:  cycle.AccumulationStart,
		DistributionStart:  cycle.DistributionStart,
		SnapshotInvocation: cycle.SnapshotInvocation,
		ClosedAt:           cycle.ClosedAt,
	})
}

type poolFigures struct {
	Accumulated   string `json:"accumulated"`
	Auto          string `json:"auto"`
	Manual        string `json:"manual"`
	AutoInitial   string `json:"autoInitial"`
	ManualInitial string `json:"manualInitial"`
}

type poolsResult struct {
	Cycle     uint64                 `json:"cycle"`
	Allocated bool                   `json:"allocated"`
	Pools     map[string]poolFigures `json:"pools"`
}

func (s *Server) handleGetPools(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params cycleParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	pools, err := s.node.PoolBalances(params.Cycle)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := poolsResult{Cycle: params.Cycle, Allocated: pools.Allocated, Pools: make(map[string]poolFigures, len(distribution.Categories))}
	for _, c := range distribution.Categories {
		result.Pools[c.String()] = poolFigures{
			Accumulated:   pools.Accumulated(c).String(),
			Auto:          pools.Auto(c).String(),
			Manual:        pools.Manual(c).String(),
			AutoInitial:   pools.AutoInitial(c).String(),
			ManualInitial: pools.ManualInitial(c).String(),
		}
	}
	writeResult(w, req.ID, result)
}

type claimableResult struct {
	Auto   string `json:"auto"`
	Manual string `json:"manual"`
}

func (s *Server) handleClaimable(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	holder, err := parseAddressParam("holder", params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	auto, manual, err := s.node.Claimable(holder)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimableResult{Auto: auto.String(), Manual: manual.String()})
}

type claimStatusParams struct {
	Cycle  uint64 `json:"cycle"`
	Holder string `json:"holder"`
}

type claimStatusResult struct {
	AutoClaimed   bool `json:"autoClaimed"`
	ManualClaimed bool `json:"manualClaimed"`
}

func (s *Server) handleClaimStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimStatusParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	holder, err := parseAddressParam("holder", params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	record, err := s.node.ClaimStatus(params.Cycle, holder)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimStatusResult{AutoClaimed: record.AutoClaimed, ManualClaimed: record.ManualClaimed})
}

type registryProgressParams struct {
	Cycle    uint64 `json:"cycle"`
	Registry string `json:"registry"`
}

type progressResult struct {
	Cursor      uint64 `json:"cursor"`
	LockedCount uint64 `json:"lockedCount"`
	Done        bool   `json:"done"`
}

func (s *Server) handleSnapshotProgress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params registryProgressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	category, err := parseCategoryParam(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	progress, err := s.node.SnapshotProgress(params.Cycle, category)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, progressResult{Cursor: progress.Cursor, LockedCount: progress.LockedCount, Done: progress.Done})
}

type snapshotTotalsResult struct {
	TotalWeight string `json:"totalWeight"`
	Eligible    uint64 `json:"eligible"`
	Done        bool   `json:"done"`
}

func (s *Server) handleSnapshotTotals(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params registryProgressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	category, err := parseCategoryParam(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	summary, err := s.node.SnapshotTotals(params.Cycle, category)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, snapshotTotalsResult{
		TotalWeight: summary.TotalWeight.String(),
		Eligible:    summary.Eligible,
		Done:        summary.Done,
	})
}

func (s *Server) handlePending(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	pending, err := s.node.PendingDistribution()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pending)
}

type timeRemainingResult struct {
	Seconds uint64 `json:"seconds"`
}

func (s *Server) handleTimeRemaining(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	remaining, err := s.node.TimeRemaining()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, timeRemainingResult{Seconds: remaining})
}

type lifetimeResult struct {
	Total string `json:"total"`
}

func (s *Server) handleLifetime(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	holder, err := parseAddressParam("holder", params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	total, err := s.node.LifetimeTotal(holder)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lifetimeResult{Total: total.String()})
}
