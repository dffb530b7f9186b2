package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"epochpay/core/types"
	"epochpay/native/distribution"
)

func parseAddressParam(field, raw string) ([20]byte, error) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func parseAmountParam(field, raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%s: %q is not a decimal integer", field, raw)
	}
	return amount, nil
}

func parseCategoryParam(raw string) (distribution.Category, error) {
	switch raw {
	case distribution.CategoryPoints.String():
		return distribution.CategoryPoints, nil
	case distribution.CategoryBalance.String():
		return distribution.CategoryBalance, nil
	default:
		return 0, fmt.Errorf("category: %q is not points or balance", raw)
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("parameter object required")
	}
	return json.Unmarshal(req.Params[0], out)
}

type depositParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type depositResult struct {
	Cycle uint64 `json:"cycle"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params depositParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	from, err := parseAddressParam("from", params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	amount, err := parseAmountParam("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	cycle, err := s.node.Deposit(from, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, depositResult{Cycle: cycle})
}

type callerParams struct {
	Caller string `json:"caller"`
}

type advanceResult struct {
	Cycle        uint64 `json:"cycle"`
	Phase        string `json:"phase"`
	Registry     string `json:"registry,omitempty"`
	Processed    uint64 `json:"processed"`
	SnapshotDone bool   `json:"snapshotDone"`
	Allocated    bool   `json:"allocated"`
	Skipped      bool   `json:"skipped"`
}

func (s *Server) handleAdvanceEpoch(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	caller, err := parseAddressParam("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	result, err := s.node.AdvanceEpoch(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, advanceResult{
		Cycle:        result.Cycle,
		Phase:        result.Phase.String(),
		Registry:     result.Registry,
		Processed:    result.Processed,
		SnapshotDone: result.SnapshotDone,
		Allocated:    result.Allocated,
		Skipped:      result.Skipped,
	})
}

type distributeResult struct {
	Active     bool   `json:"active"`
	Cycle      uint64 `json:"cycle,omitempty"`
	Registry   string `json:"registry,omitempty"`
	Processed  uint64 `json:"processed"`
	Paid       uint64 `json:"paid"`
	Failed     uint64 `json:"failed"`
	PaidAmount string `json:"paidAmount"`
	Done       bool   `json:"done"`
}

func encodeDistribute(result *distribution.DistributeResult) distributeResult {
	paid := "0"
	if result.PaidAmount != nil {
		paid = result.PaidAmount.String()
	}
	return distributeResult{
		Active:     result.Active,
		Cycle:      result.Cycle,
		Registry:   result.Registry,
		Processed:  result.Processed,
		Paid:       result.Paid,
		Failed:     result.Failed,
		PaidAmount: paid,
		Done:       result.Done,
	}
}

func (s *Server) handleDistributeAuto(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	result, err := s.node.DistributeAuto()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, encodeDistribute(result))
}

type claimParams struct {
	Holder string `json:"holder"`
}

type claimResult struct {
	Amount string `json:"amount"`
}

func (s *Server) handleClaimManual(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	amount, err := s.node.ClaimManual(holder)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimResult{Amount: amount.String()})
}

type flushParams struct {
	Caller     string `json:"caller"`
	MaxWindows int    `json:"maxWindows,omitempty"`
}

func (s *Server) handleFlush(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params flushParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	caller, err := parseAddressParam("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	result, err := s.node.FlushDistributions(caller, params.MaxWindows)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, encodeDistribute(result))
}

type closeResult struct {
	Cycle       uint64           `json:"cycle"`
	Flushed     distributeResult `json:"flushed"`
	Swept       string           `json:"swept"`
	Unconverted string           `json:"unconverted,omitempty"`
}

func encodeClose(result *distribution.CloseResult) closeResult {
	out := closeResult{Cycle: result.Cycle, Swept: "0"}
	if result.Flushed != nil {
		out.Flushed = encodeDistribute(result.Flushed)
	}
	if result.Swept != nil {
		out.Swept = result.Swept.String()
	}
	if result.Unconverted != nil && result.Unconverted.Sign() > 0 {
		out.Unconverted = result.Unconverted.String()
	}
	return out
}

func (s *Server) handleCloseCycle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	caller, err := parseAddressParam("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	result, err := s.node.CloseCycle(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, encodeClose(result))
}

func (s *Server) handleForceReset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	caller, err := parseAddressParam("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	result, err := s.node.ForceReset(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, encodeClose(result))
}

func (s *Server) handleReleaseClaimGuard(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.node.ForceReleaseClaimGuard()
	writeResult(w, req.ID, map[string]bool{"released": true})
}

type paramsPayload struct {
	PointsCategoryBps  uint64   `json:"pointsCategoryBps"`
	AutoShareBps       uint64   `json:"autoShareBps"`
	MinCycleInterval   uint64   `json:"minCycleInterval"`
	SnapshotWindow     uint64   `json:"snapshotWindow"`
	DistributionWindow uint64   `json:"distributionWindow"`
	OperationalBuffer  string   `json:"operationalBuffer"`
	Treasury           string   `json:"treasury"`
	PermittedCallers   []string `json:"permittedCallers"`
	FundingSources     []string `json:"fundingSources"`
	ConvertRateNum     uint64   `json:"convertRateNum"`
	ConvertRateDen     uint64   `json:"convertRateDen"`
	ConvertFeeBps      uint64   `json:"convertFeeBps"`
}

func (p paramsPayload) decode() (distribution.Params, error) {
	params := distribution.Params{
		PointsCategoryBps:  p.PointsCategoryBps,
		AutoShareBps:       p.AutoShareBps,
		MinCycleInterval:   p.MinCycleInterval,
		SnapshotWindow:     p.SnapshotWindow,
		DistributionWindow: p.DistributionWindow,
		ConvertRateNum:     p.ConvertRateNum,
		ConvertRateDen:     p.ConvertRateDen,
		ConvertFeeBps:      p.ConvertFeeBps,
	}
	buffer := p.OperationalBuffer
	if buffer == "" {
		buffer = "0"
	}
	var err error
	if params.OperationalBuffer, err = parseAmountParam("operationalBuffer", buffer); err != nil {
		return distribution.Params{}, err
	}
	if params.Treasury, err = parseAddressParam("treasury", p.Treasury); err != nil {
		return distribution.Params{}, err
	}
	for _, raw := range p.PermittedCallers {
		addr, err := parseAddressParam("permittedCallers", raw)
		if err != nil {
			return distribution.Params{}, err
		}
		params.PermittedCallers = append(params.PermittedCallers, addr)
	}
	for _, raw := range p.FundingSources {
		addr, err := parseAddressParam("fundingSources", raw)
		if err != nil {
			return distribution.Params{}, err
		}
		params.FundingSources = append(params.FundingSources, addr)
	}
	return params, nil
}

func encodeParams(params distribution.Params) paramsPayload {
	payload := paramsPayload{
		PointsCategoryBps:  params.PointsCategoryBps,
		AutoShareBps:       params.AutoShareBps,
		MinCycleInterval:   params.MinCycleInterval,
		SnapshotWindow:     params.SnapshotWindow,
		DistributionWindow: params.DistributionWindow,
		OperationalBuffer:  params.Buffer().String(),
		Treasury:           types.FormatAddress(params.Treasury),
		ConvertRateNum:     params.ConvertRateNum,
		ConvertRateDen:     params.ConvertRateDen,
		ConvertFeeBps:      params.ConvertFeeBps,
	}
	for _, addr := range params.PermittedCallers {
		payload.PermittedCallers = append(payload.PermittedCallers, types.FormatAddress(addr))
	}
	for _, addr := range params.FundingSources {
		payload.FundingSources = append(payload.FundingSources, types.FormatAddress(addr))
	}
	return payload
}

func (s *Server) handleSetParams(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var payload paramsPayload
	if err := decodeParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	params, err := payload.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	if err := s.node.SetParams(params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameters rejected", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleGetParams(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, err := s.node.Params()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, encodeParams(params))
}
