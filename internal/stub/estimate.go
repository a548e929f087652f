package stub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRegion      = "us-east-1"
	maxResourceChanges = 1000
	maxAddressLength   = 256
	maxRequestBytes    = 10 << 20
)

type estimateRequest struct {
	Plan *plan `json:"plan"`
}

type plan struct {
	ResourceChanges []resourceChange `json:"resource_changes"`
}

type resourceChange struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	Change  struct {
		Actions []string `json:"actions"`
	} `json:"change"`
	After map[string]any `json:"after"`
}

// EstimateResponse is the body of a successful estimate.
type EstimateResponse struct {
	TotalMonthlyCost float64        `json:"total_monthly_cost"`
	Currency         string         `json:"currency"`
	Resources        []ResourceCost `json:"resources"`
}

// ResourceCost is the monthly cost impact of one resource.
type ResourceCost struct {
	Address       string  `json:"address"`
	MonthlyCost   float64 `json:"monthly_cost"`
	CostBreakdown string  `json:"cost_breakdown"`
}

func validatePlan(p *plan) error {
	if p == nil {
		return errors.New("plan cannot be nil")
	}
	if len(p.ResourceChanges) > maxResourceChanges {
		return fmt.Errorf("too many resources in plan (max %d)", maxResourceChanges)
	}
	for _, rc := range p.ResourceChanges {
		if rc.Address == "" {
			return errors.New("resource address cannot be empty")
		}
		if len(rc.Address) > maxAddressLength {
			return errors.New("resource address too long")
		}
	}
	return nil
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.metrics.estimation.Observe(time.Since(start).Seconds()) }()

	if err := s.injectLatency(r); err != nil {
		return
	}
	if s.shouldFail() {
		http.Error(w, "pricing backend unavailable", http.StatusServiceUnavailable)
		return
	}

	region := r.URL.Query().Get("region")
	if region == "" {
		region = defaultRegion
	}

	var req estimateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.logger.Debug("failed to parse request body", zap.Error(err))
		http.Error(w, "Failed to parse request body", http.StatusBadRequest)
		return
	}
	if err := validatePlan(req.Plan); err != nil {
		s.logger.Debug("invalid plan", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := EstimateResponse{Currency: "USD", Resources: []ResourceCost{}}
	for _, rc := range req.Plan.ResourceChanges {
		cost, breakdown, err := monthlyCost(rc, region)
		if err != nil {
			s.logger.Debug("skipping resource", zap.String("address", rc.Address), zap.Error(err))
			continue
		}
		if cost == 0 {
			continue
		}
		resp.Resources = append(resp.Resources, ResourceCost{Address: rc.Address, MonthlyCost: cost, CostBreakdown: breakdown})
		resp.TotalMonthlyCost += cost
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *server) injectLatency(r *http.Request) error {
	d := s.opts.Latency
	if s.opts.Jitter > 0 {
		d += time.Duration(s.opts.Rand() * float64(s.opts.Jitter))
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-r.Context().Done():
		return r.Context().Err()
	}
}

func (s *server) shouldFail() bool {
	return s.opts.ErrorRate > 0 && s.opts.Rand() < s.opts.ErrorRate
}

func (s *server) handleLive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}
