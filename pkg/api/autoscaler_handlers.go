package api

import (
	"net/http"
	"time"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/autoscaler"
)

type pushMetricRequest struct {
	ResourceID   string  `json:"resource_id"`
	ResourceType string  `json:"resource_type"`
	MetricName   string  `json:"metric_name"`
	Value        float64 `json:"value"`
}

// handlePushMetric feeds one observation into the autoscaler mailbox
func (s *Server) handlePushMetric(w http.ResponseWriter, r *http.Request) {
	if s.scaler == nil {
		renderError(w, r, apierrors.New(apierrors.KindBadRequest, "autoscaler is not enabled"))
		return
	}

	var req pushMetricRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	if req.ResourceID == "" || req.ResourceType == "" || req.MetricName == "" {
		renderError(w, r, apierrors.New(apierrors.KindBadRequest,
			"resource_id, resource_type and metric_name are required"))
		return
	}

	s.scaler.PushMetric(autoscaler.Metric{
		ResourceID:   req.ResourceID,
		ResourceType: req.ResourceType,
		MetricName:   req.MetricName,
		Value:        req.Value,
		Timestamp:    time.Now(),
	})
	renderJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
