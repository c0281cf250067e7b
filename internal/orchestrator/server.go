package orchestrator

import (
	"encoding/json"
	"net/http"
	"time"
)

// Server exposes the trigger API HTTP surface over an Orchestrator.
type Server struct {
	orch *Orchestrator
}

// NewServer builds a Server.
func NewServer(orch *Orchestrator) *Server {
	return &Server{orch: orch}
}

// RegisterRoutes registers all trigger endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/batch-jobs/subscription-renewal", s.handleSubscriptionRenewal)
	mux.HandleFunc("/api/batch-jobs/email", s.handleEmail)
	mux.HandleFunc("/api/batch-jobs/stripe-fees-tax", s.handleFeesTax)
	mux.HandleFunc("/api/batch-jobs/health", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Batch Jobs Service is running"})
}

type subscriptionRenewalBody struct {
	TenantID             string `json:"tenantId"`
	BatchSize            int    `json:"batchSize"`
	MaxSubscriptions     int    `json:"maxSubscriptions"`
	StripeSubscriptionID string `json:"stripeSubscriptionId"`
}

func (s *Server) handleSubscriptionRenewal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, TriggerResponse{Success: false, Message: "POST required"})
		return
	}
	var body subscriptionRenewalBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err.Error() != "EOF" {
		writeJSON(w, http.StatusBadRequest, TriggerResponse{Success: false, Message: "invalid request body"})
		return
	}

	s.trigger(w, r, TriggerRequest{
		JobType:              JobSubscriptionRenewal,
		TenantID:             body.TenantID,
		BatchSize:            body.BatchSize,
		MaxSubscriptions:     body.MaxSubscriptions,
		StripeSubscriptionID: body.StripeSubscriptionID,
	})
}

type emailBody struct {
	TenantID        string   `json:"tenantId"`
	TemplateID      string   `json:"templateId"`
	BatchSize       int      `json:"batchSize"`
	MaxEmails       int      `json:"maxEmails"`
	RecipientEmails []string `json:"recipientEmails"`
	UserID          string   `json:"userId"`
	RecipientType   string   `json:"recipientType"`
}

func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, TriggerResponse{Success: false, Message: "POST required"})
		return
	}
	var body emailBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, TriggerResponse{Success: false, Message: "invalid request body"})
		return
	}

	s.trigger(w, r, TriggerRequest{
		JobType:         JobEmailBatch,
		TenantID:        body.TenantID,
		TemplateID:      body.TemplateID,
		BatchSize:       body.BatchSize,
		MaxEmails:       body.MaxEmails,
		RecipientEmails: body.RecipientEmails,
		UserID:          body.UserID,
		RecipientType:   body.RecipientType,
	})
}

type feesTaxBody struct {
	TenantID            string     `json:"tenantId"`
	EventID             string     `json:"eventId"`
	StartDate           *time.Time `json:"startDate"`
	EndDate             *time.Time `json:"endDate"`
	ForceUpdate         bool       `json:"forceUpdate"`
	UseDefaultDateRange bool       `json:"useDefaultDateRange"`
}

func (s *Server) handleFeesTax(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, TriggerResponse{Success: false, Message: "POST required"})
		return
	}
	var body feesTaxBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err.Error() != "EOF" {
		writeJSON(w, http.StatusBadRequest, TriggerResponse{Success: false, Message: "invalid request body"})
		return
	}

	s.trigger(w, r, TriggerRequest{
		JobType:             JobFeesTaxBackfill,
		TenantID:            body.TenantID,
		EventID:             body.EventID,
		StartDate:           body.StartDate,
		EndDate:             body.EndDate,
		ForceUpdate:         body.ForceUpdate,
		UseDefaultDateRange: body.UseDefaultDateRange,
	})
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request, req TriggerRequest) {
	resp, err := s.orch.Trigger(r.Context(), req, triggeredByFromRequest(r))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, TriggerResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func triggeredByFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Triggered-By"); v != "" {
		return v
	}
	return "api"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
