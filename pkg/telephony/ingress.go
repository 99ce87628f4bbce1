package telephony

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// FreeTrialMinutes is the free-trial allowance enforced at ingress: once
// a business has no active subscription and its agent has accumulated
// at least this many completed minutes, new calls are rejected.
const FreeTrialMinutes = 5.0

// ErrAgentNotFound is returned by AgentResolver when no agent owns the
// called number.
var ErrAgentNotFound = errors.New("telephony: agent not found")

// AgentRef is the minimal agent identity the Ingress Webhook needs to
// allocate a Call and build the media-stream URL.
type AgentRef struct {
	AgentID    string
	BusinessID string
}

// AgentResolver looks an agent up by the carrier's called number.
type AgentResolver interface {
	ResolveAgentByPhoneNumber(ctx context.Context, to string) (AgentRef, error)
}

// SubscriptionPolicy implements the consumed subscription-policy interface of §6.
type SubscriptionPolicy interface {
	HasActiveSubscription(ctx context.Context, businessID string) (bool, error)
	CompletedMinutes(ctx context.Context, agentID string) (float64, error)
}

// CallAllocator creates the Call row at ingress time.
type CallAllocator interface {
	AllocateCall(ctx context.Context, agentID, callerE164 string) (callID string, err error)
}

// IngressHandler implements C8: translating the carrier's call-setup
// webhook into a carrier-protocol reply.
type IngressHandler struct {
	Resolver   AgentResolver
	Policy     SubscriptionPolicy
	Allocator  CallAllocator
	InstanceID string
	Logger     *slog.Logger
}

// ServeHTTP implements http.Handler for the carrier's inbound call webhook.
func (h *IngressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	from := r.FormValue("From")
	to := r.FormValue("To")

	agent, err := h.Resolver.ResolveAgentByPhoneNumber(ctx, to)
	if err != nil {
		h.logger().Warn("ingress: agent not found", "to", to, "err", err)
		writeRejection(w, "Sorry, this agent is not available right now. Goodbye.")
		return
	}

	if err := h.checkTrialPolicy(ctx, agent); err != nil {
		h.logger().Info("ingress: trial exhausted", "agent_id", agent.AgentID, "err", err)
		writeRejection(w, "This agent's trial period has ended. Goodbye.")
		return
	}

	callID, err := h.Allocator.AllocateCall(ctx, agent.AgentID, from)
	if err != nil {
		h.logger().Error("ingress: allocate call failed", "agent_id", agent.AgentID, "err", err)
		writeRejection(w, "Sorry, we're unable to take your call right now. Goodbye.")
		return
	}

	streamURL := fmt.Sprintf("wss://%s/conversation/%s/media-stream/%s", r.Host, agent.AgentID, h.InstanceID)
	writeConnect(w, streamURL, agent.AgentID, callID)
}

func (h *IngressHandler) checkTrialPolicy(ctx context.Context, agent AgentRef) error {
	active, err := h.Policy.HasActiveSubscription(ctx, agent.BusinessID)
	if err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}
	if active {
		return nil
	}
	minutes, err := h.Policy.CompletedMinutes(ctx, agent.AgentID)
	if err != nil {
		return fmt.Errorf("check completed minutes: %w", err)
	}
	if minutes >= FreeTrialMinutes {
		return errTrialExhausted
	}
	return nil
}

var errTrialExhausted = errors.New("telephony: free trial exhausted")

func (h *IngressHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// --- carrier XML reply construction ---

type connectResponse struct {
	XMLName xml.Name    `xml:"Response"`
	Connect connectVerb `xml:"Connect"`
}

type connectVerb struct {
	Stream streamVerb `xml:"Stream"`
}

type streamVerb struct {
	URL        string      `xml:"url,attr"`
	Parameters []paramVerb `xml:"Parameter"`
}

type paramVerb struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type rejectResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     string   `xml:"Say"`
	Hangup  struct{} `xml:"Hangup"`
}

func writeConnect(w http.ResponseWriter, streamURL, agentID, callID string) {
	resp := connectResponse{
		Connect: connectVerb{
			Stream: streamVerb{
				URL: streamURL,
				Parameters: []paramVerb{
					{Name: "agent_id", Value: agentID},
					{Name: "conversation_id", Value: callID},
				},
			},
		},
	}
	writeXML(w, resp)
}

func writeRejection(w http.ResponseWriter, say string) {
	writeXML(w, rejectResponse{Say: say})
}

func writeXML(w http.ResponseWriter, v any) {
	output, err := xml.Marshal(v)
	if err != nil {
		http.Error(w, "failed to generate response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(output)
}
