package webhook

import (
	"encoding/json"
	"strings"

	"github.com/example/ec-storefront/internal/gateway"
)

// Notification is the processor's webhook body. Only the event kind and the
// payment id are read; any status it carries is ignored in favor of the
// gateway's own record.
type Notification struct {
	Type     string `json:"type"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Data     *struct {
		ID gateway.FlexibleID `json:"id"`
	} `json:"data"`
}

// ParseNotification decodes a webhook body.
func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// IsPayment reports whether the notification concerns a payment.
func (n *Notification) IsPayment() bool {
	return n.Type == "payment" || strings.Contains(n.Action, "payment")
}

// PaymentID returns data.id, or else the last path segment of resource.
func (n *Notification) PaymentID() string {
	if n.Data != nil && n.Data.ID != "" {
		return string(n.Data.ID)
	}
	resource := strings.TrimRight(strings.TrimSpace(n.Resource), "/")
	if resource == "" {
		return ""
	}
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		return resource[i+1:]
	}
	return resource
}
