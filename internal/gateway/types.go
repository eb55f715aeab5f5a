package gateway

import "github.com/shopspring/decimal"

// PreferenceItem is one line of a hosted-checkout preference.
type PreferenceItem struct {
	ID         string
	Title      string
	Quantity   int
	UnitPrice  decimal.Decimal
	CurrencyID string
}

type Payer struct {
	Email string `json:"email"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest describes a hosted-checkout session.
type PreferenceRequest struct {
	Items             []PreferenceItem
	Payer             *Payer
	ExternalReference string
	BackURLs          BackURLs
	AutoReturn        string
	NotificationURL   string
}

// Preference is the gateway's handle on a checkout session.
type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// Payment is the authoritative state of a payment as reported by the gateway.
type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	TransactionAmount decimal.Decimal
	PayerEmail        string
	ExternalReference string
}

// Wire shapes. Amounts go out as JSON numbers.

type preferenceItemBody struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id,omitempty"`
}

type preferenceBody struct {
	Items             []preferenceItemBody `json:"items"`
	Payer             *Payer               `json:"payer,omitempty"`
	ExternalReference string               `json:"external_reference"`
	BackURLs          BackURLs             `json:"back_urls"`
	AutoReturn        string               `json:"auto_return,omitempty"`
	NotificationURL   string               `json:"notification_url,omitempty"`
}

func (r PreferenceRequest) body() preferenceBody {
	items := make([]preferenceItemBody, len(r.Items))
	for i, item := range r.Items {
		items[i] = preferenceItemBody{
			ID:         item.ID,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.InexactFloat64(),
			CurrencyID: item.CurrencyID,
		}
	}
	return preferenceBody{
		Items:             items,
		Payer:             r.Payer,
		ExternalReference: r.ExternalReference,
		BackURLs:          r.BackURLs,
		AutoReturn:        r.AutoReturn,
		NotificationURL:   r.NotificationURL,
	}
}

type paymentBody struct {
	ID                FlexibleID      `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	ExternalReference *string         `json:"external_reference"`
	Payer             *struct {
		Email string `json:"email"`
	} `json:"payer"`
}

func (b paymentBody) toPayment() *Payment {
	p := &Payment{
		ID:                string(b.ID),
		Status:            b.Status,
		StatusDetail:      b.StatusDetail,
		TransactionAmount: b.TransactionAmount,
	}
	if b.ExternalReference != nil {
		p.ExternalReference = *b.ExternalReference
	}
	if b.Payer != nil {
		p.PayerEmail = b.Payer.Email
	}
	return p
}
