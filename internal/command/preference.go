package command

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/gateway"
)

const (
	shippingLineID    = "shipping"
	shippingLineTitle = "Envío"
	autoReturn        = "approved"
)

func (h *Handler) preferenceRequest(o *order.Order, buyerEmail string) gateway.PreferenceRequest {
	items := make([]gateway.PreferenceItem, 0, len(o.Items)+1)
	for _, item := range o.Items {
		var id string
		if item.ProductID != nil {
			id = strconv.FormatInt(*item.ProductID, 10)
		}
		items = append(items, gateway.PreferenceItem{
			ID:         id,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.Price,
			CurrencyID: h.settings.Currency,
		})
	}
	if o.ShippingCost.GreaterThan(decimal.Zero) {
		items = append(items, gateway.PreferenceItem{
			ID:         shippingLineID,
			Title:      shippingLineTitle,
			Quantity:   1,
			UnitPrice:  o.ShippingCost,
			CurrencyID: h.settings.Currency,
		})
	}

	req := gateway.PreferenceRequest{
		Items:             items,
		ExternalReference: o.ExternalReference,
		BackURLs:          backURLs(h.settings.PublicSiteURL),
		AutoReturn:        autoReturn,
		NotificationURL:   h.settings.NotificationURL,
	}
	if buyerEmail != "" {
		req.Payer = &gateway.Payer{Email: buyerEmail}
	}
	return req
}

func backURLs(site string) gateway.BackURLs {
	base := strings.TrimRight(site, "/") + "/profile?payment="
	return gateway.BackURLs{
		Success: base + "success",
		Failure: base + "failure",
		Pending: base + "pending",
	}
}
