package command

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/order"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func (h *Handler) validateCheckout(cmd StartCheckout) error {
	if err := h.validate.Struct(cmd); err != nil {
		return invalidCheckout(describe(err))
	}
	if cmd.ShippingType == order.ShippingPickup && !cmd.ShippingCost.IsZero() {
		return invalidCheckout("pickup orders carry no shipping cost")
	}

	expected := cmd.ShippingCost
	for _, item := range cmd.Items {
		expected = expected.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	// Amounts are stored in cents; clients summing in floating point drift
	// below that.
	if !expected.Round(2).Equal(cmd.Total.Round(2)) {
		return invalidCheckout(fmt.Sprintf("total %s does not match items plus shipping %s",
			cmd.Total.StringFixed(2), expected.StringFixed(2)))
	}
	return nil
}

func invalidCheckout(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidCheckout, msg)
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "StartCheckout.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
