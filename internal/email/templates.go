package email

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	Title    string
	Quantity int
	Price    decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

var funcs = template.FuncMap{"amount": formatAmount}

var paymentConfirmationTmpl = template.Must(template.New("confirmation").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1f6f50; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">¡Gracias por tu compra!</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Tu pago fue aprobado y ya estamos preparando tu pedido.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Pedido</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">#{{.OrderID}}</p>
		</div>

		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Producto</th>
					<th style="padding: 12px; text-align: center;">Cantidad</th>
					<th style="padding: 12px; text-align: right;">Precio</th>
					<th style="padding: 12px; text-align: right;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
				{{- range .Items}}
				<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.Title}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">${{amount .Price}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">${{amount .Subtotal}}</td>
				</tr>
				{{- end}}
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Total pagado</span>
			<span style="font-size: 24px; font-weight: bold; color: #1f6f50; margin-left: 10px;">${{amount .Amount}}</span>
		</div>

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">Referencia de pago: {{.PaymentID}}</p>
	</div>
</body>
</html>`))

var adminAlertTmpl = template.Must(template.New("admin").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h2 style="margin-top: 0;">¡Nuevo pago aprobado!</h2>
	<p>Se recibió un pago de <strong>${{amount .Amount}}</strong> de {{if .PayerEmail}}{{.PayerEmail}}{{else}}Cliente{{end}}.</p>
	<ul>
		<li>Pedido: #{{.OrderID}}</li>
		<li>Referencia: {{.Reference}}</li>
		<li>Pago: {{.PaymentID}}</li>
	</ul>
	{{- if .Items}}
	<ul>
		{{- range .Items}}
		<li>{{.Quantity}} x {{.Title}}</li>
		{{- end}}
	</ul>
	{{- end}}
</body>
</html>`))

// BuildPaymentConfirmationBody builds the HTML body sent to the buyer.
func BuildPaymentConfirmationBody(r Receipt) (string, error) {
	return render(paymentConfirmationTmpl, r)
}

// BuildAdminPaymentAlertBody builds the HTML body sent to the shop owner.
func BuildAdminPaymentAlertBody(r Receipt) (string, error) {
	return render(adminAlertTmpl, r)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatAmount renders an amount with two decimals and comma separators.
func formatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac := fixed[:len(fixed)-3], fixed[len(fixed)-3:]

	var result strings.Builder
	if d.IsNegative() {
		result.WriteString("-")
	}
	remainder := len(intPart) % 3
	if remainder > 0 {
		result.WriteString(intPart[:remainder])
	}
	for i := remainder; i < len(intPart); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(intPart[i : i+3])
	}
	result.WriteString(frac)
	return result.String()
}
