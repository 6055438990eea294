package service

import (
	"bytes"
	"html/template"
	"time"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/document"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
)

var quoteRequestTemplate = template.Must(template.New("quote_request").Funcs(emailFuncs).Parse(`
<p>Prezado(a) fornecedor(a) <strong>{{.Supplier}}</strong>,</p>
<p>A Prefeitura Municipal de Monções solicita orçamento para os itens abaixo,
referentes à ordem de serviço <strong>{{.OrderNumber}}</strong>.</p>
<table border="1" cellpadding="4" cellspacing="0">
  <tr><th>Item</th><th>Quantidade</th></tr>
  {{range .Items}}<tr><td>{{.Description}}</td><td>{{.Quantity}}</td></tr>{{end}}
</table>
<p>Prazo para resposta: {{date .Validity}}.</p>
{{if .Observations}}<p>Observações: {{.Observations}}</p>{{end}}
<p>Departamento de Tecnologia da Informação</p>
`))

var quoteApprovedTemplate = template.Must(template.New("quote_approved").Funcs(emailFuncs).Parse(`
<p>Prezado(a) fornecedor(a) <strong>{{.Supplier}}</strong>,</p>
<p>Seu orçamento para a ordem de serviço <strong>{{.OrderNumber}}</strong> foi aprovado.
O pedido de compra <strong>{{.PurchaseOrderNumber}}</strong> no valor de <strong>{{.Total}}</strong>
aguarda assinatura e será enviado em seguida.</p>
{{if .DeliveryAddress}}<p>Endereço de entrega: {{.DeliveryAddress}}</p>{{end}}
<p>Departamento de Tecnologia da Informação</p>
`))

var emailFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("02/01/2006") },
}

type quoteRequestEmail struct {
	Supplier     string
	OrderNumber  string
	Items        []domain.QuoteItem
	Validity     time.Time
	Observations string
}

type quoteApprovedEmail struct {
	Supplier            string
	OrderNumber         string
	PurchaseOrderNumber string
	Total               string
	DeliveryAddress     string
}

func renderQuoteRequest(data quoteRequestEmail) (string, error) {
	var buf bytes.Buffer
	if err := quoteRequestTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderQuoteApproved(po *domain.PurchaseOrder, supplier *domain.Supplier, orderNumber string) (string, error) {
	data := quoteApprovedEmail{
		Supplier:            supplier.Name,
		OrderNumber:         orderNumber,
		PurchaseOrderNumber: po.Number,
		Total:               document.FormatBRL(po.TotalValue),
	}
	if po.DeliveryAddress != nil {
		data.DeliveryAddress = *po.DeliveryAddress
	}

	var buf bytes.Buffer
	if err := quoteApprovedTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
