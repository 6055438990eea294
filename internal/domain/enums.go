package domain

// Status is the workflow state of a service order.
type Status string

const (
	StatusAberta                 Status = "ABERTA"
	StatusEmAnalise              Status = "EM_ANALISE"
	StatusAguardandoMaterial     Status = "AGUARDANDO_MATERIAL"
	StatusAguardandoOrcamento    Status = "AGUARDANDO_ORCAMENTO"
	StatusOrcamentosRecebidos    Status = "ORCAMENTOS_RECEBIDOS"
	StatusAguardandoAssinatura   Status = "AGUARDANDO_ASSINATURA"
	StatusAguardandoAprovacao    Status = "AGUARDANDO_APROVACAO" // legacy, no signature step
	StatusMaterialAprovado       Status = "MATERIAL_APROVADO"
	StatusAguardandoDeslocamento Status = "AGUARDANDO_DESLOCAMENTO"
	StatusEmExecucao             Status = "EM_EXECUCAO"
	StatusFinalizada             Status = "FINALIZADA"
	StatusCancelada              Status = "CANCELADA"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{
	StatusAberta,
	StatusEmAnalise,
	StatusAguardandoMaterial,
	StatusAguardandoOrcamento,
	StatusOrcamentosRecebidos,
	StatusAguardandoAssinatura,
	StatusAguardandoAprovacao,
	StatusMaterialAprovado,
	StatusAguardandoDeslocamento,
	StatusEmExecucao,
	StatusFinalizada,
	StatusCancelada,
}

func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusFinalizada || s == StatusCancelada
}

// Role is the sole authorization axis of the workflow.
type Role string

const (
	RoleFuncionario Role = "FUNCIONARIO"
	RoleTecnico     Role = "TECNICO"
	RoleAprovador   Role = "APROVADOR"
	RoleGestor      Role = "GESTOR"
	RoleAdmin       Role = "ADMIN"
)

var Roles = []Role{RoleFuncionario, RoleTecnico, RoleAprovador, RoleGestor, RoleAdmin}

func (r Role) IsValid() bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, v := range roles {
		if v == r {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryHardware   Category = "HARDWARE"
	CategorySoftware   Category = "SOFTWARE"
	CategoryRede       Category = "REDE"
	CategoryImpressora Category = "IMPRESSORA"
	CategoryTelefonia  Category = "TELEFONIA"
	CategorySistema    Category = "SISTEMA"
	CategoryOutros     Category = "OUTROS"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryHardware, CategorySoftware, CategoryRede, CategoryImpressora,
		CategoryTelefonia, CategorySistema, CategoryOutros:
		return true
	}
	return false
}

type Priority string

const (
	PriorityBaixa   Priority = "BAIXA"
	PriorityNormal  Priority = "NORMAL"
	PriorityAlta    Priority = "ALTA"
	PriorityUrgente Priority = "URGENTE"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityBaixa, PriorityNormal, PriorityAlta, PriorityUrgente:
		return true
	}
	return false
}

// QuoteStatus is the lifecycle of a supplier quote.
type QuoteStatus string

const (
	QuoteSolicitado QuoteStatus = "SOLICITADO"
	QuoteRecebido   QuoteStatus = "RECEBIDO"
	QuoteEmAnalise  QuoteStatus = "EM_ANALISE"
	QuoteAprovado   QuoteStatus = "APROVADO"
	QuoteRejeitado  QuoteStatus = "REJEITADO"
)

func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteAprovado || s == QuoteRejeitado
}

// IsPriced reports whether the supplier already answered with prices.
func (s QuoteStatus) IsPriced() bool {
	return s == QuoteRecebido || s == QuoteEmAnalise
}

type PurchaseOrderStatus string

const (
	PurchaseOrderPendente PurchaseOrderStatus = "PENDENTE"
	PurchaseOrderAssinado PurchaseOrderStatus = "ASSINADO"
	PurchaseOrderEntregue PurchaseOrderStatus = "ENTREGUE"
)

type AttachmentKind string

const (
	AttachmentApprovalDocument AttachmentKind = "APPROVAL_DOCUMENT"
	AttachmentSignedDocument   AttachmentKind = "SIGNED_DOCUMENT"
)

// AuditAction tags one audit log row.
type AuditAction string

const (
	ActionOSCreated         AuditAction = "OS_CREATED"
	ActionOSUpdated         AuditAction = "OS_UPDATED"
	ActionOSAssigned        AuditAction = "OS_ASSIGNED"
	ActionMaterialRequested AuditAction = "MATERIAL_REQUESTED"
	ActionQuotesRequested   AuditAction = "QUOTES_REQUESTED"
	ActionQuoteReceived     AuditAction = "QUOTE_RECEIVED"
	ActionQuoteInReview     AuditAction = "QUOTE_IN_REVIEW"
	ActionQuoteRejected     AuditAction = "QUOTE_REJECTED"
	ActionPurchaseApproved  AuditAction = "PURCHASE_APPROVED"
	ActionPDFGerado         AuditAction = "PDF_GERADO"
	ActionDocumentoAnexado  AuditAction = "DOCUMENTO_ANEXADO"
	ActionMaterialApproved  AuditAction = "MATERIAL_APPROVED"
	ActionPurchaseDelivered AuditAction = "PURCHASE_DELIVERED"
)

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationCreated           NotificationType = "OS_CREATED"
	NotificationStatusChanged     NotificationType = "OS_STATUS_CHANGED"
	NotificationUpdated           NotificationType = "OS_UPDATED"
	NotificationAssigned          NotificationType = "OS_ASSIGNED"
	NotificationMaterialRequested NotificationType = "MATERIAL_REQUESTED"
	NotificationQuotesRequested   NotificationType = "QUOTES_REQUESTED"
	NotificationQuoteReceived     NotificationType = "QUOTE_RECEIVED"
	NotificationQuoteRejected     NotificationType = "QUOTE_REJECTED"
	NotificationSignaturePending  NotificationType = "SIGNATURE_PENDING"
	NotificationMaterialApproved  NotificationType = "MATERIAL_APPROVED"
	NotificationMaterialDelivered NotificationType = "MATERIAL_DELIVERED"
)
