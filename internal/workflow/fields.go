package workflow

import (
	"strings"
	"time"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// FieldUpdate carries the optional field writes of an update or a transition
// payload. A nil pointer leaves the field untouched.
type FieldUpdate struct {
	Diagnosis             *string  `json:"diagnosis,omitempty"`
	Solution              *string  `json:"solution,omitempty"`
	Observations          *string  `json:"observations,omitempty"`
	MaterialDescription   *string  `json:"materialDescription,omitempty"`
	MaterialJustification *string  `json:"materialJustification,omitempty"`
	EstimatedHours        *float64 `json:"estimatedHours,omitempty"`
	ActualHours           *float64 `json:"actualHours,omitempty"`
}

type fieldRule struct {
	name    string
	value   func(FieldUpdate) *string
	allowed func(order *domain.ServiceOrder, actor domain.Actor) bool
}

func technicianOnly(_ *domain.ServiceOrder, actor domain.Actor) bool {
	return actor.Role == domain.RoleTecnico
}

func observationWriter(order *domain.ServiceOrder, actor domain.Actor) bool {
	if actor.ID == order.CreatedByID {
		return true
	}
	return actor.Role.In(domain.RoleTecnico, domain.RoleAprovador, domain.RoleGestor, domain.RoleAdmin)
}

var textRules = []fieldRule{
	{"diagnosis", func(u FieldUpdate) *string { return u.Diagnosis }, technicianOnly},
	{"solution", func(u FieldUpdate) *string { return u.Solution }, technicianOnly},
	{"observations", func(u FieldUpdate) *string { return u.Observations }, observationWriter},
	{"materialDescription", func(u FieldUpdate) *string { return u.MaterialDescription }, technicianOnly},
	{"materialJustification", func(u FieldUpdate) *string { return u.MaterialJustification }, technicianOnly},
}

// CheckFieldWrites validates every requested write before anything is
// applied. A single refused field fails the whole update. Every field present
// in the update is checked, blank or not; blanks are no-ops only for writers
// allowed to touch the field.
func CheckFieldWrites(order *domain.ServiceOrder, actor domain.Actor, u FieldUpdate) error {
	for _, rule := range textRules {
		v := rule.value(u)
		if v == nil {
			continue
		}
		if !rule.allowed(order, actor) {
			return errors.UnauthorizedRole("role " + string(actor.Role) + " cannot write " + rule.name)
		}
	}

	hours := []struct {
		name  string
		value *float64
	}{
		{"estimatedHours", u.EstimatedHours},
		{"actualHours", u.ActualHours},
	}
	for _, h := range hours {
		if h.value == nil {
			continue
		}
		if actor.Role != domain.RoleTecnico {
			return errors.UnauthorizedRole("role " + string(actor.Role) + " cannot write " + h.name)
		}
		if *h.value < 0 {
			return errors.InvalidInput(h.name, "hours cannot be negative")
		}
	}
	return nil
}

// ApplyFields writes the non-blank values onto order and returns the names of
// the fields whose value actually changed. Call CheckFieldWrites first.
func ApplyFields(order *domain.ServiceOrder, u FieldUpdate) []string {
	var changed []string

	setText := func(name string, dst **string, v *string) {
		if v == nil {
			return
		}
		trimmed := strings.TrimSpace(*v)
		if trimmed == "" {
			return
		}
		if *dst != nil && **dst == trimmed {
			return
		}
		*dst = &trimmed
		changed = append(changed, name)
	}
	setHours := func(name string, dst **float64, v *float64) {
		if v == nil {
			return
		}
		if *dst != nil && **dst == *v {
			return
		}
		val := *v
		*dst = &val
		changed = append(changed, name)
	}

	setText("diagnosis", &order.Diagnosis, u.Diagnosis)
	setText("solution", &order.Solution, u.Solution)
	setText("observations", &order.Observations, u.Observations)
	setText("materialDescription", &order.MaterialDescription, u.MaterialDescription)
	setText("materialJustification", &order.MaterialJustification, u.MaterialJustification)
	setHours("estimatedHours", &order.EstimatedHours, u.EstimatedHours)
	setHours("actualHours", &order.ActualHours, u.ActualHours)

	return changed
}

// RequireMaterialFields checks the payload of EM_ANALISE -> AGUARDANDO_MATERIAL.
func RequireMaterialFields(u FieldUpdate) error {
	if u.MaterialDescription == nil || strings.TrimSpace(*u.MaterialDescription) == "" {
		return errors.InvalidInput("materialDescription", "material description is required")
	}
	if u.MaterialJustification == nil || strings.TrimSpace(*u.MaterialJustification) == "" {
		return errors.InvalidInput("materialJustification", "material justification is required")
	}
	return nil
}

// ApplyTimestamps sets startedAt and completedAt the first time the order
// reaches EM_EXECUCAO or FINALIZADA. Existing values are never overwritten.
func ApplyTimestamps(order *domain.ServiceOrder, now time.Time) {
	if order.Status == domain.StatusEmExecucao && order.StartedAt == nil {
		t := now
		order.StartedAt = &t
	}
	if order.Status == domain.StatusFinalizada && order.CompletedAt == nil {
		t := now
		order.CompletedAt = &t
	}
}

// Assign sets the assignee. assignedAt is recorded the first time an
// assignee appears and kept across reassignments. It reports whether the
// assignee changed.
func Assign(order *domain.ServiceOrder, technicianID string, now time.Time) bool {
	if order.AssignedToID != nil && *order.AssignedToID == technicianID {
		return false
	}
	id := technicianID
	order.AssignedToID = &id
	if order.AssignedAt == nil {
		t := now
		order.AssignedAt = &t
	}
	return true
}
