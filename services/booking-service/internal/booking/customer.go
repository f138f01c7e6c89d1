package booking

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// BuildCustomer merges the base booking fields with the organization's custom fields.
// Values for unknown keys are dropped; known keys are type-checked against the
// organization schema and required ones must be present.
func BuildCustomer(org model.Organization, req Request, now time.Time) (model.Customer, error) {
	fields, err := customFields(org.CustomerFields, req.AdditionalCustomerFields)
	if err != nil {
		return model.Customer{}, err
	}
	return model.Customer{
		OrganizationID: org.ID,
		Email:          req.CustomerEmail,
		Name:           req.CustomerName,
		Phone:          req.CustomerPhone,
		Address:        req.CustomerAddress,
		Notes:          req.CustomerNotes,
		Timezone:       req.Timezone,
		Fields:         fields,
		CreatedAt:      now.UTC(),
	}, nil
}

func customFields(schema []model.CustomerField, values map[string]any) (map[string]any, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(schema))
	problems := map[string]string{}
	for _, f := range schema {
		v, ok := values[f.Key]
		if !ok || v == nil || v == "" {
			if f.Required {
				problems[f.Key] = "is required"
			}
			continue
		}
		cleaned, err := coerceField(f, v)
		if err != nil {
			problems[f.Key] = err.Error()
			continue
		}
		out[f.Key] = cleaned
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func coerceField(f model.CustomerField, v any) (any, error) {
	switch f.Type {
	case model.FieldText, "":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("must be text")
		}
		return strings.TrimSpace(s), nil
	case model.FieldNumber:
		switch n := v.(type) {
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, fmt.Errorf("must be a number")
			}
			return n, nil
		case int:
			return float64(n), nil
		}
		return nil, fmt.Errorf("must be a number")
	case model.FieldBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("must be true or false")
		}
		return b, nil
	case model.FieldSelect:
		s, ok := v.(string)
		if !ok || !slices.Contains(f.Options, s) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(f.Options, ", "))
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported field type %q", f.Type)
}
