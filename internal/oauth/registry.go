package oauth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/dropDatabas3/socialauth/internal/validation"
)

// Registry es el allow-list de providers. Es read-only después de NewRegistry.
type Registry struct {
	providers map[string]ProviderConfig
	ids       []string
}

// NewRegistry valida y carga las configuraciones.
//
// Un provider habilitado y no opcional al que le faltan credenciales es un
// error de configuración: el caller debe abortar el arranque. Uno opcional en
// la misma situación queda deshabilitado con un warning.
func NewRegistry(cfgs []ProviderConfig) (*Registry, error) {
	log := logger.L().With(logger.Component("oauth.registry"))

	r := &Registry{providers: make(map[string]ProviderConfig, len(cfgs))}
	var errs []error

	for _, c := range cfgs {
		c.ID = normalizeID(c.ID)
		if c.ID == "" {
			errs = append(errs, errors.New("provider with empty id"))
			continue
		}
		if !validation.ValidProviderID(c.ID) {
			errs = append(errs, fmt.Errorf("provider %q: invalid id", c.ID))
			continue
		}
		if !c.Enabled {
			continue
		}
		if _, dup := r.providers[c.ID]; dup {
			errs = append(errs, fmt.Errorf("provider %q configured twice", c.ID))
			continue
		}

		if missing := missingFields(c); len(missing) > 0 {
			if c.Optional {
				log.Warn("optional provider disabled: incomplete configuration",
					logger.Provider(c.ID),
					logger.String("missing", strings.Join(missing, ",")),
				)
				continue
			}
			errs = append(errs, fmt.Errorf("provider %q enabled but missing %s", c.ID, strings.Join(missing, ", ")))
			continue
		}

		if bad := validation.InvalidScopes(c.Scope); len(bad) > 0 {
			errs = append(errs, fmt.Errorf("provider %q: invalid scope %q", c.ID, strings.Join(bad, " ")))
			continue
		}

		r.providers[c.ID] = c
		r.ids = append(r.ids, c.ID)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.Strings(r.ids)
	return r, nil
}

// Resolve devuelve la configuración del provider o ErrNotConfigured.
func (r *Registry) Resolve(providerID string) (ProviderConfig, error) {
	c, ok := r.providers[normalizeID(providerID)]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %q", ErrNotConfigured, providerID)
	}
	return c, nil
}

// IDs devuelve los providers habilitados, ordenados.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func missingFields(c ProviderConfig) []string {
	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if strings.TrimSpace(c.RedirectURI) == "" {
		missing = append(missing, "redirect_uri")
	}
	if c.NeedsDiscovery() && strings.TrimSpace(c.Issuer) == "" {
		missing = append(missing, "issuer")
	}
	return missing
}
