package dialogue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v2"
)

// Company holds the facts the assistant may answer from.
type Company struct {
	Name       string `json:"name" yaml:"name"`
	Hours      string `json:"hours" yaml:"hours"`
	Address    string `json:"address" yaml:"address"`
	PortalURL  string `json:"portal_url" yaml:"portal_url"`
	Onboarding string `json:"onboarding" yaml:"onboarding"`
}

// DefaultCompany returns the profile of the deployment the bot was built for.
func DefaultCompany() Company {
	return Company{
		Name:      "SALESLAND",
		Hours:     "Lunes a Viernes de 9am a 6pm, con descanso de 1pm a 2pm",
		Address:   "Jirón Horacio Cachay Díaz 393, La Victoria",
		PortalURL: "https://peru.salesland.net:8088/salesland-autoservicios-web",
		Onboarding: "Debes acercarte a la oficina en tu fecha de inicio, en el horario correspondiente. " +
			"Preséntate en recepción y serás asistido por nuestro personal de RRHH o tu Jefe de Área.",
	}
}

// LoadCompany reads a company profile from a YAML or JSON file. Fields left
// empty keep their defaults. An empty path returns DefaultCompany.
func LoadCompany(path string) (Company, error) {
	c := DefaultCompany()
	if strings.TrimSpace(path) == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read company profile: %w", err)
	}

	var loaded Company
	if filepath.Ext(path) == ".json" {
		if err := json.Unmarshal(data, &loaded); err != nil {
			return c, fmt.Errorf("parse json company profile: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &loaded); err != nil {
		return c, fmt.Errorf("parse yaml company profile: %w", err)
	}

	if loaded.Name != "" {
		c.Name = loaded.Name
	}
	if loaded.Hours != "" {
		c.Hours = loaded.Hours
	}
	if loaded.Address != "" {
		c.Address = loaded.Address
	}
	if loaded.PortalURL != "" {
		c.PortalURL = loaded.PortalURL
	}
	if loaded.Onboarding != "" {
		c.Onboarding = loaded.Onboarding
	}
	return c, nil
}
