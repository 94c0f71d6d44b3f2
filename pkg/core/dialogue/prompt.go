package dialogue

import (
	"fmt"
	"strings"
)

// Fixed lines spoken by the assistant.
const (
	apologyText   = "Lamento la confusión. Disculpa las molestias. Que tengas un buen día."
	closingText   = "Perfecto. Fue un placer hablar contigo. ¡Te esperamos en tu primer día! Hasta pronto."
	farewellText  = "Fue un gusto hablar contigo. ¡Hasta pronto!"
	anythingElse  = "¿Algo más en lo que pueda ayudarte?"
	genericAnswer = "Para información más detallada, te sugiero revisar el portal del empleado o consultar con RRHH en tu primer día."
)

// Greeting is the first prompt of every call.
func Greeting(c Company, e Employee) string {
	return fmt.Sprintf("Hola, habla desde %s. ¿Eres %s?", c.Name, e.Name)
}

func reaskText(c Company, e Employee) string {
	return fmt.Sprintf("Hola, te saluda el asistente inteligente de la empresa %s, "+
		"¿podrías confirmar si tu nombre es %s y tu DNI es el %s?", c.Name, e.Name, e.DNI)
}

func welcomeText(c Company, e Employee) string {
	return fmt.Sprintf("¡Bienvenido a nuestra gran familia %s! Estamos muy felices de contar contigo como %s. "+
		"Juntos lograremos todas tus metas. Tu fecha de inicio es el %s. "+
		"¿Hay algo en lo que pueda ayudarte sobre tu incorporación?", c.Name, e.JobTitle, e.StartDate)
}

// ApologyText is spoken when the caller cannot be identified.
func ApologyText() string { return apologyText }

// SystemPrompt builds the instruction that limits the model to the employee
// profile and the company facts.
func SystemPrompt(c Company, e Employee) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Eres el asistente telefónico de recursos humanos de la empresa %s. ", c.Name)
	b.WriteString("Estás hablando por teléfono con un nuevo colaborador que ya confirmó su identidad.\n\n")

	b.WriteString("Datos del colaborador:\n")
	fmt.Fprintf(&b, "- Nombre: %s\n", e.Name)
	fmt.Fprintf(&b, "- DNI: %s\n", e.DNI)
	fmt.Fprintf(&b, "- Puesto: %s\n", e.JobTitle)
	fmt.Fprintf(&b, "- Fecha de inicio: %s\n\n", e.StartDate)

	b.WriteString("Información de la empresa:\n")
	fmt.Fprintf(&b, "- Horario: %s\n", c.Hours)
	fmt.Fprintf(&b, "- Dirección de la oficina: %s\n", c.Address)
	fmt.Fprintf(&b, "- Portal del empleado: %s\n", c.PortalURL)
	fmt.Fprintf(&b, "- Primer día: %s\n\n", c.Onboarding)

	b.WriteString("Reglas:\n")
	b.WriteString("- Responde solo con la información anterior. Si no la tienes, sugiere consultar el portal del empleado o a recursos humanos.\n")
	b.WriteString("- Responde en español, en dos o tres oraciones cortas. Es una llamada telefónica.\n")
	b.WriteString("- No uses listas, viñetas, emojis ni formato.\n")
	b.WriteString("- Si el colaborador no tiene más preguntas, despídete.\n")
	return b.String()
}

// fallbackAnswer picks a fixed answer by topic keyword.
func fallbackAnswer(c Company, tokens []string) string {
	switch {
	case hoursWords.matchTokens(tokens):
		return fmt.Sprintf("El horario es %s.", c.Hours)
	case locationWords.matchTokens(tokens):
		return fmt.Sprintf("La oficina está en %s.", c.Address)
	case startWords.matchTokens(tokens):
		return c.Onboarding
	case portalWords.matchTokens(tokens):
		return fmt.Sprintf("El portal del empleado está en %s.", c.PortalURL)
	default:
		return genericAnswer
	}
}
