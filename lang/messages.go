package lang

import "fmt"

// Message keys.
const (
	DemoExhausted    = "demo_exhausted"
	SignInRequired   = "sign_in_required"
	PremiumOnly      = "premium_required"
	GenerationsBadge = "generations_left"
)

var messages = map[string]map[string]string{
	"en": {
		DemoExhausted:    "You've used all your free demo generations. Sign up to keep creating.",
		SignInRequired:   "Sign in to use this feature.",
		PremiumOnly:      "This feature is available on the Premium plan.",
		GenerationsBadge: "%d free generations left",
	},
	"es": {
		DemoExhausted:    "Has usado todas tus generaciones gratuitas de la demo. Regístrate para seguir creando.",
		SignInRequired:   "Inicia sesión para usar esta función.",
		PremiumOnly:      "Esta función está disponible en el plan Premium.",
		GenerationsBadge: "%d generaciones gratuitas restantes",
	},
	"fr": {
		DemoExhausted:    "Vous avez utilisé toutes vos générations gratuites. Inscrivez-vous pour continuer.",
		SignInRequired:   "Connectez-vous pour utiliser cette fonctionnalité.",
		PremiumOnly:      "Cette fonctionnalité est disponible avec l'offre Premium.",
		GenerationsBadge: "%d générations gratuites restantes",
	},
	"de": {
		DemoExhausted:    "Du hast alle kostenlosen Demo-Generierungen verbraucht. Registriere dich, um weiterzumachen.",
		SignInRequired:   "Melde dich an, um diese Funktion zu nutzen.",
		PremiumOnly:      "Diese Funktion ist im Premium-Tarif verfügbar.",
		GenerationsBadge: "Noch %d kostenlose Generierungen",
	},
}

// Supported lists the languages with translated prompts.
func Supported() []string { return []string{"en", "es", "fr", "de"} }

// Message returns the text for key in language, falling back to English.
// Extra args are applied with fmt.Sprintf.
func Message(language, key string, args ...any) string {
	m, ok := messages[language]
	if !ok {
		m = messages[Default]
	}
	s, ok := m[key]
	if !ok {
		s = messages[Default][key]
	}
	if len(args) > 0 {
		return fmt.Sprintf(s, args...)
	}
	return s
}
