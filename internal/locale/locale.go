// Package locale holds the user-facing strings of the client and picks the
// language they are shown in.
package locale

import (
	"fmt"

	"golang.org/x/text/language"
)

// Supported languages; the first entry is the fallback.
var supported = []language.Tag{
	language.English,
	language.Romanian,
}

var matcher = language.NewMatcher(supported)

// Match returns the supported base language ("en" or "ro") closest to tag.
// Unknown or malformed tags fall back to English.
func Match(tag string) string {
	t, _ := language.MatchStrings(matcher, tag)
	base, _ := t.Base()
	return base.String()
}

// Key names a catalog entry.
type Key string

const (
	Greeting      Key = "greeting"
	ChatFallback  Key = "chat_fallback"
	Prompt        Key = "prompt"
	LoginRequired Key = "login_required"
	LoggedIn      Key = "logged_in"
	LoggedOut     Key = "logged_out"
	ResetDone     Key = "reset_done"
	AuthFailed    Key = "auth_failed"
	Busy          Key = "busy"
	TooLong       Key = "too_long"
	Help          Key = "help"
	Thinking      Key = "thinking"
)

var catalog = map[Key]map[string]string{
	Greeting: {
		"en": "Hi there! I'm Hawy the Hedgehog! 🦔 I'm super excited to teach you all about TaeKwon-Do! Ask me anything about patterns, kicks, blocks or punches! Let's learn together! 🥋",
		"ro": "Salutare! Eu sunt Hawy Ariciul! 🦔 Sunt super încântat să te învăț totul despre TaeKwon-Do! Întreabă-mă orice despre tull-uri, lovituri cu piciorul, blocaje sau lovituri de pumn! Haide să învățăm împreună! 🥋",
	},
	ChatFallback: {
		"en": "Oops! I had trouble understanding that. Try again! 🦔",
		"ro": "Hopa! Nu am reușit să înțeleg. Mai încearcă o dată! 🦔",
	},
	Prompt: {
		"en": "you> ",
		"ro": "tu> ",
	},
	LoginRequired: {
		"en": "Please /login <email> <password> or /signup <name> <email> <password> first.",
		"ro": "Te rog mai întâi /login <email> <parolă> sau /signup <nume> <email> <parolă>.",
	},
	LoggedIn: {
		"en": "Welcome, %s!",
		"ro": "Bine ai venit, %s!",
	},
	LoggedOut: {
		"en": "You are logged out.",
		"ro": "Ai ieșit din cont.",
	},
	ResetDone: {
		"en": "Started a new conversation.",
		"ro": "Am început o conversație nouă.",
	},
	AuthFailed: {
		"en": "Authentication failed: %s",
		"ro": "Autentificare eșuată: %s",
	},
	Busy: {
		"en": "Hawy is still answering, please wait.",
		"ro": "Hawy încă răspunde, te rog așteaptă.",
	},
	TooLong: {
		"en": "That message is too long (max %d characters).",
		"ro": "Mesajul este prea lung (maxim %d caractere).",
	},
	Help: {
		"en": "Commands: /reset /logout /login /signup /lang <en|ro> /history /help /quit",
		"ro": "Comenzi: /reset /logout /login /signup /lang <en|ro> /history /help /quit",
	},
	Thinking: {
		"en": "Hawy is thinking…",
		"ro": "Hawy se gândește…",
	},
}

// Text returns the entry for key in lang, falling back to English.
func Text(lang string, key Key) string {
	entry, ok := catalog[key]
	if !ok {
		return string(key)
	}
	if text, ok := entry[Match(lang)]; ok {
		return text
	}
	return entry["en"]
}

// Format is Text followed by fmt.Sprintf.
func Format(lang string, key Key, a ...any) string {
	return fmt.Sprintf(Text(lang, key), a...)
}
