package tutor

import "strings"

// FallbackReply answers without the model, matching keywords in the style of
// the persona. Used when the provider is down or misconfigured.
func FallbackReply(message, level string) string {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "fome", "hungry", "hunger", "comer", "eat"):
		response := "Hey there! 😊 To say 'estou com fome' in English, you say: **I'm hungry** or **I am hungry**."
		if level == "A1" || level == "A2" {
			response += "\n\nHere are some other useful phrases for you:\n" +
				"• I'm thirsty = Estou com sede\n" +
				"• I'm tired = Estou cansado\n" +
				"• I'm happy = Estou feliz\n\n" +
				"You're doing great! 🌟"
		}
		return response
	case containsAny(lower, "como", "how", "dizer", "say"):
		return "I'd love to help you translate! 😄 Just tell me what you want to say in Portuguese, " +
			"and I'll teach you the perfect English version. Don't worry about making mistakes - that's how we learn!"
	case containsAny(lower, "hello", "hi", "oi", "olá"):
		return "Hello! It's so great to meet you! 😊 I'm Sarah, your English teacher, and I'm here to help you " +
			"practice English in a fun and easy way. Feel free to ask me anything - I love helping students like you!"
	case containsAny(lower, "help", "ajuda"):
		return "I'm absolutely here to help you learn English! 🎓 Here's what we can do together:\n" +
			"• Ask me how to say something in English\n" +
			"• Send voice messages for pronunciation practice\n" +
			"• Have conversations to build confidence\n" +
			"• Get grammar tips and explanations\n\n" +
			"What would you like to start with today?"
	case containsAny(lower, "obrigad", "thanks", "thank"):
		return "You're so welcome! 😊 It makes me happy to help you learn English. Remember, every question " +
			"you ask and every mistake you make is helping you get better. Keep it up!"
	default:
		return "Hey! I can see you're practicing your English - that's fantastic! 😊 My AI assistant is taking " +
			"a little break right now, but I'm still here to help you. Could you try asking your question in a " +
			"different way? Or maybe tell me what specific English topic you'd like to work on today?"
	}
}

func containsAny(text string, words ...string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
