package assistant

import "bnrag/internal/domain"

// SystemInstructions constrains the generator to the supplied context. The
// insufficient-information sentence is what callers rely on to spot unanswerable questions.
const SystemInstructions = "You are an AI assistant designed to answer questions strictly based on the provided text context. " +
	"If the answer is explicitly found in the context, provide it directly. " +
	"If the answer is NOT found or cannot be directly inferred from the context, you MUST state 'I don't have enough information from the provided text to answer this question.' " +
	"Do NOT use external knowledge. " +
	"Ensure your answer is in the same language as the user's query (e.g., if the query is in Bangla, answer in Bangla)." +
	"Be concise and to the point."

// Apology is returned when an external provider fails. It is bilingual because
// the failure may happen before the query language matters.
const Apology = "দুঃখিত, উত্তর তৈরি করার সময় একটি ত্রুটি হয়েছে। (Sorry, I encountered an error while trying to generate an answer.)"

var noInformation = map[domain.Language]string{
	domain.Bangla:  "দুঃখিত, এই প্রশ্নের উত্তর আমার কাছে নেই।",
	domain.English: "I'm sorry, I don't have information about this question.",
}

// NoInformation returns the templated answer used when retrieval finds nothing.
func NoInformation(lang domain.Language) string {
	if msg, ok := noInformation[lang]; ok {
		return msg
	}
	return noInformation[domain.English]
}
