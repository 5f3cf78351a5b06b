package chorechart

// Reply texts shown to the end user. Every outcome carries one of these or
// the generated answer, so the chat front end always has something to render.
const (
	InvalidInputText = "I'm sorry, but I couldn't read a question in that message. " +
		"Please type what you'd like help with, such as how to split chores fairly, and try again."

	QuotaExceededText = "I apologize, but the ChoreChart Assistant is currently unavailable due to service limits. " +
		"The system administrator needs to check the OpenAI account billing status or upgrade the plan. " +
		"Please try again later or contact support."

	UpstreamFailureText = "I'm sorry, but I'm currently unable to connect to my knowledge base. " +
		"This could be due to high demand or a temporary service limitation. " +
		"Please try again in a few minutes or contact support if the issue persists."

	RateLimitedText = "You're sending messages a little too quickly. Please wait a moment and try again."

	FaultText = "I'm sorry, but I encountered an error while processing your request. Please try again later."
)
