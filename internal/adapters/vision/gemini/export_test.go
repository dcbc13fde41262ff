package gemini

var (
	ClassifyError = classifyError
	FirstText     = firstText
)
