package segment

// Exports for black-box tests.
var (
	Validate            = validate
	SplitSentences      = splitSentences
	SplitParagraphs     = splitParagraphs
	SplitPrompt         = splitPrompt
	ClassifyOpenAIError = classifyOpenAIError
)
