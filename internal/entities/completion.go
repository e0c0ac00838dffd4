package entities

// Media is an image attached to a question.
type Media struct {
	Data     []byte
	MimeType string
}

type CompletionStatus string

const (
	StatusCompleted  CompletionStatus = "completed"
	StatusIncomplete CompletionStatus = "incomplete"
)

// CompletionRequest is one provider call. A non-empty ContinuationHandle
// asks the provider to resume a previous incomplete generation.
type CompletionRequest struct {
	Prompt             string
	Media              *Media
	Model              string // empty means the provider's default
	MaxOutputTokens    int
	ContinuationHandle string
}

type CompletionResponse struct {
	Text               string
	Status             CompletionStatus
	ContinuationHandle string
	Model              string
	TotalTokens        int
}
