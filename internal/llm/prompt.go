package llm

import (
	"encoding/base64"

	"github.com/joseph-ayodele/traveler-renamer/constants"
)

// ExtractionPrompt is sent with every document. It fixes the three keys and asks for
// empty strings instead of omissions.
const ExtractionPrompt = `I will provide you with a PDF file. This file has a job traveler document. I want you to extract only the following entities from the document:
1. Customer
2. Part Number
3. Description
I want you to return the extracted data in a JSON format. The JSON should have the following structure:
{
    "Customer": "customer_name",
    "Part Number": "part_number",
    "Description": "description"
}
The values should be the actual values extracted from the document. Just return the JSON object without any additional text or explanation.
If you cannot find any of the entities, return an empty string for that entity.`

// ContentBlock is one block of an Anthropic-style user message.
type ContentBlock struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *DocumentSource `json:"source,omitempty"`
}

// DocumentSource embeds a document inline.
type DocumentSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Message is one conversation turn.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// BuildDocumentMessage packages the PDF (base64) and the fixed prompt as a single user turn.
func BuildDocumentMessage(pdf []byte) Message {
	return Message{
		Role: "user",
		Content: []ContentBlock{
			{
				Type: "document",
				Source: &DocumentSource{
					Type:      "base64",
					MediaType: constants.PDFMediaType,
					Data:      base64.StdEncoding.EncodeToString(pdf),
				},
			},
			{Type: "text", Text: ExtractionPrompt},
		},
	}
}

// ResponseBlock is a content block in a model response.
type ResponseBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// FirstText returns the first text block, which carries the JSON answer.
func FirstText(blocks []ResponseBlock) (string, bool) {
	for _, b := range blocks {
		if b.Type == "text" {
			return b.Text, true
		}
	}
	return "", false
}
