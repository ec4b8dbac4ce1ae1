// Package vision provides the optional second-opinion verifier: it sends a
// lost-pet photo and a found-pet photo to a vision-language model and parses
// the semi-structured verdict into a probability and rationale.
package vision

import (
	"context"
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/reunite-labs/petmatch/internal/model"
)

const defaultModel = "claude-sonnet-4-5-20250929"

const verifyInstruction = `These are two photos of pets from separate lost and found reports. ` +
	`Judge whether they show the same animal. Respond with exactly two lines:
Match Probability: <0-100>%
Rationale: <one short sentence>`

// Client verifies whether two pet photos show the same animal.
type Client interface {
	Verify(ctx context.Context, imageA, imageB []byte, mediaType string) (*model.VerificationSummary, error)
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
	model  string
}

// NewClient creates a vision verifier backed by the SDK. An empty model
// falls back to the default.
func NewClient(apiKey, modelID string) Client {
	if modelID == "" {
		modelID = defaultModel
	}
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
		model: modelID,
	}
}

// Verify sends both images with the comparison instruction. An answer the
// parser cannot understand yields an unavailable verdict, not an error.
func (c *sdkClient) Verify(ctx context.Context, imageA, imageB []byte, mediaType string) (*model.VerificationSummary, error) {
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 256,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(
				sdk.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(imageA)),
				sdk.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(imageB)),
				sdk.NewTextBlock(verifyInstruction),
			),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "vision: create message")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		text.WriteString(block.Text)
	}

	verdict := ParseVerdict(text.String())
	return &verdict, nil
}

var probabilityRe = regexp.MustCompile(`(?i)match probability:\s*(\d{1,3})\s*%`)

// ParseVerdict extracts the probability line and the following rationale
// from the model's free-text answer. Anything unparseable yields an
// unavailable verdict.
func ParseVerdict(text string) model.VerificationSummary {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		m := probabilityRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		prob, err := strconv.Atoi(m[1])
		if err != nil || prob < 0 || prob > 100 {
			continue
		}

		rationale := ""
		for _, next := range lines[i+1:] {
			next = strings.TrimSpace(next)
			if next == "" {
				continue
			}
			rationale = strings.TrimSpace(strings.TrimPrefix(next, "Rationale:"))
			break
		}

		return model.VerificationSummary{
			Available:   true,
			Probability: prob,
			Rationale:   rationale,
		}
	}
	return model.VerificationSummary{Available: false}
}
