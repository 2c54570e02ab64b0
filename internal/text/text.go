package text

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"storycanvas/internal/api"
)

const systemPromptTemplate = `You are an expert narrative and visual storyteller. When given a user's idea, first generate an immersive, cinematic story from that idea, then create a detailed image prompt from the story you generated. Output MUST be valid JSON with these fields:

1. 'narrative': Vivid 150-200 word story paragraph generated from the user's idea with:
   - Sensory details (sight, sound, touch, smell, taste)
   - Clear characters/robots with physical descriptions
   - Dynamic action showing tension and movement
   - Cinematic pacing and descriptive language
   - Meaningful plot advancement

2. 'image_prompt': Highly detailed visual instruction (100-150 words) generated from YOUR story narrative:
   - SPECIFIC visual elements from YOUR narrative (exact robot descriptions, clothing, features)
   - Camera angle, lighting, composition details
   - Environmental and atmospheric specifics
   - Art style: %s
   - MUST perfectly match YOUR narrative characters and action
   - Use descriptive adjectives: dramatic, cinematic, photorealistic, detailed

3. 'summary_point': One concise sentence (max 20 words) of the scene's key event from YOUR story.`

// BuildStoryPayload assembles the provider-shaped narrative request: the
// recent story history as context, the user prompt, and a response schema
// pinning the three output fields.
func BuildStoryPayload(history []string, prompt, artStyle string) map[string]any {
	quoted := make([]string, len(history))
	for i, s := range history {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	contextText := fmt.Sprintf(
		"Story context (last %d scenes): [%s]\n\nContinue the story from this point, focusing on the next action or setting change. Prompt: %s",
		len(history), strings.Join(quoted, ", "), prompt,
	)

	return map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": contextText}}},
		},
		"systemInstruction": map[string]any{
			"parts": []map[string]any{{"text": fmt.Sprintf(systemPromptTemplate, artStyle)}},
		},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"temperature":      0.8,
			"topP":             0.95,
			"responseSchema": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"narrative":     map[string]any{"type": "STRING", "description": "Vivid story paragraph with sensory details and character actions"},
					"image_prompt":  map[string]any{"type": "STRING", "description": "Detailed visual prompt matching narrative exactly"},
					"summary_point": map[string]any{"type": "STRING", "description": "Concise event summary"},
				},
				"required": []string{"narrative", "image_prompt", "summary_point"},
			},
		},
	}
}

// BuildImagePayload assembles the image request. The prompt is enhanced
// with quality settings; count controls how many samples come back.
func BuildImagePayload(prompt, artStyle string, count int) map[string]any {
	enhanced := fmt.Sprintf("%s, style: %s, professional quality, cinematic lighting, high detail, award-winning, intricate details", prompt, artStyle)
	return map[string]any{
		"instances": []map[string]any{{"prompt": enhanced}},
		"parameters": map[string]any{
			"sampleCount":   count,
			"aspectRatio":   "16:9",
			"guidanceScale": 7.5,
			"seed":          rand.Intn(10000),
		},
	}
}

// BuildJobPayload is the async-job variant: no quality suffix, the user's
// edited prompt is combined with the art style directly.
func BuildJobPayload(prompt, artStyle string, count int) map[string]any {
	return map[string]any{
		"instances": []map[string]any{{"prompt": fmt.Sprintf("%s, in the style of %s", prompt, artStyle)}},
		"parameters": map[string]any{
			"sampleCount": count,
			"aspectRatio": "16:9",
		},
	}
}

// NormalizeStory extracts the canonical {narrative, image_prompt,
// summary_point} object from a generation response. The backend's
// normalized_candidate wins; the older provider-shaped candidates
// structure is unwrapped as a deprecated fallback.
func NormalizeStory(resp *api.StoryResponse) (*api.StoryData, error) {
	if resp == nil {
		return nil, errors.New("empty generation response")
	}
	if resp.NormalizedCandidate != nil {
		return resp.NormalizedCandidate, nil
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("LLM returned an empty or invalid content part")
	}
	raw := resp.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("LLM returned an empty or invalid content part")
	}
	var data api.StoryData
	if err := json.Unmarshal([]byte(stripFences(raw)), &data); err != nil {
		return nil, errors.Wrap(err, "parse candidate JSON")
	}
	return &data, nil
}

// stripFences removes a markdown code fence wrapper some providers add
// around JSON output.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
