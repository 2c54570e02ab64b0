package session

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"storycanvas/internal/api"
	"storycanvas/internal/text"
)

// GenerateNarrative runs the LLM call for the given user prompt and
// stages the result for review. The full story history rides along as
// context; only the persisted snapshot is capped.
func (s *Store) GenerateNarrative(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return &ValidationError{Reason: "enter a prompt first"}
	}
	if err := s.beginGeneration(); err != nil {
		return err
	}
	defer s.endGeneration()

	s.mu.Lock()
	history := append([]string(nil), s.state.StoryHistory...)
	artStyle := s.state.ArtStyle
	first := s.state.InitialPrompt == ""
	s.mu.Unlock()

	resp, err := s.api.GeneratePrompt(ctx, text.BuildStoryPayload(history, prompt, artStyle))
	if err != nil {
		return err
	}
	data, err := text.NormalizeStory(resp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if first {
		s.state.InitialPrompt = prompt
	}
	// Summary bullets are recorded at commit, not here: a staged
	// narrative may be regenerated or discarded without being posted.
	s.state.Pending = &StagedScene{
		Narrative:    data.Narrative,
		ImagePrompt:  data.ImagePrompt,
		SummaryPoint: data.SummaryPoint,
	}
	if resp.UsedRealLLM != nil {
		used := *resp.UsedRealLLM
		s.state.UsedRealLLM = &used
	}
	s.mu.Unlock()
	return nil
}

// PostNarration commits the staged narrative as a scene with an empty
// image slot and persists the session.
func (s *Store) PostNarration(ctx context.Context) (Scene, error) {
	s.mu.Lock()
	scene, err := s.state.commitNarration()
	s.mu.Unlock()
	if err != nil {
		return Scene{}, err
	}
	s.Save(ctx)
	return scene, nil
}

// GenerateImage produces images for the staged prompt. A posted
// narration gets a single image attached to its scene; otherwise three
// standalone scenes are created, one per image. The async job path is
// tried first; any polling failure short of an auth expiry falls back
// to exactly one synchronous attempt.
func (s *Store) GenerateImage(ctx context.Context, editedPrompt string) error {
	editedPrompt = strings.TrimSpace(editedPrompt)
	if editedPrompt == "" {
		return &ValidationError{Reason: "image prompt cannot be empty"}
	}
	if err := s.beginGeneration(); err != nil {
		return err
	}
	defer s.endGeneration()

	s.mu.Lock()
	artStyle := s.state.ArtStyle
	pendingID := s.state.PendingSceneID
	s.mu.Unlock()

	count := 3
	if pendingID != 0 {
		count = 1
	}

	urls, err := s.imageURLs(ctx, editedPrompt, artStyle, count)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return errors.New("image generation returned no images")
	}

	s.mu.Lock()
	if pendingID != 0 {
		if !s.state.attachImage(pendingID, urls[0], editedPrompt) {
			s.log.Warn().Int("scene", pendingID).Msg("pending scene vanished before image attach")
		}
	} else {
		narrative := editedPrompt
		summary := ""
		if p := s.state.Pending; p != nil {
			narrative = p.Narrative
			summary = p.SummaryPoint
		}
		for _, u := range urls {
			s.state.addScene(narrative, editedPrompt, u, summary, artStyle)
		}
		// one history entry and one bullet for the batch, not one per image
		s.state.StoryHistory = append(s.state.StoryHistory, narrative)
		if summary != "" {
			s.state.SummaryBullets = append(s.state.SummaryBullets, summary)
		}
	}
	s.state.Pending = nil
	s.state.PendingSceneID = 0
	s.mu.Unlock()

	s.Save(ctx)
	return nil
}

// imageURLs runs the async enqueue+poll path with the one-shot
// synchronous fallback, returning displayable image URLs either way.
func (s *Store) imageURLs(ctx context.Context, prompt, artStyle string, count int) ([]string, error) {
	jobID, err := s.api.EnqueueImageJob(ctx, text.BuildJobPayload(prompt, artStyle, count))
	if err == nil {
		result, perr := s.api.PollImageJob(ctx, jobID)
		if perr == nil {
			if len(result.FileURLs) > 0 {
				return result.FileURLs, nil
			}
			return result.Files, nil
		}
		if errors.Is(perr, api.ErrUnauthorized) {
			return nil, perr
		}
		s.log.Warn().Err(perr).Str("job", jobID).Msg("async image job failed, trying synchronous generation")
	} else {
		if errors.Is(err, api.ErrUnauthorized) {
			return nil, err
		}
		s.log.Warn().Err(err).Msg("image job enqueue failed, trying synchronous generation")
	}

	resp, serr := s.api.GenerateImage(ctx, text.BuildImagePayload(prompt, artStyle, count))
	if serr != nil {
		return nil, errors.Wrap(serr, "synchronous fallback failed")
	}
	urls := make([]string, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		if p.BytesBase64Encoded != "" {
			urls = append(urls, DataURL(p.BytesBase64Encoded))
		}
	}
	return urls, nil
}

// beginGeneration takes the single generation slot; concurrent requests
// are rejected outright.
func (s *Store) beginGeneration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Generating {
		return ErrGenerationInFlight
	}
	s.state.Generating = true
	return nil
}

func (s *Store) endGeneration() {
	s.mu.Lock()
	s.state.Generating = false
	s.mu.Unlock()
}
