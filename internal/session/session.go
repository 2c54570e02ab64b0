package session

import (
	errs "errors"
	"fmt"

	"storycanvas/internal/api"
)

// DefaultArtStyle matches the backend's fallback style label.
const DefaultArtStyle = "photorealistic cinematic"

// historyContextLimit caps the story-history slice sent on save. The full
// history stays in memory for the live session.
const historyContextLimit = 5

// ErrGenerationInFlight rejects a generation request while another one is
// active. Requests are rejected, not queued.
var ErrGenerationInFlight = errs.New("a generation is already in progress")

// ValidationError is a pre-flight input failure: surfaced to the user,
// no network call issued.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

// Session is the live auth identity. Exactly one per client; cleared
// wholesale on logout or 401.
type Session struct {
	Token       string
	UserID      string
	Username    string
	DisplayName string
	Avatar      string
}

// Name returns the best display label for the header.
func (s Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Username
}

// Scene is one committed unit of story content.
type Scene struct {
	ID           int
	Narrative    string
	ImagePrompt  string
	ImageURL     string // empty while the image is pending
	SummaryPoint string
	ArtStyle     string
}

// StagedScene holds LLM output awaiting user review; at most one exists.
type StagedScene struct {
	Narrative    string
	ImagePrompt  string
	SummaryPoint string
}

// State is all mutable client state. Mutated only through Store methods.
type State struct {
	Session        Session
	StoryHistory   []string
	SceneCounter   int
	Scenes         []Scene // newest first
	SummaryBullets []string
	InitialPrompt  string
	ArtStyle       string

	// Staging: narrative generated but not yet committed.
	Pending *StagedScene
	// PendingSceneID tracks a posted narration awaiting its image; 0 = none.
	PendingSceneID int

	Generating bool
	// UsedRealLLM reflects the last generation response, for the banner.
	UsedRealLLM *bool
}

// resetStory empties all story collections, leaving identity intact.
func (st *State) resetStory() {
	st.StoryHistory = nil
	st.Scenes = nil
	st.SceneCounter = 0
	st.SummaryBullets = nil
	st.InitialPrompt = ""
	if st.ArtStyle == "" {
		st.ArtStyle = DefaultArtStyle
	}
	st.Pending = nil
	st.PendingSceneID = 0
}

// commitNarration turns the staged scene into a committed Scene with a
// placeholder image slot. The new id is one past the highest assigned.
func (st *State) commitNarration() (Scene, error) {
	if st.Pending == nil {
		return Scene{}, errs.New("no narration to post yet")
	}
	st.SceneCounter++
	sc := Scene{
		ID:           st.SceneCounter,
		Narrative:    st.Pending.Narrative,
		ImagePrompt:  st.Pending.ImagePrompt,
		SummaryPoint: st.Pending.SummaryPoint,
		ArtStyle:     st.ArtStyle,
	}
	st.PendingSceneID = sc.ID
	st.StoryHistory = append(st.StoryHistory, sc.Narrative)
	if sc.SummaryPoint != "" {
		st.SummaryBullets = append(st.SummaryBullets, sc.SummaryPoint)
	}
	st.Scenes = append([]Scene{sc}, st.Scenes...)
	return sc, nil
}

// attachImage mutates the scene with the given id in place.
func (st *State) attachImage(id int, url, prompt string) bool {
	for i := range st.Scenes {
		if st.Scenes[i].ID == id {
			st.Scenes[i].ImageURL = url
			if prompt != "" {
				st.Scenes[i].ImagePrompt = prompt
			}
			if st.Pending != nil {
				if st.Pending.SummaryPoint != "" {
					st.Scenes[i].SummaryPoint = st.Pending.SummaryPoint
				}
				if st.Pending.Narrative != "" {
					st.Scenes[i].Narrative = st.Pending.Narrative
				}
			}
			return true
		}
	}
	return false
}

// addScene commits a brand-new scene with its image already attached.
func (st *State) addScene(narrative, prompt, url, summary, artStyle string) Scene {
	st.SceneCounter++
	sc := Scene{
		ID:           st.SceneCounter,
		Narrative:    narrative,
		ImagePrompt:  prompt,
		ImageURL:     url,
		SummaryPoint: summary,
		ArtStyle:     artStyle,
	}
	st.Scenes = append([]Scene{sc}, st.Scenes...)
	return sc
}

// snapshot builds the sanitized save body: only the most recent
// history entries go to the backend, and only primitive string fields.
func (st *State) snapshot() *api.SessionSnapshot {
	history := st.StoryHistory
	if len(history) > historyContextLimit {
		history = history[len(history)-historyContextLimit:]
	}
	snap := &api.SessionSnapshot{
		StoryHistory:   append([]string(nil), history...),
		SceneCounter:   st.SceneCounter,
		SummaryBullets: append([]string(nil), st.SummaryBullets...),
		InitialPrompt:  st.InitialPrompt,
		ArtStyle:       st.ArtStyle,
	}
	for _, sc := range st.Scenes {
		snap.Scenes = append(snap.Scenes, api.SceneRecord{
			ID:           sc.ID,
			Narrative:    sc.Narrative,
			ImagePrompt:  sc.ImagePrompt,
			ImageURL:     sc.ImageURL,
			SummaryPoint: sc.SummaryPoint,
			ArtStyle:     sc.ArtStyle,
		})
	}
	return snap
}

// applySnapshot replaces story state from a loaded snapshot, keeping the
// counter at least as high as the largest scene id so fresh ids stay
// unique after a reload.
func (st *State) applySnapshot(snap *api.SessionSnapshot) {
	st.StoryHistory = append([]string(nil), snap.StoryHistory...)
	st.SummaryBullets = append([]string(nil), snap.SummaryBullets...)
	st.SceneCounter = snap.SceneCounter
	st.Scenes = nil
	for _, rec := range snap.Scenes {
		st.Scenes = append(st.Scenes, Scene{
			ID:           rec.ID,
			Narrative:    rec.Narrative,
			ImagePrompt:  rec.ImagePrompt,
			ImageURL:     rec.ImageURL,
			SummaryPoint: rec.SummaryPoint,
			ArtStyle:     rec.ArtStyle,
		})
		if rec.ID > st.SceneCounter {
			st.SceneCounter = rec.ID
		}
	}
	if snap.InitialPrompt != "" {
		st.InitialPrompt = snap.InitialPrompt
	}
	if snap.ArtStyle != "" {
		st.ArtStyle = snap.ArtStyle
	}
	if st.Session.Username == "" && snap.Username != "" {
		st.Session.Username = snap.Username
	}
	st.Pending = nil
	st.PendingSceneID = 0
}

// DataURL wraps a base64 PNG for embedded display, the shape the
// synchronous image path produces.
func DataURL(b64 string) string { return fmt.Sprintf("data:image/png;base64,%s", b64) }
