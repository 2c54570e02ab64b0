package api

// Wire types for the story-canvas backend. Field names follow the
// backend's JSON exactly: auth endpoints use snake_case, session
// snapshots use the camelCase keys the web client established.

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the session issued by /auth/login and /auth/firebase.
type AuthResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// RegisterResponse acknowledges /auth/register; login is a separate call.
type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// FirebaseUserHint carries non-sensitive profile fields alongside the ID
// token so dev backends without the Firebase Admin SDK can still build a
// session.
type FirebaseUserHint struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	UID         string `json:"uid,omitempty"`
}

type firebaseExchangeRequest struct {
	IDToken string            `json:"idToken"`
	User    *FirebaseUserHint `json:"user,omitempty"`
}

// FirebaseExchangeResponse tolerates both flat and nested user shapes the
// backend has returned across versions.
type FirebaseExchangeResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	User        *struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		Username    string `json:"username"`
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		Avatar      string `json:"avatar"`
		Picture     string `json:"picture"`
	} `json:"user,omitempty"`
}

// SceneRecord is one committed scene as persisted by the backend.
type SceneRecord struct {
	ID           int    `json:"id"`
	Narrative    string `json:"narrative"`
	ImagePrompt  string `json:"imagePrompt"`
	ImageURL     string `json:"imageUrl,omitempty"`
	SummaryPoint string `json:"summaryPoint"`
	ArtStyle     string `json:"artStyle"`
}

// SessionSnapshot is the story/load-session and story/save-session body.
type SessionSnapshot struct {
	StoryHistory   []string      `json:"storyHistory"`
	SceneCounter   int           `json:"sceneCounter"`
	Scenes         []SceneRecord `json:"scenes"`
	SummaryBullets []string      `json:"summaryBullets"`
	InitialPrompt  string        `json:"initialPrompt"`
	ArtStyle       string        `json:"artStyle"`
	Username       string        `json:"username,omitempty"`
}

// StoryData is the canonical narrative-generation result.
type StoryData struct {
	Narrative    string `json:"narrative"`
	ImagePrompt  string `json:"image_prompt"`
	SummaryPoint string `json:"summary_point"`
}

// StoryResponse is the raw /ai/generate-prompt body. NormalizedCandidate
// is canonical; the provider-shaped Candidates structure is deprecated
// but still unwrapped when the normalized object is absent.
type StoryResponse struct {
	NormalizedCandidate *StoryData `json:"normalized_candidate,omitempty"`
	Candidates          []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates,omitempty"`
	UsedRealLLM *bool `json:"used_real_llm,omitempty"`
}

// ImageResponse is the synchronous /ai/generate-image body.
type ImageResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
	} `json:"predictions"`
	Cached bool `json:"cached,omitempty"`
}

type enqueueResponse struct {
	JobID string `json:"job_id"`
}

// JobResult is the payload attached to a finished image job.
type JobResult struct {
	Files    []string `json:"files"`
	FileURLs []string `json:"file_urls"`
	Error    string   `json:"error,omitempty"`
}

// JobStatusResponse reports one poll of /ai/generate-image-job/{id}.
type JobStatusResponse struct {
	Status string     `json:"status"` // queued|running|done|error
	Result *JobResult `json:"result,omitempty"`
}

// ProviderStatus is display-only feature/provider info.
type ProviderStatus struct {
	LLMProvider     string `json:"llm_provider"`
	ImageProvider   string `json:"image_provider"`
	UseMockFallback bool   `json:"use_mock_fallback"`
}

// CacheEntry is server cache metadata; the client only lists and deletes.
type CacheEntry struct {
	Key    string   `json:"key"`
	Prompt string   `json:"prompt"`
	TS     int64    `json:"ts"`
	Files  []string `json:"files"`
}

type cacheListResponse struct {
	Entries []CacheEntry `json:"entries"`
}

type cacheInvalidateResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
