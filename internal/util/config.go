package util

import "time"

// Config holds runtime settings and flags.
type Config struct {
	APIBaseURL string `env:"STORYCANVAS_API" env-default:"http://127.0.0.1:5000/api"`
	DSN        string `env:"DATABASE_URL"`

	// Networking knobs. Story generation gets a tighter timeout than the
	// image endpoints; retries apply to transport failures only.
	MaxRetries     int           `env:"STORYCANVAS_MAX_RETRIES" env-default:"3"`
	InitialBackoff time.Duration `env:"STORYCANVAS_INITIAL_BACKOFF" env-default:"1s"`
	StoryTimeout   time.Duration `env:"STORYCANVAS_STORY_TIMEOUT" env-default:"12s"`
	DefaultTimeout time.Duration `env:"STORYCANVAS_DEFAULT_TIMEOUT" env-default:"20s"`
	PollInterval   time.Duration `env:"STORYCANVAS_POLL_INTERVAL" env-default:"2s"`
	PollBudget     time.Duration `env:"STORYCANVAS_POLL_BUDGET" env-default:"120s"`

	// Google sign-in. The OAuth client is the loopback (installed app)
	// kind; the Firebase web API key is not a secret.
	GoogleClientID     string `env:"STORYCANVAS_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"STORYCANVAS_GOOGLE_CLIENT_SECRET"`
	FirebaseAPIKey     string `env:"STORYCANVAS_FIREBASE_API_KEY"`

	LogLevel string `env:"STORYCANVAS_LOG_LEVEL" env-default:"info"`
	Version  string
}
