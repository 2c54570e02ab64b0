package ui

import (
	"context"
	errs "errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"storycanvas/internal/api"
	"storycanvas/internal/session"
	"storycanvas/internal/store"
	"storycanvas/internal/text"
	"storycanvas/internal/util"
)

const (
	viewAuth       = "auth"
	viewStoryboard = "storyboard"
	viewStaging    = "staging"
	viewCache      = "cache"
	viewHelp       = "help"
)

const (
	authModeLogin    = "login"
	authModeRegister = "register"
)

const sessionExpiredText = "Session expired. Please sign in again."

var spinnerFrames = []string{"|", "/", "-", "\\"}

type model struct {
	ctx     context.Context
	sess    *session.Store
	version string

	view   string
	width  int
	height int

	theme string
	pal   palette

	// auth form
	authMode  string
	authUser  string
	authPass  string
	authField int // 0 username, 1 password

	// storyboard prompt input
	promptInput string
	// staging image-prompt editor, pre-filled from the generated prompt
	stagingInput string

	status  string
	errText string

	banner       *api.ProviderStatus
	autoGenerate bool

	cacheEntries []api.CacheEntry
	cacheIndex   int
	cacheConfirm bool

	busy  bool
	frame int

	scrollOffset int

	// authExpired carries forced-logout notifications from API calls
	// running on other goroutines into the update loop.
	authExpired chan bool
}

// Messages -------------------------------------------------------------------

type authDoneMsg struct{ err error }
type sessionLoadedMsg struct{ err error }
type narrativeReadyMsg struct{ err error }
type narrationPostedMsg struct {
	scene session.Scene
	err   error
}
type imageReadyMsg struct{ err error }
type providerStatusMsg struct {
	status *api.ProviderStatus
	err    error
}
type cacheListMsg struct {
	entries []api.CacheEntry
	err     error
}
type cacheInvalidatedMsg struct {
	key string
	err error
}
type authExpiredMsg struct{ silent bool }
type loggedOutMsg struct{}
type tickMsg time.Time

func initialModel(ctx context.Context, sess *session.Store, cfg util.Config) model {
	m := model{
		ctx:         ctx,
		sess:        sess,
		version:     cfg.Version,
		view:        viewAuth,
		authMode:    authModeLogin,
		authExpired: make(chan bool, 4),
	}
	m.theme = sess.Preference(ctx, store.KeyTheme)
	if m.theme == "" {
		m.theme = "catppuccin"
	}
	m.pal = paletteFor(m.theme)
	m.autoGenerate = sess.Preference(ctx, store.KeyAutoGenerate) == "true"
	sess.SetAuthExpiredHandler(func(silent bool) {
		select {
		case m.authExpired <- silent:
		default:
		}
	})
	if sess.Authenticated() {
		m.view = viewStoryboard
	}
	return m
}

// Commands -------------------------------------------------------------------

func (m model) listenAuthExpired() tea.Cmd {
	ch := m.authExpired
	return func() tea.Msg { return authExpiredMsg{silent: <-ch} }
}

func (m model) loginCmd(user, pass string) tea.Cmd {
	return func() tea.Msg { return authDoneMsg{err: m.sess.Login(m.ctx, user, pass)} }
}

func (m model) registerCmd(user, pass string) tea.Cmd {
	return func() tea.Msg { return authDoneMsg{err: m.sess.Register(m.ctx, user, pass)} }
}

func (m model) googleCmd() tea.Cmd {
	return func() tea.Msg { return authDoneMsg{err: m.sess.SignInWithGoogle(m.ctx)} }
}

func (m model) loadSessionCmd() tea.Cmd {
	return func() tea.Msg {
		// Cached snapshot first so the storyboard paints immediately; the
		// backend copy replaces it when the round trip lands.
		_, _ = m.sess.LoadCached(m.ctx)
		return sessionLoadedMsg{err: m.sess.Load(m.ctx)}
	}
}

func (m model) narrativeCmd(prompt string) tea.Cmd {
	return func() tea.Msg { return narrativeReadyMsg{err: m.sess.GenerateNarrative(m.ctx, prompt)} }
}

func (m model) postNarrationCmd() tea.Cmd {
	return func() tea.Msg {
		scene, err := m.sess.PostNarration(m.ctx)
		return narrationPostedMsg{scene: scene, err: err}
	}
}

func (m model) imageCmd(prompt string) tea.Cmd {
	return func() tea.Msg { return imageReadyMsg{err: m.sess.GenerateImage(m.ctx, prompt)} }
}

func (m model) statusCmd() tea.Cmd {
	return func() tea.Msg {
		s, err := m.sess.Status(m.ctx)
		return providerStatusMsg{status: s, err: err}
	}
}

func (m model) cacheListCmd() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.sess.CacheList(m.ctx)
		return cacheListMsg{entries: entries, err: err}
	}
}

func (m model) cacheInvalidateCmd(key string) tea.Cmd {
	return func() tea.Msg { return cacheInvalidatedMsg{key: key, err: m.sess.CacheInvalidate(m.ctx, key)} }
}

func (m model) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		m.sess.Logout(m.ctx)
		return loggedOutMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// tea.Model ------------------------------------------------------------------

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listenAuthExpired(), m.statusCmd()}
	if m.view == viewStoryboard {
		cmds = append(cmds, m.loadSessionCmd())
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if !m.busy {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()

	case authExpiredMsg:
		m.busy = false
		m.view = viewAuth
		m.promptInput = ""
		m.stagingInput = ""
		m.errText = ""
		if !msg.silent {
			m.errText = sessionExpiredText
		}
		return m, m.listenAuthExpired()

	case loggedOutMsg:
		m.busy = false
		m.view = viewAuth
		m.promptInput = ""
		m.stagingInput = ""
		m.authUser = ""
		m.authPass = ""
		m.errText = ""
		m.status = "Signed out"
		return m, nil

	case authDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = userError(msg.err)
			return m, nil
		}
		m.errText = ""
		m.view = viewStoryboard
		m.status = "Signed in as " + m.sess.View().Session.Name()
		return m, m.loadSessionCmd()

	case sessionLoadedMsg:
		m.busy = false
		if msg.err != nil {
			// Load failures reset story state upstream; a stale token has
			// already bounced the view back to auth via authExpiredMsg.
			m.status = "Starting a fresh story"
			return m, nil
		}
		m.status = "Session restored"
		m.scrollOffset = 0
		return m, nil

	case narrativeReadyMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = userError(msg.err)
			return m, nil
		}
		m.errText = ""
		m.promptInput = ""
		m.status = "Narrative staged. Ctrl+P to post, Ctrl+O to illustrate."
		m.scrollOffset = 0
		if m.autoGenerate {
			return m, m.autoIllustrate()
		}
		return m, nil

	case narrationPostedMsg:
		if msg.err != nil {
			m.busy = false
			m.errText = userError(msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("Scene %d posted", msg.scene.ID)
		if m.busy {
			// auto-generate pipeline: the image command is already queued
			return m, nil
		}
		return m, nil

	case imageReadyMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = userError(msg.err)
			if m.view == viewStaging {
				m.view = viewStoryboard
			}
			return m, nil
		}
		m.errText = ""
		m.stagingInput = ""
		m.view = viewStoryboard
		m.status = "Images ready"
		m.scrollOffset = 0
		return m, nil

	case providerStatusMsg:
		if msg.err == nil {
			m.banner = msg.status
		}
		return m, nil

	case cacheListMsg:
		if msg.err != nil {
			m.errText = userError(msg.err)
			return m, nil
		}
		m.cacheEntries = msg.entries
		if m.cacheIndex >= len(m.cacheEntries) {
			m.cacheIndex = len(m.cacheEntries) - 1
		}
		if m.cacheIndex < 0 {
			m.cacheIndex = 0
		}
		return m, nil

	case cacheInvalidatedMsg:
		if msg.err != nil {
			m.errText = userError(msg.err)
			return m, nil
		}
		m.status = "Cache entry removed: " + msg.key
		return m, m.cacheListCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// autoIllustrate posts the staged narration and immediately runs image
// generation with the generated prompt, mirroring the auto-generate
// preference.
func (m *model) autoIllustrate() tea.Cmd {
	pending := m.sess.View().Pending
	if pending == nil {
		return nil
	}
	prompt := pending.ImagePrompt
	m.busy = true
	return illustratePipeline(m.postNarrationCmd(), m.imageCmd(prompt))
}

// illustratePipeline runs post-then-image in order while the spinner
// tick runs alongside rather than after the pipeline drains.
func illustratePipeline(post, image tea.Cmd) tea.Cmd {
	return tea.Batch(tea.Sequence(post, image), tick())
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	if k == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.view {
	case viewAuth:
		return m.handleAuthKey(k)
	case viewStaging:
		return m.handleStagingKey(k)
	case viewCache:
		return m.handleCacheKey(k)
	case viewHelp:
		if k == "esc" || k == "q" || k == "f1" {
			m.view = m.afterHelp()
		}
		return m, nil
	default:
		return m.handleStoryboardKey(k)
	}
}

func (m model) afterHelp() string {
	if m.sess.Authenticated() {
		return viewStoryboard
	}
	return viewAuth
}

func (m model) handleAuthKey(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "tab", "down", "up":
		m.authField = 1 - m.authField
	case "ctrl+r":
		if m.authMode == authModeLogin {
			m.authMode = authModeRegister
		} else {
			m.authMode = authModeLogin
		}
		m.errText = ""
	case "ctrl+g":
		m.busy = true
		m.status = "Waiting for Google sign-in in your browser..."
		return m, tea.Batch(m.googleCmd(), tick())
	case "enter":
		if m.busy {
			return m, nil
		}
		m.busy = true
		if m.authMode == authModeRegister {
			return m, tea.Batch(m.registerCmd(m.authUser, m.authPass), tick())
		}
		return m, tea.Batch(m.loginCmd(m.authUser, m.authPass), tick())
	case "backspace":
		if m.authField == 0 && len(m.authUser) > 0 {
			m.authUser = m.authUser[:len(m.authUser)-1]
		} else if m.authField == 1 && len(m.authPass) > 0 {
			m.authPass = m.authPass[:len(m.authPass)-1]
		}
	case "f1":
		m.view = viewHelp
	default:
		if isRuneInput(k) {
			if m.authField == 0 {
				m.authUser += k
			} else {
				m.authPass += k
			}
		}
	}
	return m, nil
}

func (m model) handleStoryboardKey(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "enter":
		if m.busy {
			m.errText = "A generation is already in progress"
			return m, nil
		}
		prompt := strings.TrimSpace(m.promptInput)
		if prompt == "" {
			m.errText = "Enter a prompt first"
			return m, nil
		}
		m.busy = true
		m.errText = ""
		m.status = "Generating narrative..."
		return m, tea.Batch(m.narrativeCmd(prompt), tick())
	case "ctrl+p":
		if m.sess.View().Pending == nil {
			m.errText = "Nothing staged to post"
			return m, nil
		}
		return m, m.postNarrationCmd()
	case "ctrl+o":
		st := m.sess.View()
		if st.Pending == nil && st.PendingSceneID == 0 {
			m.errText = "Generate a narrative first"
			return m, nil
		}
		if st.Pending != nil {
			m.stagingInput = st.Pending.ImagePrompt
		}
		m.view = viewStaging
		m.errText = ""
	case "ctrl+r":
		m.busy = true
		m.status = "Reloading session..."
		return m, tea.Batch(m.loadSessionCmd(), tick())
	case "ctrl+e":
		m.view = viewCache
		return m, m.cacheListCmd()
	case "ctrl+t":
		m.theme = nextThemeName(m.theme, 1)
		m.pal = paletteFor(m.theme)
		m.sess.SetPreference(m.ctx, store.KeyTheme, m.theme)
	case "ctrl+a":
		m.autoGenerate = !m.autoGenerate
		m.sess.SetPreference(m.ctx, store.KeyAutoGenerate, fmt.Sprintf("%t", m.autoGenerate))
	case "ctrl+l":
		m.busy = true
		return m, tea.Batch(m.logoutCmd(), tick())
	case "f1":
		m.view = viewHelp
	case "pgdown", "ctrl+f":
		m.scrollOffset += 8
	case "pgup", "ctrl+b":
		m.scrollOffset -= 8
	case "home":
		m.scrollOffset = 0
	case "end":
		m.scrollOffset = 1 << 30
	case "backspace":
		if len(m.promptInput) > 0 {
			m.promptInput = m.promptInput[:len(m.promptInput)-1]
		}
	default:
		if isRuneInput(k) {
			m.promptInput += k
		}
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
	return m, nil
}

func (m model) handleStagingKey(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "esc":
		m.view = viewStoryboard
	case "enter":
		if m.busy {
			m.errText = "A generation is already in progress"
			return m, nil
		}
		prompt := strings.TrimSpace(m.stagingInput)
		if prompt == "" {
			m.errText = "Image prompt cannot be empty"
			return m, nil
		}
		m.busy = true
		m.errText = ""
		m.status = "Generating images..."
		return m, tea.Batch(m.imageCmd(prompt), tick())
	case "backspace":
		if len(m.stagingInput) > 0 {
			m.stagingInput = m.stagingInput[:len(m.stagingInput)-1]
		}
	default:
		if isRuneInput(k) {
			m.stagingInput += k
		}
	}
	return m, nil
}

func (m model) handleCacheKey(k string) (tea.Model, tea.Cmd) {
	if m.cacheConfirm {
		m.cacheConfirm = false
		if k == "y" && m.cacheIndex < len(m.cacheEntries) {
			return m, m.cacheInvalidateCmd(m.cacheEntries[m.cacheIndex].Key)
		}
		return m, nil
	}
	switch k {
	case "esc", "q":
		m.view = viewStoryboard
	case "up", "k":
		if m.cacheIndex > 0 {
			m.cacheIndex--
		}
	case "down", "j":
		if m.cacheIndex < len(m.cacheEntries)-1 {
			m.cacheIndex++
		}
	case "r":
		return m, m.cacheListCmd()
	case "d", "enter":
		if m.cacheIndex < len(m.cacheEntries) {
			m.cacheConfirm = true
		}
	}
	return m, nil
}

// View -----------------------------------------------------------------------

func (m model) View() string {
	switch m.view {
	case viewAuth:
		return m.renderAuth()
	case viewStaging:
		return m.renderStaging()
	case viewCache:
		return m.renderCache()
	case viewHelp:
		return m.renderHelp()
	default:
		return m.renderStoryboard()
	}
}

func (m model) renderAuth() string {
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(m.pal.Border).Padding(1, 2).Width(54)
	title := lipgloss.NewStyle().Bold(true).Foreground(m.pal.Accent).Render("STORY CANVAS")
	mode := "Sign In"
	if m.authMode == authModeRegister {
		mode = "Create Account"
	}
	userCursor, passCursor := "  ", "  "
	if m.authField == 0 {
		userCursor = "> "
	} else {
		passCursor = "> "
	}
	var b strings.Builder
	b.WriteString(title + "  " + mode + "\n\n")
	b.WriteString(fmt.Sprintf("%sUsername: %s\n", userCursor, m.authUser))
	b.WriteString(fmt.Sprintf("%sPassword: %s\n\n", passCursor, strings.Repeat("*", len(m.authPass))))
	b.WriteString("[Enter] submit  [Tab] field  [Ctrl+R] login/register\n")
	b.WriteString("[Ctrl+G] sign in with Google  [F1] help  [Ctrl+C] quit\n")
	if m.busy {
		b.WriteString("\n" + spinnerFrames[m.frame] + " " + m.status + "\n")
	}
	if m.errText != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(m.pal.Error).Render(m.errText) + "\n")
	}
	return box.Render(b.String())
}

func (m model) renderStoryboard() string {
	top := m.renderTopBar()
	body := m.renderScenes()
	lines := strings.Split(body, "\n")
	avail := m.height - 6
	offset := m.scrollOffset
	if avail > 5 && len(lines) > avail {
		if offset > len(lines)-avail {
			offset = len(lines) - avail
		}
		lines = lines[offset : offset+avail]
	}
	bottom := m.renderBottomBar()
	return lipgloss.JoinVertical(lipgloss.Left, top, strings.Join(lines, "\n"), bottom)
}

func (m model) renderTopBar() string {
	st := m.sess.View()
	left := "STORY CANVAS"
	if name := st.Session.Name(); name != "" {
		left += "  •  " + name
	}
	right := "style: " + st.ArtStyle
	if m.banner != nil {
		provider := m.banner.LLMProvider
		if m.banner.UseMockFallback {
			provider += " (mock fallback)"
		}
		if st.UsedRealLLM != nil && !*st.UsedRealLLM {
			provider += " [mocked response]"
		}
		right = provider + "  •  " + right
	}
	w := m.width
	if w <= 0 {
		w = 100
	}
	gap := w - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return lipgloss.NewStyle().Bold(true).Foreground(m.pal.Accent).Render(bar)
}

func (m model) renderScenes() string {
	st := m.sess.View()
	var b strings.Builder

	if p := st.Pending; p != nil {
		box := lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(m.pal.Warning).Padding(0, 1)
		staged := "STAGED (not posted)\n\n" + renderMarkdown(text.Sanitize(p.Narrative))
		if p.ImagePrompt != "" {
			staged += "\nImage prompt: " + text.Sanitize(p.ImagePrompt)
		}
		b.WriteString(box.Render(staged) + "\n\n")
	}

	if len(st.Scenes) == 0 && st.Pending == nil {
		empty := "No scenes yet. Type a prompt below and press Enter to begin your story."
		b.WriteString(lipgloss.NewStyle().Foreground(m.pal.Muted).Render(empty) + "\n")
	}

	for _, sc := range st.Scenes {
		header := fmt.Sprintf("Scene %d", sc.ID)
		if sc.ArtStyle != "" {
			header += "  •  " + sc.ArtStyle
		}
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(m.pal.AccentAlt).Render(header) + "\n")
		b.WriteString(renderMarkdown(text.Sanitize(sc.Narrative)))
		switch {
		case sc.ImageURL != "":
			b.WriteString(lipgloss.NewStyle().Foreground(m.pal.Success).Render("  [image] "+describeImage(sc.ImageURL)) + "\n")
		case sc.ID == st.PendingSceneID:
			b.WriteString(lipgloss.NewStyle().Foreground(m.pal.Warning).Render("  [image pending]") + "\n")
		}
		b.WriteString("\n")
	}

	if len(st.SummaryBullets) > 0 {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(m.pal.Muted).Render("STORY SO FAR") + "\n")
		for _, s := range st.SummaryBullets {
			b.WriteString("  • " + text.Sanitize(s) + "\n")
		}
	}
	return b.String()
}

func (m model) renderBottomBar() string {
	auto := "off"
	if m.autoGenerate {
		auto = "on"
	}
	keys := fmt.Sprintf("[Enter] generate  [Ctrl+P] post  [Ctrl+O] illustrate  [Ctrl+R] reload  [Ctrl+E] cache  [Ctrl+A] auto-image:%s  [Ctrl+T] theme  [Ctrl+L] logout  [F1] help", auto)
	prompt := "Prompt> " + m.promptInput
	if m.busy {
		prompt += "  " + spinnerFrames[m.frame] + " " + m.status
	} else if m.errText != "" {
		prompt += "  " + lipgloss.NewStyle().Foreground(m.pal.Error).Render(m.errText)
	} else if m.status != "" {
		prompt += "  " + lipgloss.NewStyle().Foreground(m.pal.Muted).Render(m.status)
	}
	return lipgloss.NewStyle().Foreground(m.pal.Muted).Render(keys) + "\n" + prompt
}

func (m model) renderStaging() string {
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(m.pal.Border).Padding(1, 2).Width(70)
	st := m.sess.View()
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(m.pal.Accent).Render("ILLUSTRATE SCENE") + "\n\n")
	if st.Pending != nil {
		b.WriteString(renderMarkdown(text.Sanitize(st.Pending.Narrative)) + "\n")
	}
	b.WriteString("Edit the image prompt, then press Enter.\n\n")
	b.WriteString("Prompt> " + m.stagingInput + "\n\n")
	count := "3 images (standalone scenes)"
	if st.PendingSceneID != 0 {
		count = "1 image (attached to the posted scene)"
	}
	b.WriteString(lipgloss.NewStyle().Foreground(m.pal.Muted).Render("Will generate "+count) + "\n")
	b.WriteString("[Enter] generate  [Esc] back\n")
	if m.busy {
		b.WriteString("\n" + spinnerFrames[m.frame] + " " + m.status + "\n")
	}
	if m.errText != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(m.pal.Error).Render(m.errText) + "\n")
	}
	return box.Render(b.String())
}

func (m model) renderCache() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(m.pal.Accent).Render("IMAGE CACHE") + "  (Up/Down, d delete, r refresh, Esc back)\n\n")
	if len(m.cacheEntries) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(m.pal.Muted).Render("(cache is empty)") + "\n")
		return b.String()
	}
	for i, e := range m.cacheEntries {
		cursor := "  "
		if i == m.cacheIndex {
			cursor = "> "
		}
		ts := time.Unix(e.TS, 0).Format("2006-01-02 15:04")
		prompt := text.Sanitize(e.Prompt)
		if len(prompt) > 60 {
			prompt = prompt[:57] + "..."
		}
		b.WriteString(fmt.Sprintf("%s%-12s %s  %s  (%d files)\n", cursor, short(e.Key), ts, prompt, len(e.Files)))
	}
	if m.cacheConfirm && m.cacheIndex < len(m.cacheEntries) {
		warn := fmt.Sprintf("Delete cache entry %s? [y] confirm, any other key cancels", short(m.cacheEntries[m.cacheIndex].Key))
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(m.pal.Warning).Render(warn) + "\n")
	}
	if m.errText != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(m.pal.Error).Render(m.errText) + "\n")
	}
	return b.String()
}

func (m model) renderHelp() string {
	return fmt.Sprintf(`STORY CANVAS %s

An AI storyboard: describe what happens next, review the generated
narrative, then post it and illustrate it.

Flow: type a prompt and press Enter. The staged narrative appears at
the top. Ctrl+P posts it as a scene; Ctrl+O opens the illustration
editor with the generated image prompt pre-filled. A posted scene gets
one image; illustrating without posting creates three standalone
scenes. With auto-image on (Ctrl+A), posting and illustration run
automatically after each narrative.

Sessions save after every change and restore on sign-in, on this or
any other device.

Keys: Enter generate | Ctrl+P post | Ctrl+O illustrate | Ctrl+R reload
Ctrl+E image cache | Ctrl+A auto-image | Ctrl+T theme | Ctrl+L logout
PgUp/PgDn scroll | F1 close help | Ctrl+C quit`, m.version)
}

// Helpers --------------------------------------------------------------------

func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return md + "\n"
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}

// describeImage keeps inline data URLs from flooding the terminal.
func describeImage(url string) string {
	if strings.HasPrefix(url, "data:") {
		return fmt.Sprintf("inline, %d KB", len(url)/1024)
	}
	return url
}

func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

func userError(err error) string {
	var verr *session.ValidationError
	if errs.As(err, &verr) {
		return verr.Reason
	}
	if errs.Is(err, session.ErrGenerationInFlight) {
		return "A generation is already in progress"
	}
	// keep in step with the forced-logout bounce so a command failing
	// mid-flight does not replace the friendly message with a raw one
	if errs.Is(err, api.ErrUnauthorized) {
		return sessionExpiredText
	}
	return err.Error()
}

func isRuneInput(s string) bool {
	runes := []rune(s)
	return len(runes) == 1 && runes[0] >= 32
}
