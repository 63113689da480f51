package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mememind-backend/internal/model"
)

var (
	t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Second)
)

func apply(t *testing.T, s State, actions ...Action) State {
	t.Helper()
	for _, a := range actions {
		s, _ = Reduce(s, a, t1)
	}
	return s
}

func TestNewState(t *testing.T) {
	s := New("sess-1", t0)
	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, model.StyleClassic, s.Style)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.Template.IsSelected())
	assert.False(t, s.CanGenerate())
	assert.False(t, s.CanDownload())
}

func TestGenerationStartedRequiresPrompt(t *testing.T) {
	for _, prompt := range []string{"", " ", "\t\n", "   \r\n  "} {
		s := New("s", t0)
		s.Prompt = prompt

		next, changed := Reduce(s, GenerationStarted{RequestID: "r1"}, t1)
		assert.False(t, changed, "prompt %q", prompt)
		assert.Equal(t, s, next, "prompt %q", prompt)
	}
}

func TestGenerationSuccess(t *testing.T) {
	s := apply(t, New("s", t0),
		SetPrompt{Text: "cat judging life choices"},
		SelectStyle{Style: model.StyleDank},
		GenerationStarted{RequestID: "r1"},
	)
	assert.Equal(t, PhaseRequesting, s.Phase)
	assert.True(t, s.Loading)
	assert.Equal(t, "r1", s.PendingRequestID)

	s = apply(t, s, GenerationSucceeded{RequestID: "r1", ImageURL: "https://cdn.example.com/meme123.jpg"})
	assert.Equal(t, PhaseSuccess, s.Phase)
	assert.False(t, s.Loading)
	assert.Equal(t, "https://cdn.example.com/meme123.jpg", s.ImageURL)
	assert.Empty(t, s.PendingRequestID)
	assert.True(t, s.CanDownload())
	assert.Equal(t, t1, s.UpdatedAt)

	res, ok := s.Result()
	require.True(t, ok)
	assert.True(t, res.Succeeded())
}

func TestGenerationFailureClearsPreviousImage(t *testing.T) {
	s := apply(t, New("s", t0),
		SetPrompt{Text: "first"},
		GenerationStarted{RequestID: "r1"},
		GenerationSucceeded{RequestID: "r1", ImageURL: "https://cdn.example.com/old.jpg"},
		GenerationStarted{RequestID: "r2"},
	)
	assert.Empty(t, s.ImageURL, "starting a request clears the previous result")

	s = apply(t, s, GenerationFailed{RequestID: "r2", Message: "rate limited"})
	assert.Equal(t, PhaseFailure, s.Phase)
	assert.False(t, s.Loading)
	assert.Empty(t, s.ImageURL)
	assert.Equal(t, "rate limited", s.ErrorMessage)
	assert.False(t, s.CanDownload())
	assert.True(t, s.CanGenerate(), "ready for a retry")
}

func TestGenerationFailureDefaultMessage(t *testing.T) {
	s := apply(t, New("s", t0),
		SetPrompt{Text: "x"},
		GenerationStarted{RequestID: "r1"},
		GenerationFailed{RequestID: "r1"},
	)
	assert.Equal(t, model.MessageGenerationFailed, s.ErrorMessage)
}

func TestSucceededWithoutURLIsFailure(t *testing.T) {
	s := apply(t, New("s", t0),
		SetPrompt{Text: "x"},
		GenerationStarted{RequestID: "r1"},
		GenerationSucceeded{RequestID: "r1"},
	)
	assert.Equal(t, PhaseFailure, s.Phase)
	assert.Equal(t, model.MessageGenerationFailed, s.ErrorMessage)
}

func TestSupersededResolutionIsDiscarded(t *testing.T) {
	s := apply(t, New("s", t0),
		SetPrompt{Text: "x"},
		GenerationStarted{RequestID: "r1"},
		GenerationStarted{RequestID: "r2"},
	)

	// r1 返回得更晚也不能覆盖 r2
	next, changed := Reduce(s, GenerationSucceeded{RequestID: "r1", ImageURL: "https://cdn.example.com/stale.jpg"}, t1)
	assert.False(t, changed)
	assert.Equal(t, s, next)

	s = apply(t, s, GenerationSucceeded{RequestID: "r2", ImageURL: "https://cdn.example.com/fresh.jpg"})
	s = apply(t, s, GenerationFailed{RequestID: "r1", Message: "late failure"})
	assert.Equal(t, PhaseSuccess, s.Phase)
	assert.Equal(t, "https://cdn.example.com/fresh.jpg", s.ImageURL)
	assert.Empty(t, s.ErrorMessage)
}

func TestResolutionOrderIndependence(t *testing.T) {
	base := apply(t, New("s", t0),
		SetPrompt{Text: "x"},
		GenerationStarted{RequestID: "r1"},
		GenerationStarted{RequestID: "r2"},
	)
	r1 := GenerationSucceeded{RequestID: "r1", ImageURL: "https://cdn.example.com/1.jpg"}
	r2 := GenerationSucceeded{RequestID: "r2", ImageURL: "https://cdn.example.com/2.jpg"}

	a := apply(t, base, r1, r2)
	b := apply(t, base, r2, r1)
	assert.Equal(t, a, b)
	assert.Equal(t, "https://cdn.example.com/2.jpg", a.ImageURL)
}

func TestResetAbandonsPendingRequest(t *testing.T) {
	s := apply(t, New("s", t0),
		SetPrompt{Text: "x"},
		SelectStyle{Style: model.StyleDank},
		GenerationStarted{RequestID: "r1"},
		Reset{},
	)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Prompt)
	assert.Equal(t, model.StyleClassic, s.Style)

	next, changed := Reduce(s, GenerationSucceeded{RequestID: "r1", ImageURL: "https://cdn.example.com/late.jpg"}, t1)
	assert.False(t, changed)
	assert.Empty(t, next.ImageURL)
}

func TestSelectTemplate(t *testing.T) {
	tpl := model.Template{ID: "181913649", Name: "Drake Hotline Bling", URL: "https://i.imgflip.com/30b1gx.jpg"}

	s := apply(t, New("s", t0), SetPrompt{Text: "pizza or tacos"}, SelectTemplate{Choice: model.Selected(tpl)})
	assert.Equal(t, `Use the "Drake Hotline Bling" template with the following text: pizza or tacos`, s.Prompt)
	assert.True(t, s.Template.IsSelected())

	// 切换模板只替换短语，不嵌套
	other := model.Template{ID: "87743020", Name: "Two Buttons"}
	s = apply(t, s, SelectTemplate{Choice: model.Selected(other)})
	assert.Equal(t, `Use the "Two Buttons" template with the following text: pizza or tacos`, s.Prompt)

	s = apply(t, s, SelectTemplate{Choice: model.NoTemplate()})
	assert.Empty(t, s.Prompt)
	assert.False(t, s.Template.IsSelected())
}

func TestSelectTemplateNamedLikeSentinel(t *testing.T) {
	tpl := model.Template{ID: "42", Name: "no-template"}

	s := apply(t, New("s", t0), SelectTemplate{Choice: model.Selected(tpl)})
	assert.True(t, s.Template.IsSelected())
	assert.Equal(t, `Use the "no-template" template with the following text: `, s.Prompt)
}

func TestSelectStyleIgnoresUnknown(t *testing.T) {
	s := New("s", t0)
	next, changed := Reduce(s, SelectStyle{Style: "spicy"}, t1)
	assert.False(t, changed)
	assert.Equal(t, model.StyleClassic, next.Style)
	assert.Equal(t, t0, next.UpdatedAt)
}

func TestAttachProfile(t *testing.T) {
	s := apply(t, New("s", t0), AttachProfile{ProfileID: "p1"})
	assert.Equal(t, "p1", s.ProfileID)

	_, changed := Reduce(s, AttachProfile{ProfileID: "p1"}, t1)
	assert.False(t, changed)
}

func TestComposeRequest(t *testing.T) {
	tpl := model.Template{ID: "1", Name: "Two Buttons"}

	cases := []struct {
		name   string
		state  State
		expect model.GenerationRequest
	}{
		{
			name:   "no template",
			state:  State{Prompt: "cat judging life choices", Style: model.StyleDank},
			expect: model.GenerationRequest{Text: "cat judging life choices", Type: model.StyleDank},
		},
		{
			name:   "template phrase already in prompt",
			state:  State{Prompt: model.TemplatePhrase("Two Buttons") + "pizza or tacos", Template: model.Selected(tpl), Style: model.StyleClassic},
			expect: model.GenerationRequest{Text: `Use the "Two Buttons" template with the following text: pizza or tacos`, Type: model.StyleClassic},
		},
		{
			name:   "template selected but prompt edited",
			state:  State{Prompt: "pizza or tacos", Template: model.Selected(tpl), Style: model.StyleClassic},
			expect: model.GenerationRequest{Text: `Use the "Two Buttons" template with the following text: pizza or tacos`, Type: model.StyleClassic},
		},
		{
			name:   "missing style falls back to classic",
			state:  State{Prompt: "x"},
			expect: model.GenerationRequest{Text: "x", Type: model.StyleClassic},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, ComposeRequest(tc.state))
		})
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	tpl := model.Template{ID: "7", Name: "Doge", URL: "https://example.com/doge.jpg"}
	s := apply(t, New("s", t0),
		SelectTemplate{Choice: model.Selected(tpl)},
		SelectStyle{Style: model.StyleDank},
		GenerationStarted{RequestID: "r1"},
	)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s.Prompt, decoded.Prompt)
	assert.Equal(t, s.Phase, decoded.Phase)
	assert.Equal(t, s.PendingRequestID, decoded.PendingRequestID)
	got, ok := decoded.Template.Template()
	require.True(t, ok)
	assert.Equal(t, tpl, got)
}
